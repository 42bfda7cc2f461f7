package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recruit-agent-go/internal/constants"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/storage/models"
	"recruit-agent-go/internal/tracing"
	"recruit-agent-go/internal/types"
)

// UploadedFile 批量上传中的一个文件
type UploadedFile struct {
	Filename string
	Data     []byte
}

// candidateCreatedPayload candidate.created事件的消息体
type candidateCreatedPayload struct {
	CandidateID string  `json:"candidate_id"`
	Filename    string  `json:"filename"`
	FullName    string  `json:"full_name"`
	Email       string  `json:"email"`
	JobID       *string `json:"job_id,omitempty"`
	UploadedBy  string  `json:"uploaded_by"`
	UploadedAt  string  `json:"uploaded_at"`
}

// BatchProcessor 批量简历上传的处理器。
// 按顺序逐个文件处理，单个文件的失败只计数，不影响其余文件。
type BatchProcessor struct {
	extractor *ResumeExtractor
	store     CandidateStore
	fileStore ResumeFileStore // 可为nil，不保存原始文件
	dedup     DedupCache      // 可为nil，只查数据库
	exchange  string          // candidate.created事件的目标交换机
	eventKey  string          // candidate.created事件的路由键
	log       zerolog.Logger
	tracer    trace.Tracer
}

// BatchOption 批处理器选项
type BatchOption func(*BatchProcessor)

// WithResumeFileStore 配置原始文件存储
func WithResumeFileStore(fs ResumeFileStore) BatchOption {
	return func(b *BatchProcessor) {
		b.fileStore = fs
	}
}

// WithDedupCache 配置文件名去重缓存
func WithDedupCache(c DedupCache) BatchOption {
	return func(b *BatchProcessor) {
		b.dedup = c
	}
}

// WithCandidateEvents 配置candidate.created事件的发布目标，
// 两个参数都非空时新候选人写库会附带outbox事件
func WithCandidateEvents(exchange, routingKey string) BatchOption {
	return func(b *BatchProcessor) {
		b.exchange = exchange
		b.eventKey = routingKey
	}
}

// WithBatchLogger 覆盖默认日志记录器
func WithBatchLogger(log zerolog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.log = log
	}
}

// NewBatchProcessor 创建批量处理器
func NewBatchProcessor(extractor *ResumeExtractor, store CandidateStore, opts ...BatchOption) *BatchProcessor {
	b := &BatchProcessor{
		extractor: extractor,
		store:     store,
		log:       logger.Logger.With().Str("component", "batch_processor").Logger(),
		tracer:    otel.Tracer("recruit-agent-go/processor/batch"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NormalizeFilename 去重键：去掉首尾空白并转小写
func NormalizeFilename(filename string) string {
	return strings.ToLower(strings.TrimSpace(filename))
}

// Process 处理一批上传文件，总是返回完整摘要，单文件错误只进日志。
// 顺序处理保证批内重复文件名确定性地复用第一次出现的结果。
func (b *BatchProcessor) Process(ctx context.Context, files []UploadedFile, jobID, uploadedBy string) *types.BatchExtractionResult {
	result := &types.BatchExtractionResult{
		TotalFiles:  len(files),
		FailedFiles: []string{},
		Results:     []types.ResumeExtraction{},
	}

	for _, file := range files {
		// 文件名走截断、姓名走掩码，span属性不落明文隐私
		fileCtx, span := b.tracer.Start(ctx, "batch.ProcessFile",
			trace.WithAttributes(
				attribute.String("upload.file",
					tracing.SafeAttributeValue("upload.file", NormalizeFilename(file.Filename), tracing.DefaultMaxLength)),
			),
		)

		ext, err := b.processOne(fileCtx, file, jobID, uploadedBy)
		if err != nil {
			tracing.RecordError(span, err, spanErrorType(err))
			span.End()
			b.log.Warn().Err(err).Str("filename", file.Filename).Msg("文件处理失败")
			result.Failed++
			result.FailedFiles = append(result.FailedFiles, file.Filename)
			continue
		}
		span.SetAttributes(attribute.String("candidate.full_name",
			tracing.SafeAttributeValue("candidate.full_name", ext.FullName, tracing.DefaultMaxLength)))
		span.End()
		result.Succeeded++
		result.Results = append(result.Results, *ext)
	}

	return result
}

// spanErrorType 把处理错误映射到追踪用的错误分类
func spanErrorType(err error) tracing.ErrorType {
	switch {
	case errors.Is(err, ErrInvalidRecord):
		return tracing.ErrorTypeValidation
	case errors.Is(err, ErrDatabaseFailed):
		return tracing.ErrorTypeDB
	case errors.Is(err, ErrLLMUnavailable), errors.Is(err, ErrLLMDecode):
		return tracing.ErrorTypeLLM
	case errors.Is(err, ErrFileRead), errors.Is(err, ErrTextExtraction):
		return tracing.ErrorTypeExtraction
	default:
		return tracing.ErrorTypeInternal
	}
}

// processOne 处理单个文件：去重、提取、存文件、写库
func (b *BatchProcessor) processOne(ctx context.Context, file UploadedFile, jobID, uploadedBy string) (*types.ResumeExtraction, error) {
	normalized := NormalizeFilename(file.Filename)

	if !strings.HasSuffix(normalized, ".pdf") {
		return nil, NewValidationError(normalized, "不是PDF文件")
	}

	// 先查Redis快速通道，再按数据库唯一键兜底
	if existing, err := b.findExisting(ctx, normalized); err != nil {
		return nil, err
	} else if existing != nil {
		b.log.Debug().Str("filename", normalized).Msg("文件名已处理过，复用存量记录")
		return existing, nil
	}

	ext, pages, err := b.extractor.ProcessBytes(ctx, file.Data, normalized)
	if err != nil {
		return nil, NewExtractError(normalized, err.Error())
	}

	candidateID, err := uuid.NewV7()
	if err != nil {
		return nil, NewStoreError(normalized, "生成候选人ID失败: "+err.Error())
	}

	candidate := &models.Candidate{
		CandidateID: candidateID.String(),
		Filename:    normalized,
		PageCount:   pages,
		UploadedBy:  uploadedBy,
	}
	if jobID != "" {
		candidate.JobID = &jobID
	}
	if err := candidate.FromExtraction(ext); err != nil {
		return nil, NewValidationError(normalized, err.Error())
	}

	// 原始PDF先落对象存储，拿到对象键后再写库
	if b.fileStore != nil {
		objectKey, upErr := b.fileStore.UploadResumeFile(ctx, candidate.CandidateID, normalized,
			bytes.NewReader(file.Data), int64(len(file.Data)))
		if upErr != nil {
			return nil, NewStoreError(normalized, "保存原始文件失败: "+upErr.Error())
		}
		candidate.ResumeObjectKey = objectKey
	}

	event, err := b.buildCreatedEvent(candidate, ext)
	if err != nil {
		return nil, NewStoreError(normalized, "构造事件失败: "+err.Error())
	}

	if err := b.store.CreateCandidateWithEvent(ctx, candidate, event); err != nil {
		return nil, NewStoreError(normalized, err.Error())
	}

	if b.dedup != nil {
		if err := b.dedup.MarkFilenameProcessed(ctx, normalized); err != nil {
			// 缓存写失败不影响结果，数据库唯一索引仍然兜底
			b.log.Warn().Err(err).Str("filename", normalized).Msg("记录去重缓存失败")
		}
		b.cacheResult(ctx, normalized, ext)
	}

	return ext, nil
}

// findExisting 按规范化文件名查找已处理的记录
func (b *BatchProcessor) findExisting(ctx context.Context, normalized string) (*types.ResumeExtraction, error) {
	if b.dedup != nil {
		// 去重集合没见过的文件名不必再查提取结果缓存
		seen, err := b.dedup.CheckFilenameProcessed(ctx, normalized)
		if err != nil {
			b.log.Warn().Err(err).Str("filename", normalized).Msg("查询去重缓存失败")
			seen = true
		}
		// 缓存里的提取结果只在成功落库后写入，命中即可直接复用
		if seen {
			if cached, err := b.dedup.GetCachedExtraction(ctx, normalized); err != nil {
				b.log.Warn().Err(err).Str("filename", normalized).Msg("查询提取结果缓存失败")
			} else if cached != nil {
				b.log.Debug().Str("filename", normalized).Msg("提取结果缓存命中")
				return cached, nil
			}
		}
	}

	// 缓存过期后重复上传仍以数据库唯一索引为准
	existing, err := b.store.FindCandidateByFilename(ctx, normalized)
	if err != nil {
		return nil, NewStoreError(normalized, err.Error())
	}
	if existing == nil {
		return nil, nil
	}

	ext, err := existing.ToExtraction()
	if err != nil {
		return nil, NewStoreError(normalized, "还原存量记录失败: "+err.Error())
	}
	b.cacheResult(ctx, normalized, ext)
	return ext, nil
}

// cacheResult 尽力回填提取结果缓存，失败只记日志
func (b *BatchProcessor) cacheResult(ctx context.Context, normalized string, ext *types.ResumeExtraction) {
	if b.dedup == nil {
		return
	}
	if err := b.dedup.CacheExtraction(ctx, normalized, ext); err != nil {
		b.log.Warn().Err(err).Str("filename", normalized).Msg("写提取结果缓存失败")
	}
}

// buildCreatedEvent 为新候选人构造candidate.created的outbox事件
func (b *BatchProcessor) buildCreatedEvent(candidate *models.Candidate, ext *types.ResumeExtraction) (*models.OutboxMessage, error) {
	if b.exchange == "" || b.eventKey == "" {
		return nil, nil
	}

	payload, err := json.Marshal(candidateCreatedPayload{
		CandidateID: candidate.CandidateID,
		Filename:    candidate.Filename,
		FullName:    ext.FullName,
		Email:       ext.Email,
		JobID:       candidate.JobID,
		UploadedBy:  candidate.UploadedBy,
		UploadedAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	return &models.OutboxMessage{
		AggregateID:      candidate.CandidateID,
		EventType:        constants.CandidateCreatedEventType,
		Payload:          string(payload),
		TargetExchange:   b.exchange,
		TargetRoutingKey: b.eventKey,
	}, nil
}
