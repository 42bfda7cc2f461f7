package handler

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"gorm.io/gorm"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/processor"
	"recruit-agent-go/internal/storage"
	"recruit-agent-go/internal/storage/models"
	"recruit-agent-go/internal/types"
)

// CandidateHandler 候选人接口：批量上传简历与候选人查询
type CandidateHandler struct {
	cfg     *config.Config
	storage *storage.Storage
	batch   *processor.BatchProcessor
}

// NewCandidateHandler 创建候选人处理器
func NewCandidateHandler(cfg *config.Config, s *storage.Storage, batch *processor.BatchProcessor) *CandidateHandler {
	return &CandidateHandler{
		cfg:     cfg,
		storage: s,
		batch:   batch,
	}
}

// CandidateResponse 候选人详情响应
type CandidateResponse struct {
	CandidateID     string                 `json:"candidate_id"`
	Filename        string                 `json:"filename"`
	Extraction      types.ResumeExtraction `json:"extraction"`
	ResumeObjectKey string                 `json:"resume_object_key,omitempty"`
	PageCount       int                    `json:"page_count"`
	JobID           *string                `json:"job_id,omitempty"`
	UploadedBy      string                 `json:"uploaded_by"`
	CreatedAt       time.Time              `json:"created_at"`
}

// candidateToResponse 组装候选人响应，JSON列还原失败时退化为空结构
func candidateToResponse(c *models.Candidate) CandidateResponse {
	ext, err := c.ToExtraction()
	if err != nil {
		logger.Warn().Err(err).Str("candidate_id", c.CandidateID).Msg("还原候选人提取结果失败")
		ext = &types.ResumeExtraction{FullName: c.FullName, Email: c.Email}
		ext.Normalize()
	}
	return CandidateResponse{
		CandidateID:     c.CandidateID,
		Filename:        c.Filename,
		Extraction:      *ext,
		ResumeObjectKey: c.ResumeObjectKey,
		PageCount:       c.PageCount,
		JobID:           c.JobID,
		UploadedBy:      c.UploadedBy,
		CreatedAt:       c.CreatedAt,
	}
}

// HandleUpload 批量上传简历。multipart表单，字段files为多个文件，
// job_id可选。响应始终是一份完整摘要，单文件失败只体现在计数里。
func (h *CandidateHandler) HandleUpload(c context.Context, ctx *app.RequestContext) {
	form, err := ctx.MultipartForm()
	if err != nil {
		respondError(ctx, consts.StatusBadRequest, "解析multipart表单失败")
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		respondError(ctx, consts.StatusBadRequest, "未提供任何文件")
		return
	}

	jobID := ctx.PostForm("job_id")
	uploadedBy := uploaderFrom(ctx)
	maxBytes := int64(h.cfg.Upload.MaxFileSizeMB) * 1024 * 1024

	files := make([]processor.UploadedFile, 0, len(fileHeaders))
	oversized := make([]string, 0)
	for _, fh := range fileHeaders {
		if maxBytes > 0 && fh.Size > maxBytes {
			oversized = append(oversized, fh.Filename)
			continue
		}
		f, openErr := fh.Open()
		if openErr != nil {
			oversized = append(oversized, fh.Filename)
			continue
		}
		data, readErr := io.ReadAll(f)
		f.Close()
		if readErr != nil {
			oversized = append(oversized, fh.Filename)
			continue
		}
		files = append(files, processor.UploadedFile{Filename: fh.Filename, Data: data})
	}

	result := h.batch.Process(c, files, jobID, uploadedBy)

	// 超限或不可读的文件也计入摘要
	result.TotalFiles += len(oversized)
	result.Failed += len(oversized)
	result.FailedFiles = append(result.FailedFiles, oversized...)

	ctx.JSON(consts.StatusOK, result)
}

// HandleList 分页列出候选人，支持job_id过滤
func (h *CandidateHandler) HandleList(c context.Context, ctx *app.RequestContext) {
	page, size := pagination(ctx)
	jobID := ctx.Query("job_id")

	candidates, total, err := h.storage.MySQL.ListCandidates(c, jobID, page, size)
	if err != nil {
		logger.Error().Err(err).Msg("查询候选人列表失败")
		respondError(ctx, consts.StatusInternalServerError, "查询候选人列表失败")
		return
	}

	items := make([]CandidateResponse, 0, len(candidates))
	for i := range candidates {
		items = append(items, candidateToResponse(&candidates[i]))
	}

	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	})
}

// HandleGet 按ID查询候选人
func (h *CandidateHandler) HandleGet(c context.Context, ctx *app.RequestContext) {
	candidateID := ctx.Param("id")

	candidate, err := h.storage.MySQL.GetCandidate(c, candidateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, consts.StatusNotFound, "候选人不存在")
			return
		}
		logger.Error().Err(err).Str("candidate_id", candidateID).Msg("查询候选人失败")
		respondError(ctx, consts.StatusInternalServerError, "查询候选人失败")
		return
	}

	ctx.JSON(consts.StatusOK, candidateToResponse(candidate))
}

// HandleResumeURL 获取原始简历。默认返回15分钟有效的预签名下载链接，
// download=1时直接回传PDF内容
func (h *CandidateHandler) HandleResumeURL(c context.Context, ctx *app.RequestContext) {
	candidateID := ctx.Param("id")

	candidate, err := h.storage.MySQL.GetCandidate(c, candidateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, consts.StatusNotFound, "候选人不存在")
			return
		}
		respondError(ctx, consts.StatusInternalServerError, "查询候选人失败")
		return
	}

	if h.storage.MinIO == nil || candidate.ResumeObjectKey == "" {
		respondError(ctx, consts.StatusNotFound, "该候选人没有保存原始简历")
		return
	}

	if ctx.Query("download") == "1" {
		data, err := h.storage.MinIO.GetResumeFile(c, candidate.ResumeObjectKey)
		if err != nil {
			logger.Error().Err(err).Str("object_key", candidate.ResumeObjectKey).Msg("读取原始简历失败")
			respondError(ctx, consts.StatusInternalServerError, "读取原始简历失败")
			return
		}
		ctx.Data(consts.StatusOK, "application/pdf", data)
		return
	}

	url, err := h.storage.MinIO.GetPresignedURL(c, candidate.ResumeObjectKey, 15*time.Minute)
	if err != nil {
		logger.Error().Err(err).Str("object_key", candidate.ResumeObjectKey).Msg("生成预签名链接失败")
		respondError(ctx, consts.StatusInternalServerError, "生成简历下载链接失败")
		return
	}

	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"candidate_id": candidateID,
		"url":          url,
		"expires_in":   int((15 * time.Minute).Seconds()),
	})
}

// HandleDelete 删除候选人，连带清理去重缓存和对象存储中的原始文件
func (h *CandidateHandler) HandleDelete(c context.Context, ctx *app.RequestContext) {
	candidateID := ctx.Param("id")

	candidate, err := h.storage.MySQL.GetCandidate(c, candidateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(ctx, consts.StatusNotFound, "候选人不存在")
			return
		}
		respondError(ctx, consts.StatusInternalServerError, "查询候选人失败")
		return
	}

	if err := h.storage.MySQL.DeleteCandidate(c, candidateID); err != nil {
		logger.Error().Err(err).Str("candidate_id", candidateID).Msg("删除候选人失败")
		respondError(ctx, consts.StatusInternalServerError, "删除候选人失败")
		return
	}

	// 缓存和对象存储的清理失败不影响删除结果
	if h.storage.Redis != nil {
		if err := h.storage.Redis.RemoveFilenameProcessed(c, candidate.Filename); err != nil {
			logger.Warn().Err(err).Str("filename", candidate.Filename).Msg("清理去重缓存失败")
		}
	}
	if h.storage.MinIO != nil && candidate.ResumeObjectKey != "" {
		if err := h.storage.MinIO.DeleteResumeFile(c, candidate.ResumeObjectKey); err != nil {
			logger.Warn().Err(err).Str("object_key", candidate.ResumeObjectKey).Msg("删除原始简历文件失败")
		}
	}

	ctx.JSON(consts.StatusOK, map[string]interface{}{"deleted": candidateID})
}
