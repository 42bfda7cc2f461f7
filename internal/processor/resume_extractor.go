package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"recruit-agent-go/internal/logger"
	"recruit-agent-go/internal/parser"
	"recruit-agent-go/internal/types"
)

// ResumeExtractor 单份简历的提取编排器。
// 状态机：读取文本 -> 尝试LLM -> 失败则启发式回退。
// 只有文本读取失败是终态错误，LLM侧的任何错误都被吸收进回退路径。
type ResumeExtractor struct {
	pdfExtractor PDFExtractor
	llmExtractor StructuredExtractor // 可为nil，表示未配置LLM
	log          zerolog.Logger
}

// ExtractorOption 编排器选项
type ExtractorOption func(*ResumeExtractor)

// WithStructuredExtractor 配置LLM提取器
func WithStructuredExtractor(e StructuredExtractor) ExtractorOption {
	return func(r *ResumeExtractor) {
		r.llmExtractor = e
	}
}

// WithExtractorLogger 覆盖默认日志记录器
func WithExtractorLogger(log zerolog.Logger) ExtractorOption {
	return func(r *ResumeExtractor) {
		r.log = log
	}
}

// NewResumeExtractor 创建提取编排器
func NewResumeExtractor(pdfExtractor PDFExtractor, opts ...ExtractorOption) (*ResumeExtractor, error) {
	if pdfExtractor == nil {
		return nil, fmt.Errorf("PDF提取器不能为空")
	}
	r := &ResumeExtractor{
		pdfExtractor: pdfExtractor,
		log:          logger.Logger.With().Str("component", "resume_extractor").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ProcessFile 处理一个PDF文件路径
func (r *ResumeExtractor) ProcessFile(ctx context.Context, filePath string) (*types.ResumeExtraction, int, error) {
	text, pages, err := r.pdfExtractor.ExtractFromFile(ctx, filePath)
	if err != nil {
		return nil, 0, err
	}
	return r.extract(ctx, text, pages), pages, nil
}

// ProcessBytes 处理内存中的PDF内容，上传场景使用
func (r *ResumeExtractor) ProcessBytes(ctx context.Context, data []byte, name string) (*types.ResumeExtraction, int, error) {
	text, pages, err := r.pdfExtractor.ExtractFromBytes(ctx, data, name)
	if err != nil {
		return nil, 0, err
	}
	return r.extract(ctx, text, pages), pages, nil
}

// extract 文本读取成功之后必定产出结果
func (r *ResumeExtractor) extract(ctx context.Context, text string, pages int) *types.ResumeExtraction {
	if r.llmExtractor != nil && r.llmExtractor.Available() {
		ext, err := r.llmExtractor.Extract(ctx, text, pages)
		if err == nil {
			r.log.Debug().Int("pages", pages).Msg("LLM提取成功")
			return ext
		}
		switch {
		case errors.Is(err, parser.ErrLLMUnavailable):
			r.log.Warn().Msg("LLM不可用，走启发式回退")
		case errors.Is(err, parser.ErrLLMDecode):
			r.log.Warn().Err(err).Msg("LLM回复解析失败，走启发式回退")
		default:
			r.log.Warn().Err(err).Msg("LLM调用失败，走启发式回退")
		}
	}
	return parser.FallbackExtraction(text)
}
