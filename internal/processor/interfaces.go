package processor

import (
	"context"
	"io"

	"recruit-agent-go/internal/storage/models"
	"recruit-agent-go/internal/types"
)

//
// 提取相关接口
//

// PDFExtractor PDF文本提取接口
type PDFExtractor interface {
	// ExtractFromFile 从PDF文件提取全文和页数
	ExtractFromFile(ctx context.Context, filePath string) (text string, pages int, err error)

	// ExtractFromBytes 从字节内容提取全文和页数
	ExtractFromBytes(ctx context.Context, data []byte, uri string) (text string, pages int, err error)
}

// StructuredExtractor LLM结构化提取接口
type StructuredExtractor interface {
	// Extract 从简历文本提取结构化结果
	Extract(ctx context.Context, resumeText string, pageCount int) (*types.ResumeExtraction, error)

	// Available 是否配置了可用的LLM客户端
	Available() bool
}

//
// 批量处理依赖的存储接口，由storage包的MySQL/MinIO/Redis实现
//

// CandidateStore 候选人持久化接口
type CandidateStore interface {
	// FindCandidateByFilename 按规范化文件名查找已有记录，未找到返回 (nil, nil)
	FindCandidateByFilename(ctx context.Context, normalizedFilename string) (*models.Candidate, error)

	// CreateCandidateWithEvent 在一个事务中写入候选人和可选的outbox事件
	CreateCandidateWithEvent(ctx context.Context, candidate *models.Candidate, event *models.OutboxMessage) error
}

// ResumeFileStore 原始简历文件存储接口
type ResumeFileStore interface {
	// UploadResumeFile 保存原始PDF，返回对象键
	UploadResumeFile(ctx context.Context, candidateID, filename string, reader io.Reader, fileSize int64) (string, error)
}

// DedupCache 文件名去重与提取结果缓存接口
type DedupCache interface {
	// CheckFilenameProcessed 检查规范化文件名是否已处理
	CheckFilenameProcessed(ctx context.Context, normalizedFilename string) (bool, error)

	// MarkFilenameProcessed 记录规范化文件名为已处理
	MarkFilenameProcessed(ctx context.Context, normalizedFilename string) error

	// CacheExtraction 缓存一份提取结果，键为规范化文件名
	CacheExtraction(ctx context.Context, normalizedFilename string, ext *types.ResumeExtraction) error

	// GetCachedExtraction 读取缓存的提取结果，未命中返回 (nil, nil)
	GetCachedExtraction(ctx context.Context, normalizedFilename string) (*types.ResumeExtraction, error)
}
