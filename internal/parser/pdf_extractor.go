package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"

	"recruit-agent-go/internal/logger"
)

// PDFTextExtractor 使用 Eino PDF Parser 按页提取文本
type PDFTextExtractor struct {
	parser  *pdf.PDFParser
	timeout time.Duration
}

// PDFOption PDF提取器的配置选项
type PDFOption func(*PDFTextExtractor)

// WithParseTimeout 配置单次解析的超时时间
func WithParseTimeout(d time.Duration) PDFOption {
	return func(e *PDFTextExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewPDFTextExtractor 初始化PDF文本提取器。
// ToPages为true，每页返回一个文档，页数即文档数。
func NewPDFTextExtractor(ctx context.Context, options ...PDFOption) (*PDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: true,
	})
	if err != nil {
		return nil, fmt.Errorf("创建PDF解析器失败: %w", err)
	}

	extractor := &PDFTextExtractor{
		parser:  p,
		timeout: 30 * time.Second,
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

// ExtractFromFile 从PDF文件提取全文和页数
func (e *PDFTextExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("%w: 打开文件 %s: %v", ErrFileRead, filePath, err)
	}
	defer file.Close()

	return e.ExtractFromReader(ctx, file, filePath)
}

// ExtractFromBytes 从字节内容提取全文和页数，上传场景直接走内存
func (e *PDFTextExtractor) ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, int, error) {
	return e.ExtractFromReader(ctx, bytes.NewReader(data), uri)
}

// ExtractFromReader 从io.Reader提取全文和页数。
// 全文为各页文本以换行拼接并去除首尾空白。
func (e *PDFTextExtractor) ExtractFromReader(ctx context.Context, reader io.Reader, uri string) (string, int, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, reader, einoParser.WithURI(uri))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %s: %v", ErrTextExtraction, uri, err)
	}
	if len(docs) == 0 {
		return "", 0, fmt.Errorf("%w: %s: 解析结果为空", ErrTextExtraction, uri)
	}

	pageTexts := make([]string, 0, len(docs))
	for _, doc := range docs {
		pageTexts = append(pageTexts, doc.Content)
	}
	fullText := strings.TrimSpace(strings.Join(pageTexts, "\n"))

	logger.Debug().
		Str("uri", uri).
		Int("pages", len(docs)).
		Int("chars", len(fullText)).
		Dur("elapsed", time.Since(start)).
		Msg("PDF文本提取完成")

	return fullText, len(docs), nil
}
