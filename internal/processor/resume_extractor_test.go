package processor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-agent-go/internal/parser"
	"recruit-agent-go/internal/types"
)

// MockPDFExtractor 返回预设文本和页数
type MockPDFExtractor struct {
	text  string
	pages int
	err   error
}

func (m *MockPDFExtractor) ExtractFromFile(ctx context.Context, filePath string) (string, int, error) {
	if m.err != nil {
		return "", 0, m.err
	}
	return m.text, m.pages, nil
}

func (m *MockPDFExtractor) ExtractFromBytes(ctx context.Context, data []byte, uri string) (string, int, error) {
	if m.err != nil {
		return "", 0, m.err
	}
	return m.text, m.pages, nil
}

// MockStructuredExtractor 返回预设结果或错误
type MockStructuredExtractor struct {
	result    *types.ResumeExtraction
	err       error
	available bool
	calls     int
}

func (m *MockStructuredExtractor) Extract(ctx context.Context, resumeText string, pageCount int) (*types.ResumeExtraction, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *MockStructuredExtractor) Available() bool {
	return m.available
}

const sampleResumeText = "Jane Doe\nSoftware Engineer\nContact: jane.doe@example.com"

// TestProcessBytesLLMSuccess LLM可用且成功时直接采用其结果
func TestProcessBytesLLMSuccess(t *testing.T) {
	llm := &MockStructuredExtractor{
		available: true,
		result:    &types.ResumeExtraction{FullName: "Jane Doe", Email: "jane.doe@example.com"},
	}
	extractor, err := NewResumeExtractor(
		&MockPDFExtractor{text: sampleResumeText, pages: 2},
		WithStructuredExtractor(llm),
	)
	require.NoError(t, err)

	ext, pages, err := extractor.ProcessBytes(context.Background(), []byte("%PDF"), "jane.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Equal(t, "Jane Doe", ext.FullName)
	assert.Equal(t, 1, llm.calls)
}

// TestProcessBytesLLMFailureFallsBack LLM出错时吸收错误并走启发式回退
func TestProcessBytesLLMFailureFallsBack(t *testing.T) {
	llmErrors := []error{
		fmt.Errorf("%w: 未配置LLM客户端", parser.ErrLLMUnavailable),
		fmt.Errorf("%w: schema校验失败", parser.ErrLLMDecode),
		errors.New("connection refused"),
	}

	for _, llmErr := range llmErrors {
		llm := &MockStructuredExtractor{available: true, err: llmErr}
		extractor, err := NewResumeExtractor(
			&MockPDFExtractor{text: sampleResumeText, pages: 1},
			WithStructuredExtractor(llm),
		)
		require.NoError(t, err)

		ext, pages, err := extractor.ProcessBytes(context.Background(), []byte("%PDF"), "jane.pdf")
		require.NoError(t, err, "LLM错误不应向上传播")
		assert.Equal(t, 1, pages)
		assert.Equal(t, "Jane Doe", ext.FullName, "回退结果应来自启发式提取")
		assert.NotNil(t, ext.Skills)
		assert.NotNil(t, ext.Experience)
		assert.NotNil(t, ext.Education)
	}
}

// TestProcessBytesNoLLM 未配置LLM时直接走启发式回退
func TestProcessBytesNoLLM(t *testing.T) {
	extractor, err := NewResumeExtractor(&MockPDFExtractor{text: sampleResumeText, pages: 1})
	require.NoError(t, err)

	ext, _, err := extractor.ProcessBytes(context.Background(), []byte("%PDF"), "jane.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", ext.FullName)
}

// TestProcessBytesReaderFailureIsTerminal 文本读取失败是唯一的终态错误
func TestProcessBytesReaderFailureIsTerminal(t *testing.T) {
	readErr := fmt.Errorf("%w: 文件损坏", parser.ErrTextExtraction)
	extractor, err := NewResumeExtractor(&MockPDFExtractor{err: readErr})
	require.NoError(t, err)

	ext, _, err := extractor.ProcessBytes(context.Background(), []byte("broken"), "bad.pdf")
	require.Error(t, err)
	assert.Nil(t, ext)
	assert.True(t, errors.Is(err, parser.ErrTextExtraction))
}

// TestNewResumeExtractorNilPDF PDF提取器是必需依赖
func TestNewResumeExtractorNilPDF(t *testing.T) {
	_, err := NewResumeExtractor(nil)
	assert.Error(t, err)
}
