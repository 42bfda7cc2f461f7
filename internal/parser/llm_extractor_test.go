package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockStructuredModel 按预设行为响应两个阶段的调用
type MockStructuredModel struct {
	structuredReply string
	structuredErr   error
	generateReply   string
	generateErr     error

	structuredCalls int
	generateCalls   int
}

func (m *MockStructuredModel) GenerateStructured(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	m.structuredCalls++
	if m.structuredErr != nil {
		return nil, m.structuredErr
	}
	return schema.AssistantMessage(m.structuredReply, nil), nil
}

func (m *MockStructuredModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	m.generateCalls++
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return schema.AssistantMessage(m.generateReply, nil), nil
}

func (m *MockStructuredModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("mock不支持流式输出")
}

func (m *MockStructuredModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

const validReply = `{
  "full_name": "Jane Doe",
  "email": "jane.doe@example.com",
  "phone": "123-456-7890",
  "location": "Beijing",
  "summary": "Backend engineer.",
  "skills": [{"name": "Go", "proficiency": "expert", "years_experience": 5}],
  "experience": [{"company": "Acme", "position": "Engineer", "start_date": "2020", "end_date": "Present", "description": "Built services", "achievements": ["shipped v1"]}],
  "education": [{"institution": "Tsinghua", "degree": "B.Sc.", "field_of_study": "CS", "start_date": "2012", "end_date": "2016", "gpa": 3.8}],
  "certifications": [],
  "languages": ["Chinese", "English"]
}`

// TestExtractStructuredSuccess JSON模式一次成功
func TestExtractStructuredSuccess(t *testing.T) {
	mock := &MockStructuredModel{structuredReply: validReply}
	extractor, err := NewLLMResumeExtractor(mock)
	require.NoError(t, err)

	ext, err := extractor.Extract(context.Background(), "resume text", 2)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", ext.FullName)
	assert.Equal(t, "jane.doe@example.com", ext.Email)
	require.Len(t, ext.Skills, 1)
	assert.Equal(t, "Go", ext.Skills[0].Name)
	assert.Equal(t, 1, mock.structuredCalls)
	assert.Equal(t, 0, mock.generateCalls, "JSON模式成功时不应触发普通补全")
}

// TestExtractFallbackToPlainGenerate 阶段一失败后阶段二成功
func TestExtractFallbackToPlainGenerate(t *testing.T) {
	mock := &MockStructuredModel{
		structuredErr: errors.New("response_format not supported"),
		generateReply: "Here is the result:\n```json\n" + validReply + "\n```",
	}
	extractor, err := NewLLMResumeExtractor(mock)
	require.NoError(t, err)

	ext, err := extractor.Extract(context.Background(), "resume text", 1)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", ext.FullName)
	assert.Equal(t, 1, mock.structuredCalls)
	assert.Equal(t, 1, mock.generateCalls)
}

// TestExtractNilModel 未配置模型返回ErrLLMUnavailable
func TestExtractNilModel(t *testing.T) {
	extractor, err := NewLLMResumeExtractor(nil)
	require.NoError(t, err)
	assert.False(t, extractor.Available())

	_, err = extractor.Extract(context.Background(), "resume text", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLLMUnavailable))
}

// TestExtractDecodeFailures 回复不合法时两阶段都失败返回ErrLLMDecode
func TestExtractDecodeFailures(t *testing.T) {
	testCases := []struct {
		name  string
		reply string
	}{
		{name: "缺少full_name", reply: `{"email": "a@b.com"}`},
		{name: "skills类型错误", reply: `{"full_name": "Jane", "skills": "Go, Python"}`},
		{name: "不是JSON", reply: "抱歉，我无法解析这份简历。"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &MockStructuredModel{structuredReply: tc.reply, generateReply: tc.reply}
			extractor, err := NewLLMResumeExtractor(mock)
			require.NoError(t, err)

			_, err = extractor.Extract(context.Background(), "resume text", 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrLLMDecode), "期望ErrLLMDecode，实际: %v", err)
			assert.Equal(t, 1, mock.generateCalls, "阶段一解码失败后应尝试阶段二")
		})
	}
}

// TestExtractBothPhasesUnreachable 两个阶段调用都失败
func TestExtractBothPhasesUnreachable(t *testing.T) {
	mock := &MockStructuredModel{
		structuredErr: errors.New("connection refused"),
		generateErr:   errors.New("connection refused"),
	}
	extractor, err := NewLLMResumeExtractor(mock)
	require.NoError(t, err)

	_, err = extractor.Extract(context.Background(), "resume text", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLLMDecode))
}

// TestExtractJSON 验证代码块优先、大括号配对回退
func TestExtractJSON(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json代码块",
			input:    "prefix\n```json\n{\"a\": 1}\n```\nsuffix",
			expected: `{"a": 1}`,
		},
		{
			name:     "裸JSON带前后文字",
			input:    `The result is {"a": {"b": 2}} as requested.`,
			expected: `{"a": {"b": 2}}`,
		},
		{
			name:     "大括号不配对",
			input:    `broken {"a": 1`,
			expected: "",
		},
		{
			name:     "没有JSON",
			input:    "plain text only",
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractJSON(tc.input))
		})
	}
}
