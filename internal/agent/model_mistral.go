package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"recruit-agent-go/internal/logger"
)

const (
	defaultMistralAPIURL    = "https://api.mistral.ai/v1/chat/completions"
	defaultMistralModelName = "mistral-small-latest"
)

// StructuredChatModel 在eino聊天模型之上增加结构化输出能力。
// GenerateStructured 要求服务端以JSON对象模式返回，失败时调用方可退回普通Generate再自行解析。
type StructuredChatModel interface {
	model.ToolCallingChatModel

	// GenerateStructured 以JSON模式调用模型，返回的消息内容应为单个JSON对象
	GenerateStructured(ctx context.Context, messages []*schema.Message) (*schema.Message, error)
}

// --- OpenAI兼容请求/响应结构 ---

type openAIResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
	Tools          []openAITool          `json:"tools,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type openAITool struct {
	Type     string             `json:"type"` // 固定为 "function"
	Function openAIToolFunction `json:"function"`
}

type openAIToolCallData struct {
	Id       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIChoiceMessage struct {
	Role      string               `json:"role"`
	Content   *string              `json:"content"`
	ToolCalls []openAIToolCallData `json:"tool_calls,omitempty"`
}

type openAIChatChoice struct {
	Index        int                 `json:"index"`
	Message      openAIChoiceMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type openAIChatResponse struct {
	Id      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
}

// MistralChatModel 通过OpenAI兼容接口调用Mistral模型，
// 实现 model.ToolCallingChatModel 和 StructuredChatModel 接口。
type MistralChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	temperature float64
	httpClient  *http.Client
	boundTools  []openAITool
}

// MistralOption 配置MistralChatModel
type MistralOption func(*MistralChatModel)

// WithHTTPClient 覆盖默认HTTP客户端，测试时注入stub
func WithHTTPClient(client *http.Client) MistralOption {
	return func(m *MistralChatModel) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// WithTemperature 设置采样温度
func WithTemperature(t float64) MistralOption {
	return func(m *MistralChatModel) {
		m.temperature = t
	}
}

// WithTimeout 设置HTTP请求超时，非正值保留默认值
func WithTimeout(d time.Duration) MistralOption {
	return func(m *MistralChatModel) {
		if d > 0 {
			m.httpClient.Timeout = d
		}
	}
}

// NewMistralChatModel 创建Mistral聊天模型客户端
func NewMistralChatModel(apiKey, modelName, apiURL string, opts ...MistralOption) (*MistralChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultMistralModelName
	}
	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = defaultMistralAPIURL
	}

	m := &MistralChatModel{
		apiKey:     apiKey,
		modelName:  mn,
		apiURL:     url,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(m)
	}

	logger.Info().Str("api_url", url).Str("model", mn).Msg("Mistral LLM客户端初始化完成")
	return m, nil
}

// toAPIMessages 转换eino消息为API消息，内容为空的消息直接丢弃
func toAPIMessages(messages []*schema.Message) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		if msg == nil || msg.Content == "" {
			continue
		}
		out = append(out, openAIMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}

// call 执行一次聊天补全请求
func (m *MistralChatModel) call(ctx context.Context, messages []*schema.Message, responseFormat *openAIResponseFormat) (*schema.Message, error) {
	reqPayload := openAIChatRequest{
		Model:          m.modelName,
		Messages:       toAPIMessages(messages),
		Temperature:    m.temperature,
		ResponseFormat: responseFormat,
	}
	if len(m.boundTools) > 0 {
		reqPayload.Tools = m.boundTools
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var apiResp openAIChatResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("反序列化API响应失败: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("API返回空choices")
	}

	choice := apiResp.Choices[0].Message
	content := ""
	if choice.Content != nil {
		content = *choice.Content
	}

	result := &schema.Message{
		Role:    schema.RoleType(choice.Role),
		Content: content,
	}
	if result.Role == "" {
		result.Role = schema.Assistant
	}
	if len(choice.ToolCalls) > 0 {
		result.ToolCalls = make([]schema.ToolCall, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			result.ToolCalls[i] = schema.ToolCall{
				ID: tc.Id,
				Function: schema.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}
	}
	return result, nil
}

// Generate 实现 model.ChatModel 接口
func (m *MistralChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	return m.call(ctx, messages, nil)
}

// GenerateStructured 以JSON对象模式调用模型
func (m *MistralChatModel) GenerateStructured(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	return m.call(ctx, messages, &openAIResponseFormat{Type: "json_object"})
}

// Stream 实现 model.ChatModel 接口。提取流程按整段JSON解析，不需要流式输出。
func (m *MistralChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("MistralChatModel的Stream方法未实现")
}

// BindTools 绑定工具定义
func (m *MistralChatModel) BindTools(tools []*schema.ToolInfo) error {
	m.boundTools = make([]openAITool, 0, len(tools))
	for _, toolInfo := range tools {
		if toolInfo == nil {
			continue
		}
		m.boundTools = append(m.boundTools, openAITool{
			Type: "function",
			Function: openAIToolFunction{
				Name:        toolInfo.Name,
				Description: toolInfo.Desc,
			},
		})
	}
	return nil
}

// WithTools 实现 model.ToolCallingChatModel 接口
func (m *MistralChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	clone := *m
	if err := clone.BindTools(tools); err != nil {
		return nil, err
	}
	return &clone, nil
}
