package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStubServer 返回固定回复的OpenAI兼容服务端，并记录收到的请求体
func newStubServer(t *testing.T, replyContent string, captured *openAIChatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, captured))

		resp := map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "mistral-small-latest",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": replyContent},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

// TestGenerate 普通补全不带response_format
func TestGenerate(t *testing.T) {
	var captured openAIChatRequest
	srv := newStubServer(t, "hello", &captured)
	defer srv.Close()

	m, err := NewMistralChatModel("test-key", "", srv.URL, WithTemperature(0.2))
	require.NoError(t, err)

	reply, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, schema.Assistant, reply.Role)
	assert.Equal(t, "hello", reply.Content)

	assert.Equal(t, "mistral-small-latest", captured.Model, "空模型名应落到默认值")
	assert.InDelta(t, 0.2, captured.Temperature, 1e-9)
	assert.Nil(t, captured.ResponseFormat)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "hi", captured.Messages[0].Content)
}

// TestGenerateStructured JSON模式带response_format=json_object
func TestGenerateStructured(t *testing.T) {
	var captured openAIChatRequest
	srv := newStubServer(t, `{"full_name": "Jane"}`, &captured)
	defer srv.Close()

	m, err := NewMistralChatModel("test-key", "", srv.URL)
	require.NoError(t, err)

	reply, err := m.GenerateStructured(context.Background(), []*schema.Message{schema.UserMessage("extract")})
	require.NoError(t, err)
	assert.Equal(t, `{"full_name": "Jane"}`, reply.Content)

	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
}

// TestGenerateHTTPError 非200状态返回错误
func TestGenerateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message": "rate limited"}`))
	}))
	defer srv.Close()

	m, err := NewMistralChatModel("test-key", "", srv.URL)
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

// TestNewMistralChatModelEmptyKey 空密钥直接拒绝
func TestNewMistralChatModelEmptyKey(t *testing.T) {
	_, err := NewMistralChatModel("  ", "", "")
	assert.Error(t, err)
}

// TestWithTimeout 配置的超时要落到HTTP客户端上
func TestWithTimeout(t *testing.T) {
	m, err := NewMistralChatModel("test-key", "", "http://localhost:1",
		WithTimeout(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, m.httpClient.Timeout)

	// 非正值不覆盖默认超时
	m2, err := NewMistralChatModel("test-key", "", "http://localhost:1",
		WithTimeout(0))
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, m2.httpClient.Timeout)
}

// TestWithToolsClone WithTools返回带工具的副本，原实例不受影响
func TestWithToolsClone(t *testing.T) {
	m, err := NewMistralChatModel("test-key", "", "http://localhost:1")
	require.NoError(t, err)

	tools := []*schema.ToolInfo{
		{Name: "search", Desc: "搜索候选人"},
	}
	clone, err := m.WithTools(tools)
	require.NoError(t, err)
	require.NotNil(t, clone)

	assert.Empty(t, m.boundTools, "原实例不应被绑定工具")
}
