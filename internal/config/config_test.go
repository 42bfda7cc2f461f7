package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfigFromFile 从临时yaml文件加载并覆盖默认值
func TestLoadConfigFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
server:
  address: ":9090"
auth:
  api_token: "secret-token"
mysql:
  host: "db.internal"
  port: 3307
mistral:
  api_key: "file-key"
  model: "mistral-large-latest"
  qpm: 30
upload:
  max_file_size_mb: 5
`
	err := os.WriteFile(configPath, []byte(content), 0o644)
	require.NoError(t, err, "无法写入临时配置文件")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "secret-token", cfg.Auth.APIToken)
	assert.Equal(t, "db.internal", cfg.MySQL.Host)
	assert.Equal(t, 3307, cfg.MySQL.Port)
	assert.Equal(t, "mistral-large-latest", cfg.Mistral.Model)
	assert.Equal(t, 30, cfg.Mistral.QPM)
	assert.Equal(t, 5, cfg.Upload.MaxFileSizeMB)

	// 未出现在文件里的字段保留默认值
	assert.Equal(t, "root", cfg.MySQL.Username)
	assert.Equal(t, "https://api.mistral.ai/v1/chat/completions", cfg.Mistral.APIURL)
	assert.Equal(t, "candidate.events", cfg.RabbitMQ.CandidateEventsExchange)
}

// TestLoadConfigMissingFile 指定的文件不存在时报错
func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// TestLoadConfigInvalidYAML 非法yaml报错
func TestLoadConfigInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [打不开的括号"), 0o644))

	_, err := LoadConfig(configPath)
	assert.Error(t, err)
}

// TestDefaultConfig 内置默认值
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "recruit-agent-go", cfg.Tracing.ServiceName)
	assert.Equal(t, 30, cfg.Redis.FilenameRecordExpireDays)
	assert.Equal(t, "resumes", cfg.MinIO.ResumeBucket)
	assert.Equal(t, "mistral-small-latest", cfg.Mistral.Model)
	assert.Equal(t, 20, cfg.Upload.MaxFileSizeMB)
	assert.Empty(t, cfg.Auth.APIToken, "默认不内置任何令牌")
}

// TestResolveMistralAPIKey 凭证解析优先级：显式参数 > 配置文件 > 环境变量
func TestResolveMistralAPIKey(t *testing.T) {
	cfg := DefaultConfig()

	t.Setenv("MISTRAL_API_KEY", "env-key")
	assert.Equal(t, "env-key", cfg.ResolveMistralAPIKey(""), "配置为空时取环境变量")

	cfg.Mistral.APIKey = "config-key"
	assert.Equal(t, "config-key", cfg.ResolveMistralAPIKey(""), "配置文件优先于环境变量")

	assert.Equal(t, "explicit-key", cfg.ResolveMistralAPIKey("explicit-key"), "显式参数优先级最高")

	t.Setenv("MISTRAL_API_KEY", "")
	cfg.Mistral.APIKey = ""
	assert.Equal(t, "", cfg.ResolveMistralAPIKey(""))
}
