package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "GEMINI_API_KEY", "LLM_PROVIDER", "VERTEX_PROJECT", "VERTEX_REGION",
		"GENERATION_TIMEOUT", "GENERATION_CALL_TIMEOUT", "REDIS_ADDR", "REDIS_CHANNEL",
		"LOG_MODE", "PORT", "ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, `{
		"database_url": "postgres://localhost/letters",
		"llm_provider": "vertex",
		"vertex_project": "proj",
		"port": 9090,
		"use_browser": true
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/letters", cfg.DatabaseURL)
	assert.Equal(t, "vertex", cfg.LLMProvider)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.UseBrowser)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)

	_, err = LoadConfig("/nonexistent/path/config.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = LoadConfig(writeConfig(t, `{ invalid json }`))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{"port": "8080", "unknown_key": 1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config file")
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("PORT", "7070")
	t.Setenv("ALLOWED_ORIGINS", "http://a.dk, ,http://b.dk")
	t.Setenv("GENERATION_TIMEOUT", "30s")

	cfg := FromEnv()
	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, []string{"http://a.dk", "http://b.dk"}, cfg.AllowedOrigins)
	assert.Equal(t, "30s", cfg.GenerationTimeout)
}

func TestLoad_FileOverEnvOverDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	path := writeConfig(t, `{"database_url": "postgres://file/db", "generation_timeout": "90s"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultRedisChannel, cfg.RedisChannel)

	deadline, err := cfg.Deadline()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, deadline)
}

func TestLoad_DefaultsOnly(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, "dev", cfg.LogMode)

	callTimeout, err := cfg.CallTimeout()
	require.NoError(t, err)
	assert.Equal(t, DefaultCallTimeout, callTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"valid", Config{Port: 8080, LLMProvider: "gemini"}, ""},
		{"port range", Config{Port: 70000}, "port"},
		{"provider", Config{LLMProvider: "openai"}, "unknown llm_provider"},
		{"vertex project", Config{LLMProvider: "vertex"}, "vertex_project"},
		{"bad timeout", Config{GenerationTimeout: "soon"}, "generation_timeout"},
		{"negative timeout", Config{GenerationTimeout: "-1s"}, "must be positive"},
		{"call exceeds run", Config{GenerationTimeout: "10s", GenerationCallTimeout: "20s"}, "exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{APIKey: "file-key"}
	defaults := Config{APIKey: "default-key", DatabaseURL: "postgres://d", Port: 1, AllowedOrigins: []string{"x"}}

	result := cfg.MergeWithDefaults(defaults)
	assert.Equal(t, "file-key", result.APIKey, "explicit values win")
	assert.Equal(t, "postgres://d", result.DatabaseURL)
	assert.Equal(t, 1, result.Port)
	assert.Equal(t, []string{"x"}, result.AllowedOrigins)
	assert.Empty(t, cfg.DatabaseURL, "receiver is not modified")
}
