package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  host: localhost
  user: rit
  dbname: rit
assessment:
  session_ttl: 30m
  duplicate_start_policy: replace
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Database.LogLevel)
	assert.Equal(t, 10, cfg.Assessment.DefaultQuestionCount)
	assert.Equal(t, 225, cfg.Assessment.DefaultStartingDifficulty)
	assert.Equal(t, 100, cfg.Assessment.MinDifficulty)
	assert.Equal(t, 350, cfg.Assessment.MaxDifficulty)
	assert.Equal(t, SessionBackendMemory, cfg.Assessment.SessionBackend)
	assert.Equal(t, 30*time.Minute, cfg.Assessment.SessionTTL)
	assert.Equal(t, "replace", cfg.Assessment.DuplicateStartPolicy)
	assert.Equal(t, 60, cfg.Assessment.SubmitRateLimit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db")
	t.Setenv("DATABASE_USER", "rit")
	t.Setenv("DATABASE_DBNAME", "rit")
	t.Setenv("ASSESSMENT_SESSION_BACKEND", "redis")
	t.Setenv("ASSESSMENT_DEFAULT_QUESTION_COUNT", "20")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, SessionBackendRedis, cfg.Assessment.SessionBackend)
	assert.Equal(t, 20, cfg.Assessment.DefaultQuestionCount)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Host: "h", User: "u", DBName: "d"},
			Assessment: AssessmentConfig{
				DefaultQuestionCount:      10,
				DefaultStartingDifficulty: 225,
				MinDifficulty:             100,
				MaxDifficulty:             350,
				SelectionWindow:           10,
				SessionBackend:            SessionBackendMemory,
				SessionTTL:                time.Hour,
				DuplicateStartPolicy:      "reject",
			},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"нет хоста БД", func(c *Config) { c.Database.Host = "" }},
		{"перевёрнутая шкала", func(c *Config) { c.Assessment.MinDifficulty = 400 }},
		{"старт вне шкалы", func(c *Config) { c.Assessment.DefaultStartingDifficulty = 50 }},
		{"нулевое число заданий", func(c *Config) { c.Assessment.DefaultQuestionCount = 0 }},
		{"неизвестный бэкенд", func(c *Config) { c.Assessment.SessionBackend = "etcd" }},
		{"неизвестная политика", func(c *Config) { c.Assessment.DuplicateStartPolicy = "merge" }},
		{"redis без TTL", func(c *Config) {
			c.Assessment.SessionBackend = SessionBackendRedis
			c.Assessment.SessionTTL = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
