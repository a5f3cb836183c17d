package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cowrow/cowrow/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.PromptTimeout)
	assert.True(t, cfg.ConsoleEnabled)
	assert.Equal(t, "text", cfg.LogFormat)

	rules, err := cfg.Rules()
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultRules(), rules)
}

func TestOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"SEATS":             "6",
		"HAND_SIZE":         "8",
		"PENALTY_THRESHOLD": "40",
		"PROMPT_TIMEOUT":    "1500ms",
		"CONSOLE_ENABLED":   "false",
		"ALLOWED_ORIGINS":   "localhost:*, example.com ,",
		"REDIS_DB":          "2",
		"LOG_FORMAT":        "json",
	}))
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Seats)
	assert.Equal(t, 1500*time.Millisecond, cfg.PromptTimeout)
	assert.False(t, cfg.ConsoleEnabled)
	assert.Equal(t, []string{"localhost:*", "example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 2, cfg.RedisDB)

	rules, err := cfg.Rules()
	require.NoError(t, err)
	assert.Equal(t, 8, rules.HandSize)
	assert.Equal(t, 40, rules.PenaltyThreshold)
}

func TestInvalidValues(t *testing.T) {
	for name, vars := range map[string]map[string]string{
		"int":        {"SEATS": "four"},
		"duration":   {"PROMPT_TIMEOUT": "30"},
		"negative":   {"PROMPT_TIMEOUT": "-1s"},
		"bool":       {"CONSOLE_ENABLED": "sometimes"},
		"format":     {"LOG_FORMAT": "xml"},
		"rules":      {"SEATS": "11"},
		"deck":       {"SEATS": "10", "HAND_SIZE": "11"},
		"production": {"APP_ENV": "production"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env(vars))
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HAND_SIZE=7\nHTTP_ADDR=:9999\n"), 0o600))
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("HAND_SIZE", "")
	require.NoError(t, os.Unsetenv("HAND_SIZE"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.HandSize)
	assert.Equal(t, ":8080", cfg.HTTPAddr, "environment wins over .env")

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
