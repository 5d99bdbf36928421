package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":                       "www.example:9000",
		"database_dsn":                    "contacts-db",
		"secret_key":                      "my_secret_key",
		"access_token_validity_duration":  "1m",
		"refresh_token_validity_duration": "3m",
		"blob_backend":                    "s3",
		"s3_bucket":                       "bucket",
		"rate_limit_per_minute":           5,
		"allowed_origins":                 []string{"https://app.example"},
		"admin_contact_access":            true,
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(cfg, []string{"-config", path}))

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, "contacts-db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 1*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Minute, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, BlobBackendS3, cfg.BlobBackend)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, 5, cfg.RateLimitPerMinute)
		assert.Equal(t, []string{"https://app.example"}, cfg.AllowedOrigins)
		assert.True(t, cfg.AdminContactAccess)
	})

	t.Run("absent keys keep previous values", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJSON(cfg, []string{"-c", path}))

		assert.Equal(t, ":50051", cfg.GRPCAddr)
		assert.Equal(t, "us-east-1", cfg.S3Region)
	})

	t.Run("no config flag leaves config untouched", func(t *testing.T) {
		cfg := &Config{HTTPAddr: "defaults:1234", SecretKey: "key"}
		require.NoError(t, parseJSON(cfg, []string{"-a", ":1"}))

		assert.Equal(t, "defaults:1234", cfg.HTTPAddr)
		assert.Equal(t, "key", cfg.SecretKey)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		require.Error(t, parseJSON(&Config{}, []string{"-config", bad}))
	})

	t.Run("missing file", func(t *testing.T) {
		require.Error(t, parseJSON(&Config{}, []string{"-c", filepath.Join(dir, "missing.json")}))
	})
}
