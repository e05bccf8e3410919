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

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"database_dsn":        "postgres://db/bloodlink",
		"s3_bucket":           "bucket",
		"s3_public_base_url":  "https://cdn.example",
		"max_size_mb":         0.75,
		"max_width_or_height": 1024,
		"stage_interval":      "1.5s",
		"poll_interval":       "4s",
	})

	t.Run("loads from json and keeps absent fields", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg, []string{"-config", path})

		assert.Equal(t, "postgres://db/bloodlink", cfg.DatabaseDSN)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "https://cdn.example", cfg.S3PublicBaseURL)
		assert.Equal(t, 0.75, cfg.MaxSizeMB)
		assert.Equal(t, 1024, cfg.MaxWidthOrHeight)
		assert.Equal(t, 1500*time.Millisecond, cfg.StageInterval)
		assert.Equal(t, 4*time.Second, cfg.PollInterval)

		assert.Equal(t, "us-east-1", cfg.S3Region)
		assert.Equal(t, 0.8, cfg.Quality)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		cfg := &Config{S3Bucket: "keep", PollInterval: time.Minute}
		parseJson(cfg, []string{"-b", "x"})

		assert.Equal(t, "keep", cfg.S3Bucket)
		assert.Equal(t, time.Minute, cfg.PollInterval)
	})

	t.Run("flags override json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		args := []string{"-c", path, "-b", "from-flag"}
		parseJson(cfg, args)
		parseFlags(cfg, args)

		assert.Equal(t, "from-flag", cfg.S3Bucket)
		assert.Equal(t, "postgres://db/bloodlink", cfg.DatabaseDSN)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		require.Panics(t, func() { parseJson(&Config{}, []string{"-c", bad}) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		require.Panics(t, func() { parseJson(&Config{}, []string{"-c", filepath.Join(t.TempDir(), "nope.json")}) })
	})
}
