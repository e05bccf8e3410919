package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/bloodlink/internal/flagx"
	"github.com/dmitrijs2005/bloodlink/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. A zero value
// means the key was absent and the current setting is kept.
type JsonConfig struct {
	DatabaseDSN      string         `json:"database_dsn"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	S3PublicBaseURL  string         `json:"s3_public_base_url"`
	JournalPath      string         `json:"journal_path"`
	PreviewDir       string         `json:"preview_dir"`
	MaxInputSizeMB   int            `json:"max_input_size_mb"`
	MaxSizeMB        float64        `json:"max_size_mb"`
	MaxWidthOrHeight int            `json:"max_width_or_height"`
	Quality          float64        `json:"quality"`
	StageInterval    timex.Duration `json:"stage_interval"`
	PollInterval     timex.Duration `json:"poll_interval"`
}

// parseJson overlays values from the JSON file named by -c/-config onto
// config. Without the flag nothing happens. An unreadable file or invalid
// JSON panics, as a misconfigured client must not start.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.JournalPath, c.JournalPath)
	setString(&config.PreviewDir, c.PreviewDir)

	if c.MaxInputSizeMB > 0 {
		config.MaxInputSizeMB = c.MaxInputSizeMB
	}
	if c.MaxSizeMB > 0 {
		config.MaxSizeMB = c.MaxSizeMB
	}
	if c.MaxWidthOrHeight > 0 {
		config.MaxWidthOrHeight = c.MaxWidthOrHeight
	}
	if c.Quality > 0 {
		config.Quality = c.Quality
	}
	if c.StageInterval.Duration > 0 {
		config.StageInterval = c.StageInterval.Duration
	}
	if c.PollInterval.Duration > 0 {
		config.PollInterval = c.PollInterval.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
