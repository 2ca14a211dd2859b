// Package config defines process configuration and its layered loading.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Scorer providers.
const (
	ScorerGemini = "gemini"
	ScorerOpenAI = "openai"
	ScorerNone   = "none"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	GitHubToken         string        `koanf:"github_token"`
	FetchMaxFiles       int           `koanf:"fetch_max_files"`
	FetchMaxTotalChars  int           `koanf:"fetch_max_total_chars"`
	FetchMaxFileChars   int           `koanf:"fetch_max_file_chars"`
	FetchMaxWalkCalls   int           `koanf:"fetch_max_walk_calls"`
	FetchRequestTimeout time.Duration `koanf:"fetch_request_timeout"`

	// FetchCommitChecks is how many recent commits are inspected for
	// README-only submissions; 0 disables the check.
	FetchCommitChecks int `koanf:"fetch_commit_checks"`

	// SandboxRoot is the scratch root for clones; empty disables audits.
	SandboxRoot  string        `koanf:"sandbox_root"`
	SandboxBuild bool          `koanf:"sandbox_build"`
	CloneTimeout time.Duration `koanf:"clone_timeout"`
	BuildTimeout time.Duration `koanf:"build_timeout"`

	Scorer        string `koanf:"scorer"`
	GeminiAPIKey  string `koanf:"gemini_api_key"`
	GeminiModel   string `koanf:"gemini_model"`
	OpenAIAPIKey  string `koanf:"openai_api_key"`
	OpenAIBaseURL string `koanf:"openai_base_url"`
	OpenAIModel   string `koanf:"openai_model"`

	// DatabaseDSN selects Postgres; empty keeps records in memory.
	DatabaseDSN   string `koanf:"database_dsn"`
	FeishuWebhook string `koanf:"feishu_webhook"`

	JobTimeout   time.Duration `koanf:"job_timeout"`
	JobRetention time.Duration `koanf:"job_retention"`
	MaxJobs      int           `koanf:"max_jobs"`

	// BatchConcurrency bounds parallel evaluations of the batch command.
	BatchConcurrency int `koanf:"batch_concurrency"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":8080",
		ShutdownTimeout:     30 * time.Second,
		FetchMaxFiles:       40,
		FetchMaxTotalChars:  120_000,
		FetchMaxFileChars:   8_000,
		FetchMaxWalkCalls:   30,
		FetchRequestTimeout: 20 * time.Second,
		FetchCommitChecks:   5,
		SandboxRoot:         filepath.Join(os.TempDir(), "repojudge-sandbox"),
		CloneTimeout:        120 * time.Second,
		BuildTimeout:        300 * time.Second,
		Scorer:              ScorerGemini,
		GeminiModel:         "gemini-2.5-flash-lite",
		OpenAIModel:         "gpt-4o-mini",
		JobTimeout:          15 * time.Minute,
		JobRetention:        24 * time.Hour,
		MaxJobs:             10_000,
		BatchConcurrency:    3,
	}
}
