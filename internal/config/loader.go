package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github-repo-judge/pkg/logger"
)

const envPrefix = "REPOJUDGE_"

// Well-known variables honoured when the prefixed form is unset.
var fallbackEnv = map[string]string{
	"GITHUB_TOKEN":   "github_token",
	"GEMINI_API_KEY": "gemini_api_key",
	"OPENAI_API_KEY": "openai_api_key",
	"FEISHU_WEBHOOK": "feishu_webhook",
	"DATABASE_URL":   "database_dsn",
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. well-known unprefixed env (GITHUB_TOKEN, GEMINI_API_KEY, ...)
//  3. file (YAML) if REPOJUDGE_CONFIG is set
//  4. env (prefix REPOJUDGE_)
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	fallbacks := map[string]any{}
	for name, key := range fallbackEnv {
		if v := os.Getenv(name); v != "" {
			fallbacks[key] = v
		}
	}
	if err := k.Load(mapProvider(fallbacks), nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// Map env keys like REPOJUDGE_FETCH_MAX_FILES -> fetch_max_files (flat keys)
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(envPrefix))
		if s == "config" {
			return ""
		}
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// Unmarshal onto the defaults
	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Get().Named("config").Debug(ctx, "config loaded",
		logger.String("addr", cfg.Addr),
		logger.String("scorer", cfg.Scorer),
		logger.Bool("postgres", cfg.DatabaseDSN != ""),
	)
	return cfg, nil
}

// Validate checks budgets and provider selection.
func (c *Config) Validate() error {
	var problems []string
	if c.Addr == "" {
		problems = append(problems, "addr must not be empty")
	}
	if c.FetchMaxFiles <= 0 {
		problems = append(problems, "fetch_max_files must be positive")
	}
	if c.FetchMaxTotalChars <= 0 || c.FetchMaxFileChars <= 0 {
		problems = append(problems, "fetch character budgets must be positive")
	}
	if c.FetchMaxFileChars > c.FetchMaxTotalChars {
		problems = append(problems, "fetch_max_file_chars must not exceed fetch_max_total_chars")
	}
	if c.FetchMaxWalkCalls <= 0 {
		problems = append(problems, "fetch_max_walk_calls must be positive")
	}
	if c.FetchCommitChecks < 0 || c.FetchCommitChecks > 100 {
		problems = append(problems, "fetch_commit_checks must be between 0 and 100")
	}
	if c.BatchConcurrency <= 0 {
		problems = append(problems, "batch_concurrency must be positive")
	}
	if c.JobTimeout <= 0 {
		problems = append(problems, "job_timeout must be positive")
	}
	switch c.Scorer {
	case ScorerGemini, ScorerOpenAI, ScorerNone:
	default:
		problems = append(problems, fmt.Sprintf("scorer %q is not one of gemini, openai, none", c.Scorer))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log_format %q is not text or json", c.LogFormat))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// mapProvider feeds a flat map into koanf.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
