package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github-repo-judge/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.FetchMaxFiles, convey.ShouldEqual, 40)
				convey.So(cfg.FetchMaxTotalChars, convey.ShouldEqual, 120_000)
				convey.So(cfg.FetchMaxFileChars, convey.ShouldEqual, 8_000)
				convey.So(cfg.Scorer, convey.ShouldEqual, config.ScorerGemini)
				convey.So(cfg.JobTimeout, convey.ShouldEqual, 15*time.Minute)
				convey.So(cfg.SandboxBuild, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			clearConfigEnvVars()
			_ = os.Setenv("REPOJUDGE_ADDR", ":9090")
			_ = os.Setenv("REPOJUDGE_FETCH_MAX_FILES", "12")
			_ = os.Setenv("REPOJUDGE_SANDBOX_BUILD", "true")
			_ = os.Setenv("REPOJUDGE_JOB_TIMEOUT", "90s")
			_ = os.Setenv("REPOJUDGE_SCORER", "openai")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.FetchMaxFiles, convey.ShouldEqual, 12)
				convey.So(cfg.SandboxBuild, convey.ShouldBeTrue)
				convey.So(cfg.JobTimeout, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.Scorer, convey.ShouldEqual, config.ScorerOpenAI)
			})
		})

		convey.Convey("When only the well-known unprefixed variables are set", func() {
			clearConfigEnvVars()
			_ = os.Setenv("GITHUB_TOKEN", "ghp_plain")
			_ = os.Setenv("FEISHU_WEBHOOK", "https://open.feishu.cn/hook/x")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then they are picked up", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.GitHubToken, convey.ShouldEqual, "ghp_plain")
				convey.So(cfg.FeishuWebhook, convey.ShouldEqual, "https://open.feishu.cn/hook/x")
			})

			convey.Convey("And the prefixed form wins over them", func() {
				_ = os.Setenv("REPOJUDGE_GITHUB_TOKEN", "ghp_prefixed")

				cfg, err := config.Load(ctx)

				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.GitHubToken, convey.ShouldEqual, "ghp_prefixed")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			clearConfigEnvVars()
			yamlContent := `
addr: ":7070"
fetch_max_files: 25
fetch_max_total_chars: 50000
sandbox_root: /tmp/judge
scorer: none
job_retention: 2h
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("REPOJUDGE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.FetchMaxFiles, convey.ShouldEqual, 25)
				convey.So(cfg.FetchMaxTotalChars, convey.ShouldEqual, 50000)
				convey.So(cfg.SandboxRoot, convey.ShouldEqual, "/tmp/judge")
				convey.So(cfg.Scorer, convey.ShouldEqual, config.ScorerNone)
				convey.So(cfg.JobRetention, convey.ShouldEqual, 2*time.Hour)
				convey.So(cfg.FetchMaxFileChars, convey.ShouldEqual, 8_000)
			})

			convey.Convey("And env vars override the file", func() {
				_ = os.Setenv("REPOJUDGE_ADDR", ":6060")

				cfg, err := config.Load(ctx)

				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.FetchMaxFiles, convey.ShouldEqual, 25)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			clearConfigEnvVars()
			_ = os.Setenv("REPOJUDGE_CONFIG", "/nonexistent/repojudge.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should fail with a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When values fail validation", func() {
			clearConfigEnvVars()
			_ = os.Setenv("REPOJUDGE_SCORER", "claude")
			_ = os.Setenv("REPOJUDGE_FETCH_MAX_FILE_CHARS", "500000")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should fail with an invalid config error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "scorer")
				convey.So(err.Error(), convey.ShouldContainSubstring, "fetch_max_file_chars")
			})
		})
	})
}

func TestValidate(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		cfg := config.New()

		convey.So(cfg.Validate(), convey.ShouldBeNil)

		convey.Convey("An unknown log format is rejected", func() {
			cfg.LogFormat = "xml"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("A zero job timeout is rejected", func() {
			cfg.JobTimeout = 0
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}

func clearConfigEnvVars() {
	for _, name := range []string{
		"REPOJUDGE_CONFIG", "REPOJUDGE_ADDR", "REPOJUDGE_FETCH_MAX_FILES",
		"REPOJUDGE_FETCH_MAX_FILE_CHARS", "REPOJUDGE_SANDBOX_BUILD", "REPOJUDGE_JOB_TIMEOUT",
		"REPOJUDGE_SCORER", "REPOJUDGE_GITHUB_TOKEN",
		"GITHUB_TOKEN", "GEMINI_API_KEY", "OPENAI_API_KEY", "FEISHU_WEBHOOK", "DATABASE_URL",
	} {
		_ = os.Unsetenv(name)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "repojudge-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = tmpFile.Close() }()
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
