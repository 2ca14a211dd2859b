// Command app 是黑客松仓库评审服务：提交入队、拉取仓库、沙箱构建检查、LLM 打分。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github-repo-judge/internal/config"
	"github-repo-judge/pkg/logger"
)

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "repojudge",
		Short: "Hackathon repository judge",
		Long: `repojudge evaluates hackathon submissions: it fetches a budgeted view of the
repository from GitHub, optionally clones and build-checks it in a sandbox,
and asks an LLM for a structured verdict.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newServeCmd(),
		newEvaluateCmd(),
		newFetchCmd(),
		newAuditCmd(),
		newBatchCmd(),
	)
	return root
}

// loadConfig reads configuration and applies the logging settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cmd.ErrOrStderr(), cfg.LogFormat); err != nil {
		return nil, err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}
