package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github-repo-judge/internal/adapter/httpapi"
	"github-repo-judge/internal/adapter/queue"
	"github-repo-judge/pkg/logger"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the submission queue and HTTP status surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			ctx := cmd.Context()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(ctx, a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

// serve blocks until ctx is cancelled, then drains HTTP and the queue.
func serve(ctx context.Context, a *app) error {
	log := logger.Get().Named("serve")

	q := queue.New(a.service.Evaluate,
		queue.WithRetention(a.cfg.JobRetention),
		queue.WithMaxJobs(a.cfg.MaxJobs),
	)
	// 队列 worker 用独立 context，收到信号后由 Shutdown 停止
	workerCtx, cancelWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorker()
	q.Start(workerCtx)

	router := httpapi.NewRouter()
	httpapi.NewHandler(router, q, a.repo)
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "🚀 listening", logger.String("addr", a.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info(ctx, "👋 收到停止信号，正在退出...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "http shutdown", logger.Error(err))
	}
	// 正在执行的评审结束后 worker 才退出；超时则取消它
	if err := q.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "queue shutdown", logger.Error(err))
		cancelWorker()
	}
	return nil
}
