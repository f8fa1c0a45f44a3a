package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adda-Baaj/edgar-gateway/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			return joinClose(a, runServer(ctx, a))
		},
	}
}

func runServer(ctx context.Context, a *app) error {
	router := server.NewRouter(a.svc, server.Options{
		Logger:       a.log,
		Observer:     a.metrics,
		Timeout:      a.cfg.HandlerTimeout,
		ClientOrigin: a.cfg.ClientOrigin,
		Version:      version,
		Environment:  a.cfg.Env,
		StartedAt:    time.Now(),
		Metrics:      a.metrics.Handler(),
	})
	return server.Run(ctx, server.New(a.cfg.Addr(), router), a.cfg.ShutdownTimeout, a.log)
}
