package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adda-Baaj/edgar-gateway/internal/config"
	"github.com/Adda-Baaj/edgar-gateway/internal/gateway"
	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
	"github.com/Adda-Baaj/edgar-gateway/internal/metrics"
	"github.com/Adda-Baaj/edgar-gateway/pkg/httpclient"
	"github.com/Adda-Baaj/edgar-gateway/pkg/providers"
	"github.com/Adda-Baaj/edgar-gateway/pkg/publishers"
)

// app is the assembled gateway shared by every command.
type app struct {
	cfg        *config.Config
	log        *logger.ZapLogger
	metrics    *metrics.Metrics
	dispatcher *publishers.Dispatcher
	svc        *gateway.Service
}

func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	m := metrics.New()
	client := httpclient.NewRestyClient(cfg.RequestTimeout,
		httpclient.WithLogger(log),
		httpclient.WithObserver(m),
	)
	sources := providers.New(client, cfg.Providers(), log)

	var pubs []publishers.Publisher
	if cfg.PublishersFile != "" {
		pubs, err = publishers.FromFile(ctx, cfg.PublishersFile, log)
		if err != nil {
			return nil, fmt.Errorf("load publishers: %w", err)
		}
	}
	dispatcher := publishers.NewDispatcher(pubs, publishers.DispatcherOptions{
		Observer: m,
		Logger:   log,
	})

	svc, err := gateway.New(sources, dispatcher, log)
	if err != nil {
		_ = dispatcher.Close(ctx)
		return nil, err
	}

	log.InfoObj("gateway assembled", "app_ready", map[string]any{
		"env":        cfg.Env,
		"providers":  sources.IDs(),
		"publishers": dispatcher.Len(),
		"timeout_ms": cfg.RequestTimeout.Milliseconds(),
	})

	return &app{cfg: cfg, log: log, metrics: m, dispatcher: dispatcher, svc: svc}, nil
}

// close drains pending deliveries within the shutdown timeout and flushes the logger.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	err := a.dispatcher.Close(ctx)
	if err != nil {
		a.log.WarnObj("publisher shutdown incomplete", "publishers_close_failed", map[string]any{"error": err})
	}
	// Sync fails with EINVAL/ENOTTY on a console stderr.
	_ = a.log.Sync()
	return err
}

func joinClose(a *app, err error) error {
	return errors.Join(err, a.close())
}
