package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/intentlabs/transformd/backend/api"
	"github.com/intentlabs/transformd/backend/domain"
	"github.com/intentlabs/transformd/backend/event"
	"github.com/intentlabs/transformd/backend/model"
	"github.com/intentlabs/transformd/backend/session"
	"github.com/intentlabs/transformd/backend/store"
	"github.com/intentlabs/transformd/shared/config"
	"github.com/intentlabs/transformd/shared/keyring"
	"github.com/intentlabs/transformd/shared/listener"
)

func NewServeCmd(options *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversation orchestrator daemon.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), options)
		},
	}
}

func runServe(ctx context.Context, options *globalOptions) error {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using environment")
	}

	cfg, err := config.Load(afero.NewOsFs(), options.Config, keyring.NewKeyringProvider())
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	provider, err := model.New(cfg.Provider.Kind, cfg.Provider.APIKey,
		model.WithModel(cfg.Provider.Model),
		model.WithTimeout(cfg.Provider.Timeout),
		model.WithMetrics(registry),
	)
	if err != nil {
		return err
	}

	var sessions store.SessionStore
	switch cfg.Store.Driver {
	case "sqlite":
		sessions, err = store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return err
		}
	default:
		sessions = store.NewMemoryStore()
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			slog.Error("closing session store", slog.String("error", err.Error()))
		}
	}()

	bus := event.NewBus(registry)
	defer bus.Close()

	manager := session.NewManager(domain.DefaultCatalog(), provider, sessions, bus,
		session.WithHistory(cfg.Session.History))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go manager.RunEviction(ctx, cfg.Session.SweepInterval, cfg.Session.TTL)

	server := api.NewServer(manager, registry, slog.Default())

	lp, err := listener.Detect(cfg.Server.Addr, cfg.Server.Socket)
	if err != nil {
		return err
	}
	ln, err := lp.Create()
	if err != nil {
		return err
	}
	defer func() {
		if err := lp.Close(); err != nil {
			slog.Error("closing listener", slog.String("error", err.Error()))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	slog.Info("transformd started",
		slog.String("listener", lp.ActivationType()),
		slog.String("addr", ln.Addr().String()),
		slog.String("provider", cfg.Provider.Kind),
		slog.String("store", cfg.Store.Driver))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
