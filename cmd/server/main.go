package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/name-guess-backend/internal/app"
	"github.com/DoyleJ11/name-guess-backend/internal/config"
	"github.com/DoyleJ11/name-guess-backend/internal/httpapi"
	"github.com/DoyleJ11/name-guess-backend/internal/hub"
	"github.com/DoyleJ11/name-guess-backend/internal/session"
	"github.com/DoyleJ11/name-guess-backend/internal/store"
	"github.com/DoyleJ11/name-guess-backend/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "name-guess-server",
		Short: "Real-time server for the name guessing party game.",
		Args:  cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.BindEnv(cmd.Flags(), envFile); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	fs := cmd.Flags()
	cfg.RegisterFlags(fs)
	fs.StringVar(&envFile, "env-file", ".env", "optional file of NAMEGUESS_* variables to load first")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.Store == config.StorePostgres {
		return store.OpenPostgres(ctx, cfg.DatabaseURL, log)
	}
	return store.NewMemory(), nil
}

func run(ctx context.Context, cfg *config.Config) (err error) {
	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	dir := session.NewDirectory(cfg.MaxNameLength, log)
	h := hub.NewHub(context.WithoutCancel(ctx), hub.Options{
		Store:         st,
		Notifier:      dir,
		Logger:        log,
		RoomCapacity:  cfg.RoomCapacity,
		MaxNameLength: cfg.MaxNameLength,
		InboxSize:     cfg.InboxSize,
		SaveTimeout:   cfg.CommandTimeout,
	})
	svc := app.NewService(h, dir, log, cfg.CommandTimeout)

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, svc, log, httpapi.RouteOptions{
		PublicURL: cfg.PublicURL,
		WS:        ws.Options{OutboxSize: cfg.OutboxSize, OriginPatterns: cfg.OriginPatterns},
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return multierr.Combine(
			srv.Shutdown(shutdownCtx),
			h.Shutdown(shutdownCtx),
		)
	})
	return g.Wait()
}
