// Command server runs the whisper web application.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/caarlos0/env/v11"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/panyam/whisper"
	fsstore "github.com/panyam/whisper/stores"
	gaestore "github.com/panyam/whisper/stores/gae"
	gormstore "github.com/panyam/whisper/stores/gorm"
	"github.com/panyam/whisper/web"
)

// Config is loaded from the environment at startup.
type Config struct {
	Addr          string `env:"WHISPER_ADDR" envDefault:":3000"`
	SessionSecret string `env:"WHISPER_SESSION_SECRET"`

	// Store selects the persistence backend: fs, postgres or datastore
	Store       string `env:"WHISPER_STORE" envDefault:"fs"`
	StoragePath string `env:"WHISPER_STORAGE_PATH" envDefault:"./data"`
	DBDSN       string `env:"WHISPER_DB_DSN"`
	GCPProject  string `env:"WHISPER_GCP_PROJECT"`

	GoogleClientID     string `env:"OAUTH2_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"OAUTH2_GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"OAUTH2_GOOGLE_CALLBACK_URL" envDefault:"http://localhost:3000/auth/google/secrets"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, &cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	auth := whisper.NewAuth("Whisper", cfg.SessionSecret)
	site := web.New(web.Config{
		Auth:               auth,
		Store:              store,
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		GoogleCallbackURL:  cfg.GoogleCallbackURL,
	})

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: site.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.Addr, "store", cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *Config) (whisper.UserStore, error) {
	switch cfg.Store {
	case "fs":
		return fsstore.NewFSUserStore(cfg.StoragePath), nil
	case "postgres":
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("WHISPER_DB_DSN is required for the postgres store")
		}
		db, err := gorm.Open(postgres.Open(cfg.DBDSN), &gorm.Config{TranslateError: true})
		if err != nil {
			return nil, err
		}
		return gormstore.NewUserStore(db)
	case "datastore":
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("WHISPER_GCP_PROJECT is required for the datastore store")
		}
		client, err := datastore.NewClient(ctx, cfg.GCPProject)
		if err != nil {
			return nil, err
		}
		return gaestore.NewUserStore(client, ""), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Store)
	}
}
