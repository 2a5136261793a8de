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

	"github.com/vidforge/vidforge/internal/auth"
	"github.com/vidforge/vidforge/internal/catalog"
	"github.com/vidforge/vidforge/internal/config"
	"github.com/vidforge/vidforge/internal/database"
	"github.com/vidforge/vidforge/internal/intake"
	"github.com/vidforge/vidforge/internal/logging"
	"github.com/vidforge/vidforge/internal/notify"
	"github.com/vidforge/vidforge/internal/server"
	"github.com/vidforge/vidforge/internal/storage"
	"github.com/vidforge/vidforge/internal/validate"
	"github.com/vidforge/vidforge/internal/webhook"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if _, err := logging.Setup(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("vidforge: exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srvCfg := server.Config{
		Directory:    auth.NewStaticDirectory(accounts(cfg.Users)),
		JWTSecret:    cfg.Server.JWTSecret,
		TokenTTL:     cfg.TokenTTL(),
		BaseURL:      cfg.Server.BaseURL,
		ResultPoster: cfg.Intake.ResultPoster,
		EnableDocs:   cfg.Server.DocsEnabled,
	}

	notifier, err := intakeNotifier(cfg)
	if err != nil {
		return err
	}
	srvCfg.Notifier = notifier

	if cfg.Database.URL != "" {
		db, err := database.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()
		srvCfg.Pinger = db
		srvCfg.Catalog = catalog.NewPostgresSource(db.Pool)
		slog.Info("vidforge: catalog backed by postgres")
	} else {
		slog.Info("vidforge: no database configured, serving the built-in catalog")
	}

	var store *storage.Storage
	if cfg.StorageEnabled() {
		var err error
		store, err = storage.New(ctx, storage.Config{
			Endpoint:       cfg.Storage.Endpoint,
			PublicEndpoint: cfg.Storage.PublicEndpoint,
			Bucket:         cfg.Storage.Bucket,
			AccessKey:      cfg.Storage.AccessKey,
			SecretKey:      cfg.Storage.SecretKey,
			Region:         cfg.Storage.Region,
			MaxUploadBytes: validate.MaxVideoFileBytes,
		})
		if err != nil {
			return fmt.Errorf("storage initialization failed: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("storage bucket check failed: %w", err)
		}
		if err := store.SetCORS(ctx, []string{cfg.Server.BaseURL}); err != nil {
			slog.Warn("vidforge: failed to set bucket CORS", "error", err)
		}
		srvCfg.Storage = store
		slog.Info("vidforge: storage bucket ready", "bucket", cfg.Storage.Bucket)
	}

	srvCfg.Processor = &intake.SimulatedProcessor{
		Interval: cfg.TickInterval(),
		Step:     cfg.Intake.Step,
		FailAt:   cfg.Intake.FailAt,
		Locator:  resultLocator(cfg.Intake.ResultURL, store),
	}

	srv := server.New(srvCfg)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("vidforge: listening", "port", cfg.Server.Port, "users", len(cfg.Users))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-shutdownCh:
	}
	slog.Info("vidforge: shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	slog.Info("vidforge: shutdown complete")
	return nil
}

func accounts(users []config.User) []auth.Account {
	out := make([]auth.Account, 0, len(users))
	for _, u := range users {
		out = append(out, auth.Account{
			User:         auth.User{ID: u.ID, Email: u.Email, Name: u.Name},
			PasswordHash: u.PasswordHash,
		})
	}
	return out
}

// intakeNotifier always logs finished sessions and also posts them to the
// configured webhook, if any.
func intakeNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.Intake.WebhookURL == "" {
		return notify.Log{}, nil
	}
	client, err := webhook.New(webhook.Config{
		URL:    cfg.Intake.WebhookURL,
		Secret: cfg.Intake.WebhookSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("intake webhook: %w", err)
	}
	slog.Info("vidforge: intake webhook enabled")
	return notify.NewMulti(notify.Log{}, notify.NewWebhook(client, nil)), nil
}

// resultLocator publishes results into the bucket when one is configured and
// falls back to a fixed URL otherwise.
func resultLocator(staticURL string, store *storage.Storage) intake.ResultLocator {
	if store != nil {
		return bucketResults{publisher: store}
	}
	return intake.StaticLocator(staticURL)
}

type resultPublisher interface {
	PublishResult(ctx context.Context, uploadKey, sessionID string) (string, error)
}

// bucketResults turns the object a client uploaded for a job into its result.
type bucketResults struct {
	publisher resultPublisher
}

func (b bucketResults) ResultURL(ctx context.Context, job intake.Job) (string, error) {
	key := storage.UploadKey(job.UserID, job.SessionID, job.File.ContentType)
	return b.publisher.PublishResult(ctx, key, job.SessionID)
}
