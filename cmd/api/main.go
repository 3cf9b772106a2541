package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/AncientDemagogue/natours-api/internal/app"
	"github.com/AncientDemagogue/natours-api/internal/sdk/config"
	"github.com/AncientDemagogue/natours-api/internal/sdk/sqldb"
	"github.com/AncientDemagogue/natours-api/internal/services/credentials"
	"github.com/AncientDemagogue/natours-api/internal/services/mailer"
	"github.com/AncientDemagogue/natours-api/internal/services/sentry"
	"github.com/AncientDemagogue/natours-api/internal/services/token"
)

var build string

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := sqldb.Open(ctx, sqldb.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		Schema:   cfg.DBSchema,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	sentryService := sentry.NewSentryService(cfg.SentryDSN, cfg.Environment)
	defer sentryService.Close()

	codec := token.New(token.Config{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Validity: cfg.JWTExpiresIn,
	})

	mailService := mailer.New(mailer.Config{
		APIURL:    cfg.MailAPIURL,
		APIKey:    cfg.MailAPIKey,
		FromEmail: cfg.MailFromEmail,
		FromName:  cfg.MailFromName,
	})

	creds := credentials.NewStore(db)
	reset := credentials.NewResetFlow(creds, mailService, cfg.ResetTokenTTL)

	accountApp := app.NewApp(
		db,
		sentryService,
		creds,
		reset,
		codec,
		cfg.JWTExpiresIn,
		cfg.CookieSecure,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      accountApp.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("server starting", "addr", srv.Addr, "build", build)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen and serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}
