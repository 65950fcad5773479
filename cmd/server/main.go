package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"docmind/internal/bootstrap"
	"docmind/internal/config"
	"docmind/internal/logging"
	httptransport "docmind/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	log, err := logging.New(cfg.App.Env)
	if err != nil {
		return fmt.Errorf("build logger failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, bootstrap.Options{
		Config:      cfg,
		Log:         log,
		WithRedis:   true,
		WithQueue:   true,
		StartWorker: true,
	})
	if err != nil {
		log.Errorw("bootstrap failed", "error", err)
		_ = log.Sync()
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warnw("close resources failed", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           httptransport.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdown(server, log)
	return nil
}

func shutdown(server *http.Server, log *zap.SugaredLogger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnw("server shutdown failed", "error", err)
		return
	}
	log.Infow("server stopped")
}
