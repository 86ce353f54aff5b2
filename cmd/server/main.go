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

	"MultimodalChat/internal/app"
	"MultimodalChat/internal/config"
	"MultimodalChat/internal/server"
)

// HTTP-оболочка чата: один процесс — одна сессия диалога.
func main() {
	cfg, err := config.NewConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := app.NewLogger(cfg.DebugMode)
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Debugw("Failed to sync logger", "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			sugar.Errorw("Application error", "severity", "critical", "panic", r)
		}
	}()

	counter, err := app.NewCounter(cfg)
	if err != nil {
		sugar.Errorw("Не удалось инициализировать токенизатор", "error", err)
		return
	}
	sess := app.NewFactory(cfg, counter, app.NewInvoker(cfg, sugar), sugar).NewSession()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(server.New(sess, cfg, sugar)),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sugar.Infow("Chat server listening", "addr", srv.Addr, "model", cfg.Model)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Errorw("server error", "error", err)
		}
	}()

	// Graceful shutdown on Ctrl+C / SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeoutCause(context.Background(), 5*time.Second, errors.New("shutdown timeout"))
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		sugar.Warnw("graceful shutdown error", "error", err)
		_ = srv.Close()
	}
	sugar.Infow("server stopped")
}
