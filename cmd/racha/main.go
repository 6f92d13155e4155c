package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rachaapp/racha-backend/racha"
	"golang.org/x/exp/slog"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout))

	config := racha.DefaultConfig()
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		config.HTTPAddr = addr
	}
	if bin := os.Getenv("BIN_PREFIX"); bin != "" {
		config.BINPrefix = bin
	}

	app := racha.NewApp(logger, config)
	if err := app.Start(); err != nil {
		logger.Error("starting app", "err", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	logger.Info("signal received, shutting down", slog.String("signal", sig.String()))

	app.Shutdown()
}
