package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/config"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyhost/internal/infrastructure/server"
)

func main() {
	port := flag.String("port", "", "Server port (overrides SERVER_PORT)")
	host := flag.String("host", "", "Bind address (overrides SERVER_HOST)")
	shell := flag.String("shell", "", "Shell for terminal sessions (overrides TERMINAL_SHELL)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	dev := flag.Bool("dev", false, "Development mode: console logs at debug level")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.NewDefault().Fatal("Invalid configuration", zap.Error(err))
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *shell != "" {
		cfg.Terminal.Shell = *shell
	}
	if *dev && !logging.IsProduction() {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		logging.NewDefault().Fatal("Failed to create logger", zap.Error(err))
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		cancel()
		os.Exit(1)
	}
}
