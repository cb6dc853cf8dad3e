// Command redactd runs the background scan daemon: it watches for pending
// transcript documents, runs detection and normalization, and serves the
// review IPC socket.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"redact/internal/config"
	"redact/internal/daemon"
	"redact/internal/detect"
	"redact/internal/ipc"
	"redact/internal/logging"
	"redact/internal/notifications"
	"redact/internal/scanner"
	"redact/internal/store"
	"redact/internal/workflow"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open state store", logging.Error(err))
		os.Exit(1)
	}

	detector, err := detect.NewFromConfig(cfg)
	if err != nil {
		logger.Error("build detector", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("detector configured", logging.String("backend", detector.Name()))

	notifier := notifications.NewService(cfg)
	sc := scanner.New(cfg, st, detector, logger)
	manager := workflow.NewManagerWithNotifier(cfg, st, sc, logger, notifier)

	d, err := daemon.New(cfg, st, logger, manager, notifier)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		os.Exit(1)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("redactd shutting down")
}
