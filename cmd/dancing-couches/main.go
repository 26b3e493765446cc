package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fiatjaf/dancing-couches/internal/config"
	"github.com/fiatjaf/dancing-couches/internal/services"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addr := flag.String("addr", "", "listen address, overrides the configured port")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg := config.LoadConfig()
	mgr := services.NewManager(cfg, services.Options{ListenAddr: *addr}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mgr.Init(ctx); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- mgr.Run() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mgr.Shutdown(shutdownCtx)
	return <-errc
}
