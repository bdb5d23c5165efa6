package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/iurnickita/foodorder/internal/auth"
	"github.com/iurnickita/foodorder/internal/config"
	"github.com/iurnickita/foodorder/internal/handler"
	"github.com/iurnickita/foodorder/internal/logger"
	"github.com/iurnickita/foodorder/internal/service"
	"github.com/iurnickita/foodorder/internal/store"
	"github.com/iurnickita/foodorder/internal/token"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()
	if cfg.Store.DBDsn == "" {
		zaplog.Warn("database DSN is not set, using in-memory store")
	}

	auth := auth.NewAuth(token.NewToken(cfg.Token))
	service := service.NewService(cfg.Service, store, zaplog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return handler.Serve(ctx, cfg.Handler, auth, service, zaplog)
}
