package main

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/patrick-wrks/gojack-samui-restaurant/internal/config"
	"github.com/patrick-wrks/gojack-samui-restaurant/internal/router"
	"github.com/patrick-wrks/gojack-samui-restaurant/internal/store"
	"github.com/patrick-wrks/gojack-samui-restaurant/internal/ws"
)

func main() {
	cfg := config.Load()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("connect to database")
	}
	defer pool.Close()

	orderStore := store.New(pool)
	if err := orderStore.EnsureSchema(ctx); err != nil {
		logrus.WithError(err).Fatal("ensure schema")
	}

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(orderStore, hub)

	logrus.WithField("port", cfg.Port).Info("starting server")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
