package main

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabordecasa/api/internal/config"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/router"
	"github.com/sabordecasa/api/internal/ws"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()

	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("unable to create connection pool")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.WithError(err).Fatal("unable to reach database")
	}

	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, queries, pool, hub, log)

	log.WithField("port", cfg.Port).Info("starting server")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
