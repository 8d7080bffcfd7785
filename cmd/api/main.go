package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "nomad_match/internal/adapters/http_server"
	"nomad_match/internal/adapters/nomadapi"
	"nomad_match/internal/adapters/observability"
	redisad "nomad_match/internal/adapters/redis"
	"nomad_match/internal/app"
	"nomad_match/internal/domain"
	"nomad_match/internal/shared"
	"nomad_match/internal/storage/catalog"
	mysqlrepo "nomad_match/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// preference mirror (optional: empty DSN runs without it)
	var mirror domain.PreferenceMirror
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("preference mirror connection ok")
		mirror = mysqlrepo.New(db)
	} else {
		log.Warn().Msg("MYSQL_DSN empty, preference mirror disabled")
	}

	// deps
	backend := nomadapi.New(cfg.BackendBase, cfg.BackendRPS, cfg.BackendTO)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	fallback, err := catalog.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("embedded catalog load failed")
	}
	log.Info().Int("cities", len(fallback)).Msg("fallback catalog loaded")

	match := app.NewMatchService(backend, cache, fallback, int(cfg.CacheTTL.Seconds()), cfg.NumResults, cfg.MinResults)
	sessions := app.NewSessionManager(backend, mirror)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Match:    match,
		Sessions: sessions,
		Backend:  backend,
		FeedSize: cfg.FeedSize,
	})

	log.Info().Str("addr", cfg.HTTPAddr).Str("backend", cfg.BackendBase).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
