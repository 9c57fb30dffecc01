// main.go
//
// Process wiring: configuration from the environment, logging, database,
// the session service with its dual-backend store, both transports
// (HTTP polling + websocket push), the garbage-collector loop, and
// graceful shutdown.

package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/events"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/httpserver"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/ratelimit"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/registry"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/session"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/store"
	"github.com/davidagustin/tic-tac-toe-online-vercel-sub000/internal/ws"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(envStr("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	// Durable store is optional: without DATABASE_PATH the server runs
	// memory-only and accounts are disabled.
	var sqlDB *sql.DB
	var durable store.Store
	if dsn := os.Getenv("DATABASE_PATH"); dsn != "" {
		db, err := openDB(dsn)
		if err != nil {
			log.Fatal().Err(err).Str("dsn", dsn).Msg("open database")
		}
		if err := migrate(db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
		sqlDB = db
		durable = store.NewSQLite(db)
	} else {
		log.Warn().Msg("DATABASE_PATH unset, running memory-only")
	}

	mem := store.NewMemory()
	fb := store.NewFallback(durable, mem, envDur("DB_CALL_TIMEOUT", store.DefaultCallTimeout))
	reg := registry.New()
	limiter := ratelimit.New(envDur("RATE_LIMIT_WINDOW", time.Minute), envInt("RATE_LIMIT_MAX", 50))
	bc := events.NewBroadcaster(events.NewLog(envInt("EVENT_RETENTION", events.DefaultRetention)), reg)

	var stats session.StatsRecorder
	if sqlDB != nil {
		stats = &dbStats{db: sqlDB}
	}

	svc := session.New(fb, reg, limiter, bc, stats, session.Config{
		ChatMaxLen:  envInt("CHAT_MAX_LEN", 500),
		IdleTTL:     envDur("IDLE_TTL", time.Hour),
		FinishedTTL: envDur("FINISHED_TTL", 10*time.Minute),
		WaitingTTL:  envDur("WAITING_TTL", 30*time.Minute),
	})

	hub := ws.NewHub(svc, httpserver.Identity)
	bc.Attach(hub)

	srv := httpserver.New(svc, sqlDB)
	srv.Router().Get("/ws", hub.Handler())

	// Background loops: session GC and aged-row purge. Chat pruning goes
	// through the fallback store so both backends age out together.
	ctx, cancel := context.WithCancel(context.Background())
	go svc.RunGC(ctx, envDur("GC_INTERVAL", time.Minute))
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := fb.PurgeChatBefore(ctx, time.Now().Add(-24*time.Hour)); err != nil {
					log.Warn().Err(err).Msg("chat purge failed")
				}
				if sqlDB != nil {
					purgeAged(ctx, sqlDB)
				}
			}
		}
	}()

	port := envStr("PORT", "8080")
	httpSrv := &http.Server{Addr: ":" + port, Handler: srv.Router()}
	go func() {
		log.Info().Str("port", port).Msg("starting tic-tac-toe server")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	// Graceful drain: stop background loops, drop ws clients, then shut
	// the HTTP listener down.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	cancel()
	hub.CloseAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
}

// ------------------------------ env helpers --------------------------------

func envStr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
