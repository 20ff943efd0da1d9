package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	api "github.com/mind-engage/mindengage-qbank/internal/api/http"
	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/config"
	"github.com/mind-engage/mindengage-qbank/internal/db"
	"github.com/mind-engage/mindengage-qbank/internal/logger"
	"github.com/mind-engage/mindengage-qbank/internal/pool"
	"github.com/mind-engage/mindengage-qbank/internal/session"
	syncx "github.com/mind-engage/mindengage-qbank/internal/sync"
)

func main() {
	config.LoadDotEnv()
	cfg := config.FromEnv()

	lg, err := logger.New(string(cfg.Mode), cfg.Debug)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("qbankd stopped", "error", err)
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func run(ctx context.Context, cfg config.Config, lg *logger.Logger) error {
	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(openCtx, db.Normalize(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	store := bank.NewSQLStore(dbh, cfg.DBDriver)
	events := syncx.NewEventRepo(dbh)
	svc := bank.NewService(store, events, lg)
	selector := pool.NewSelector(store, pool.WithReadRetries(cfg.ReadRetries), pool.WithLogger(lg))

	// --- Sessions ---
	g, gctx := errgroup.WithContext(ctx)
	var (
		sessions session.Store
		ready    = []pinger{dbPinger{dbh}}
	)
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		rs := session.NewRedisStore(rdb)
		if err := rs.Ping(openCtx); err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		sessions, ready = rs, append(ready, rs)
	default:
		ms := session.NewMemoryStore()
		g.Go(func() error { return ms.Run(gctx, time.Minute) })
		sessions = ms
	}
	mgr := session.NewManager(selector, sessions, session.NewLeaseSigner(cfg.LeaseSecret),
		session.WithEvents(events),
		session.WithLogger(lg),
		session.WithTTL(cfg.SessionTTL, cfg.LeaseTTL),
	)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Session-Lease"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(ar chi.Router) {
		api.Mount(ar, api.Deps{
			Bank:            svc,
			Pool:            selector,
			Sessions:        mgr,
			Log:             lg,
			DefaultExamSize: cfg.DefaultExamSize,
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		for _, p := range ready {
			if err := p.Ping(r.Context()); err != nil {
				lg.Warn("readiness check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(200)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		lg.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver, "sessions", cfg.SessionStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type dbPinger struct{ db *sql.DB }

func (p dbPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
