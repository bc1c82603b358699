package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/seed"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	demoDoctors  = 5
	demoPatients = 20
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}

	log := logging.New(cfg.Env, cfg.LogLevel)
	log.WithFields(logrus.Fields{
		"env":       cfg.Env,
		"http_port": cfg.HTTPPort,
		"storage":   cfg.StorageDriver,
		"locks":     cfg.LockBackend,
		"version":   version,
	}).Info("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo appointment.Repository
		dir  appointment.Directory
		deps []api.Dependency
	)

	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
			MaxConns: cfg.PGMaxConns,
			MinConns: cfg.PGMinConns,
		})
		cancelPg()
		if err != nil {
			log.Fatalf("postgres connection error: %v", err)
		}
		defer pgPool.Close()
		log.Info("connected to Postgres")

		pg := appointment.NewPgRepository(pgPool)
		repo, dir = pg, pg
		deps = append(deps, api.Dependency{Name: "postgres", Critical: true, Ping: pgPool.Ping})

	case config.StorageMemory:
		mem := appointment.NewMemoryRepository()
		res, err := seed.Directory(rootCtx, mem, demoDoctors, demoPatients)
		if err != nil {
			log.Fatalf("seed memory directory: %v", err)
		}
		log.WithFields(logrus.Fields{
			"doctor_ids":  res.DoctorIDs,
			"patient_ids": res.PatientIDs,
		}).Warn("using in-memory storage with demo data; nothing survives a restart")
		repo, dir = mem, mem
	}

	var locker redisclient.Locker
	switch cfg.LockBackend {
	case config.LockRedis:
		rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.ClientOptions{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("redis connection error: %v", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.WithError(err).Warn("error closing redis")
			}
		}()
		log.Info("connected to Redis")

		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		deps = append(deps, api.Dependency{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})

	case config.LockLocal:
		locker = redisclient.NewLocalSlotLocker()
	}

	svc := appointment.NewService(repo, dir, locker, log)

	handler := api.NewRouter(api.RouterConfig{
		Service:      svc,
		Tokens:       auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL),
		Logger:       log,
		Dependencies: deps,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("http server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		log.WithError(err).Error("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}

	log.Info("api-server stopped")
}
