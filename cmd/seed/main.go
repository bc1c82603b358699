package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/seed"
)

func main() {
	_ = godotenv.Load()
	log := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	log.Info("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	// Zero seeds from crypto/rand.
	gofakeit.Seed(0)

	doctors := envInt(log, "SEED_DOCTORS", 20)
	patients := envInt(log, "SEED_PATIENTS", 500)
	log.WithFields(logrus.Fields{"doctors": doctors, "patients": patients}).Info("seeding directory")

	res, err := seed.Directory(context.Background(), appointment.NewPgRepository(pool), doctors, patients)
	if err != nil {
		log.Fatalf("seed directory: %v", err)
	}

	log.WithFields(logrus.Fields{
		"doctors":  len(res.DoctorIDs),
		"patients": len(res.PatientIDs),
	}).Info("seed complete")
}

func envInt(log *logrus.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Warnf("invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}
