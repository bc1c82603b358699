package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

// Usage: migrate [up|down]
func main() {
	_ = godotenv.Load()
	log := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	dir := db.Up
	if len(os.Args) > 1 {
		dir = db.Direction(os.Args[1])
	}

	version, err := db.Migrate(dsn, dir)
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	log.WithFields(logrus.Fields{
		"direction": dir,
		"version":   version,
	}).Info("migration complete")
}
