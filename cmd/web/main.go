package main

import (
	"context"
	"log"
	"os"

	"log/slog"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	apphttp "github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/providers/mockpay"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/storage"
)

func main() {
	// Load .env file (ignore error if not found - prod uses real env vars)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	secret := os.Getenv("MOCKPAY_CALLBACK_SECRET")
	if secret == "" {
		log.Fatal("MOCKPAY_CALLBACK_SECRET environment variable is required")
	}

	store, err := storage.FromEnv(context.Background())
	if err != nil {
		log.Fatalf("failed to configure storage: %v", err)
	}
	logger.Info("storage configured", "driver", store.Driver)

	r := apphttp.NewRouter(apphttp.Deps{
		Logger:   logger,
		DB:       db,
		Provider: mockpay.New(secret),
		Storage:  store.Storage,
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	_ = r.Run(addr)
}
