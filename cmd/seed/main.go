package main

import (
	"context"
	"log"
	"time"

	"gallery-store/config"
	"gallery-store/internal/auth"
	"gallery-store/internal/seed"
	"gallery-store/internal/service"
	"gallery-store/internal/store"
	"gallery-store/internal/util"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()
	logger := util.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()

	users := service.NewUserService(db, auth.NewTokenManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL))
	err = seed.Run(ctx, db, users, seed.Options{
		AdminUsername: cfg.Auth.AdminUsername,
		AdminPassword: cfg.Auth.AdminPassword,
	})
	if err != nil {
		logger.Fatal("Seeding failed", zap.Error(err))
	}

	logger.Info("Seeding finished")
}
