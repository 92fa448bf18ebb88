package main

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"

	"numera.app/backend/internal/bootstrap"
	"numera.app/backend/internal/config"
	"numera.app/backend/internal/model"
	"numera.app/backend/internal/server"
	"numera.app/backend/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := database.Connect(cfg.DatabaseURL)
	if err := db.AutoMigrate(
		&model.Company{},
		&model.User{},
		&model.Notification{},
		&model.NotificationSettings{},
	); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	if err := bootstrap.SeedSystemCompany(db); err != nil {
		log.Fatalf("failed to seed system company: %v", err)
	}
	if cfg.AppEnv == "development" {
		if err := bootstrap.SeedAdminUser(context.Background(), db); err != nil {
			log.Fatalf("failed to seed admin user: %v", err)
		}
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("[WARN] redis unreachable, continuing without cache: %v", err)
			redisClient = nil
		}
	}

	srv := server.NewServer(cfg, db, redisClient)
	defer srv.Close()

	log.Printf("listening on :%s", cfg.Port)
	if err := srv.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
