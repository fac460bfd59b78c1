package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/taskdeck/backend/internal/config"
	"github.com/taskdeck/backend/internal/db"
	"github.com/taskdeck/backend/internal/handler"
	"github.com/taskdeck/backend/internal/service"
	"go.uber.org/zap"
)

// @title taskdeck API
// @version 1.0
// @description Multi-tenant task-list API with JWT access tokens and rotated refresh tokens.
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Missing .env is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	ctx := context.Background()

	postgres, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer postgres.Close()

	if err := postgres.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}

	authService, err := service.NewAuthService(postgres, postgres, cfg.Auth)
	if err != nil {
		logger.Fatal("failed to build auth service", zap.Error(err))
	}

	created, err := authService.EnsureAdmin(ctx, cfg.Admin)
	if err != nil {
		logger.Fatal("failed to seed admin user", zap.Error(err))
	}
	if created {
		logger.Info("seed admin user created", zap.String("username", cfg.Admin.Username))
	}

	usersService := service.NewUsersService(postgres)
	todosService := service.NewTodosService(postgres)

	router := handler.NewRouter(authService, usersService, todosService, cfg.CORS.AllowedOrigins, logger)

	logger.Info("starting server", zap.String("port", cfg.Server.Port))
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
