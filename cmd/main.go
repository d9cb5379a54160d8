package main

import (
	"fmt"
	"log"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"weapon-shop/internal/api"
	"weapon-shop/internal/config"
	"weapon-shop/internal/db"
	"weapon-shop/internal/feed"
	"weapon-shop/internal/logger"
	"weapon-shop/internal/middleware"
	"weapon-shop/internal/service"
	"weapon-shop/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger := logger.NewLogger()
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(zapLogger)
	appLogger := pkg.NewZapLogger(zapLogger)

	dbConn, err := db.Connect(cfg)
	if err != nil {
		appLogger.Error("Failed to connect to database", zap.Error(err))
		return
	}
	defer dbConn.Close()

	if err := db.Migrate(dbConn); err != nil {
		appLogger.Error("Failed to apply migrations", zap.Error(err))
		return
	}

	authDB := db.NewAuthDB(dbConn)
	objectDB := db.NewObjectDB(dbConn)
	hub := feed.NewHub(appLogger)

	authService := service.NewAuthService(authDB, appLogger, cfg.JWTSecret, cfg.TokenTTL)
	shopService := service.NewShopService(objectDB, appLogger, hub)

	e := echo.New()
	e.HideBanner = true
	e.Use(logger.EchoLogger(appLogger))
	e.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret, appLogger))

	handlers := &api.Handlers{
		AuthService: authService,
		ShopService: shopService,
		Feed:        hub,
		Logger:      appLogger,
	}

	api.RegisterHandlers(e, handlers)

	port := fmt.Sprintf(":%s", cfg.ServerPort)
	appLogger.Info("Starting server", zap.String("port", cfg.ServerPort))
	if err := e.Start(port); err != nil {
		appLogger.Error("Failed to run server", zap.Error(err))
	}
}
