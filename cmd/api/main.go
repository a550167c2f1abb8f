package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Avijadhav01/E-commerce/api/swagger"
	"github.com/Avijadhav01/E-commerce/internal/handler"
	"github.com/Avijadhav01/E-commerce/internal/middleware"
	"github.com/Avijadhav01/E-commerce/internal/models"
	"github.com/Avijadhav01/E-commerce/internal/repository"
	"github.com/Avijadhav01/E-commerce/internal/service"
	"github.com/Avijadhav01/E-commerce/pkg/cache"
	"github.com/Avijadhav01/E-commerce/pkg/config"
	"github.com/Avijadhav01/E-commerce/pkg/database"
	"github.com/Avijadhav01/E-commerce/pkg/logger"
	corsmiddleware "github.com/Avijadhav01/E-commerce/pkg/middleware/cors"
	reqidmiddleware "github.com/Avijadhav01/E-commerce/pkg/middleware/requestid"
)

// @title E-commerce API
// @version 1.0.0
// @description Product catalog and account backend
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessExpiry:  cfg.JWT.AccessExpiry,
		RefreshExpiry: cfg.JWT.RefreshExpiry,
		Issuer:        cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	productSvc := service.NewProductService(productRepo, cacheRepo, metricsSvc, validate, logr, service.ProductConfig{
		DefaultPageSize: cfg.Catalog.DefaultPageSize,
		MaxPageSize:     cfg.Catalog.MaxPageSize,
		CacheTTL:        cfg.Catalog.CacheTTL,
	})

	authHandler := handler.NewAuthHandler(authSvc, handler.CookieConfig{
		AccessMaxAge:  cfg.JWT.AccessExpiry,
		RefreshMaxAge: cfg.JWT.RefreshExpiry,
	})
	userHandler := handler.NewUserHandler(userSvc)
	productHandler := handler.NewProductHandler(productSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authRoutes := api.Group("/auth")
	authRoutes.POST("/register", authHandler.Register)
	authRoutes.POST("/login", authHandler.Login)
	authRoutes.POST("/logout", middleware.Auth(authSvc), authHandler.Logout)
	authRoutes.GET("/me", middleware.Auth(authSvc), authHandler.Me)

	products := api.Group("/products")
	products.GET("", productHandler.List)
	products.GET("/export", middleware.Auth(authSvc), middleware.RequireRoles(models.RoleAdmin), productHandler.Export)
	products.GET("/:id", productHandler.Get)
	products.POST("", middleware.Auth(authSvc), middleware.RequireRoles(models.RoleAdmin), productHandler.Create)
	products.PUT("/:id", middleware.Auth(authSvc), middleware.RequireRoles(models.RoleAdmin), productHandler.Update)
	products.DELETE("/:id", middleware.Auth(authSvc), middleware.RequireRoles(models.RoleAdmin), productHandler.Delete)

	users := api.Group("/users", middleware.Auth(authSvc), middleware.RequireRoles(models.RoleAdmin))
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
