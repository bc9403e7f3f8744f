// Package main is the entry point for the pixforge-api server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/pixforge/pixforge-api/internal/config"
	"github.com/pixforge/pixforge-api/internal/database"
	"github.com/pixforge/pixforge-api/internal/http/handlers"
	"github.com/pixforge/pixforge-api/internal/http/mw"
	"github.com/pixforge/pixforge-api/internal/logging"
	"github.com/pixforge/pixforge-api/internal/repository"
	"github.com/pixforge/pixforge-api/internal/service"
	"github.com/pixforge/pixforge-api/internal/version"
)

func main() {
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting pixforge-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	schemaVersion, err := database.GetLatestSchemaVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		logger.Info("database schema ready", "schema_version", schemaVersion)
	}

	repos := repository.NewRepositories(db)
	services := service.NewServices(cfg, repos, logger)

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit. Sized for the multipart image upload route;
	// JSON endpoints are further constrained by schema validation.
	router.Use(middleware.RequestSize(20 * 1024 * 1024))

	// Global rate limit by IP
	router.Use(httprate.LimitByIP(100, time.Minute))

	humaConfig := huma.DefaultConfig("PixForge API", "1.0.0")
	humaConfig.Info.Description = "Credit-metered AI image and video generation API backed by ComfyUI."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}

	api := humachi.New(router, humaConfig)

	// Config for protected routes (docs are served by the main API)
	protectedConfig := huma.DefaultConfig("PixForge API", "1.0.0")
	protectedConfig.Info.Description = humaConfig.Info.Description
	protectedConfig.Servers = humaConfig.Servers
	protectedConfig.DocsPath = ""
	protectedConfig.OpenAPIPath = ""
	protectedConfig.SchemasPath = ""

	authHandler := handlers.NewAuthHandler(cfg, services.Auth)
	generateHandler := handlers.NewGenerateHandler(services.Generation, logger)
	paymentHandler := handlers.NewPaymentHandler(services.Payment, logger)
	adminHandler := handlers.NewAdminHandler(services.Backend, services.Admin, logger)

	// Public routes
	huma.Get(api, "/api/v1/health", handlers.HealthCheck)
	huma.Get(api, "/api/v1/pricing/packages", paymentHandler.Packages)
	huma.Post(api, "/api/v1/auth/register", authHandler.Register)
	huma.Post(api, "/api/v1/auth/login", authHandler.Login)

	// Payment gateway callback (signature verified by handler, not user auth)
	router.Post("/api/v1/payment/notify", paymentHandler.NotifyRaw)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(services.Auth))

		protectedAPI := humachi.New(r, protectedConfig)

		huma.Get(protectedAPI, "/api/v1/auth/me", authHandler.Me)
		huma.Post(protectedAPI, "/api/v1/auth/logout", authHandler.Logout)

		huma.Post(protectedAPI, "/api/v1/generate/text-to-image", generateHandler.TextToImage)
		huma.Get(protectedAPI, "/api/v1/generate/{id}/status", generateHandler.CheckStatus)
		huma.Get(protectedAPI, "/api/v1/generations/recent", generateHandler.Recent)

		// Raw HTTP handler for the multipart image upload
		r.Post("/api/v1/generate/image-to-video", generateHandler.ImageToVideoRaw)

		huma.Post(protectedAPI, "/api/v1/payment/create", paymentHandler.CreateOrder)
	})

	// Admin routes
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(services.Auth))
		r.Use(mw.RequireAdmin())

		adminAPI := humachi.New(r, protectedConfig)

		huma.Get(adminAPI, "/api/v1/admin/backends", adminHandler.ListBackends)
		huma.Post(adminAPI, "/api/v1/admin/backends", adminHandler.CreateBackend)
		huma.Get(adminAPI, "/api/v1/admin/backends/{id}", adminHandler.GetBackend)
		huma.Put(adminAPI, "/api/v1/admin/backends/{id}", adminHandler.UpdateBackend)
		huma.Put(adminAPI, "/api/v1/admin/backends/{id}/activate", adminHandler.ActivateBackend)
		huma.Post(adminAPI, "/api/v1/admin/backends/{id}/test", adminHandler.TestBackend)
		huma.Delete(adminAPI, "/api/v1/admin/backends/{id}", adminHandler.DeleteBackend)
		huma.Get(adminAPI, "/api/v1/admin/stats", adminHandler.GetStats)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
