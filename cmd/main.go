package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/et1613/chitchatproject-sub001/internal/app"
	"github.com/et1613/chitchatproject-sub001/internal/cache"
	"github.com/et1613/chitchatproject-sub001/internal/config"
	"github.com/et1613/chitchatproject-sub001/internal/controllers"
	"github.com/et1613/chitchatproject-sub001/internal/middleware"
	"github.com/et1613/chitchatproject-sub001/internal/registry"
	"github.com/et1613/chitchatproject-sub001/internal/repositories"
	"github.com/et1613/chitchatproject-sub001/internal/services"
	"github.com/et1613/chitchatproject-sub001/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	utils.InitLogger(config.AppName)
	cfg := config.LoadConfig()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize application:", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//----------------------------------------------------------------------
	// Repositories, cache, registry
	//----------------------------------------------------------------------
	tokenRepo := repositories.NewPostgresTokenRepository(application.DB)

	tokenCache := cache.New(cfg.CacheMaxItems, time.Minute)
	defer tokenCache.Close()

	sessionRegistry := registry.New(cfg.SendTimeout)

	//----------------------------------------------------------------------
	// Services
	//----------------------------------------------------------------------
	tokenService := services.NewTokenService(tokenRepo, tokenCache, sessionRegistry, services.TokenServiceOptions{
		AccessTokenTTL: cfg.AccessTokenTTL,
		URLTokenTTL:    cfg.URLTokenTTL,
		CacheSliding:   cfg.CacheSlidingTTL,
		CacheAbsolute:  cfg.CacheAbsoluteTTL,
		MaxUsageCount:  cfg.MaxTokenUsage,
	})

	signedService, err := services.NewSignedTokenService(cfg.ServerKey)
	if err != nil {
		utils.Logger.Fatal("Failed to create signed token service:", err)
	}

	cleanupService := services.NewCleanupService(tokenRepo, sessionRegistry, services.CleanupOptions{
		BatchSize:          cfg.SweepBatchSize,
		BlacklistRetention: cfg.BlacklistRetention,
		ExpiryGrace:        cfg.ExpiryGrace,
		IdleThreshold:      cfg.SessionIdleThreshold,
	})

	//----------------------------------------------------------------------
	// Controllers
	//----------------------------------------------------------------------
	tokenController := controllers.NewTokenController(tokenService, signedService)
	presenceController := controllers.NewPresenceController(sessionRegistry)
	wsController := controllers.NewWSController(tokenService, sessionRegistry)
	healthController := controllers.NewHealthController(application)

	//----------------------------------------------------------------------
	// Router & Endpoints
	//----------------------------------------------------------------------
	router := mux.NewRouter()

	// Health
	router.HandleFunc("/health", healthController.HealthCheckHandler).Methods("GET")

	// Live session socket; the session token rides in the query string.
	router.HandleFunc("/ws", wsController.Connect).Methods("GET")

	// /tokens/v1
	tokenRouter := router.PathPrefix("/tokens").Subrouter()
	v1Tokens := tokenRouter.PathPrefix("/v1").Subrouter()

	// Validation endpoints are open; callers hold the token itself.
	v1Tokens.HandleFunc("/validate", tokenController.ValidateToken).Methods("POST")
	v1Tokens.HandleFunc("/url/validate", tokenController.ValidateURLToken).Methods("POST")

	// Management endpoints require a service JWT.
	tokensProtected := v1Tokens.NewRoute().Subrouter()
	tokensProtected.Use(middleware.AuthMiddleware(cfg.JWTSecret, tokenRepo))
	tokensProtected.HandleFunc("/issue", tokenController.IssueToken).Methods("POST")
	tokensProtected.HandleFunc("/revoke", tokenController.RevokeToken).Methods("POST")
	tokensProtected.HandleFunc("/revoke_all", tokenController.RevokeAll).Methods("POST")
	tokensProtected.HandleFunc("/rotate", tokenController.RotateToken).Methods("POST")
	tokensProtected.HandleFunc("/url/issue", tokenController.IssueURLToken).Methods("POST")

	// /presence/v1
	presenceRouter := router.PathPrefix("/presence").Subrouter()
	v1Presence := presenceRouter.PathPrefix("/v1").Subrouter()
	v1Presence.Use(middleware.AuthMiddleware(cfg.JWTSecret, tokenRepo))
	v1Presence.HandleFunc("/subjects", presenceController.ListActive).Methods("GET")
	v1Presence.HandleFunc("/subjects/{subjectID}/status", presenceController.GetStatus).Methods("GET")
	v1Presence.HandleFunc("/subjects/{subjectID}/send", presenceController.SendToSubject).Methods("POST")
	v1Presence.HandleFunc("/broadcast", presenceController.Broadcast).Methods("POST")

	//----------------------------------------------------------------------
	// Periodic cleanup via cron
	//----------------------------------------------------------------------
	c := cron.New()
	_, schErr := c.AddFunc(fmt.Sprintf("@every %s", cfg.CleanupInterval), func() {
		if e := cleanupService.Sweep(ctx); e != nil {
			utils.Logger.WithError(e).Error("Scheduled token cleanup sweep failed")
		}
	})
	if schErr != nil {
		utils.Logger.WithError(schErr).Fatal("Failed to schedule cleanup sweep job")
	}
	c.Start()

	allowedOrigins := []string{"*"}
	if cfg.AppUrl != "" {
		allowedOrigins = []string{cfg.AppUrl}
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: co.Handler(router),
	}

	go func() {
		utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	utils.Logger.Info("Shutdown signal received, draining...")

	cronCtx := c.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.WithError(err).Error("HTTP server shutdown failed")
	}
	// Let an in-flight sweep finish within the drain window.
	select {
	case <-cronCtx.Done():
	case <-shutdownCtx.Done():
	}

	utils.Logger.Info("Server stopped.")
}
