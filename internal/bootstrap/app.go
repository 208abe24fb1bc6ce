// Package bootstrap wires the server together: configuration, logging,
// redis, the session registry, the websocket hub and the HTTP surface.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/KyamichProjects/copaint/internal/auth"
	httpHandler "github.com/KyamichProjects/copaint/internal/handler/http"
	wsHandler "github.com/KyamichProjects/copaint/internal/handler/websocket"
	"github.com/KyamichProjects/copaint/internal/hub"
	"github.com/KyamichProjects/copaint/internal/middleware"
	"github.com/KyamichProjects/copaint/internal/session"
)

// App holds the running server's components.
type App struct {
	Config      *Config
	Log         *logrus.Logger
	RedisClient *redis.Client
	Registry    *session.Registry
	Hub         *hub.Hub
	HTTPServer  *http.Server
}

// NewApp builds all components. Nothing is started yet.
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	// Package-level logrus is used throughout internal packages; keep it
	// in lockstep with the app logger.
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(logLevel)
	logrus.SetOutput(os.Stdout)
	log.Info("Configuration loaded successfully")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("Redis client initialized")

	tokens, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	registry := session.NewRegistry(cfg.HistoryLimit)
	hubInstance := hub.NewHub(registry)
	log.WithField("history_limit", cfg.HistoryLimit).Info("Session registry and hub initialized")

	sessionHandler := httpHandler.NewSessionHandler(tokens)
	websocketHandler := wsHandler.NewHandler(hubInstance)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(middleware.RateLimit(redisClient, cfg.KeyPrefix, cfg.RateLimitMax, cfg.RateLimitWindow))

	api := router.Group("/api")
	{
		api.POST("/session", sessionHandler.CreateSession)
	}
	wsRoutes := router.Group("/ws").Use(middleware.Auth(tokens))
	{
		wsRoutes.GET("", websocketHandler.HandleConnection)
	}
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	app := &App{
		Config:      cfg,
		Log:         log,
		RedisClient: redisClient,
		Registry:    registry,
		Hub:         hubInstance,
		HTTPServer: &http.Server{
			Addr:    ":" + cfg.ServerPort,
			Handler: router,
		},
	}
	return app, nil
}

// Start launches the hub loop and the HTTP server.
func (a *App) Start() {
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go func() {
		a.Log.Infof("HTTP server listening on %s", a.HTTPServer.Addr)
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening")
	}()
}

// Shutdown stops the server gracefully.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully")
	}

	a.Hub.Stop()

	if err := a.RedisClient.Close(); err != nil {
		a.Log.Errorf("Error closing redis connection: %v", err)
	}

	a.Log.Info("Application shutdown complete")
}

// LoggerMiddleware logs each request with its status, latency and caller.
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
