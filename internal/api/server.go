// Package api exposes the bot's control surface: REST endpoints for
// status, positions and performance, a login endpoint when auth is
// enabled, and a WebSocket stream of bus events.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/ai/ml"
	"binance-trading-bot/internal/ai/sentiment"
	"binance-trading-bot/internal/auth"
	"binance-trading-bot/internal/bot"
	"binance-trading-bot/internal/events"
	"binance-trading-bot/internal/order"
	"binance-trading-bot/internal/portfolio"
	"binance-trading-bot/internal/pump"
)

// RateLimiter is a simple per-key sliding-window limiter guarding the
// endpoints that fan out to the exchange.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow reports whether another request for the key fits in the window.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	windowStart := time.Now().Add(-r.window)
	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}
	r.requests[key] = append(recent, time.Now())
	return true
}

// Deps carries the components the API reads from and commands.
type Deps struct {
	Bot       *bot.Bot
	Book      *order.PositionBook
	Executor  *order.Executor
	Tracker   *portfolio.Tracker
	Pumps     *pump.Detector
	Predictor *ml.Predictor
	Sentiment *sentiment.Analyzer
	Auth      *auth.Service
	Bus       *events.Bus
}

// Server is the HTTP control API.
type Server struct {
	cfg        config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	deps       Deps
	hub        *WSHub
	limiter    *RateLimiter
	logger     zerolog.Logger
}

func NewServer(cfg config.ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(cfg.AllowedOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	s := &Server{
		cfg:     cfg,
		router:  router,
		deps:    deps,
		hub:     NewWSHub(logger),
		limiter: NewRateLimiter(120, time.Minute),
		logger:  logger.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()

	// Every bus event reaches connected WebSocket clients.
	deps.Bus.SubscribeAll(s.hub.BroadcastEvent)
	go s.hub.Run()

	return s
}

func splitOrigins(origins string) []string {
	if origins == "" {
		return []string{"http://localhost:5173"}
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/api/auth/login", s.handleLogin)
	s.router.GET("/api/auth/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"enabled": s.authEnabled()})
	})

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	if s.authEnabled() {
		api.Use(s.authMiddleware())
	}

	api.GET("/status", s.handleStatus)
	api.GET("/positions", s.handlePositions)
	api.GET("/orders", s.handleOrders)
	api.GET("/trades", s.handleTrades)
	api.GET("/performance", s.handlePerformance)
	api.GET("/pump/stats", s.handlePumpStats)
	api.GET("/ml/stats", s.handleMLStats)
	api.GET("/sentiment", s.handleSentiment)

	api.POST("/bot/pause", s.handlePause)
	api.POST("/bot/resume", s.handleResume)
	api.POST("/bot/liquidate", s.handleLiquidate)
	api.POST("/bot/liquidate-all", s.handleLiquidateAll)

	api.GET("/ws", s.handleWebSocket)
}

func (s *Server) authEnabled() bool {
	return s.deps.Auth != nil && s.deps.Auth.Enabled()
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("api server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(s.cfg.ShutdownTimeout)*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if !s.limiter.Allow(path) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			// WebSocket clients cannot set headers from browsers.
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		username, err := s.deps.Auth.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("username", username)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
