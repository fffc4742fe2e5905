package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"binance-trading-bot/internal/auth"
	"binance-trading-bot/internal/bot"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.authEnabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "authentication is disabled"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	token, err := s.deps.Auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   s.deps.Auth.ExpiresIn(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := s.deps.Bot.Status()
	metrics := s.deps.Tracker.Metrics()
	c.JSON(http.StatusOK, gin.H{
		"bot": status,
		"summary": gin.H{
			"open_positions": s.deps.Book.Count(),
			"total_pnl":      metrics.TotalPnL,
			"closed_trades":  metrics.ClosedTrades,
			"win_rate":       metrics.WinRate,
		},
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.deps.Book.All()})
}

func (s *Server) handleOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": s.deps.Executor.Orders()})
}

func (s *Server) handleTrades(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trades": s.deps.Tracker.Trades()})
}

func (s *Server) handlePerformance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics":   s.deps.Tracker.Metrics(),
		"snapshots": s.deps.Tracker.Snapshots(),
	})
}

func (s *Server) handlePumpStats(c *gin.Context) {
	if s.deps.Pumps == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	c.JSON(http.StatusOK, s.deps.Pumps.Statistics())
}

func (s *Server) handleMLStats(c *gin.Context) {
	if s.deps.Predictor == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	c.JSON(http.StatusOK, s.deps.Predictor.Statistics())
}

func (s *Server) handleSentiment(c *gin.Context) {
	if s.deps.Sentiment == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	bias, score := s.deps.Sentiment.TradingBias()
	c.JSON(http.StatusOK, gin.H{
		"current": s.deps.Sentiment.Current(),
		"bias":    bias,
		"score":   score,
	})
}

func (s *Server) enqueue(c *gin.Context, cmd bot.Command) {
	if !s.deps.Bot.Enqueue(cmd) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "command queue full"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": cmd.Kind})
}

func (s *Server) handlePause(c *gin.Context) {
	s.enqueue(c, bot.Command{Kind: bot.CommandPause, Reason: "operator request"})
}

func (s *Server) handleResume(c *gin.Context) {
	s.enqueue(c, bot.Command{Kind: bot.CommandResume})
}

type liquidateRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

func (s *Server) handleLiquidate(c *gin.Context) {
	var req liquidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}
	s.enqueue(c, bot.Command{Kind: bot.CommandLiquidate, Symbol: req.Symbol})
}

func (s *Server) handleLiquidateAll(c *gin.Context) {
	s.enqueue(c, bot.Command{Kind: bot.CommandLiquidateAll})
}
