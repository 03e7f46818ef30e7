// Package api exposes the game core over HTTP. Identity arrives
// pre-authenticated in the X-User-Id header; this layer does no session
// management of its own.
package api

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"skycrash/internal/broadcast"
	"skycrash/internal/coordinator"
	"skycrash/internal/fair"
	"skycrash/internal/ledger"
	"skycrash/internal/store"
)

// Server bundles the core collaborators behind the HTTP routes.
type Server struct {
	led             *ledger.Ledger
	coord           *coordinator.Coordinator
	hub             *broadcast.Hub
	store           store.Store
	startingBalance int64
}

// New creates the HTTP server facade.
func New(led *ledger.Ledger, coord *coordinator.Coordinator, hub *broadcast.Hub, st store.Store, startingBalance int64) *Server {
	return &Server{
		led:             led,
		coord:           coord,
		hub:             hub,
		store:           st,
		startingBalance: startingBalance,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/rounds/active", s.activeRound)
	r.GET("/api/rounds/:id/verify", s.verifyRound)
	r.GET("/api/events", s.events)

	authed := r.Group("/api", s.identity())
	authed.POST("/bets", s.placeBet)
	authed.POST("/bets/:id/cashout", s.cashOut)
	authed.DELETE("/bets/:id", s.cancelBet)
	authed.GET("/balance", s.balance)

	return r
}

// identity trusts the upstream-authenticated X-User-Id header and
// provisions a starting balance for first-time users.
func (s *Server) identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetHeader("X-User-Id")
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-Id"})
			return
		}
		s.led.EnsureAccount(uid, s.startingBalance)
		c.Set("user_id", uid)
		c.Next()
	}
}

type placeBetRequest struct {
	Amount  int64  `json:"amount"`
	RoundID string `json:"round_id"`
}

func (s *Server) placeBet(c *gin.Context) {
	uid := c.GetString("user_id")
	var req placeBetRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
		return
	}

	betID, balance, err := s.led.PlaceBet(uid, req.Amount, req.RoundID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bet_id": betID, "new_balance": balance})
}

func (s *Server) cashOut(c *gin.Context) {
	uid := c.GetString("user_id")
	payout, multiplier, balance, err := s.led.CashOut(c.Param("id"), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payout":      payout,
		"multiplier":  multiplier,
		"new_balance": balance,
	})
}

func (s *Server) cancelBet(c *gin.Context) {
	uid := c.GetString("user_id")
	balance, err := s.led.CancelBet(c.Param("id"), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"new_balance": balance})
}

func (s *Server) balance(c *gin.Context) {
	uid := c.GetString("user_id")
	c.JSON(http.StatusOK, gin.H{"balance": s.led.Balance(uid)})
}

func (s *Server) activeRound(c *gin.Context) {
	snap, ok := s.coord.ActiveRound()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active round"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) verifyRound(c *gin.Context) {
	rec, err := s.store.Round(c.Param("id"))
	if err != nil || rec.SeedReveal == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "round not found or not yet revealed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"round_id":        rec.ID,
		"seed_commitment": rec.SeedCommitment,
		"seed_reveal":     rec.SeedReveal,
		"crash_point":     rec.CrashPoint,
		"valid":           fair.Verify(rec.SeedReveal, rec.ID, rec.SeedCommitment, rec.CrashPoint),
	})
}

// events streams published game events as server-sent events.
func (s *Server) events(c *gin.Context) {
	ch, cancel := s.hub.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case evt, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(evt.Type), evt)
			return true
		}
	})
}

// writeError maps ledger errors to HTTP statuses. The too-late cash-out
// gets its own code so clients can say "round already crashed" instead of
// presenting a retryable failure.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrRoundCrashed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "round_crashed"})
	case errors.Is(err, ledger.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrDuplicateBet):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrState), errors.Is(err, ledger.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("[ERROR] unhandled request error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
