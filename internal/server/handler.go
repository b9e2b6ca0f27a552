// Package server exposes the dashboard REST API and the WebSocket tick
// stream over the engine, wallet and user services.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nexustrade/paperdesk/internal/archive"
	"github.com/nexustrade/paperdesk/internal/engine"
	"github.com/nexustrade/paperdesk/internal/market"
	"github.com/nexustrade/paperdesk/internal/user"
	"github.com/nexustrade/paperdesk/internal/wallet"
)

// MarketData is the engine surface the handlers need; narrowed for tests.
type MarketData interface {
	LastPrice() float64
	Candles() []market.Candle
	Book() market.BookSnapshot
	Tape() []market.Trade
	ExecuteOrder(ctx context.Context, side market.Side, price, amount float64) (market.Trade, error)
	Ledger() *wallet.Ledger
	Subscribe() (<-chan engine.Update, func())
}

// AuthHandler serves registration, login and password reset.
type AuthHandler struct {
	users *user.Service
}

func NewAuthHandler(users *user.Service) *AuthHandler {
	return &AuthHandler{users: users}
}

type credentialsRequest struct {
	Mobile   string `json:"mobile" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mobile and password are required!"})
		return
	}

	u, err := h.users.Register(req.Mobile, req.Password)
	switch {
	case errors.Is(err, user.ErrExists):
		c.JSON(http.StatusConflict, gin.H{"error": "User already exists!"})
	case errors.Is(err, user.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mobile and password are required!"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed!"})
	default:
		c.JSON(http.StatusCreated, gin.H{"user": u})
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mobile and password are required!"})
		return
	}

	token, u, err := h.users.Login(req.Mobile, req.Password)
	switch {
	case errors.Is(err, user.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid mobile or password!"})
	case errors.Is(err, user.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mobile and password are required!"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed!"})
	default:
		c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
	}
}

func (h *AuthHandler) Reset(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mobile and password are required!"})
		return
	}

	err := h.users.ResetPassword(req.Mobile, req.Password)
	switch {
	case errors.Is(err, user.ErrMobileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Mobile number not found!"})
	case errors.Is(err, user.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mobile and password are required!"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Password reset failed!"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully!"})
	}
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.users.Logout(bearerToken(c))
	c.Status(http.StatusNoContent)
}

// CandleArchive serves candle history beyond the in-memory window; nil when
// no archive is configured.
type CandleArchive interface {
	RecentCandles(ctx context.Context, limit int) ([]archive.CandleRow, error)
}

// MarketHandler serves read-only market state.
type MarketHandler struct {
	data     MarketData
	symbol   string
	interval string
	archive  CandleArchive
}

func NewMarketHandler(data MarketData, symbol, interval string, candleArchive CandleArchive) *MarketHandler {
	return &MarketHandler{data: data, symbol: symbol, interval: interval, archive: candleArchive}
}

// GetCandles serves the in-memory candle window; source=archive reads the
// persisted history instead.
func (h *MarketHandler) GetCandles(c *gin.Context) {
	if c.Query("source") == "archive" {
		h.getArchivedCandles(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":   h.symbol,
		"interval": h.interval,
		"candles":  h.data.Candles(),
	})
}

func (h *MarketHandler) getArchivedCandles(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Archive not configured!"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "96"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Limit must be a positive number!"})
		return
	}

	rows, err := h.archive.RecentCandles(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Archive query failed!"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":   h.symbol,
		"interval": h.interval,
		"source":   "archive",
		"candles":  rows,
	})
}

func (h *MarketHandler) GetBook(c *gin.Context) {
	c.JSON(http.StatusOK, h.data.Book())
}

func (h *MarketHandler) GetTape(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trades": h.data.Tape()})
}

func (h *MarketHandler) GetPrice(c *gin.Context) {
	price := h.data.LastPrice()
	if price <= 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Price not available yet!"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": h.symbol, "price": price})
}
