package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexustrade/paperdesk/internal/market"
	"github.com/nexustrade/paperdesk/internal/wallet"
)

// WalletHandler serves wallet state and executes orders.
type WalletHandler struct {
	data MarketData
}

func NewWalletHandler(data MarketData) *WalletHandler {
	return &WalletHandler{data: data}
}

func (h *WalletHandler) GetWallet(c *gin.Context) {
	c.JSON(http.StatusOK, h.data.Ledger().State())
}

func (h *WalletHandler) GetPnL(c *gin.Context) {
	price := h.data.LastPrice()

	pnl, err := h.data.Ledger().PnL(price)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Price not available yet!"})
		return
	}
	equity, err := h.data.Ledger().Equity(price)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Price not available yet!"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"equity":   equity,
		"absolute": pnl.Absolute,
		"percent":  pnl.Percent,
	})
}

type orderRequest struct {
	Side    string  `json:"side" binding:"required"`
	Price   float64 `json:"price"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent"`
}

// PlaceOrder fills a market-style order. Sizing is either an explicit
// amount or a percentage of the spendable balance; price zero means the
// latest feed price.
func (h *WalletHandler) PlaceOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Side is required!"})
		return
	}

	side := market.Side(req.Side)
	if !side.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Side must be buy or sell!"})
		return
	}

	amount := req.Amount
	if req.Percent > 0 {
		price := req.Price
		if price == 0 {
			price = h.data.LastPrice()
		}
		sized, err := h.data.Ledger().AmountForPercent(side, req.Percent, price)
		if err != nil {
			h.writeOrderError(c, err)
			return
		}
		amount = sized.InexactFloat64()
	}

	trade, err := h.data.ExecuteOrder(c.Request.Context(), side, req.Price, amount)
	if err != nil {
		h.writeOrderError(c, err)
		return
	}

	cash, assetQty := h.data.Ledger().Balances()
	c.JSON(http.StatusCreated, gin.H{
		"trade":    trade,
		"cash":     cash,
		"assetQty": assetQty,
	})
}

// GetSize previews percentage sizing without executing.
func (h *WalletHandler) GetSize(c *gin.Context) {
	var query struct {
		Side    string  `form:"side" binding:"required"`
		Percent float64 `form:"percent" binding:"required"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Side and percent are required!"})
		return
	}

	amount, err := h.data.Ledger().AmountForPercent(market.Side(query.Side), query.Percent, h.data.LastPrice())
	if err != nil {
		h.writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"side": query.Side, "percent": query.Percent, "amount": amount})
}

func (h *WalletHandler) writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Insufficient USDT balance!"})
	case errors.Is(err, wallet.ErrInsufficientAsset):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Insufficient BTC balance!"})
	case errors.Is(err, wallet.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order amount!"})
	case errors.Is(err, wallet.ErrPriceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Price not available yet!"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Order failed!"})
	}
}
