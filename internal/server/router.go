package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nexustrade/paperdesk/internal/user"
)

// Config carries the handlers the router wires up.
type Config struct {
	Auth   *AuthHandler
	Market *MarketHandler
	Wallet *WalletHandler
	Stream *StreamHandler
	Users  *user.Service
}

// NewRouter builds the dashboard API. Order placement requires a valid
// session token; everything else is open.
func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()

	api := router.Group("/v1/")

	auth := api.Group("/auth")
	{
		auth.POST("/register", cfg.Auth.Register)
		auth.POST("/login", cfg.Auth.Login)
		auth.POST("/reset", cfg.Auth.Reset)
		auth.POST("/logout", cfg.Auth.Logout)
	}

	mkt := api.Group("/market")
	{
		mkt.GET("/candles", cfg.Market.GetCandles)
		mkt.GET("/book", cfg.Market.GetBook)
		mkt.GET("/tape", cfg.Market.GetTape)
		mkt.GET("/price", cfg.Market.GetPrice)
	}

	w := api.Group("/wallet")
	{
		w.GET("", cfg.Wallet.GetWallet)
		w.GET("/pnl", cfg.Wallet.GetPnL)
		w.GET("/size", cfg.Wallet.GetSize)
		w.POST("/orders", requireSession(cfg.Users), cfg.Wallet.PlaceOrder)
	}

	api.GET("/stream", cfg.Stream.Stream)

	return router
}

// requireSession rejects requests without a valid bearer token.
func requireSession(users *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Login required!"})
			return
		}
		mobile, ok := users.Authenticate(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Login required!"})
			return
		}
		c.Set("mobile", mobile)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		return token
	}
	return ""
}
