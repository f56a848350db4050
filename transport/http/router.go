package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/layer-3/walletlink/ports"
	"github.com/layer-3/walletlink/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(walletService *service.WalletService, tokenizer ports.Tokenizer, gatherer prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	handlers := NewWalletHandlers(walletService)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	wallet := router.Group("/wallet")
	wallet.Use(AuthMiddleware(tokenizer))
	{
		wallet.POST("/challenge", handlers.Challenge)
		wallet.POST("/verify", handlers.Verify)
		wallet.POST("/disconnect", handlers.Disconnect)
		wallet.GET("/status", handlers.Status)
		wallet.GET("/history", handlers.History)
	}

	admin := router.Group("/admin")
	admin.Use(AuthMiddleware(tokenizer), AdminOnly())
	{
		admin.GET("/wallet/suspicious", handlers.Suspicious)
	}

	return router
}
