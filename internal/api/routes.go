package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playpool/snooker/internal/accounts"
	"github.com/playpool/snooker/internal/admin"
	"github.com/playpool/snooker/internal/api/handlers"
	"github.com/playpool/snooker/internal/config"
	"github.com/playpool/snooker/internal/game"
	"github.com/playpool/snooker/internal/middleware"
	"github.com/playpool/snooker/internal/ws"
)

// Deps carries the services the routes are bound to.
type Deps struct {
	DB      *sqlx.DB
	Manager *game.Manager
	Admin   *admin.Store
	Ledger  *accounts.Ledger
	Plays   *game.PlayStore
	Hub     *ws.Hub
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d Deps, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] no-cache headers enabled for all routes")
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.GET("/config", handlers.GetGameInfo(d.Admin))
		v1.GET("/leaderboard", handlers.Leaderboard(d.Plays))

		auth := v1.Group("/auth")
		{
			auth.POST("/register", handlers.RegisterPlayer(d.DB, cfg))
			auth.POST("/login", handlers.LoginPlayer(d.DB, cfg))
		}

		player := v1.Group("")
		player.Use(handlers.AuthMiddleware(cfg))
		{
			player.GET("/me", handlers.GetMe(d.Ledger))
			player.POST("/table", handlers.InsertCoin(d.Manager))
			player.GET("/table", handlers.GetTable(d.Manager))
			player.POST("/play", handlers.Play(d.Manager))
			player.GET("/player/plays", handlers.GetPlays(d.Plays))
			player.GET("/ws", middleware.WebSocketCORSCheck(cfg), handlers.HandleWebSocket(d.Hub))
		}

		v1.POST("/admin/initialize", handlers.InitializeGame(d.Admin, cfg))

		adminGroup := v1.Group("/admin")
		adminGroup.Use(handlers.AdminMiddleware(d.Admin))
		{
			adminGroup.GET("/config", handlers.GetAdminConfig(d.Admin))
			adminGroup.POST("/withdraw", handlers.Withdraw(d.Manager, d.DB))
			adminGroup.POST("/fund", handlers.Fund(d.Ledger, d.DB))
			adminGroup.GET("/transactions", handlers.GetAdminTransactions(d.Ledger))
			adminGroup.GET("/audit", handlers.GetAdminAuditLogs(d.DB))
		}
	}
}
