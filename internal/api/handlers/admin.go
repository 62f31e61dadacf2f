package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playpool/snooker/internal/accounts"
	"github.com/playpool/snooker/internal/admin"
	"github.com/playpool/snooker/internal/config"
	"github.com/playpool/snooker/internal/game"
	"github.com/shopspring/decimal"
)

const (
	adminPhoneHeader = "X-Admin-Phone"
	adminTokenHeader = "X-Admin-Token"
	bootstrapHeader  = "X-Bootstrap-Key"
)

// InitializeGame stores the one-time bootstrap configuration. Outside
// development it requires the bootstrap key.
// POST /api/v1/admin/initialize
func InitializeGame(store *admin.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.BootstrapKey != "" {
			key := c.GetHeader(bootstrapHeader)
			if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.BootstrapKey)) != 1 {
				c.JSON(http.StatusForbidden, gin.H{"error": "invalid bootstrap key"})
				return
			}
		} else if cfg.Environment != "development" {
			c.JSON(http.StatusForbidden, gin.H{"error": "initialization over HTTP is disabled"})
			return
		}

		var req struct {
			AdminPhone    string          `json:"admin_phone" binding:"required"`
			AdminToken    string          `json:"admin_token" binding:"required"`
			PaymentToken  string          `json:"payment_token" binding:"required"`
			PaymentAmount decimal.Decimal `json:"payment_amount"`
			RewardToken   string          `json:"reward_token" binding:"required"`
			RewardAmount  decimal.Decimal `json:"reward_amount"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		params := admin.InitParams{
			AdminPhone:    accounts.Name(req.AdminPhone),
			AdminToken:    req.AdminToken,
			PaymentToken:  strings.TrimSpace(req.PaymentToken),
			PaymentAmount: req.PaymentAmount,
			RewardToken:   strings.TrimSpace(req.RewardToken),
			RewardAmount:  req.RewardAmount,
		}
		if err := params.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := store.Initialize(c.Request.Context(), params); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	}
}

// AdminMiddleware authenticates the configured admin by phone and token headers
func AdminMiddleware(store *admin.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := accounts.Name(c.GetHeader(adminPhoneHeader))
		token := c.GetHeader(adminTokenHeader)
		if phone == "" || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		if _, err := store.Authenticate(c.Request.Context(), phone, token); err != nil {
			respondError(c, err)
			c.Abort()
			return
		}

		c.Set("admin_phone", phone)
		c.Next()
	}
}

// GetAdminConfig returns the stored bootstrap configuration
// GET /api/v1/admin/config
func GetAdminConfig(store *admin.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := store.Get(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

// Withdraw moves reward tokens out of the house account
// POST /api/v1/admin/withdraw
func Withdraw(mgr *game.Manager, db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminPhone := c.GetString("admin_phone")

		var req struct {
			Account string          `json:"account" binding:"required"`
			Amount  decimal.Decimal `json:"amount"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		account := accounts.Name(req.Account)
		details := map[string]interface{}{"account": account, "amount": req.Amount.String()}

		balance, err := mgr.Withdraw(c.Request.Context(), account, req.Amount)
		if err != nil {
			admin.LogAdminAction(db, adminPhone, c.ClientIP(), "/api/v1/admin/withdraw", "withdraw", details, false)
			respondError(c, err)
			return
		}

		withdrawn := req.Amount.LessThanOrEqual(balance)
		details["house_balance"] = balance.String()
		details["withdrawn"] = withdrawn
		admin.LogAdminAction(db, adminPhone, c.ClientIP(), "/api/v1/admin/withdraw", "withdraw", details, true)
		c.JSON(http.StatusOK, gin.H{"house_balance": balance, "withdrawn": withdrawn})
	}
}

// Fund credits an account from outside the ledger
// POST /api/v1/admin/fund
func Fund(ledger *accounts.Ledger, db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminPhone := c.GetString("admin_phone")

		var req struct {
			Account string          `json:"account" binding:"required"`
			Asset   string          `json:"asset" binding:"required"`
			Amount  decimal.Decimal `json:"amount"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		account := accounts.Name(req.Account)
		details := map[string]interface{}{"account": account, "asset": req.Asset, "amount": req.Amount.String()}

		balance, err := ledger.Credit(c.Request.Context(), req.Asset, account, req.Amount, "fund:"+adminPhone)
		if err != nil {
			admin.LogAdminAction(db, adminPhone, c.ClientIP(), "/api/v1/admin/fund", "fund", details, false)
			respondError(c, err)
			return
		}

		log.Printf("[ADMIN] %s funded %s with %s %s", adminPhone, account, req.Amount, req.Asset)
		admin.LogAdminAction(db, adminPhone, c.ClientIP(), "/api/v1/admin/fund", "fund", details, true)
		c.JSON(http.StatusOK, gin.H{"account": account, "asset": req.Asset, "balance": balance})
	}
}

// GetAdminTransactions returns ledger movements, optionally for one asset
// GET /api/v1/admin/transactions
func GetAdminTransactions(ledger *accounts.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := queryInt(c, "limit", 50, 200)
		offset := queryInt(c, "offset", 0, 0)

		txs, err := ledger.Transactions(c.Request.Context(), c.Query("asset"), limit, offset)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch transactions: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": txs, "limit": limit, "offset": offset})
	}
}

// GetAdminAuditLogs returns paginated audit log entries
// GET /api/v1/admin/audit
func GetAdminAuditLogs(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := queryInt(c, "limit", 25, 200)
		offset := queryInt(c, "offset", 0, 0)

		logs, err := admin.GetAdminAuditLogs(db, limit, offset)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch audit logs: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit logs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs, "limit": limit, "offset": offset})
	}
}
