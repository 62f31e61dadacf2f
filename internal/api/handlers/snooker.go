package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playpool/snooker/internal/accounts"
	"github.com/playpool/snooker/internal/admin"
	"github.com/playpool/snooker/internal/game"
)

// InsertCoin charges the entry fee and deals a new table
// POST /api/v1/table
func InsertCoin(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		player := c.GetString("player")

		session, table, err := mgr.InsertCoin(c.Request.Context(), player)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"table":       table,
			"seed":        session.Seed,
			"ledger_time": session.LedgerTime,
		})
	}
}

// GetTable returns the player's unplayed table
// GET /api/v1/table
func GetTable(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, table, err := mgr.CurrentTable(c.Request.Context(), c.GetString("player"))
		if err != nil {
			if errors.Is(err, game.ErrInvalidTable) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no table, insert a coin first"})
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"table":       table,
			"seed":        session.Seed,
			"ledger_time": session.LedgerTime,
		})
	}
}

// Play scores the submitted cue balls against the player's table
// POST /api/v1/play
func Play(mgr *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			CueBalls []game.Ball `json:"cue_balls"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cue_balls required"})
			return
		}

		result, err := mgr.Play(c.Request.Context(), c.GetString("player"), req.CueBalls)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// GetPlays returns the authenticated player's recent plays
// GET /api/v1/player/plays
func GetPlays(plays *game.PlayStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := queryInt(c, "limit", 25, 100)
		offset := queryInt(c, "offset", 0, 0)

		rows, err := plays.PlaysByPlayer(c.Request.Context(), c.GetString("player"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"plays": rows, "limit": limit, "offset": offset})
	}
}

// Leaderboard returns best scores per player
// GET /api/v1/leaderboard
func Leaderboard(plays *game.PlayStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := plays.BestScores(c.Request.Context(), queryInt(c, "limit", 20, 100))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
	}
}

// GetMe returns the player's phone and token balances
// GET /api/v1/me
func GetMe(ledger *accounts.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		player := c.GetString("player")
		accs, err := ledger.Accounts(c.Request.Context(), player)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":       c.GetInt("player_id"),
			"phone":    player,
			"accounts": accs,
		})
	}
}

// GetGameInfo returns the public part of the bootstrap configuration
// GET /api/v1/config
func GetGameInfo(store *admin.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := store.Get(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"payment_token":  cfg.PaymentToken,
			"payment_amount": cfg.PaymentAmount,
			"reward_token":   cfg.RewardToken,
			"reward_amount":  cfg.RewardAmount,
			"maximum_break":  game.MaximumBreak,
			"max_balls":      game.MaxBalls,
		})
	}
}
