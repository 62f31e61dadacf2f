package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/playpool/snooker/internal/accounts"
	"github.com/playpool/snooker/internal/admin"
	"github.com/playpool/snooker/internal/game"
)

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// queryInt reads a non-negative integer query parameter, capped at max.
func queryInt(c *gin.Context, key string, def, max int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, admin.ErrNoAdmin):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "game not initialized"})
	case errors.Is(err, admin.ErrAlreadyInitialized):
		c.JSON(http.StatusConflict, gin.H{"error": "game already initialized"})
	case errors.Is(err, admin.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin credentials"})
	case errors.Is(err, game.ErrInvalidTable):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid table"})
	case errors.Is(err, game.ErrInvalidShot):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid shot"})
	case errors.Is(err, accounts.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient funds"})
	case errors.Is(err, accounts.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive whole number"})
	default:
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
