package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/jmoiron/sqlx"
	"github.com/playpool/snooker/internal/accounts"
	"github.com/playpool/snooker/internal/config"
	"github.com/playpool/snooker/internal/models"
	"golang.org/x/crypto/bcrypt"
)

type credentials struct {
	Phone string `json:"phone"`
	PIN   string `json:"pin"`
}

// bind reads and normalizes phone + 4-digit PIN.
func (cr *credentials) bind(c *gin.Context) bool {
	if err := c.ShouldBindJSON(cr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone and pin required"})
		return false
	}
	cr.Phone = accounts.NormalizePhone(strings.TrimSpace(cr.Phone))
	cr.PIN = strings.TrimSpace(cr.PIN)
	if cr.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
		return false
	}
	if len(cr.PIN) != 4 || !isDigits(cr.PIN) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "PIN must be exactly 4 digits"})
		return false
	}
	return true
}

// RegisterPlayer creates a player with a PIN and returns a session token
// POST /api/v1/auth/register
func RegisterPlayer(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentials
		if !req.bind(c) {
			return
		}

		pinHash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("RegisterPlayer bcrypt error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		var id int
		err = db.GetContext(c.Request.Context(), &id, `
			INSERT INTO players (phone_number, pin_hash, created_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (phone_number) DO NOTHING
			RETURNING id
		`, req.Phone, string(pinHash))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusConflict, gin.H{"error": "phone already registered"})
			return
		}
		if err != nil {
			log.Printf("RegisterPlayer DB error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		signed, err := issueToken(cfg, id, req.Phone)
		if err != nil {
			log.Printf("Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		log.Printf("[AUTH] Registered player %d (%s)", id, req.Phone)
		c.JSON(http.StatusCreated, gin.H{"token": signed, "player": gin.H{"id": id, "phone": req.Phone}})
	}
}

// LoginPlayer verifies phone + PIN and returns a session token
// POST /api/v1/auth/login
func LoginPlayer(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentials
		if !req.bind(c) {
			return
		}

		var player models.Player
		err := db.GetContext(c.Request.Context(), &player, `
			SELECT id, phone_number, display_name, pin_hash, created_at, last_active
			FROM players WHERE phone_number = $1
		`, req.Phone)
		if err != nil || bcrypt.CompareHashAndPassword([]byte(player.PinHash), []byte(req.PIN)) != nil {
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				log.Printf("LoginPlayer DB error: %v", err)
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid phone or PIN"})
			return
		}

		if _, err := db.ExecContext(c.Request.Context(), `UPDATE players SET last_active = NOW() WHERE id = $1`, player.ID); err != nil {
			log.Printf("LoginPlayer failed to update last_active for player %d: %v", player.ID, err)
		}

		signed, err := issueToken(cfg, player.ID, req.Phone)
		if err != nil {
			log.Printf("Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": signed, "player": player})
	}
}

// issueToken signs an HS256 session token carrying the player's id and phone.
func issueToken(cfg *config.Config, playerID int, phone string) (string, error) {
	ttl := time.Duration(cfg.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	claims := jwt.MapClaims{
		"player_id": playerID,
		"phone":     phone,
		"exp":       jwt.NewNumericDate(time.Now().Add(ttl)).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}

// AuthMiddleware validates the bearer JWT and sets player_id and player (the
// normalized phone) in context. Browsers cannot set headers on websocket
// upgrades, so a token query parameter is accepted too.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		} else {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		playerIDf, ok := claims["player_id"].(float64)
		phone, _ := claims["phone"].(string)
		if !ok || phone == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("player_id", int(playerIDf))
		c.Set("player", phone)
		c.Next()
	}
}
