package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/playpool/snooker/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNoAdmin is returned when the game has not been initialized yet.
	ErrNoAdmin = errors.New("game not initialized")
	// ErrAlreadyInitialized is returned by a second Initialize; the first
	// configuration is kept.
	ErrAlreadyInitialized = errors.New("game already initialized")
	// ErrUnauthorized is returned for a wrong admin phone or token.
	ErrUnauthorized = errors.New("invalid admin credentials")
)

// InitParams is the bootstrap request.
type InitParams struct {
	AdminPhone    string
	AdminToken    string
	PaymentToken  string
	PaymentAmount decimal.Decimal
	RewardToken   string
	RewardAmount  decimal.Decimal
}

// Validate checks that every field is usable.
func (p InitParams) Validate() error {
	switch {
	case strings.TrimSpace(p.AdminPhone) == "":
		return fmt.Errorf("admin phone is required")
	case len(p.AdminToken) < 8:
		return fmt.Errorf("admin token must be at least 8 characters")
	case strings.TrimSpace(p.PaymentToken) == "" || strings.TrimSpace(p.RewardToken) == "":
		return fmt.Errorf("payment and reward tokens are required")
	case p.PaymentAmount.IsNegative() || p.RewardAmount.IsNegative():
		return fmt.Errorf("amounts must not be negative")
	case !p.PaymentAmount.IsInteger() || !p.RewardAmount.IsInteger():
		return fmt.Errorf("amounts must be whole token units")
	}
	return nil
}

// Store persists the single bootstrap configuration row.
type Store struct {
	db *sqlx.DB
}

// NewStore returns a Store using db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Initialize stores the configuration once. Later calls fail with
// ErrAlreadyInitialized and leave the stored row unchanged.
func (s *Store) Initialize(ctx context.Context, p InitParams) error {
	if err := p.Validate(); err != nil {
		return err
	}

	hashedToken, err := bcrypt.GenerateFromPassword([]byte(p.AdminToken), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash token: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO game_config (id, admin_phone, token_hash, payment_token, payment_amount, reward_token, reward_amount, created_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO NOTHING
	`, p.AdminPhone, string(hashedToken), p.PaymentToken, p.PaymentAmount, p.RewardToken, p.RewardAmount)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyInitialized
	}

	log.Printf("[ADMIN] Game initialized (admin=%s payment=%s %s reward=%s %s)",
		p.AdminPhone, p.PaymentAmount, p.PaymentToken, p.RewardAmount, p.RewardToken)
	return nil
}

// Get returns the configuration or ErrNoAdmin.
func (s *Store) Get(ctx context.Context) (*models.GameConfig, error) {
	var cfg models.GameConfig
	err := s.db.GetContext(ctx, &cfg, `
		SELECT admin_phone, token_hash, payment_token, payment_amount, reward_token, reward_amount, created_at
		FROM game_config WHERE id = 1
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoAdmin
		}
		return nil, err
	}
	return &cfg, nil
}

// Authenticate validates phone + token against the configured admin.
func (s *Store) Authenticate(ctx context.Context, phone, token string) (*models.GameConfig, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.AdminPhone != phone || !VerifyAdminToken(cfg.TokenHash, token) {
		log.Printf("[ADMIN] Token verification failed for phone: %s", phone)
		return nil, ErrUnauthorized
	}
	return cfg, nil
}

// VerifyAdminToken checks if the provided token matches the stored hash
func VerifyAdminToken(hashedToken, plainToken string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedToken), []byte(plainToken))
	return err == nil
}

// LogAdminAction records an admin action in the audit log
func LogAdminAction(db *sqlx.DB, adminPhone, ip, route, action string, details map[string]interface{}, success bool) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		log.Printf("[ADMIN] Failed to marshal audit details: %v", err)
		detailsJSON = []byte("{}")
	}

	_, err = db.Exec(`
		INSERT INTO admin_audit (admin_phone, ip, route, action, details, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, adminPhone, ip, route, action, string(detailsJSON), success)

	if err != nil {
		log.Printf("[ADMIN] Failed to log admin action: %v", err)
	}

	return err
}

// GetAdminAuditLogs retrieves recent admin audit logs with pagination
func GetAdminAuditLogs(db *sqlx.DB, limit, offset int) ([]models.AdminAudit, error) {
	var logs []models.AdminAudit
	query := `
		SELECT id, admin_phone, ip, route, action, details, success, created_at
		FROM admin_audit
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	err := db.Select(&logs, query, limit, offset)
	return logs, err
}
