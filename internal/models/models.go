package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Player represents a registered player. The normalized phone number is the
// player's address for tables and ledger accounts.
type Player struct {
	ID          int          `db:"id" json:"id"`
	PhoneNumber string       `db:"phone_number" json:"phone_number"`
	DisplayName string       `db:"display_name" json:"display_name"`
	PinHash     string       `db:"pin_hash" json:"-"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	LastActive  sql.NullTime `db:"last_active" json:"last_active,omitempty"`
}

// GameConfig is the one-time bootstrap configuration: the admin identity and
// the payment/reward parameters.
type GameConfig struct {
	AdminPhone    string          `db:"admin_phone" json:"admin_phone"`
	TokenHash     string          `db:"token_hash" json:"-"`
	PaymentToken  string          `db:"payment_token" json:"payment_token"`
	PaymentAmount decimal.Decimal `db:"payment_amount" json:"payment_amount"`
	RewardToken   string          `db:"reward_token" json:"reward_token"`
	RewardAmount  decimal.Decimal `db:"reward_amount" json:"reward_amount"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Account holds the balance of one asset for one owner
type Account struct {
	ID        int             `db:"id" json:"id"`
	Asset     string          `db:"asset" json:"asset"`
	Owner     string          `db:"owner" json:"owner"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// AccountTransaction is one ledger movement. A null debit side is an
// external deposit.
type AccountTransaction struct {
	ID              int64           `db:"id" json:"id"`
	Asset           string          `db:"asset" json:"asset"`
	DebitAccountID  sql.NullInt64   `db:"debit_account_id" json:"debit_account_id,omitempty"`
	CreditAccountID int64           `db:"credit_account_id" json:"credit_account_id"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Reference       string          `db:"reference" json:"reference"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Play is one scored turn
type Play struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Player       string          `db:"player" json:"player"`
	Seed         int64           `db:"seed" json:"seed"`
	LedgerTime   int64           `db:"ledger_time" json:"ledger_time"`
	Score        int             `db:"score" json:"score"`
	Potted       pq.BoolArray    `db:"potted" json:"potted"`
	RewardPaid   bool            `db:"reward_paid" json:"reward_paid"`
	RewardAmount decimal.Decimal `db:"reward_amount" json:"reward_amount"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// LeaderboardEntry aggregates a player's plays
type LeaderboardEntry struct {
	Player        string `db:"player" json:"player"`
	BestScore     int    `db:"best_score" json:"best_score"`
	Plays         int    `db:"plays" json:"plays"`
	MaximumBreaks int    `db:"maximum_breaks" json:"maximum_breaks"`
}

// AdminAudit represents an admin action log entry
type AdminAudit struct {
	ID         int            `db:"id" json:"id"`
	AdminPhone string         `db:"admin_phone" json:"admin_phone"`
	IP         string         `db:"ip" json:"ip"`
	Route      string         `db:"route" json:"route"`
	Action     string         `db:"action" json:"action"`
	Details    types.JSONText `db:"details" json:"details"`
	Success    bool           `db:"success" json:"success"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
