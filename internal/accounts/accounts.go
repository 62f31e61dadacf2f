package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/playpool/snooker/internal/models"
	"github.com/shopspring/decimal"
)

// HouseAccount owns entry fees and funds rewards.
const HouseAccount = "house"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be a positive whole number")
)

// ValidAmount reports whether amount can be moved. Balances are stored as
// NUMERIC(39, 0), so fractions would be rounded by postgres.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.IsInteger()
}

// NormalizePhone normalizes phone number to international format (no leading '+')
// Returns digits like: 256700123456
func NormalizePhone(phone string) string {
	// Remove all non-digit characters
	digits := ""
	for _, char := range phone {
		if char >= '0' && char <= '9' {
			digits += string(char)
		}
	}

	// Handle Uganda phone numbers (expecting 9 local digits)
	if len(digits) == 9 && (digits[0] == '7' || digits[0] == '3') {
		return "256" + digits
	} else if len(digits) == 10 && digits[0] == '0' {
		return "256" + digits[1:]
	} else if len(digits) == 12 && digits[:3] == "256" {
		return digits
	}

	return ""
}

// Name normalizes phone-like account owners and keeps anything else (the
// house, external wallets) as given.
func Name(s string) string {
	if p := NormalizePhone(s); p != "" {
		return p
	}
	return strings.TrimSpace(s)
}

// Ledger keeps per-asset balances in postgres.
type Ledger struct {
	db *sqlx.DB
}

// NewLedger returns a Ledger using db.
func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// lockAccount returns the (asset, owner) account locked FOR UPDATE inside tx,
// creating it with a zero balance if missing.
func lockAccount(ctx context.Context, tx *sqlx.Tx, asset, owner string) (*models.Account, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (asset, owner, balance, created_at, updated_at)
		VALUES ($1, $2, 0, NOW(), NOW())
		ON CONFLICT (asset, owner) DO NOTHING
	`, asset, owner); err != nil {
		return nil, err
	}

	var a models.Account
	if err := tx.GetContext(ctx, &a, `
		SELECT id, asset, owner, balance, created_at, updated_at
		FROM accounts WHERE asset = $1 AND owner = $2 FOR UPDATE
	`, asset, owner); err != nil {
		return nil, err
	}
	return &a, nil
}

// lockOrder returns the owners in the order their rows are locked. A fixed
// order keeps two opposite transfers from deadlocking.
func lockOrder(from, to string) (string, string) {
	if from <= to {
		return from, to
	}
	return to, from
}

// Transfer moves amount of asset from one owner to another. Balances never
// go negative.
func (l *Ledger) Transfer(ctx context.Context, asset, from, to string, amount decimal.Decimal, reference string) error {
	if !ValidAmount(amount) {
		return ErrInvalidAmount
	}
	if from == to {
		return fmt.Errorf("transfer to same account %s", from)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	first, second := lockOrder(from, to)
	a, err := lockAccount(ctx, tx, asset, first)
	if err != nil {
		return err
	}
	b, err := lockAccount(ctx, tx, asset, second)
	if err != nil {
		return err
	}
	debitAcc, creditAcc := a, b
	if debitAcc.Owner != from {
		debitAcc, creditAcc = b, a
	}

	if debitAcc.Balance.LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s %s", ErrInsufficientFunds, from, debitAcc.Balance, asset)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = balance - $1, updated_at = NOW() WHERE id = $2`, amount, debitAcc.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2`, amount, creditAcc.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_transactions (asset, debit_account_id, credit_account_id, amount, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, asset, debitAcc.ID, creditAcc.ID, amount, reference); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Printf("[ACCT] Transfer completed: asset=%s from=%s to=%s amount=%s ref=%s", asset, from, to, amount, reference)
	return nil
}

// Credit deposits amount of asset into owner's account from outside the
// ledger.
func (l *Ledger) Credit(ctx context.Context, asset, owner string, amount decimal.Decimal, reference string) (decimal.Decimal, error) {
	if !ValidAmount(amount) {
		return decimal.Zero, ErrInvalidAmount
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()

	acc, err := lockAccount(ctx, tx, asset, owner)
	if err != nil {
		return decimal.Zero, err
	}
	balance := acc.Balance.Add(amount)
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE id = $2`, balance, acc.ID); err != nil {
		return decimal.Zero, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_transactions (asset, debit_account_id, credit_account_id, amount, reference, created_at)
		VALUES ($1, NULL, $2, $3, $4, NOW())
	`, asset, acc.ID, amount, reference); err != nil {
		return decimal.Zero, err
	}
	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}

	log.Printf("[ACCT] Credited %s %s to %s (balance=%s ref=%s)", amount, asset, owner, balance, reference)
	return balance, nil
}

// Balance returns owner's balance of asset; unknown accounts hold zero.
func (l *Ledger) Balance(ctx context.Context, asset, owner string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.db.GetContext(ctx, &balance, `SELECT balance FROM accounts WHERE asset = $1 AND owner = $2`, asset, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	return balance, err
}

// Accounts lists every account of owner.
func (l *Ledger) Accounts(ctx context.Context, owner string) ([]models.Account, error) {
	var accs []models.Account
	err := l.db.SelectContext(ctx, &accs, `
		SELECT id, asset, owner, balance, created_at, updated_at
		FROM accounts WHERE owner = $1
		ORDER BY asset
	`, owner)
	return accs, err
}

// Transactions lists ledger movements of asset, newest first. An empty asset
// lists every asset.
func (l *Ledger) Transactions(ctx context.Context, asset string, limit, offset int) ([]models.AccountTransaction, error) {
	var txs []models.AccountTransaction
	err := l.db.SelectContext(ctx, &txs, `
		SELECT id, asset, debit_account_id, credit_account_id, amount, reference, created_at
		FROM account_transactions
		WHERE ($1 = '' OR asset = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, asset, limit, offset)
	return txs, err
}
