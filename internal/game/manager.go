package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/playpool/snooker/internal/accounts"
	"github.com/playpool/snooker/internal/config"
	"github.com/playpool/snooker/internal/models"
	"github.com/shopspring/decimal"
)

// TableStore persists one pending table per player.
type TableStore interface {
	// Save stores (or replaces) the player's table. deadline is the unix time
	// after which the table can no longer be played; ttl bounds storage.
	Save(ctx context.Context, player string, session Session, table Table, deadline uint64, ttl time.Duration) error
	// Load returns the player's table without consuming it.
	Load(ctx context.Context, player string) (Session, Table, error)
	// Consume runs check on the stored table and deletes it only when check
	// passes. The check and the delete happen without a window for a second
	// consumer. A missing table yields ErrInvalidTable.
	Consume(ctx context.Context, player string, check func(Session, Table) error) (Session, Table, error)
	// Restore puts a consumed table back only when the player holds no table.
	// It reports false when a newer table was dealt in the meantime.
	Restore(ctx context.Context, player string, session Session, table Table, deadline uint64, ttl time.Duration) (bool, error)
	// NextSequence returns a monotonically increasing table counter.
	NextSequence(ctx context.Context) (uint64, error)
	// Expired claims the players whose table deadline is before now.
	Expired(ctx context.Context, now uint64) ([]string, error)
}

// Bootstrap reads the one-time game configuration.
type Bootstrap interface {
	Get(ctx context.Context) (*models.GameConfig, error)
}

// Ledger moves token balances between accounts.
type Ledger interface {
	Transfer(ctx context.Context, asset, from, to string, amount decimal.Decimal, reference string) error
	Balance(ctx context.Context, asset, owner string) (decimal.Decimal, error)
}

// PlayRecorder keeps the history of scored turns.
type PlayRecorder interface {
	RecordPlay(ctx context.Context, play models.Play) error
}

// Publisher fans events out to connected players.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Publishers fans each event out to every publisher in order. The first
// error is returned after all have been tried.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, p := range ps {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PlayResult is what a scored turn returns to the player.
type PlayResult struct {
	PlayID       string          `json:"play_id"`
	Scorecard                    // score, per-index pots and running totals
	RewardPaid   bool            `json:"reward_paid"`
	RewardAmount decimal.Decimal `json:"reward_amount"`
}

// Manager runs the insert-coin / play lifecycle around the scoring core.
type Manager struct {
	tables    TableStore
	bootstrap Bootstrap
	ledger    Ledger
	plays     PlayRecorder
	events    Publisher
	guard     SessionGuard
	tableTTL  time.Duration
	now       func() time.Time
}

// NewManager wires the collaborators. plays and events may be nil.
func NewManager(tables TableStore, bootstrap Bootstrap, ledger Ledger, plays PlayRecorder, events Publisher, cfg *config.Config) *Manager {
	window := uint64(DefaultTurnWindow)
	ttl := 10 * time.Minute
	if cfg != nil {
		if cfg.TurnWindowSeconds > 0 {
			window = uint64(cfg.TurnWindowSeconds)
		}
		if cfg.TableTTLSeconds > 0 {
			ttl = time.Duration(cfg.TableTTLSeconds) * time.Second
		}
	}
	return &Manager{
		tables:    tables,
		bootstrap: bootstrap,
		ledger:    ledger,
		plays:     plays,
		events:    events,
		guard:     SessionGuard{Window: window},
		tableTTL:  ttl,
		now:       time.Now,
	}
}

// SetClock replaces the time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Manager) ledgerTime() uint64 {
	return uint64(m.now().Unix())
}

// InsertCoin charges the configured entry fee and deals a fresh table to the
// player, replacing any table they had not played yet.
func (m *Manager) InsertCoin(ctx context.Context, player string) (Session, Table, error) {
	cfg, err := m.bootstrap.Get(ctx)
	if err != nil {
		return Session{}, Table{}, err
	}

	paid := false
	if cfg.PaymentAmount.IsPositive() {
		ref := "payment:" + player
		if err := m.ledger.Transfer(ctx, cfg.PaymentToken, player, accounts.HouseAccount, cfg.PaymentAmount, ref); err != nil {
			log.Printf("[GAME] Payment failed for player %s: %v", player, err)
			return Session{}, Table{}, fmt.Errorf("payment: %w", err)
		}
		paid = true
	}

	seq, err := m.tables.NextSequence(ctx)
	if err == nil {
		ledgerTime := m.ledgerTime()
		session := Session{LedgerTime: ledgerTime, Seed: TableSeed(ledgerTime, seq)}
		table := NewTable(session.Seed)
		err = m.tables.Save(ctx, player, session, table, ledgerTime+m.guard.Window, m.tableTTL)
		if err == nil {
			log.Printf("[TABLE] Dealt table to %s (seed=%d seq=%d)", player, session.Seed, seq)
			return session, table, nil
		}
	}

	log.Printf("[TABLE] Failed to store table for %s: %v", player, err)
	if paid {
		m.refund(ctx, player, cfg)
	}
	return Session{}, Table{}, fmt.Errorf("store table: %w", err)
}

func (m *Manager) refund(ctx context.Context, player string, cfg *models.GameConfig) {
	ref := "refund:" + player
	if err := m.ledger.Transfer(ctx, cfg.PaymentToken, accounts.HouseAccount, player, cfg.PaymentAmount, ref); err != nil {
		log.Printf("[GAME] Refund to %s failed: %v", player, err)
	}
}

// CurrentTable returns the player's unplayed table.
func (m *Manager) CurrentTable(ctx context.Context, player string) (Session, Table, error) {
	return m.tables.Load(ctx, player)
}

// Play validates the player's cue balls against their stored table and
// returns the score. The table is consumed before scoring, so at most one
// play succeeds per dealt table. A maximum break pays the configured reward.
func (m *Manager) Play(ctx context.Context, player string, cueBalls []Ball) (*PlayResult, error) {
	if err := ValidateShot(cueBalls); err != nil {
		return nil, err
	}

	cfg, err := m.bootstrap.Get(ctx)
	if err != nil {
		return nil, err
	}

	now := m.ledgerTime()
	session, table, err := m.tables.Consume(ctx, player, func(s Session, t Table) error {
		return m.guard.Check(s, now, t)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTable) {
			log.Printf("[GAME] Rejected play for %s: %v", player, err)
		}
		return nil, err
	}

	result := &PlayResult{
		PlayID:    uuid.NewString(),
		Scorecard: ScoreTurn(table, cueBalls),
	}

	if result.MaximumBreak() && cfg.RewardAmount.IsPositive() {
		ref := "reward:" + result.PlayID
		if err := m.ledger.Transfer(ctx, cfg.RewardToken, accounts.HouseAccount, player, cfg.RewardAmount, ref); err != nil {
			// The turn did not complete: hand the table back so it can be replayed.
			log.Printf("[GAME] Reward transfer to %s failed, restoring table: %v", player, err)
			restored, rerr := m.tables.Restore(ctx, player, session, table, session.LedgerTime+m.guard.Window, m.tableTTL)
			switch {
			case rerr != nil:
				log.Printf("[TABLE] Failed to restore table for %s: %v", player, rerr)
			case !restored:
				log.Printf("[TABLE] Not restoring table for %s, a newer table was dealt", player)
			}
			return nil, fmt.Errorf("reward: %w", err)
		}
		result.RewardPaid = true
		result.RewardAmount = cfg.RewardAmount
	}

	log.Printf("[GAME] Player %s scored %d (potted=%v reward=%t)", player, result.Score, result.Potted, result.RewardPaid)
	m.record(ctx, player, session, result)
	m.announce(ctx, player, result)
	return result, nil
}

func (m *Manager) record(ctx context.Context, player string, session Session, r *PlayResult) {
	if m.plays == nil {
		return
	}
	id, err := uuid.Parse(r.PlayID)
	if err != nil {
		return
	}
	play := models.Play{
		ID:           id,
		Player:       player,
		Seed:         int64(session.Seed),
		LedgerTime:   int64(session.LedgerTime),
		Score:        int(r.Score),
		Potted:       r.Potted[:],
		RewardPaid:   r.RewardPaid,
		RewardAmount: r.RewardAmount,
		CreatedAt:    m.now(),
	}
	if err := m.plays.RecordPlay(ctx, play); err != nil {
		log.Printf("[DB] Failed to record play %s for %s: %v", r.PlayID, player, err)
	}
}

func (m *Manager) announce(ctx context.Context, player string, r *PlayResult) {
	ev := Event{
		Type:   EventPlayResult,
		Player: player,
		PlayID: r.PlayID,
		Score:  r.Score,
		Potted: r.Potted[:],
		At:     m.now().Unix(),
	}
	m.publish(ctx, ev)
	if r.MaximumBreak() {
		ev.Type = EventMaximumBreak
		if r.RewardPaid {
			ev.Reward = r.RewardAmount.String()
		}
		m.publish(ctx, ev)
	}
}

func (m *Manager) publish(ctx context.Context, ev Event) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(ctx, ev); err != nil {
		log.Printf("[GAME] Failed to publish %s for %s: %v", ev.Type, ev.Player, err)
	}
}

// Withdraw moves amount of the reward token from the house to account when
// the house holds enough, and returns the house balance seen before the move.
// Callers authenticate the admin first.
func (m *Manager) Withdraw(ctx context.Context, account string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !accounts.ValidAmount(amount) {
		return decimal.Zero, accounts.ErrInvalidAmount
	}
	cfg, err := m.bootstrap.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	balance, err := m.ledger.Balance(ctx, cfg.RewardToken, accounts.HouseAccount)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.LessThanOrEqual(balance) {
		if err := m.ledger.Transfer(ctx, cfg.RewardToken, accounts.HouseAccount, account, amount, "withdraw:"+account); err != nil {
			return decimal.Zero, err
		}
		log.Printf("[GAME] Withdrew %s %s from house to %s", amount, cfg.RewardToken, account)
	} else {
		log.Printf("[GAME] Withdraw of %s %s skipped, house holds %s", amount, cfg.RewardToken, balance)
	}
	return balance, nil
}

// ExpireTables removes tables whose turn window has passed and notifies
// their players. It returns the number of tables removed.
func (m *Manager) ExpireTables(ctx context.Context) (int, error) {
	now := m.ledgerTime()
	players, err := m.tables.Expired(ctx, now)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, player := range players {
		session, _, err := m.tables.Consume(ctx, player, func(s Session, _ Table) error {
			if !m.guard.Expired(s, now) {
				return errTableFresh
			}
			return nil
		})
		if err != nil {
			if !errors.Is(err, errTableFresh) && !errors.Is(err, ErrInvalidTable) {
				log.Printf("[EXPIRY] Failed to expire table for %s: %v", player, err)
			}
			continue
		}
		removed++
		log.Printf("[EXPIRY] Expired table for %s (dealt at %d)", player, session.LedgerTime)
		m.publish(ctx, Event{Type: EventTableExpired, Player: player, At: int64(now)})
	}
	return removed, nil
}

var errTableFresh = errors.New("table still playable")
