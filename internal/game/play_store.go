package game

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/playpool/snooker/internal/models"
)

// PlayStore records scored turns in postgres.
type PlayStore struct {
	db *sqlx.DB
}

// NewPlayStore returns a PlayStore using db.
func NewPlayStore(db *sqlx.DB) *PlayStore {
	return &PlayStore{db: db}
}

// RecordPlay inserts one scored turn.
func (s *PlayStore) RecordPlay(ctx context.Context, p models.Play) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO plays (id, player, seed, ledger_time, score, potted, reward_paid, reward_amount, created_at)
		VALUES (:id, :player, :seed, :ledger_time, :score, :potted, :reward_paid, :reward_amount, :created_at)
	`, p)
	return err
}

// PlaysByPlayer returns the player's most recent turns first.
func (s *PlayStore) PlaysByPlayer(ctx context.Context, player string, limit, offset int) ([]models.Play, error) {
	var plays []models.Play
	err := s.db.SelectContext(ctx, &plays, `
		SELECT id, player, seed, ledger_time, score, potted, reward_paid, reward_amount, created_at
		FROM plays
		WHERE player = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, player, limit, offset)
	return plays, err
}

// BestScores returns each player's best score, highest first.
func (s *PlayStore) BestScores(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT player, MAX(score) AS best_score, COUNT(*) AS plays,
		       COUNT(*) FILTER (WHERE score = 147) AS maximum_breaks
		FROM plays
		GROUP BY player
		ORDER BY best_score DESC, maximum_breaks DESC, player
		LIMIT $1
	`, limit)
	return entries, err
}
