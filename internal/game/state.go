package game

import "errors"

var (
	// ErrInvalidTable is returned when the player's table is missing, stale or
	// malformed. No score is computed and nothing is consumed.
	ErrInvalidTable = errors.New("invalid pool table")

	// ErrInvalidShot is returned when a submission has too few cue balls or
	// components outside the accepted range.
	ErrInvalidShot = errors.New("invalid shot")
)

// Event types published to the websocket layer.
const (
	EventPlayResult   = "play_result"
	EventMaximumBreak = "maximum_break"
	EventTableExpired = "table_expired"
)

// Event is a game notification fanned out to connected players.
type Event struct {
	Type   string `json:"type"`
	Player string `json:"player"`
	PlayID string `json:"play_id,omitempty"`
	Score  uint32 `json:"score,omitempty"`
	Potted []bool `json:"potted,omitempty"`
	Reward string `json:"reward_amount,omitempty"`
	At     int64  `json:"at"`
}
