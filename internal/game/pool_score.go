package game

// Scorecard is the outcome of one scored turn.
type Scorecard struct {
	Score   uint32           `json:"score"`
	Potted  [MaxBalls]bool   `json:"potted"`
	Running [MaxBalls]uint32 `json:"running"` // score after each index
}

// MaximumBreak reports whether the turn earned the maximum break.
func (s Scorecard) MaximumBreak() bool {
	return s.Score == MaximumBreak
}

// ScoreTurn pairs shot[i] with table.Balls[i] and table.Pockets[i] for every
// index in order. Each pot extends the streak and adds streak*9; the first pot
// made while the score is still zero also earns the opening bonus. A miss
// resets the streak but never takes points away.
//
// The table and shot must hold at least MaxBalls entries; callers check this
// with SessionGuard and ValidateShot. Inputs are not modified.
func ScoreTurn(table Table, shot []Ball) Scorecard {
	var card Scorecard
	var streak uint32
	for i := 0; i < MaxBalls; i++ {
		cue := shot[i]
		ball := table.Balls[i]
		if IsPotted(&cue, &ball, table.Pockets[i]) {
			streak++
			card.Potted[i] = true
			if card.Score == 0 {
				card.Score += OpeningBonus
			}
		} else {
			streak = 0
		}
		card.Score += streak * StreakPoints
		card.Running[i] = card.Score
	}
	return card
}

// ComputeScore returns the score of a turn.
func ComputeScore(table Table, shot []Ball) uint32 {
	return ScoreTurn(table, shot).Score
}

// ValidateShot checks that a submission holds a cue ball for every index and
// that the cue balls used for scoring stay inside MaxShotComponent. Entries
// past MaxBalls are ignored.
func ValidateShot(shot []Ball) error {
	if len(shot) < MaxBalls {
		return ErrInvalidShot
	}
	for _, b := range shot[:MaxBalls] {
		if !inShotRange(b.PositionX) || !inShotRange(b.PositionY) ||
			!inShotRange(b.VelocityX) || !inShotRange(b.VelocityY) {
			return ErrInvalidShot
		}
	}
	return nil
}

func inShotRange(v int64) bool {
	return v >= -MaxShotComponent && v <= MaxShotComponent
}
