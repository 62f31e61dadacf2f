package game

// Session is the marker stored next to a table when it is created.
type Session struct {
	LedgerTime uint64 `json:"ledger_time"` // unix seconds at creation
	Seed       uint64 `json:"seed"`
}

// SessionGuard decides whether a stored table may still be played.
type SessionGuard struct {
	Window uint64 // seconds a table stays playable after creation
}

// Expired reports whether the turn window of session has passed at now.
func (g SessionGuard) Expired(session Session, now uint64) bool {
	return session.LedgerTime+g.Window < now
}

// Validate checks freshness and table shape.
func (g SessionGuard) Validate(session Session, now uint64, table Table) bool {
	return !g.Expired(session, now) && table.Complete()
}

// Check is Validate returning ErrInvalidTable on failure.
func (g SessionGuard) Check(session Session, now uint64, table Table) error {
	if !g.Validate(session, now, table) {
		return ErrInvalidTable
	}
	return nil
}
