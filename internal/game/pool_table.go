package game

// Ball is a ball on the table. Position and velocity share the table's
// integer scale.
type Ball struct {
	PositionX int64 `json:"position_x"`
	PositionY int64 `json:"position_y"`
	VelocityX int64 `json:"velocity_x"`
	VelocityY int64 `json:"velocity_y"`
}

// Pocket is a fixed capture target.
type Pocket struct {
	PositionX int64 `json:"position_x"`
	PositionY int64 `json:"position_y"`
}

// Table holds the index-paired object balls and pockets of one turn:
// Balls[i] is only ever tested against Pockets[i].
type Table struct {
	Balls   []Ball   `json:"balls"`
	Pockets []Pocket `json:"pockets"`
}

// Complete reports whether the table has enough balls and pockets to be played.
func (t Table) Complete() bool {
	return len(t.Balls) >= MaxBalls && len(t.Pockets) >= MaxBalls
}

// spawnRand is a xorshift64 generator. It only decorrelates successive
// layouts and is not suitable for anything security related.
type spawnRand struct {
	state uint64
}

// nextX advances the generator once and maps the low 14 bits to [2500, 7500].
func (r *spawnRand) nextX() int64 {
	r.state ^= r.state << 21
	r.state ^= r.state >> 35
	r.state ^= r.state << 4
	return int64(r.state&spawnMask)%SpawnSpanX + SpawnMinX
}

// TableSeed derives the generator seed from the ledger time (unix seconds)
// and the table sequence counter.
func TableSeed(ledgerTime, sequence uint64) uint64 {
	return ledgerTime + sequence + 1
}

// NewTable lays out MaxBalls object balls at rest on the ball row and
// MaxBalls pockets on the pocket row. Only x is randomized; each ball draws
// its x before its paired pocket.
func NewTable(seed uint64) Table {
	r := &spawnRand{state: seed}
	t := Table{
		Balls:   make([]Ball, 0, MaxBalls),
		Pockets: make([]Pocket, 0, MaxBalls),
	}
	for i := 0; i < MaxBalls; i++ {
		t.Balls = append(t.Balls, Ball{PositionX: r.nextX(), PositionY: BallRowY})
		t.Pockets = append(t.Pockets, Pocket{PositionX: r.nextX(), PositionY: PocketRowY})
	}
	return t
}
