package game

// Table and scoring constants for the five-ball snooker turn.
// Positions and velocities share one integer scale (1000 units per client
// table unit); these values MUST match the client StrikeSolver.

const (
	MaxBalls = 5

	// Collision and capture thresholds, compared against squared distances.
	DiameterSquared      = 1_000_000
	CaptureRadiusSquared = 562_500 // (1.5 * ball radius)^2 around a pocket

	ImpulseShift     = 36 // Q36 inverse squared distance
	ProjectionFactor = 5

	// Generated layout.
	BallRowY   = 6000
	PocketRowY = 2000
	SpawnMinX  = 2500
	SpawnSpanX = 5001 // SpawnMinX + SpawnSpanX - 1 == 7500
	spawnMask  = 1<<14 - 1

	// Scoring.
	OpeningBonus = 12
	StreakPoints = 9
	MaximumBreak = 147

	// MaxShotComponent bounds every submitted cue-ball coordinate and velocity.
	// With |v| <= 2^24 the impulse (at most |v| << 36) stays inside int64.
	MaxShotComponent = 1 << 24

	// DefaultTurnWindow is the freshness window in seconds.
	DefaultTurnWindow = 180
)
