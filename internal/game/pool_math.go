package game

import (
	"math"
	"math/big"
)

// The collision math multiplies Q36 normals by velocities and positions, so
// intermediate products reach well past 64 bits. Every step runs on big.Int
// so nothing wraps. Quo truncates and Rsh floors, matching two's complement.

var (
	diameterSquared      = big.NewInt(DiameterSquared)
	captureRadiusSquared = big.NewInt(CaptureRadiusSquared)
	projectionFactor     = big.NewInt(ProjectionFactor)
	impulseOne           = new(big.Int).Lsh(big.NewInt(1), ImpulseShift)

	maxInt64 = big.NewInt(math.MaxInt64)
	minInt64 = big.NewInt(math.MinInt64)
)

func num(v int64) *big.Int { return big.NewInt(v) }

func add(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) }

func sub(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) }

func mul(a, b *big.Int) *big.Int { return new(big.Int).Mul(a, b) }

func neg(a *big.Int) *big.Int { return new(big.Int).Neg(a) }

// shiftDown drops the Q36 fraction, rounding toward negative infinity.
func shiftDown(a *big.Int) *big.Int { return new(big.Int).Rsh(a, ImpulseShift) }

// inverseQ36 returns floor(2^36 / d) for d > 0.
func inverseQ36(d *big.Int) *big.Int { return new(big.Int).Quo(impulseOne, d) }

// squaredDistance returns dx*dx + dy*dy.
func squaredDistance(dx, dy *big.Int) *big.Int {
	return add(mul(dx, dx), mul(dy, dy))
}

// toInt64 narrows a velocity back to the wire type. Values outside int64 only
// occur for cue balls that bypassed shot validation; they saturate.
func toInt64(v *big.Int) int64 {
	if v.Cmp(maxInt64) > 0 {
		return math.MaxInt64
	}
	if v.Cmp(minInt64) < 0 {
		return math.MinInt64
	}
	return v.Int64()
}
