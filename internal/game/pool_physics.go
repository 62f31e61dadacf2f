package game

import "math/big"

// IsPotted resolves one strike of cue against color and reports whether color
// ends up captured by pocket.
//
// When the balls touch, momentum is exchanged along the line of centers and
// both balls' velocities are updated in place. Balls that do not touch are
// never potted and are left untouched. Exactly overlapping balls skip the
// exchange but are still tested against the pocket.
//
// The capture test projects a line through color's position along
// (x*vx*5 - x, y*vy*5 - y) and accepts when the pocket lies within the
// capture radius of that line. It is a deterministic heuristic shared with
// the client, not a trajectory integration.
func IsPotted(cue, color *Ball, pocket Pocket) bool {
	xd := sub(num(color.PositionX), num(cue.PositionX))
	yd := sub(num(color.PositionY), num(cue.PositionY))
	distSq := squaredDistance(xd, yd)
	if distSq.Cmp(diameterSquared) >= 0 {
		return false
	}

	vx := num(color.VelocityX)
	vy := num(color.VelocityY)

	if distSq.Sign() != 0 {
		magInv := inverseQ36(distSq)
		nx := mul(xd, magInv)
		ny := mul(yd, magInv)

		cvx := num(cue.VelocityX)
		cvy := num(cue.VelocityY)
		rel := neg(add(mul(cvx, nx), mul(cvy, ny)))

		impulseX := shiftDown(mul(rel, nx))
		impulseY := shiftDown(mul(rel, ny))

		cue.VelocityX = toInt64(add(cvx, impulseX))
		cue.VelocityY = toInt64(add(cvy, impulseY))
		vx = sub(vx, impulseX)
		vy = sub(vy, impulseY)
		color.VelocityX = toInt64(vx)
		color.VelocityY = toInt64(vy)
	}

	return capturedBy(num(color.PositionX), num(color.PositionY), vx, vy, pocket)
}

// capturedBy runs the discriminant test of the projected line against the
// pocket's capture circle.
func capturedBy(x, y, vx, vy *big.Int, pocket Pocket) bool {
	dx := sub(mul(mul(x, vx), projectionFactor), x)
	dy := sub(mul(mul(y, vy), projectionFactor), y)

	d := sub(
		mul(dx, sub(y, num(pocket.PositionY))),
		mul(dy, sub(x, num(pocket.PositionX))),
	)
	discriminant := sub(mul(captureRadiusSquared, squaredDistance(dx, dy)), mul(d, d))
	return discriminant.Sign() >= 0
}
