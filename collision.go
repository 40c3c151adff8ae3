package main

import "math"

// CheckCollision checks if two circles overlap
func CheckCollision(x1, y1, r1, x2, y2, r2 float64) bool {
	dx := x2 - x1
	dy := y2 - y1
	dist2 := dx*dx + dy*dy
	radSum := r1 + r2
	return dist2 <= radSum*radSum
}

// CheckContainment checks if the circle at (x2,y2,r2) lies entirely inside
// the circle at (x1,y1,r1). Touching the inner wall still counts.
func CheckContainment(x1, y1, r1, x2, y2, r2 float64) bool {
	if r2 > r1 {
		return false
	}
	return Distance(x1, y1, x2, y2)+r2 <= r1
}

// InSkillRange checks if a target circle is close enough to be affected by
// an area skill of the given effective radius centered on (x1,y1).
func InSkillRange(x1, y1, skillRadius, x2, y2, targetRadius float64) bool {
	dx := x2 - x1
	dy := y2 - y1
	reach := skillRadius + targetRadius
	return dx*dx+dy*dy <= reach*reach
}

// direction returns the unit vector from (x1,y1) toward (x2,y2).
// Coincident points get a fixed arbitrary direction so a zero distance
// still produces a full-strength displacement.
func direction(x1, y1, x2, y2 float64) (float64, float64) {
	dx := x2 - x1
	dy := y2 - y1
	d := math.Sqrt(dx*dx + dy*dy)
	if d == 0 {
		return 1, 0
	}
	return dx / d, dy / d
}
