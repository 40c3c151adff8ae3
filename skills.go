package main

import (
	"math"
	"time"
)

// Skill names as they appear on the wire
const (
	SkillPush = "push"
	SkillPull = "pull"
)

// SkillSpec describes one area skill variant
type SkillSpec struct {
	Name           string
	Level          int
	BaseRadius     float64 // area radius at level 1
	RadiusPerLevel float64
	Force          float64       // displacement per tick at distance 0
	Duration       time.Duration // active window per activation
	SizeThreshold  float64       // radius ratio past which the larger side stops being movable
	MinForce       float64       // falloff floor inside the area
	ForceScale     float64       // global multiplier on the computed force
}

// Radius returns the skill's base area radius at its level
func (s SkillSpec) Radius() float64 {
	if s.Level < 1 {
		return s.BaseRadius
	}
	return s.BaseRadius + float64(s.Level-1)*s.RadiusPerLevel
}

// EffectiveRadius is the reach of the skill for a caster of the given radius
func (s SkillSpec) EffectiveRadius(casterRadius float64) float64 {
	return s.Radius() + casterRadius
}

// ForceAt returns the displacement magnitude for a target at the given
// distance: full force at distance 0, decaying linearly to zero at the
// effective radius, floored at MinForce anywhere inside the area.
func (s SkillSpec) ForceAt(dist, effectiveRadius float64) float64 {
	if effectiveRadius <= 0 {
		return 0
	}
	f := s.Force * s.ForceScale * (1 - dist/effectiveRadius)
	return math.Max(f, s.MinForce)
}

// SkillState tracks one player's activation of a skill
type SkillState struct {
	Active  bool
	Expires time.Time
}

// Activate arms the skill until now+d; reactivating extends the window
func (st *SkillState) Activate(now time.Time, d time.Duration) {
	st.Active = true
	st.Expires = now.Add(d)
}

// Update clears the skill once its window has passed
func (st *SkillState) Update(now time.Time) {
	if st.Active && now.After(st.Expires) {
		st.Active = false
	}
}
