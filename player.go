package main

import "time"

// Player is a connected, named ball in the arena
type Player struct {
	ID    string
	Name  string
	X, Y  float64
	Color Color

	Score    float64
	Velocity float64   // movement units per move command
	Born     time.Time // age is measured from here; reset on death
	Radius   float64   // derived from age, updated each tick

	Push SkillState
	Pull SkillState
}

// NewPlayer creates a newborn player at the given spawn point
func NewPlayer(id, name string, x, y float64, now time.Time, cfg Config) *Player {
	return &Player{
		ID:       id,
		Name:     name,
		X:        x,
		Y:        y,
		Color:    randColor(),
		Velocity: cfg.StartVelocity,
		Born:     now,
		Radius:   cfg.NewbornRadius,
	}
}

// Age returns seconds lived since birth or the last death
func (p *Player) Age(now time.Time) float64 {
	return now.Sub(p.Born).Seconds()
}

// Growth returns the fraction of the way to adult size, in [0, 1]
func (p *Player) Growth(now time.Time, window time.Duration) float64 {
	if window <= 0 {
		return 1
	}
	return Clamp(now.Sub(p.Born).Seconds()/window.Seconds(), 0, 1)
}

// UpdateGrowth recomputes the age-derived radius
func (p *Player) UpdateGrowth(now time.Time, cfg Config) {
	frac := p.Growth(now, cfg.GrowthDuration)
	p.Radius = cfg.NewbornRadius + (cfg.AdultRadius-cfg.NewbornRadius)*frac
}

// Move applies one movement command scaled by the player's velocity.
// The direction vector is taken as sent; only the resulting position
// is constrained, to the padded world bounds.
func (p *Player) Move(dx, dy float64, cfg Config) {
	p.X, p.Y = clampToWorld(p.X+dx*p.Velocity, p.Y+dy*p.Velocity, p.Radius, cfg)
}

// Eat transfers the victim's entire score to p
func (p *Player) Eat(victim *Player) {
	p.Score += victim.Score
	victim.Score = 0
}

// Reset rebirths the player at (x, y): score gone, age restarted
func (p *Player) Reset(x, y float64, now time.Time, cfg Config) {
	p.Score = 0
	p.Born = now
	p.Radius = cfg.NewbornRadius
	p.X = x
	p.Y = y
	p.Push = SkillState{}
	p.Pull = SkillState{}
}

// SkillByName returns the activation state for the named skill, nil if unknown
func (p *Player) SkillByName(name string) *SkillState {
	switch name {
	case SkillPush:
		return &p.Push
	case SkillPull:
		return &p.Pull
	}
	return nil
}

// ToState converts to protocol state
func (p *Player) ToState(now time.Time, cfg Config) PlayerState {
	return PlayerState{
		ID:               p.ID,
		Name:             p.Name,
		X:                p.X,
		Y:                p.Y,
		Radius:           p.Radius,
		Score:            p.Score,
		Color:            p.Color,
		Age:              p.Age(now),
		GrowthPercentage: p.Growth(now, cfg.GrowthDuration) * 100,
		PushActive:       p.Push.Active,
		PushRadius:       cfg.Push.EffectiveRadius(p.Radius),
		PullActive:       p.Pull.Active,
		PullRadius:       cfg.Pull.EffectiveRadius(p.Radius),
	}
}
