package main

import (
	"context"
	"log"
	"time"
)

// Run drives the simulation at the configured tick rate until ctx is done.
// A panicking tick is logged and followed by a backoff sleep; the loop
// itself survives every tick failure.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !w.safeStep(time.Now()) {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(w.cfg.ErrorBackoff):
				}
			}
		}
	}
}

// safeStep runs one tick, converting a panic into a logged failure
func (w *World) safeStep(now time.Time) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("game: tick panic: %v", r)
			ok = false
		}
	}()
	w.Step(now)
	return true
}

// Step advances the world one tick. Order is fixed: growth, skills,
// food collisions, player eating, food replenish.
func (w *World) Step(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tick++
	for _, p := range w.players {
		p.UpdateGrowth(now, w.cfg)
	}
	w.applySkillsLocked(now)
	w.consumeFoodLocked()
	w.resolveEatingLocked(now)
	w.replenishFoodLocked()
}

// applySkillsLocked expires finished activations and displaces everything
// inside each still-active skill area
func (w *World) applySkillsLocked(now time.Time) {
	for _, c := range w.players {
		c.Push.Update(now)
		c.Pull.Update(now)
		if c.Push.Active {
			w.applyPushLocked(c)
		}
		if c.Pull.Active {
			w.applyPullLocked(c)
		}
	}
}

// applyPushLocked shoves everything in the caster's push area outward.
// A target over the size threshold is too big to shove; the recoil
// displaces the caster away from it instead.
func (w *World) applyPushLocked(c *Player) {
	spec := w.cfg.Push
	reach := spec.EffectiveRadius(c.Radius)

	for _, t := range w.players {
		if t == c {
			continue
		}
		if !InSkillRange(c.X, c.Y, reach, t.X, t.Y, t.Radius) {
			continue
		}
		force := spec.ForceAt(Distance(c.X, c.Y, t.X, t.Y), reach)
		dirX, dirY := direction(c.X, c.Y, t.X, t.Y)
		if t.Radius > c.Radius*spec.SizeThreshold {
			c.X, c.Y = clampToWorld(c.X-dirX*force, c.Y-dirY*force, c.Radius, w.cfg)
			continue
		}
		t.X, t.Y = clampToWorld(t.X+dirX*force, t.Y+dirY*force, t.Radius, w.cfg)
	}

	for _, f := range w.foods {
		if !InSkillRange(c.X, c.Y, reach, f.X, f.Y, f.Radius) {
			continue
		}
		force := spec.ForceAt(Distance(c.X, c.Y, f.X, f.Y), reach)
		dirX, dirY := direction(c.X, c.Y, f.X, f.Y)
		f.X, f.Y = clampToWorld(f.X+dirX*force, f.Y+dirY*force, f.Radius, w.cfg)
	}
}

// applyPullLocked drags everything in the caster's pull area toward it.
// Targets over the size threshold are immune, and the caster is never
// displaced by its own pull.
func (w *World) applyPullLocked(c *Player) {
	spec := w.cfg.Pull
	reach := spec.EffectiveRadius(c.Radius)

	for _, t := range w.players {
		if t == c {
			continue
		}
		if t.Radius > c.Radius*spec.SizeThreshold {
			continue
		}
		if !InSkillRange(c.X, c.Y, reach, t.X, t.Y, t.Radius) {
			continue
		}
		force := spec.ForceAt(Distance(c.X, c.Y, t.X, t.Y), reach)
		dirX, dirY := direction(t.X, t.Y, c.X, c.Y)
		t.X, t.Y = clampToWorld(t.X+dirX*force, t.Y+dirY*force, t.Radius, w.cfg)
	}

	for _, f := range w.foods {
		if f.Radius > c.Radius*spec.SizeThreshold {
			continue
		}
		if !InSkillRange(c.X, c.Y, reach, f.X, f.Y, f.Radius) {
			continue
		}
		force := spec.ForceAt(Distance(c.X, c.Y, f.X, f.Y), reach)
		dirX, dirY := direction(f.X, f.Y, c.X, c.Y)
		f.X, f.Y = clampToWorld(f.X+dirX*force, f.Y+dirY*force, f.Radius, w.cfg)
	}
}

// consumeFoodLocked feeds overlapping food to players, removing all eaten
// balls in one batch so later checks never see stale entries
func (w *World) consumeFoodLocked() {
	if len(w.foods) == 0 || len(w.players) == 0 {
		return
	}
	kept := w.foods[:0]
	for _, f := range w.foods {
		eaten := false
		for _, p := range w.players {
			if CheckCollision(p.X, p.Y, p.Radius, f.X, f.Y, f.Radius) {
				p.Score += w.cfg.FoodScore
				eaten = true
				break
			}
		}
		if !eaten {
			kept = append(kept, f)
		}
	}
	w.foods = kept
}

// resolveEatingLocked settles player-vs-player eating. The larger of a
// pair eats the smaller only when it both exceeds the size ratio and
// fully contains it; the loser keeps its connection and respawns newborn.
func (w *World) resolveEatingLocked(now time.Time) {
	ps := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		ps = append(ps, p)
	}
	for i := 0; i < len(ps); i++ {
		for j := i + 1; j < len(ps); j++ {
			big, small := ps[i], ps[j]
			if small.Radius > big.Radius {
				big, small = small, big
			}
			if small.Radius <= 0 || big.Radius/small.Radius <= w.cfg.EatSizeRatio {
				continue
			}
			if !CheckContainment(big.X, big.Y, big.Radius, small.X, small.Y, small.Radius) {
				continue
			}
			taken := small.Score
			big.Eat(small)
			x, y := w.spawnLocationLocked(w.cfg.NewbornRadius)
			small.Reset(x, y, now, w.cfg)
			log.Printf("game: %s ate %s (+%g)", big.Name, small.Name, taken)
			w.recordLocked(Event{Type: EventEaten, PlayerID: big.ID, Name: big.Name, Detail: small.Name, Score: taken})
		}
	}
}

// replenishFoodLocked tops the population back up to the minimum, bounded
// by the max-min headroom per tick and never past the maximum
func (w *World) replenishFoodLocked() {
	deficit := w.cfg.FoodMin - len(w.foods)
	if deficit <= 0 {
		return
	}
	if headroom := w.cfg.FoodMax - w.cfg.FoodMin + 1; deficit > headroom {
		deficit = headroom
	}
	for i := 0; i < deficit; i++ {
		w.foods = append(w.foods, NewFood(w.cfg))
	}
}
