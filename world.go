package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder receives lifecycle events. Implementations must not block;
// the world calls it while holding its lock.
type Recorder interface {
	Record(ev Event)
}

// World holds all game state. Every mutation happens under mu, which the
// simulation tick shares with the session handlers; snapshots take the
// read side.
type World struct {
	mu      sync.RWMutex
	cfg     Config
	players map[string]*Player
	foods   []*Food
	tick    uint64
	started bool      // armed by the first successful registration
	startAt time.Time // zero until started
	rec     Recorder
}

// NewWorld creates a world seeded with the minimum food population
func NewWorld(cfg Config, rec Recorder) *World {
	w := &World{
		cfg:     cfg,
		players: make(map[string]*Player),
		rec:     rec,
	}
	w.foods = make([]*Food, 0, cfg.FoodMax)
	for i := 0; i < cfg.FoodMin; i++ {
		w.foods = append(w.foods, NewFood(cfg))
	}
	return w
}

// AddPlayer validates and registers a new player under one lock hold, so
// two concurrent connects with the same name cannot both win. The game
// clock arms on the first registration.
func (w *World) AddPlayer(name string) (*Player, error) {
	if len(name) == 0 || len(name) > MaxNameLength {
		return nil, &ValidationError{Reason: fmt.Sprintf("name length must be 1-%d", MaxNameLength)}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, p := range w.players {
		if p.Name == name { // case-sensitive on purpose
			return nil, ErrUsernameTaken
		}
	}

	now := time.Now()
	if !w.started {
		w.started = true
		w.startAt = now
	}

	x, y := w.spawnLocationLocked(w.cfg.NewbornRadius)
	p := NewPlayer(uuid.NewString(), name, x, y, now, w.cfg)
	w.players[p.ID] = p
	w.recordLocked(Event{Type: EventJoin, PlayerID: p.ID, Name: p.Name})
	return p, nil
}

// RemovePlayer deregisters a player; unknown ids are a no-op
func (w *World) RemovePlayer(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return
	}
	delete(w.players, id)
	w.recordLocked(Event{Type: EventLeave, PlayerID: id, Name: p.Name, Score: p.Score})
}

// MovePlayer applies one movement command for the player
func (w *World) MovePlayer(id string, dx, dy float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.players[id]; ok {
		p.Move(dx, dy, w.cfg)
	}
}

// ActivateSkill arms the named skill for its configured duration.
// Unknown skill names report false and change nothing.
func (w *World) ActivateSkill(id, name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[id]
	if !ok {
		return false
	}
	st := p.SkillByName(name)
	if st == nil {
		return false
	}
	d := w.cfg.Push.Duration
	if name == SkillPull {
		d = w.cfg.Pull.Duration
	}
	st.Activate(time.Now(), d)
	w.recordLocked(Event{Type: EventSkill, PlayerID: id, Name: p.Name, Detail: name})
	return true
}

// Snapshot returns a full copy of the visible world state
func (w *World) Snapshot() GameStatePacket {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked(time.Now())
}

func (w *World) snapshotLocked(now time.Time) GameStatePacket {
	st := GameStatePacket{
		Balls:    make([]BallState, 0, len(w.foods)),
		Players:  make(map[string]PlayerState, len(w.players)),
		GameTime: w.gameTimeLocked(now),
	}
	for _, f := range w.foods {
		st.Balls = append(st.Balls, f.ToState())
	}
	for id, p := range w.players {
		st.Players[id] = p.ToState(now, w.cfg)
	}
	return st
}

// GameTime returns seconds since the first registration, 0 before it
func (w *World) GameTime() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gameTimeLocked(time.Now())
}

func (w *World) gameTimeLocked(now time.Time) float64 {
	if !w.started {
		return 0
	}
	return now.Sub(w.startAt).Seconds()
}

// PlayerCount returns the number of registered players
func (w *World) PlayerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.players)
}

// FoodCount returns the current food population
func (w *World) FoodCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.foods)
}

// Tick returns the number of completed simulation steps
func (w *World) Tick() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tick
}

// spawnLocationLocked picks a spot whose distance to every player exceeds
// that player's radius plus the spawn padding, falling back to an unchecked
// random position once the attempt budget runs out.
func (w *World) spawnLocationLocked(r float64) (float64, float64) {
	loX := w.cfg.EdgePadding + r
	hiX := w.cfg.WorldWidth - w.cfg.EdgePadding - r
	loY := w.cfg.EdgePadding + r
	hiY := w.cfg.WorldHeight - w.cfg.EdgePadding - r

	for i := 0; i < w.cfg.SpawnAttempts; i++ {
		x := randRange(loX, hiX)
		y := randRange(loY, hiY)
		clear := true
		for _, p := range w.players {
			if Distance(x, y, p.X, p.Y) <= p.Radius+w.cfg.SpawnPadding {
				clear = false
				break
			}
		}
		if clear {
			return x, y
		}
	}
	return randRange(loX, hiX), randRange(loY, hiY)
}

func (w *World) recordLocked(ev Event) {
	if w.rec != nil {
		w.rec.Record(ev)
	}
}
