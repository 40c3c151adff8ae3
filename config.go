package main

import "time"

// Protocol limits that both ends must agree on
const (
	MaxFrameSize   = 1 << 20 // largest framed payload the server accepts
	LengthHeader   = 4       // uint32 big-endian payload length
	MaxNameLength  = 32
	ReadPollPeriod = time.Second // read deadline granularity for idle/shutdown checks
)

// Config holds all server and simulation tunables
type Config struct {
	// World geometry
	WorldWidth  float64
	WorldHeight float64
	EdgePadding float64 // entities are clamped this far inside the walls

	// Simulation
	TickInterval time.Duration
	ErrorBackoff time.Duration // sleep after a tick panic before retrying

	// Players
	NewbornRadius  float64
	AdultRadius    float64
	GrowthDuration time.Duration // age at which a player reaches adult radius
	StartVelocity  float64
	EatSizeRatio   float64 // radius ratio required before containment counts as eating

	// Food
	FoodMin    int
	FoodMax    int
	FoodRadius float64
	FoodScore  float64 // score gained per food consumed

	// Spawning
	SpawnAttempts int     // rejection-sampling budget before the unchecked fallback
	SpawnPadding  float64 // extra clearance required around existing players

	// Skills
	Push SkillSpec
	Pull SkillSpec

	// Networking
	MaxConnections    int
	IPWindow          time.Duration // sliding window for per-IP admission
	IPWindowLimit     int           // connections allowed per IP inside the window
	HandshakeTimeout  time.Duration
	IdleTimeout       time.Duration
	FrameTimeout      time.Duration // I/O budget for one frame once its first byte moved
	MaxMessagesPerSec int

	// Gateway
	BroadcastInterval time.Duration // cadence of unsolicited state pushes to ws clients
}

// DefaultConfig returns the standard arena setup
func DefaultConfig() Config {
	return Config{
		WorldWidth:  2000,
		WorldHeight: 2000,
		EdgePadding: 10,

		TickInterval: time.Second / 30,
		ErrorBackoff: time.Second,

		NewbornRadius:  10,
		AdultRadius:    40,
		GrowthDuration: 60 * time.Second,
		StartVelocity:  5,
		EatSizeRatio:   1.15,

		FoodMin:    30,
		FoodMax:    60,
		FoodRadius: 5,
		FoodScore:  1,

		SpawnAttempts: 32,
		SpawnPadding:  40,

		Push: SkillSpec{
			Name:           SkillPush,
			Level:          1,
			BaseRadius:     60,
			RadiusPerLevel: 20,
			Force:          14,
			Duration:       1500 * time.Millisecond,
			SizeThreshold:  1.5,
			MinForce:       0.5,
			ForceScale:     1.0,
		},
		Pull: SkillSpec{
			Name:           SkillPull,
			Level:          1,
			BaseRadius:     80,
			RadiusPerLevel: 20,
			Force:          10,
			Duration:       1500 * time.Millisecond,
			SizeThreshold:  1.5,
			MinForce:       0.5,
			ForceScale:     1.0,
		},

		MaxConnections:    100,
		IPWindow:          60 * time.Second,
		IPWindowLimit:     5,
		HandshakeTimeout:  10 * time.Second,
		IdleTimeout:       300 * time.Second,
		FrameTimeout:      10 * time.Second,
		MaxMessagesPerSec: 50,

		BroadcastInterval: 100 * time.Millisecond,
	}
}
