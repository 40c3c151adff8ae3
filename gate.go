package main

import (
	"sync"
	"time"
)

// GateResult is the outcome of an admission check
type GateResult int

const (
	GateOK GateResult = iota
	GateRateLimited
	GateFull
)

// Gate enforces the global connection cap and the per-IP sliding window.
// TCP sessions and websocket sessions pass through the same gate.
type Gate struct {
	mu     sync.Mutex
	limit  int // concurrent connections allowed in total
	perIP  int // admissions allowed per IP inside the window
	window time.Duration
	conns  int
	ipLog  map[string][]time.Time
}

// NewGate creates a gate from the networking limits in cfg
func NewGate(cfg Config) *Gate {
	return &Gate{
		limit:  cfg.MaxConnections,
		perIP:  cfg.IPWindowLimit,
		window: cfg.IPWindow,
		ipLog:  make(map[string][]time.Time),
	}
}

// Admit reserves a connection slot for ip. Window entries older than the
// window are pruned first; the attempt itself is logged either way, so a
// hammering IP keeps burning its budget.
func (g *Gate) Admit(ip string, now time.Time) GateResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	cut := now.Add(-g.window)
	times := g.ipLog[ip][:0]
	for _, t := range g.ipLog[ip] {
		if t.After(cut) {
			times = append(times, t)
		}
	}
	times = append(times, now)
	g.ipLog[ip] = times

	if len(times) > g.perIP {
		return GateRateLimited
	}
	if g.conns >= g.limit {
		return GateFull
	}
	g.conns++
	return GateOK
}

// Release frees one admitted slot
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conns > 0 {
		g.conns--
	}
}

// Conns returns the number of admitted connections
func (g *Gate) Conns() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conns
}
