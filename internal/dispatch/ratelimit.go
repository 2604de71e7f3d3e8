package dispatch

import (
	"context"

	"golang.org/x/time/rate"
)

// SpawnLimiter bounds how fast the daemon launches new agent processes,
// independent of the bounded-parallel cap on how many run concurrently —
// a burst of simultaneously-ready tasks should still spawn smoothly rather
// than hammer the executor backend (docker daemon, shell fork cost) all at
// once.
type SpawnLimiter struct {
	limiter *rate.Limiter
}

// NewSpawnLimiter allows spawnsPerSecond steady-state, permitting an
// initial burst of burst spawns before throttling kicks in.
func NewSpawnLimiter(spawnsPerSecond float64, burst int) *SpawnLimiter {
	return &SpawnLimiter{limiter: rate.NewLimiter(rate.Limit(spawnsPerSecond), burst)}
}

// Wait blocks until a spawn token is available or ctx is cancelled.
func (s *SpawnLimiter) Wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// Allow reports whether a spawn token is available right now, consuming one
// if so, without blocking. The daemon's tick loop calls Wait, not Allow.
func (s *SpawnLimiter) Allow() bool {
	return s.limiter.Allow()
}
