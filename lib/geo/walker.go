// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/lodestar-chat/lodestar/lib/clock"
)

// WalkerConfig parameterizes a simulated walk.
type WalkerConfig struct {
	// Start is the initial position.
	Start Position

	// Interval is how often the walk produces a new fix. Defaults
	// to 2 seconds.
	Interval time.Duration

	// StepDegrees is the maximum coordinate delta per fix. Defaults
	// to 0.0001 (roughly 11 meters of latitude).
	StepDegrees float64

	// Seed seeds the walk's random source so runs are reproducible.
	Seed int64

	// Clock drives the fix interval. Defaults to clock.Real().
	Clock clock.Clock
}

// Walker is a deterministic Locator that wanders from a starting
// coordinate. It backs the location-sim command and any test that
// wants a self-driving position source instead of scripted fixes.
type Walker struct {
	interval time.Duration
	step     float64
	clock    clock.Clock

	mu      sync.Mutex
	rng     *rand.Rand
	current Position
}

// NewWalker builds a Walker from cfg, applying defaults for zero
// fields.
func NewWalker(cfg WalkerConfig) *Walker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.StepDegrees <= 0 {
		cfg.StepDegrees = 0.0001
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Start.Accuracy == 0 {
		cfg.Start.Accuracy = 10
	}
	return &Walker{
		interval: cfg.Interval,
		step:     cfg.StepDegrees,
		clock:    cfg.Clock,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		current:  cfg.Start,
	}
}

// Watch emits a fix every interval until stopped. The error callback
// is never invoked — the walk cannot fail.
func (w *Walker) Watch(onPosition func(Position), onError func(error)) (func(), error) {
	ticker := w.clock.NewTicker(w.interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				onPosition(w.advance())
			}
		}
	}()

	stop := func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
	return stop, nil
}

// Current returns the walk's present position without advancing it.
func (w *Walker) Current(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	position := w.current
	position.Timestamp = w.clock.Now()
	return position, nil
}

// advance takes one random step and returns the new position.
func (w *Walker) advance() Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current.Latitude += (w.rng.Float64()*2 - 1) * w.step
	w.current.Longitude += (w.rng.Float64()*2 - 1) * w.step
	w.current.Timestamp = w.clock.Now()
	return w.current
}
