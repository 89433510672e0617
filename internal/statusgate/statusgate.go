// Copyright 2025 Blockscout
//
// Package statusgate implements the indexing-status gate: the
// cross-cutting classifier that decides whether a stream is still
// catching up or has reached realtime, and raises an event on every
// transition so downstream consumers (a status page, an alert) can
// react without polling checkpoints themselves.
package statusgate

import (
	"log"
	"sync"
)

// Phase is the coarse lifecycle state of one stream.
type Phase string

const (
	PhaseCatchingUp Phase = "catching_up"
	PhaseRealtime   Phase = "realtime"
)

// Transition is one observed phase change for a stream.
type Transition struct {
	StreamName string
	From       Phase
	To         Phase
	Behind     uint64
}

// Publisher is notified of every phase transition (implemented by
// internal/statuspublish for the Firestore broadcast).
type Publisher interface {
	Publish(Transition)
}

// Gate tracks one phase per stream name and emits a Transition to its
// Publisher whenever Evaluate's classification changes.
// behindThreshold is the cutover point, expressed as a height delta
// rather than a fixed block count.
type Gate struct {
	mu              sync.Mutex
	phases          map[string]Phase
	behindThreshold uint64
	publisher       Publisher
	logger          *log.Logger
}

// Option configures a Gate at construction time.
type Option func(*Gate)

func WithLogger(logger *log.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

func WithPublisher(p Publisher) Option {
	return func(g *Gate) { g.publisher = p }
}

func New(behindThreshold uint64, opts ...Option) *Gate {
	g := &Gate{
		phases:          make(map[string]Phase),
		behindThreshold: behindThreshold,
		logger:          log.New(log.Writer(), "[StatusGate] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate classifies a stream given its current forward cursor and
// the provider's observed tip, and returns the resulting phase. A
// stream whose gap from the tip exceeds behindThreshold is still
// catching up; otherwise it's realtime.
func (g *Gate) Evaluate(streamName string, forwardCursor, tip uint64) Phase {
	var behind uint64
	if tip > forwardCursor {
		behind = tip - forwardCursor
	}

	phase := PhaseRealtime
	if behind > g.behindThreshold {
		phase = PhaseCatchingUp
	}

	g.mu.Lock()
	prev, known := g.phases[streamName]
	g.phases[streamName] = phase
	g.mu.Unlock()

	if known && prev != phase {
		g.logger.Printf("stream %s transitioned %s -> %s (behind=%d)", streamName, prev, phase, behind)
		if g.publisher != nil {
			g.publisher.Publish(Transition{StreamName: streamName, From: prev, To: phase, Behind: behind})
		}
	}
	return phase
}

// Phase returns the last-evaluated phase for a stream, or
// PhaseCatchingUp (the conservative default) if it has never been
// evaluated.
func (g *Gate) Phase(streamName string) Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	phase, ok := g.phases[streamName]
	if !ok {
		return PhaseCatchingUp
	}
	return phase
}
