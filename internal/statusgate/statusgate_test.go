// Copyright 2025 Blockscout

package statusgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	transitions []Transition
}

func (p *fakePublisher) Publish(t Transition) {
	p.transitions = append(p.transitions, t)
}

func TestGate_StartsCatchingUpWhenFarBehind(t *testing.T) {
	g := New(10)
	phase := g.Evaluate("stream-a", 0, 1000)
	assert.Equal(t, PhaseCatchingUp, phase)
}

func TestGate_RealtimeWhenWithinThreshold(t *testing.T) {
	g := New(10)
	phase := g.Evaluate("stream-a", 995, 1000)
	assert.Equal(t, PhaseRealtime, phase)
}

func TestGate_PublishesOnlyOnTransition(t *testing.T) {
	pub := &fakePublisher{}
	g := New(10, WithPublisher(pub))

	g.Evaluate("stream-a", 0, 1000) // catching_up, first observation, no transition fired
	assert.Empty(t, pub.transitions)

	g.Evaluate("stream-a", 0, 1000) // still catching_up, no change
	assert.Empty(t, pub.transitions)

	g.Evaluate("stream-a", 995, 1000) // crosses into realtime
	require.Len(t, pub.transitions, 1)
	assert.Equal(t, PhaseCatchingUp, pub.transitions[0].From)
	assert.Equal(t, PhaseRealtime, pub.transitions[0].To)

	g.Evaluate("stream-a", 996, 1000) // still realtime, no further event
	assert.Len(t, pub.transitions, 1)
}

func TestGate_PhaseDefaultsToCatchingUpWhenUnknown(t *testing.T) {
	g := New(10)
	assert.Equal(t, PhaseCatchingUp, g.Phase("never-seen"))
}
