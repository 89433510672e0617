// Copyright 2025 Blockscout

package statuspublish

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockscout/indexing-core/internal/statusgate"
)

func TestNewClient_DisabledIsNoOp(t *testing.T) {
	client, err := NewClient(context.Background(), ClientConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, client.IsEnabled())
}

func TestNewClient_EnabledRequiresProjectID(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{Enabled: true})
	assert.Error(t, err)
}

func TestBroadcaster_PublishIsNoOpWhenDisabled(t *testing.T) {
	client, err := NewClient(context.Background(), ClientConfig{Enabled: false})
	require.NoError(t, err)
	b := NewBroadcaster(client)

	// Must not panic or block despite no real Firestore connection.
	b.Publish(statusgate.Transition{StreamName: "stream-a", From: statusgate.PhaseCatchingUp, To: statusgate.PhaseRealtime, Behind: 3})
}
