package withdraw

import (
	"context"
	"testing"

	"github.com/Veraticus/offramp/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_KeepsNewest(t *testing.T) {
	f := NewFeed()
	f.Offer(Snapshot{Version: 3, State: StateWaiting})
	f.Offer(Snapshot{Version: 2, State: StateNone})

	select {
	case <-f.Ready():
	default:
		t.Fatal("feed should be ready after an offer")
	}

	snap, ok := f.Take()
	require.True(t, ok)
	assert.Equal(t, uint64(3), snap.Version)
	assert.Equal(t, StateWaiting, snap.State)

	_, ok = f.Take()
	assert.False(t, ok)
}

func TestFeed_Close(t *testing.T) {
	f := NewFeed()
	f.Close()
	f.Close()

	select {
	case <-f.Done():
	default:
		t.Fatal("done should be closed")
	}
}

func TestFeed_Subscribed(t *testing.T) {
	h := newHarness(t)
	f := NewFeed()
	unsubscribe := h.driver.Subscribe(f.Offer)
	defer unsubscribe()

	h.gateway.GetStatusFn = statuses(model.StatusCompleted)
	require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))
	h.waitState(t, StateSuccess)
	h.settle()

	snap, ok := f.Take()
	require.True(t, ok)
	assert.Equal(t, StateSuccess, snap.State)
	assert.Equal(t, h.driver.Snapshot().Version, snap.Version)
}
