package components

import (
	"testing"

	"github.com/Veraticus/offramp/internal/model"
	tuitest "github.com/Veraticus/offramp/internal/tui/testing"
	"github.com/Veraticus/offramp/internal/tui/themes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitingModel_View(t *testing.T) {
	tests := []struct {
		action   *model.WithdrawalAction
		name     string
		label    string
		want     []string
		notWant  []string
		failures int
	}{
		{
			name:    "no action yet",
			label:   "Opening the anchor",
			want:    []string{"Opening the anchor"},
			notWant: []string{"Transaction"},
		},
		{
			name:   "unknown status",
			action: &model.WithdrawalAction{TransactionID: "tx-1", AssetCode: "USDC"},
			want:   []string{"Waiting for the anchor", "tx-1", "USDC", "unknown"},
		},
		{
			name:     "known status with failures",
			action:   &model.WithdrawalAction{TransactionID: "tx-2", AssetCode: "EURC", Status: model.StatusPendingAnchor},
			failures: 2,
			want:     []string{"tx-2", "pending_anchor", "2 attempts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewWaiting(themes.Default)
			m.SetAction(tt.action, tt.failures)

			view := tuitest.StripANSI(m.View(tt.label))
			assert.True(t, tuitest.ContainsInOrder(view, tt.want...), view)
			for _, s := range tt.notWant {
				assert.NotContains(t, view, s)
			}
		})
	}
}

func TestWaitingModel_Tick(t *testing.T) {
	m := NewWaiting(themes.Default)
	tick := m.Tick()
	require.NotNil(t, tick)

	m2, cmd := m.Update(tick())
	assert.NotNil(t, cmd)
	assert.NotNil(t, m2.spinner)

	_, cmd = m.Update(tuitest.KeyPress("x"))
	assert.Nil(t, cmd)
}
