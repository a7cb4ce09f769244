package cli

import (
	"bytes"
	"testing"

	"github.com/Veraticus/offramp/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHistory(t *testing.T) {
	records := testutil.NewRecordBuilder().
		Completed("tx-1", "USDC", "100").
		Resumable("tx-2", "USDC").
		Failed("tx-3", "EURC", "rejected").
		Build()

	var out bytes.Buffer
	require.NoError(t, RenderHistory(&out, records))

	text := out.String()
	for _, want := range []string{"TRANSACTION", "tx-1", "tx-2", "tx-3", "completed", "resumable", "failed", "100"} {
		assert.Contains(t, text, want)
	}
	assert.Contains(t, text, "withdrawn")
	assert.Contains(t, text, "USDC")
}

func TestRenderHistory_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderHistory(&out, nil))
	assert.Contains(t, out.String(), "No withdrawals yet.")
}
