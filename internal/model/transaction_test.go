package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsset_CanWithdraw(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		want    bool
	}{
		{"zero", "0", false},
		{"below threshold", "0.009", false},
		{"exactly threshold", "0.01", false},
		{"threshold with trailing precision", "0.0100000", false},
		{"just above threshold", "0.0100001", true},
		{"whole units", "10", true},
		{"negative", "-5", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Asset{Code: "USDC", Balance: decimal.RequireFromString(tt.balance)}
			assert.Equal(t, tt.want, a.CanWithdraw())
		})
	}
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("100.50")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("100.5")))

	d, err = ParseAmount("  ")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseAmount("ten")
	assert.Error(t, err)
}

func TestWithdrawalAction_Validate(t *testing.T) {
	assert.NoError(t, (&WithdrawalAction{TransactionID: "tx-1", AssetCode: "USDC"}).Validate())
	assert.Error(t, (&WithdrawalAction{AssetCode: "USDC"}).Validate())
	assert.Error(t, (&WithdrawalAction{TransactionID: "tx-1"}).Validate())
}

func TestOutcome_IsValid(t *testing.T) {
	assert.True(t, OutcomeResumable.IsValid())
	assert.False(t, Outcome("archived").IsValid())
}
