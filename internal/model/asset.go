package model

import "github.com/shopspring/decimal"

// MinWithdrawBalance is the balance at or below which withdrawal is blocked,
// whatever the asset's precision.
var MinWithdrawBalance = decimal.RequireFromString("0.01")

// Asset is a wallet balance line.
type Asset struct {
	Code    string
	Issuer  string
	Balance decimal.Decimal
}

// CanWithdraw reports whether the balance clears MinWithdrawBalance.
func (a Asset) CanWithdraw() bool {
	return a.Balance.GreaterThan(MinWithdrawBalance)
}
