package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalAction is the single withdrawal in flight.
type WithdrawalAction struct {
	CreatedAt      time.Time
	TransactionID  string            // Assigned by the anchor, stable for the action's lifetime
	AssetCode      string            // Immutable once created
	InteractiveURL string            // Diagnostics only, never used for status
	Status         TransactionStatus // Last known status, empty until the first successful poll
}

// Validate checks the identifying fields of the action.
func (a *WithdrawalAction) Validate() error {
	if strings.TrimSpace(a.TransactionID) == "" {
		return fmt.Errorf("withdrawal action: transaction id is required")
	}
	if strings.TrimSpace(a.AssetCode) == "" {
		return fmt.Errorf("withdrawal action: asset code is required")
	}
	return nil
}

// TransactionDetail is one status record returned by the anchor.
type TransactionDetail struct {
	Status    TransactionStatus
	Message   string
	AmountIn  decimal.Decimal
	AmountFee decimal.Decimal
	AmountOut decimal.Decimal
}

// ParseAmount parses an anchor decimal string. Empty strings are zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// Outcome is the persisted lifecycle marker of a withdrawal.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeResumable Outcome = "resumable"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeDismissed Outcome = "dismissed"
)

// IsValid reports whether o is one of the known outcomes.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomePending, OutcomeResumable, OutcomeCompleted, OutcomeFailed, OutcomeDismissed:
		return true
	}
	return false
}

// WithdrawalRecord is a stored withdrawal with its latest known detail.
type WithdrawalRecord struct {
	UpdatedAt time.Time
	Action    WithdrawalAction
	Outcome   Outcome
	Detail    TransactionDetail
}
