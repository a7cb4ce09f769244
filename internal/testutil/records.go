package testutil

import (
	"fmt"
	"time"

	"github.com/Veraticus/offramp/internal/model"
	"github.com/shopspring/decimal"
)

// RecordBuilder provides a fluent interface for constructing withdrawal
// history. Creation times step forward one minute per record from Base.
type RecordBuilder struct {
	Base    time.Time
	records []model.WithdrawalRecord
}

// NewRecordBuilder creates a builder anchored at a fixed time so tests are
// reproducible.
func NewRecordBuilder() *RecordBuilder {
	return &RecordBuilder{Base: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// With adds a record in an arbitrary state.
func (b *RecordBuilder) With(id, asset string, status model.TransactionStatus, outcome model.Outcome, detail model.TransactionDetail) *RecordBuilder {
	detail.Status = status
	b.records = append(b.records, model.WithdrawalRecord{
		Action: model.WithdrawalAction{
			CreatedAt:      b.Base.Add(time.Duration(len(b.records)) * time.Minute),
			TransactionID:  id,
			AssetCode:      asset,
			InteractiveURL: fmt.Sprintf("https://anchor.example.com/withdraw?id=%s", id),
			Status:         status,
		},
		Outcome: outcome,
		Detail:  detail,
	})
	return b
}

// Completed adds a finished withdrawal paying out amountOut.
func (b *RecordBuilder) Completed(id, asset, amountOut string) *RecordBuilder {
	out := decimal.RequireFromString(amountOut)
	fee := decimal.RequireFromString("1.50")
	return b.With(id, asset, model.StatusCompleted, model.OutcomeCompleted, model.TransactionDetail{
		AmountIn:  out.Add(fee),
		AmountFee: fee,
		AmountOut: out,
	})
}

// Resumable adds a withdrawal whose waiting view was closed.
func (b *RecordBuilder) Resumable(id, asset string) *RecordBuilder {
	return b.With(id, asset, model.StatusPendingAnchor, model.OutcomeResumable, model.TransactionDetail{})
}

// Failed adds a withdrawal the anchor rejected.
func (b *RecordBuilder) Failed(id, asset, message string) *RecordBuilder {
	return b.With(id, asset, model.StatusError, model.OutcomeFailed, model.TransactionDetail{Message: message})
}

// Build returns the accumulated records.
func (b *RecordBuilder) Build() []model.WithdrawalRecord {
	return append([]model.WithdrawalRecord(nil), b.records...)
}
