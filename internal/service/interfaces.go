// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/offramp/internal/model"
	"github.com/shopspring/decimal"
)

// ActionFilter defines filtering options for withdrawal history queries.
type ActionFilter struct {
	Since     *time.Time
	AssetCode string
	Outcomes  []model.Outcome
	Limit     int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Withdrawal operations
	SaveAction(ctx context.Context, action model.WithdrawalAction) error
	UpdateStatus(ctx context.Context, transactionID string, status model.TransactionStatus) error
	SaveDetail(ctx context.Context, transactionID string, detail model.TransactionDetail) error
	SetOutcome(ctx context.Context, transactionID string, outcome model.Outcome) error
	GetAction(ctx context.Context, transactionID string) (*model.WithdrawalRecord, error)
	ListActions(ctx context.Context, filter ActionFilter) ([]model.WithdrawalRecord, error)
	ResumableActions(ctx context.Context) ([]model.WithdrawalRecord, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// WithdrawalSummary shows the totals of a set of withdrawals.
type WithdrawalSummary struct {
	ByAsset   map[string]AssetSummary
	Completed int
	Failed    int
	Pending   int // pending or resumable
	Dismissed int
}

// AssetSummary contains aggregated amounts of completed withdrawals for one asset.
type AssetSummary struct {
	AmountIn  decimal.Decimal
	AmountFee decimal.Decimal
	AmountOut decimal.Decimal
	Count     int
}

// Summarize totals records by outcome. Amounts only count completed withdrawals.
func Summarize(records []model.WithdrawalRecord) WithdrawalSummary {
	summary := WithdrawalSummary{ByAsset: make(map[string]AssetSummary)}
	for _, r := range records {
		switch r.Outcome {
		case model.OutcomeCompleted:
			summary.Completed++
			a := summary.ByAsset[r.Action.AssetCode]
			a.Count++
			a.AmountIn = a.AmountIn.Add(r.Detail.AmountIn)
			a.AmountFee = a.AmountFee.Add(r.Detail.AmountFee)
			a.AmountOut = a.AmountOut.Add(r.Detail.AmountOut)
			summary.ByAsset[r.Action.AssetCode] = a
		case model.OutcomeFailed:
			summary.Failed++
		case model.OutcomeDismissed:
			summary.Dismissed++
		default:
			summary.Pending++
		}
	}
	return summary
}
