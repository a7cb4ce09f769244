// Package anchor talks to the wallet backend's anchor endpoints.
package anchor

import (
	"context"
	"fmt"

	"github.com/Veraticus/offramp/internal/model"
)

// Interactive is the anchor's answer to a withdrawal request.
type Interactive struct {
	ID   string
	URL  string
	Type string
}

// Gateway is the contract the withdrawal driver relies on. It holds no state.
type Gateway interface {
	// OpenInteractive starts a withdrawal. Failures wrap common.ErrAnchorConnectFailed.
	OpenInteractive(ctx context.Context, assetCode string) (Interactive, error)
	// GetStatus fetches the current transaction record. A non-terminal
	// status is not an error; failures wrap common.ErrPollFailed.
	GetStatus(ctx context.Context, transactionID, assetCode string) (model.TransactionDetail, error)
	// ConfirmWithdraw confirms a withdrawal that is waiting for the user's funds.
	ConfirmWithdraw(ctx context.Context, transactionID, assetCode string) error
}

// BalanceFetcher lists the wallet's balances.
type BalanceFetcher interface {
	Balances(ctx context.Context) ([]model.Asset, error)
}

// Error is a non-2xx answer from the backend.
type Error struct {
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("anchor API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("anchor API error: status %d: %s", e.StatusCode, e.Message)
}
