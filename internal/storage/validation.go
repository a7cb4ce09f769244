// Package storage provides the data persistence layer for the offramp application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/service"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrInvalidAction   = errors.New("invalid withdrawal action")
	ErrInvalidStatus   = errors.New("invalid transaction status")
	ErrInvalidOutcome  = errors.New("invalid outcome")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrInvalidDecimals = errors.New("invalid amount")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateAction validates a withdrawal action before it is stored.
func validateAction(action *model.WithdrawalAction) error {
	if err := action.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}
	if action.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing creation time", ErrInvalidAction)
	}
	return nil
}

// validateStatus only rejects blank values. Anchors may report statuses this
// client does not know about; those are stored as-is.
func validateStatus(status model.TransactionStatus) error {
	if strings.TrimSpace(string(status)) == "" {
		return fmt.Errorf("%w: status cannot be blank", ErrInvalidStatus)
	}
	return nil
}

// validateOutcome validates a lifecycle marker.
func validateOutcome(outcome model.Outcome) error {
	if !outcome.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	return nil
}

// validateDetail rejects negative amounts.
func validateDetail(detail *model.TransactionDetail) error {
	if detail.AmountIn.IsNegative() || detail.AmountFee.IsNegative() || detail.AmountOut.IsNegative() {
		return fmt.Errorf("%w: amounts cannot be negative", ErrInvalidDecimals)
	}
	return nil
}

// validateFilter validates history query options.
func validateFilter(filter *service.ActionFilter) error {
	if filter.Limit < 0 {
		return fmt.Errorf("%w: limit cannot be negative", ErrInvalidFilter)
	}
	for _, o := range filter.Outcomes {
		if err := validateOutcome(o); err != nil {
			return err
		}
	}
	return nil
}
