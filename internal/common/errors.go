// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Withdrawal flow errors.
var (
	// ErrInsufficientBalance is user-correctable; the flow never reaches the anchor.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidSession means the access token or public key is missing or expired.
	ErrInvalidSession = errors.New("invalid session")
	// ErrAnchorConnectFailed means the interactive flow could not be opened.
	ErrAnchorConnectFailed = errors.New("anchor connect failed")
	// ErrPollFailed means a single status check failed.
	ErrPollFailed = errors.New("poll failed")
	// ErrAnchorReportedError means the anchor marked the transaction as error.
	ErrAnchorReportedError = errors.New("anchor reported error")
	// ErrUnknownConfirm means the confirm step failed.
	ErrUnknownConfirm = errors.New("confirm failed")
)

// Database errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// Configuration errors.
var (
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// DefaultUserMessage is shown for errors that carry no user-facing text.
const DefaultUserMessage = "Something went wrong. Please try again."

// Messages shown for each failure kind of the withdrawal flow.
const (
	MsgInsufficientBalance = "You have no balance to withdraw"
	MsgInvalidSession      = "Your session has expired. Please sign in again."
	MsgAnchorConnectFailed = "Could not connect to the anchor. Please try again."
	MsgPollFailed          = "Could not check the withdrawal status. Please try again later."
	MsgAnchorReportedError = "The anchor reported an error for this withdrawal."
	MsgUnknownConfirm      = "Something went wrong while confirming the withdrawal."
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// UserMessage returns the text to show for err. Untyped errors fall back to
// DefaultUserMessage so raw exception text never reaches the screen.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var userErr *UserError
	if errors.As(err, &userErr) && userErr.UserMessage != "" {
		return userErr.UserMessage
	}
	return DefaultUserMessage
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
