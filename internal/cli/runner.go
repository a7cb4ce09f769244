package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/offramp/internal/common"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/withdraw"
	"github.com/schollz/progressbar/v3"
)

// Driver is the part of the withdrawal driver the plain surface uses.
type Driver interface {
	ConfirmOpen(ctx context.Context, asset model.Asset) error
	Resume(ctx context.Context, action model.WithdrawalAction) error
	Confirm(ctx context.Context, transactionID, assetCode string) error
	CloseWaiting() error
	Dismiss() error
	Snapshot() withdraw.Snapshot
	Subscribe(fn withdraw.Listener) func()
}

// ErrDeclined is returned when the user dismisses a withdrawal waiting for
// confirmation.
var ErrDeclined = errors.New("withdrawal declined")

// Runner follows one withdrawal on a plain terminal: a spinner while the
// anchor works, a y/N prompt when funds must be sent, and a summary at the end.
type Runner struct {
	driver       Driver
	prompter     *Prompter
	writer       io.Writer
	spinnerEvery time.Duration
}

// NewRunner creates a runner.
func NewRunner(driver Driver, prompter *Prompter, writer io.Writer) *Runner {
	if writer == nil {
		writer = os.Stdout
	}
	return &Runner{
		driver:       driver,
		prompter:     prompter,
		writer:       writer,
		spinnerEvery: 120 * time.Millisecond,
	}
}

// Withdraw opens the anchor's flow for asset and follows it to the end.
// It returns the last snapshot before the driver was reset.
func (r *Runner) Withdraw(ctx context.Context, asset model.Asset) (withdraw.Snapshot, error) {
	return r.run(ctx, func() error { return r.driver.ConfirmOpen(ctx, asset) })
}

// Resume follows a previously opened withdrawal.
func (r *Runner) Resume(ctx context.Context, action model.WithdrawalAction) (withdraw.Snapshot, error) {
	return r.run(ctx, func() error { return r.driver.Resume(ctx, action) })
}

func (r *Runner) run(ctx context.Context, start func() error) (withdraw.Snapshot, error) {
	updates := withdraw.NewFeed()
	unsubscribe := r.driver.Subscribe(updates.Offer)
	defer unsubscribe()

	if err := start(); err != nil {
		snap := r.driver.Snapshot()
		r.println(FormatError(userMessage(snap, err)))
		_ = r.driver.Dismiss()
		return snap, err
	}
	return r.follow(ctx, updates)
}

func (r *Runner) follow(ctx context.Context, updates *withdraw.Feed) (withdraw.Snapshot, error) {
	var bar *progressbar.ProgressBar
	defer func() { r.stopSpinner(bar) }()

	ticker := time.NewTicker(r.spinnerEvery)
	defer ticker.Stop()

	snap := r.driver.Snapshot()
	for {
		switch snap.State {
		case withdraw.StateStarted, withdraw.StateWaiting:
			bar = r.spin(bar, snap)
		case withdraw.StateConfirmTransfer:
			if !snap.Confirming {
				r.stopSpinner(bar)
				bar = nil
				return r.confirm(ctx, snap)
			}
		case withdraw.StateSuccess:
			r.stopSpinner(bar)
			bar = nil
			r.println(RenderBox(SuccessIcon+" Withdrawal complete", formatDetail(snap)))
			_ = r.driver.Dismiss()
			return snap, nil
		case withdraw.StateError:
			r.stopSpinner(bar)
			bar = nil
			r.println(FormatError(userMessage(snap, snap.Err)))
			if snap.Detail.Message != "" {
				r.println(SubtleStyle.Render("  Anchor: " + snap.Detail.Message))
			}
			if snap.Resumable != nil {
				r.println(FormatInfo("Resume later with: offramp resume " + snap.Resumable.TransactionID))
			}
			_ = r.driver.Dismiss()
			return snap, snapshotErr(snap)
		case withdraw.StateNone:
			return snap, snap.Err
		}

		select {
		case <-ctx.Done():
			r.stopSpinner(bar)
			bar = nil
			if snap.State == withdraw.StateWaiting && snap.Action != nil {
				if err := r.driver.CloseWaiting(); err == nil {
					r.println(FormatInfo("Resume later with: offramp resume " + snap.Action.TransactionID))
				}
			}
			return snap, ctx.Err()
		case <-updates.Ready():
			if next, ok := updates.Take(); ok && next.Version > snap.Version {
				snap = next
			}
		case <-ticker.C:
			if bar != nil {
				_ = bar.Add(1)
			}
		}
	}
}

// confirm asks the user to send funds for a withdrawal the anchor is ready for.
func (r *Runner) confirm(ctx context.Context, snap withdraw.Snapshot) (withdraw.Snapshot, error) {
	action := snap.Action
	if action == nil {
		return snap, withdraw.ErrInvalidTransition
	}

	r.println(RenderBox("Ready to send "+action.AssetCode, formatDetail(snap)))
	ok, err := r.prompter.Confirm(ctx, "Send funds and confirm this withdrawal?")
	if err != nil {
		// The action stays pending in storage and can be resumed.
		return snap, err
	}
	if !ok {
		_ = r.driver.Dismiss()
		r.println(FormatWarning("Withdrawal dismissed."))
		return snap, ErrDeclined
	}

	if err := r.driver.Confirm(ctx, action.TransactionID, action.AssetCode); err != nil {
		final := r.driver.Snapshot()
		r.println(FormatError(userMessage(final, err)))
		_ = r.driver.Dismiss()
		return final, err
	}

	final := r.driver.Snapshot()
	r.println(RenderBox(SuccessIcon+" Withdrawal confirmed", formatDetail(final)))
	_ = r.driver.Dismiss()
	return final, nil
}

func (r *Runner) spin(bar *progressbar.ProgressBar, snap withdraw.Snapshot) *progressbar.ProgressBar {
	desc := WaitIcon + " Waiting for the anchor"
	if snap.Action != nil {
		desc += " " + SubtleStyle.Render(snap.Action.TransactionID)
		if snap.Action.Status != "" {
			desc += " " + StatusStyle(snap.Action.Status).Render(string(snap.Action.Status))
		}
	}
	if bar == nil {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(r.writer),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetDescription(desc),
		)
		return bar
	}
	bar.Describe(desc)
	return bar
}

func (r *Runner) stopSpinner(bar *progressbar.ProgressBar) {
	if bar == nil {
		return
	}
	if err := bar.Finish(); err != nil {
		slog.Debug("Failed to finish spinner", "error", err)
	}
}

func (r *Runner) println(s string) {
	if _, err := fmt.Fprintln(r.writer, s); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}

func formatDetail(snap withdraw.Snapshot) string {
	var out string
	if snap.Action != nil {
		out += fmt.Sprintf("Transaction: %s\nAsset:       %s\n", snap.Action.TransactionID, snap.Action.AssetCode)
	}
	d := snap.Detail
	if !d.AmountIn.IsZero() || !d.AmountOut.IsZero() {
		out += fmt.Sprintf("Amount in:   %s\nFee:         %s\nAmount out:  %s\n",
			d.AmountIn.String(), d.AmountFee.String(), BoldStyle.Render(d.AmountOut.String()))
	}
	if d.Message != "" {
		out += SubtleStyle.Render(d.Message) + "\n"
	}
	if out == "" {
		return "No details reported."
	}
	return out[:len(out)-1]
}

func userMessage(snap withdraw.Snapshot, err error) string {
	if snap.Err != nil && snap.Message != "" {
		return snap.Message
	}
	if err == nil {
		return common.DefaultUserMessage
	}
	return common.UserMessage(err)
}

func snapshotErr(snap withdraw.Snapshot) error {
	if snap.Err != nil {
		return snap.Err
	}
	return errors.New("withdrawal failed")
}
