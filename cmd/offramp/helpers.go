package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Veraticus/offramp/internal/anchor"
	"github.com/Veraticus/offramp/internal/common"
	"github.com/Veraticus/offramp/internal/config"
	"github.com/Veraticus/offramp/internal/launcher"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/poll"
	"github.com/Veraticus/offramp/internal/session"
	"github.com/Veraticus/offramp/internal/storage"
	"github.com/Veraticus/offramp/internal/withdraw"
	"github.com/spf13/viper"
)

// loadConfig reads the application configuration from viper.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// initStorage opens the database at the configured path and migrates it.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newClient builds the anchor client for the configured backend.
func newClient(cfg *config.Config) (*anchor.Client, error) {
	if err := cfg.RequireAnchor(); err != nil {
		return nil, err
	}
	return anchor.NewClient(anchor.Config{
		BaseURL:     cfg.Anchor.BaseURL,
		AccessToken: cfg.Session.AccessToken,
		PublicKey:   cfg.Session.PublicKey,
		Timeout:     cfg.Anchor.Timeout,
		Retry: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
		},
	})
}

// newLauncher opens the browser, or prints the link to out when noBrowser is set.
func newLauncher(noBrowser bool, out io.Writer) launcher.Launcher {
	if noBrowser {
		return launcher.Printer{W: out}
	}
	return launcher.NewBrowser()
}

// newDriver wires the withdrawal driver to the configured backend.
func newDriver(cfg *config.Config, gateway anchor.Gateway, launch launcher.Launcher, store withdraw.Store) *withdraw.Driver {
	return withdraw.NewWithConfig(gateway, launch, session.Static(cfg.Session), store, withdraw.Config{
		Clock:           poll.RealClock{},
		CallbackMode:    cfg.Anchor.CallbackMode,
		CallbackURL:     cfg.Anchor.CallbackURL,
		Interval:        cfg.Poll.Interval,
		MaxPollFailures: cfg.Poll.MaxFailures,
	})
}

// preselect stages asset for the TUI. A balance too small to withdraw stays
// on screen as the driver's error, so the returned error is only logged.
func preselect(driver *withdraw.Driver, asset model.Asset) {
	if err := driver.Select(asset); err != nil {
		common.LogDebug("Preselected asset was not accepted", common.Fields{
			"asset": asset.Code,
			"error": err.Error(),
		})
	}
}

// findAsset returns the balance line for code, ignoring case.
func findAsset(assets []model.Asset, code string) (model.Asset, error) {
	for _, a := range assets {
		if strings.EqualFold(a.Code, code) {
			return a, nil
		}
	}
	return model.Asset{}, fmt.Errorf("no %s balance in this wallet: %w", strings.ToUpper(code), common.ErrNotFound)
}

// resumeStore is the part of storage needed to find an interrupted withdrawal.
type resumeStore interface {
	GetAction(ctx context.Context, transactionID string) (*model.WithdrawalRecord, error)
	ResumableActions(ctx context.Context) ([]model.WithdrawalRecord, error)
}

// findResumable looks up transactionID, or the newest interrupted
// withdrawal when it is empty.
func findResumable(ctx context.Context, store resumeStore, transactionID string) (model.WithdrawalAction, error) {
	if transactionID != "" {
		record, err := store.GetAction(ctx, transactionID)
		if err != nil {
			return model.WithdrawalAction{}, err
		}
		if record.Outcome == model.OutcomeCompleted || record.Outcome == model.OutcomeFailed {
			return model.WithdrawalAction{}, common.NewUserError(
				fmt.Sprintf("Withdrawal %s already finished (%s).", transactionID, record.Outcome),
				fmt.Errorf("withdrawal %s is %s", transactionID, record.Outcome))
		}
		return record.Action, nil
	}

	records, err := store.ResumableActions(ctx)
	if err != nil {
		return model.WithdrawalAction{}, err
	}
	if len(records) == 0 {
		return model.WithdrawalAction{}, common.NewUserError("There is no interrupted withdrawal to resume.",
			fmt.Errorf("no resumable withdrawals: %w", common.ErrNotFound))
	}
	return records[0].Action, nil
}
