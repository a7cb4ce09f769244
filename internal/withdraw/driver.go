package withdraw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/offramp/internal/anchor"
	"github.com/Veraticus/offramp/internal/common"
	"github.com/Veraticus/offramp/internal/launcher"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/poll"
	"github.com/Veraticus/offramp/internal/session"
)

// Driver errors that are not shown to the user.
var (
	// ErrInvalidTransition means the operation does not apply to the current state.
	ErrInvalidTransition = errors.New("operation not valid in current state")
	// ErrSuperseded means the result arrived after the withdrawal was
	// replaced or torn down, and was discarded.
	ErrSuperseded = errors.New("withdrawal superseded")
)

// Store persists withdrawals so they survive restarts.
type Store interface {
	SaveAction(ctx context.Context, action model.WithdrawalAction) error
	UpdateStatus(ctx context.Context, transactionID string, status model.TransactionStatus) error
	SaveDetail(ctx context.Context, transactionID string, detail model.TransactionDetail) error
	SetOutcome(ctx context.Context, transactionID string, outcome model.Outcome) error
	ResumableActions(ctx context.Context) ([]model.WithdrawalRecord, error)
}

// Config holds configuration options for the driver.
type Config struct {
	Clock        poll.Clock
	CallbackMode anchor.CallbackMode
	CallbackURL  string
	Interval     time.Duration
	StoreTimeout time.Duration
	// MaxPollFailures surfaces PollFailed after that many consecutive failed
	// status checks. Zero keeps retrying forever.
	MaxPollFailures int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Clock:        poll.RealClock{},
		CallbackMode: anchor.CallbackPostMessage,
		Interval:     5 * time.Second,
		StoreTimeout: 5 * time.Second,
	}
}

type effect func()

type subscription struct {
	fn Listener
	id int
}

// Driver owns at most one withdrawal action and the polling loop that
// tracks it. Gateway calls are made without holding the driver's lock.
type Driver struct {
	gateway    anchor.Gateway
	launcher   launcher.Launcher
	sessions   session.Provider
	store      Store
	scheduler  *poll.Scheduler
	err        error
	action     *model.WithdrawalAction
	selected   *model.Asset
	resumable  *model.WithdrawalAction
	listeners  []subscription
	detail     model.TransactionDetail
	cfg        Config
	generation uint64
	version    uint64
	nextID     int
	failures   int
	state      State
	confirming bool
	mu         sync.Mutex
	effectsMu  sync.Mutex // serializes side effects in the order state changed
}

// New creates a driver with the default configuration. store may be nil.
func New(gateway anchor.Gateway, launch launcher.Launcher, sessions session.Provider, store Store) *Driver {
	return NewWithConfig(gateway, launch, sessions, store, DefaultConfig())
}

// NewWithConfig creates a driver with custom configuration.
func NewWithConfig(gateway anchor.Gateway, launch launcher.Launcher, sessions session.Provider, store Store, cfg Config) *Driver {
	defaults := DefaultConfig()
	if cfg.Clock == nil {
		cfg.Clock = defaults.Clock
	}
	if cfg.CallbackMode == "" {
		cfg.CallbackMode = defaults.CallbackMode
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaults.StoreTimeout
	}

	return &Driver{
		gateway:   gateway,
		launcher:  launch,
		sessions:  sessions,
		store:     store,
		scheduler: poll.NewScheduler(cfg.Clock),
		cfg:       cfg,
	}
}

// Select stages an asset for withdrawal. It does not create an action.
func (d *Driver) Select(asset model.Asset) error {
	d.mu.Lock()
	if d.state != StateNone {
		state := d.state
		d.mu.Unlock()
		return fmt.Errorf("%w: select in %s", ErrInvalidTransition, state)
	}

	if !asset.CanWithdraw() {
		err := insufficientBalance(asset)
		d.selected = nil
		d.err = err
		d.apply()
		return err
	}

	d.selected = &asset
	d.err = nil
	d.apply()
	return nil
}

// ConfirmOpen opens the anchor's interactive flow for asset and starts
// polling it. Any previous withdrawal is stopped first; one that was still
// waiting becomes resumable. An attempt refused for its balance or session
// leaves a withdrawal in progress untouched. ctx bounds the gateway call and
// the polling loop.
func (d *Driver) ConfirmOpen(ctx context.Context, asset model.Asset) error {
	d.mu.Lock()
	if !asset.CanWithdraw() {
		return d.refuseLocked(insufficientBalance(asset), StateNone, nil)
	}
	if err := d.sessionErr(); err != nil {
		return d.refuseLocked(err, StateError, &asset)
	}

	effects := d.supersedeLocked()
	d.resetLocked()
	d.selected = &asset
	gen := d.generation
	d.state = StateStarted
	d.apply(effects...)

	slog.Info("Opening interactive withdrawal", "asset", asset.Code)
	interactive, err := d.gateway.OpenInteractive(ctx, asset.Code)

	d.mu.Lock()
	if gen != d.generation {
		d.mu.Unlock()
		common.LogInfo("Discarding superseded interactive flow", common.Fields{"asset": asset.Code})
		return ErrSuperseded
	}

	var action model.WithdrawalAction
	if err == nil {
		action, err = d.newAction(interactive, asset.Code)
	}
	if err != nil {
		if !errors.Is(err, common.ErrAnchorConnectFailed) {
			err = fmt.Errorf("%w: %w", common.ErrAnchorConnectFailed, err)
		}
		userErr := common.NewUserError(common.MsgAnchorConnectFailed, err)
		common.LogError(err, "Failed to open interactive withdrawal", common.Fields{"asset": asset.Code})
		d.state = StateError
		d.err = userErr
		d.apply()
		return userErr
	}

	current := action
	d.action = &current
	d.state = StateWaiting
	if d.resumable != nil && d.resumable.TransactionID == action.TransactionID {
		d.resumable = nil
	}
	d.scheduler.Start(ctx, d.pollWork(gen, action), d.cfg.Interval)
	d.apply(
		d.launch(action),
		d.persist("save action", action.TransactionID, func(ctx context.Context, s Store) error {
			return s.SaveAction(ctx, action)
		}),
	)

	slog.Info("Waiting for anchor",
		"transaction_id", action.TransactionID,
		"asset", action.AssetCode,
		"interval", d.cfg.Interval)
	return nil
}

// Resume re-enters WAITING for a previously opened withdrawal without
// opening the anchor again.
func (d *Driver) Resume(ctx context.Context, action model.WithdrawalAction) error {
	if err := action.Validate(); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = d.cfg.Clock.Now().UTC()
	}

	d.mu.Lock()
	if err := d.sessionErr(); err != nil {
		return d.refuseLocked(err, StateError, nil)
	}

	effects := d.supersedeLocked()
	d.resetLocked()
	gen := d.generation
	current := action
	d.action = &current
	d.detail = model.TransactionDetail{Status: action.Status}
	d.state = StateWaiting
	if d.resumable != nil && d.resumable.TransactionID == action.TransactionID {
		d.resumable = nil
	}
	d.scheduler.Start(ctx, d.pollWork(gen, action), d.cfg.Interval)
	effects = append(effects, d.persist("resume", action.TransactionID, func(ctx context.Context, s Store) error {
		if err := s.SaveAction(ctx, action); err != nil {
			return err
		}
		return s.SetOutcome(ctx, action.TransactionID, model.OutcomePending)
	}))
	d.apply(effects...)

	slog.Info("Resumed withdrawal", "transaction_id", action.TransactionID, "asset", action.AssetCode)
	return nil
}

// LoadResumable offers the newest interrupted withdrawal from the store for
// resumption.
func (d *Driver) LoadResumable(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	records, err := d.store.ResumableActions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load resumable withdrawals: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	action := records[0].Action
	d.mu.Lock()
	if d.action != nil && d.action.TransactionID == action.TransactionID {
		d.mu.Unlock()
		return nil
	}
	d.resumable = &action
	d.apply()
	return nil
}

// CloseWaiting stops polling and keeps the action as pending and resumable.
func (d *Driver) CloseWaiting() error {
	d.mu.Lock()
	if d.state != StateWaiting || d.action == nil {
		state := d.state
		d.mu.Unlock()
		return fmt.Errorf("%w: close waiting view in %s", ErrInvalidTransition, state)
	}

	effects := d.supersedeLocked()
	d.resetLocked()
	d.apply(effects...)
	return nil
}

// Confirm tells the anchor the user is ready to send funds for the action
// awaiting confirmation.
func (d *Driver) Confirm(ctx context.Context, transactionID, assetCode string) error {
	d.mu.Lock()
	if d.state != StateConfirmTransfer || d.action == nil || d.confirming {
		state := d.state
		d.mu.Unlock()
		return fmt.Errorf("%w: confirm in %s", ErrInvalidTransition, state)
	}
	if d.action.TransactionID != transactionID || d.action.AssetCode != assetCode {
		d.mu.Unlock()
		return fmt.Errorf("%w: confirm for %s/%s does not match the current withdrawal", ErrInvalidTransition, transactionID, assetCode)
	}

	gen := d.generation
	d.confirming = true
	d.apply()

	err := d.gateway.ConfirmWithdraw(ctx, transactionID, assetCode)

	d.mu.Lock()
	if gen != d.generation || d.state != StateConfirmTransfer {
		d.mu.Unlock()
		common.LogInfo("Discarding superseded confirmation", common.Fields{"transaction_id": transactionID})
		return ErrSuperseded
	}
	d.confirming = false

	if err != nil {
		msg := anchor.APIMessage(err)
		if msg == "" {
			msg = common.MsgUnknownConfirm
		}
		if !errors.Is(err, common.ErrUnknownConfirm) {
			err = fmt.Errorf("%w: %w", common.ErrUnknownConfirm, err)
		}
		userErr := common.NewUserError(msg, err)
		common.LogError(err, "Withdrawal confirmation failed", common.Fields{"transaction_id": transactionID})
		d.state = StateError
		d.err = userErr
		d.apply(d.persistOutcome(transactionID, model.OutcomeFailed))
		return userErr
	}

	d.state = StateSuccess
	d.err = nil
	d.apply(d.persistOutcome(transactionID, model.OutcomeCompleted))
	slog.Info("Withdrawal confirmed", "transaction_id", transactionID)
	return nil
}

// Dismiss destroys a finished or awaiting-confirmation action and returns
// to NONE. In NONE it clears a staged error and selection.
func (d *Driver) Dismiss() error {
	d.mu.Lock()
	switch d.state {
	case StateNone:
		d.err = nil
		d.selected = nil
		d.apply()
		return nil
	case StateSuccess, StateError, StateConfirmTransfer:
		var effects []effect
		if d.state == StateConfirmTransfer && d.action != nil {
			effects = append(effects, d.persistOutcome(d.action.TransactionID, model.OutcomeDismissed))
		}
		d.scheduler.Stop()
		d.generation++
		d.resetLocked()
		d.apply(effects...)
		return nil
	default:
		state := d.state
		d.mu.Unlock()
		return fmt.Errorf("%w: dismiss in %s", ErrInvalidTransition, state)
	}
}

// Teardown cancels every timer and discards in-flight results. The state
// is left as it was; a waiting action becomes resumable.
func (d *Driver) Teardown() {
	d.mu.Lock()
	effects := d.supersedeLocked()
	d.apply(effects...)
}

// Snapshot returns a copy of the current state.
func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (d *Driver) Subscribe(fn Listener) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, subscription{id: id, fn: fn})

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.listeners {
			if s.id == id {
				d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
				return
			}
		}
	}
}

// pollWork builds one status check for action. Its result applies only if
// gen is still the current generation and the driver is still waiting.
func (d *Driver) pollWork(gen uint64, action model.WithdrawalAction) poll.Work {
	return func(ctx context.Context) poll.Decision {
		if !d.isCurrent(gen) {
			return poll.DecisionStop
		}

		detail, err := d.gateway.GetStatus(ctx, action.TransactionID, action.AssetCode)

		d.mu.Lock()
		if gen != d.generation || d.state != StateWaiting {
			d.mu.Unlock()
			common.LogDebug("Discarding stale status", common.Fields{"transaction_id": action.TransactionID})
			return poll.DecisionStop
		}
		if err != nil {
			return d.pollFailedLocked(action, err)
		}
		return d.pollSucceededLocked(action, detail)
	}
}

func (d *Driver) pollFailedLocked(action model.WithdrawalAction, err error) poll.Decision {
	d.failures++
	common.LogError(err, "Status check failed", common.Fields{
		"transaction_id": action.TransactionID,
		"failures":       d.failures,
	})

	if d.cfg.MaxPollFailures <= 0 || d.failures < d.cfg.MaxPollFailures {
		d.apply()
		return poll.DecisionContinue
	}

	d.scheduler.Stop()
	d.state = StateError
	d.err = common.NewUserError(common.MsgPollFailed,
		fmt.Errorf("%w: %d consecutive status checks failed: %w", common.ErrPollFailed, d.failures, err))
	current := *d.action
	d.resumable = &current
	d.apply(d.persistOutcome(action.TransactionID, model.OutcomeResumable))
	return poll.DecisionStop
}

func (d *Driver) pollSucceededLocked(action model.WithdrawalAction, detail model.TransactionDetail) poll.Decision {
	d.failures = 0
	changed := d.action.Status != detail.Status
	d.action.Status = detail.Status
	d.detail = detail

	t := decide(detail.Status)
	id := action.TransactionID

	if t.decision == poll.DecisionContinue {
		var effects []effect
		if changed {
			common.LogDebug("Anchor status changed", common.Fields{"transaction_id": id, "status": detail.Status})
			effects = append(effects, d.persist("update status", id, func(ctx context.Context, s Store) error {
				return s.UpdateStatus(ctx, id, detail.Status)
			}))
		}
		d.apply(effects...)
		return poll.DecisionContinue
	}

	// Terminal or actionable: no further ticks for this action.
	d.scheduler.Stop()
	d.state = t.next
	effects := []effect{d.persist("save detail", id, func(ctx context.Context, s Store) error {
		return s.SaveDetail(ctx, id, detail)
	})}
	if t.outcome != "" {
		effects = append(effects, d.persistOutcome(id, t.outcome))
	}
	if t.next == StateError {
		// The anchor's own wording stays in the detail.
		d.err = common.NewUserError(common.MsgAnchorReportedError,
			fmt.Errorf("%w: transaction %s", common.ErrAnchorReportedError, id))
		common.LogWarn("Anchor reported an error", common.Fields{
			"transaction_id": id,
			"status":         detail.Status,
			"anchor_message": detail.Message,
		})
	}
	d.apply(effects...)

	slog.Info("Withdrawal settled", "transaction_id", id, "status", detail.Status, "state", t.next.String())
	return poll.DecisionStop
}

func (d *Driver) isCurrent(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.generation && d.state == StateWaiting
}

// supersedeLocked stops the polling loop and invalidates in-flight results.
// A withdrawal that was still waiting stays resumable.
func (d *Driver) supersedeLocked() []effect {
	d.scheduler.Stop()
	d.generation++
	d.confirming = false

	if d.state != StateWaiting || d.action == nil {
		return nil
	}
	current := *d.action
	d.resumable = &current
	return []effect{d.persistOutcome(current.TransactionID, model.OutcomeResumable)}
}

// resetLocked forgets the current action.
func (d *Driver) resetLocked() {
	d.state = StateNone
	d.action = nil
	d.detail = model.TransactionDetail{}
	d.selected = nil
	d.err = nil
	d.failures = 0
	d.confirming = false
}

func (d *Driver) sessionErr() error {
	if d.sessions == nil {
		return common.NewUserError(common.MsgInvalidSession, fmt.Errorf("%w: no session", common.ErrInvalidSession))
	}
	if err := d.sessions.Current().Validate(d.cfg.Clock.Now()); err != nil {
		return common.NewUserError(common.MsgInvalidSession, err)
	}
	return nil
}

// refuseLocked reports a withdrawal that could not start and unlocks d.mu.
// A withdrawal already in progress keeps running and only the caller sees
// err; otherwise the driver moves to state showing err.
func (d *Driver) refuseLocked(err error, state State, selected *model.Asset) error {
	if current := d.state; current == StateStarted || current == StateWaiting || current == StateConfirmTransfer {
		d.mu.Unlock()
		common.LogWarn("New withdrawal refused; keeping the one in progress", common.Fields{
			"state": current.String(),
			"error": err.Error(),
		})
		return err
	}

	d.resetLocked()
	d.state = state
	d.selected = selected
	d.err = err
	d.apply()
	return err
}

func (d *Driver) newAction(interactive anchor.Interactive, assetCode string) (model.WithdrawalAction, error) {
	url, err := anchor.DecorateURL(interactive.URL, d.cfg.CallbackMode, d.cfg.CallbackURL)
	if err != nil {
		return model.WithdrawalAction{}, err
	}
	action := model.WithdrawalAction{
		CreatedAt:      d.cfg.Clock.Now().UTC(),
		TransactionID:  interactive.ID,
		AssetCode:      assetCode,
		InteractiveURL: url,
	}
	if err := action.Validate(); err != nil {
		return model.WithdrawalAction{}, err
	}
	return action, nil
}

// apply bumps the version, releases d.mu and runs effects followed by
// listener notification. Effects from concurrent changes run in the same
// order as the changes themselves. Must be called with d.mu held.
func (d *Driver) apply(effects ...effect) {
	d.version++
	snap := d.snapshotLocked()
	listeners := make([]Listener, len(d.listeners))
	for i, s := range d.listeners {
		listeners[i] = s.fn
	}

	d.effectsMu.Lock()
	d.mu.Unlock()
	defer d.effectsMu.Unlock()

	for _, e := range effects {
		if e != nil {
			e()
		}
	}
	for _, l := range listeners {
		l(snap)
	}
}

func (d *Driver) launch(action model.WithdrawalAction) effect {
	if d.launcher == nil {
		return nil
	}
	return func() {
		if err := d.launcher.Open(action.InteractiveURL); err != nil {
			common.LogWarn("Could not open interactive URL", common.Fields{
				"transaction_id": action.TransactionID,
				"url":            action.InteractiveURL,
				"error":          err.Error(),
			})
		}
	}
}

// persist wraps a store write. Failures are logged and never change the flow.
func (d *Driver) persist(op, transactionID string, fn func(ctx context.Context, s Store) error) effect {
	if d.store == nil {
		return nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.StoreTimeout)
		defer cancel()
		if err := fn(ctx, d.store); err != nil {
			common.LogError(err, "Failed to persist withdrawal", common.Fields{
				"op":             op,
				"transaction_id": transactionID,
			})
		}
	}
}

func (d *Driver) persistOutcome(transactionID string, outcome model.Outcome) effect {
	return d.persist("set outcome", transactionID, func(ctx context.Context, s Store) error {
		return s.SetOutcome(ctx, transactionID, outcome)
	})
}

func insufficientBalance(asset model.Asset) error {
	return common.NewUserError(common.MsgInsufficientBalance,
		fmt.Errorf("%w: %s balance %s", common.ErrInsufficientBalance, asset.Code, asset.Balance.String()))
}
