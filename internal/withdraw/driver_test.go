package withdraw

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/offramp/internal/anchor"
	"github.com/Veraticus/offramp/internal/common"
	"github.com/Veraticus/offramp/internal/launcher"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/poll"
	"github.com/Veraticus/offramp/internal/session"
	"github.com/Veraticus/offramp/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor  = 2 * time.Second
	pollStep = time.Millisecond
	interval = 5 * time.Second
)

var start = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	gateway  *anchor.MockGateway
	launcher *launcher.Recorder
	clock    *poll.FakeClock
	db       *testutil.TestDB
	driver   *Driver
	states   *stateRecorder
}

type stateRecorder struct {
	states []State
	mu     sync.Mutex
}

func (r *stateRecorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.State)
}

func (r *stateRecorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func newHarness(t *testing.T, configure ...func(*Config)) *harness {
	t.Helper()
	return newHarnessWithSessions(t, session.Static{AccessToken: "access-token", PublicKey: "GABC"}, configure...)
}

func newHarnessWithSessions(t *testing.T, sessions session.Provider, configure ...func(*Config)) *harness {
	t.Helper()

	h := &harness{
		gateway:  anchor.NewMockGateway(),
		launcher: &launcher.Recorder{},
		clock:    poll.NewFakeClock(start),
		db:       testutil.SetupTestDB(t),
		states:   &stateRecorder{},
	}

	cfg := DefaultConfig()
	cfg.Clock = h.clock
	for _, c := range configure {
		c(&cfg)
	}

	h.driver = NewWithConfig(h.gateway, h.launcher, sessions, h.db.Storage, cfg)
	unsubscribe := h.driver.Subscribe(h.states.record)
	t.Cleanup(func() {
		unsubscribe()
		h.driver.Teardown()
	})
	return h
}

// swappableSession lets a test sign the user out mid-withdrawal.
type swappableSession struct {
	current session.Session
	mu      sync.Mutex
}

func (s *swappableSession) Current() session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *swappableSession) set(sess session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sess
}

func usdc(balance string) model.Asset {
	return model.Asset{Code: "USDC", Balance: decimal.RequireFromString(balance)}
}

// statuses makes GetStatus walk through seq, repeating the last entry.
func statuses(seq ...model.TransactionStatus) func(context.Context, string, string) (model.TransactionDetail, error) {
	var (
		mu sync.Mutex
		n  int
	)
	return func(context.Context, string, string) (model.TransactionDetail, error) {
		mu.Lock()
		defer mu.Unlock()
		i := n
		if i >= len(seq) {
			i = len(seq) - 1
		}
		n++
		return model.TransactionDetail{Status: seq[i]}, nil
	}
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.driver.Snapshot().State == want
	}, waitFor, pollStep, "driver never reached %s (at %s)", want, h.driver.Snapshot().State)
}

func (h *harness) waitStatusCalls(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(h.gateway.StatusCalls()) == n
	}, waitFor, pollStep, "expected %d status calls, got %d", n, len(h.gateway.StatusCalls()))
}

// waitArmed waits until the next tick is scheduled.
func (h *harness) waitArmed(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.clock.PendingTimers() == 1
	}, waitFor, pollStep, "next tick was never scheduled")
}

// tick waits for the next tick to be armed and fires it.
func (h *harness) tick(t *testing.T) {
	t.Helper()
	h.waitArmed(t)
	h.clock.Advance(interval)
}

// settle waits for the side effects of every change already visible in a
// snapshot.
func (h *harness) settle() {
	h.driver.effectsMu.Lock()
	defer h.driver.effectsMu.Unlock()
}

func (h *harness) outcome(t *testing.T, id string) model.Outcome {
	t.Helper()
	h.settle()
	return h.db.MustGet(id).Outcome
}

func TestDecide(t *testing.T) {
	tests := []struct {
		status   model.TransactionStatus
		next     State
		decision poll.Decision
		outcome  model.Outcome
	}{
		{model.StatusCompleted, StateSuccess, poll.DecisionStop, model.OutcomeCompleted},
		{model.StatusError, StateError, poll.DecisionStop, model.OutcomeFailed},
		{model.StatusPendingUserTransferStart, StateConfirmTransfer, poll.DecisionStop, ""},
		{model.StatusIncomplete, StateWaiting, poll.DecisionContinue, ""},
		{model.StatusPendingAnchor, StateWaiting, poll.DecisionContinue, ""},
		{model.StatusPendingExternal, StateWaiting, poll.DecisionContinue, ""},
		{model.StatusPendingUser, StateWaiting, poll.DecisionContinue, ""},
		{model.StatusPendingStellar, StateWaiting, poll.DecisionContinue, ""},
		{model.StatusRefunded, StateWaiting, poll.DecisionContinue, ""},
		{"pending_something_new", StateWaiting, poll.DecisionContinue, ""},
		{"", StateWaiting, poll.DecisionContinue, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got := decide(tt.status)
			assert.Equal(t, tt.next, got.next)
			assert.Equal(t, tt.decision, got.decision)
			assert.Equal(t, tt.outcome, got.outcome)
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "NONE", StateNone.String())
	assert.Equal(t, "CONFIRM_TRANSFER", StateConfirmTransfer.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}

func TestDriver_BalanceGate(t *testing.T) {
	tests := []struct {
		balance string
		allowed bool
	}{
		{"0", false},
		{"-3", false},
		{"0.001", false},
		{"0.01", false},
		{"0.0100000001", true},
		{"10", true},
	}

	for _, tt := range tests {
		t.Run(tt.balance, func(t *testing.T) {
			h := newHarness(t)

			err := h.driver.ConfirmOpen(context.Background(), usdc(tt.balance))
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, []string{"USDC"}, h.gateway.OpenCalls())
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInsufficientBalance)
			assert.Empty(t, h.gateway.OpenCalls())

			snap := h.driver.Snapshot()
			assert.Equal(t, StateNone, snap.State)
			assert.Equal(t, common.MsgInsufficientBalance, snap.Message)
		})
	}
}

func TestDriver_ScenarioA_PendingThenCompleted(t *testing.T) {
	h := newHarness(t)
	h.gateway.GetStatusFn = statuses(model.StatusPendingAnchor, model.StatusPendingAnchor, model.StatusCompleted)

	require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))

	h.waitStatusCalls(t, 1)
	h.waitArmed(t)
	assert.Equal(t, StateWaiting, h.driver.Snapshot().State)

	h.tick(t)
	h.waitStatusCalls(t, 2)
	h.waitArmed(t)
	assert.Equal(t, StateWaiting, h.driver.Snapshot().State)

	h.tick(t)
	h.waitState(t, StateSuccess)
	assert.Len(t, h.gateway.StatusCalls(), 3)

	// Polling is over.
	assert.Equal(t, 0, h.clock.PendingTimers())
	h.clock.Advance(time.Minute)
	assert.Never(t, func() bool { return len(h.gateway.StatusCalls()) > 3 }, 50*time.Millisecond, pollStep)

	h.settle()
	assert.Equal(t, []State{StateStarted, StateWaiting, StateWaiting, StateWaiting, StateSuccess}, h.states.get())
	assert.Equal(t, model.OutcomeCompleted, h.outcome(t, "tx-1"))
}

func TestDriver_ScenarioB_ZeroBalance(t *testing.T) {
	h := newHarness(t)

	err := h.driver.ConfirmOpen(context.Background(), usdc("0"))
	require.Error(t, err)

	snap := h.driver.Snapshot()
	assert.Equal(t, StateNone, snap.State)
	assert.Equal(t, "You have no balance to withdraw", snap.Message)
	assert.Nil(t, snap.Action)
	assert.Empty(t, h.gateway.OpenCalls())
	assert.Empty(t, h.gateway.StatusCalls())
	assert.Empty(t, h.launcher.URLs())
}

func TestDriver_ScenarioC_PollFailureKeepsWaiting(t *testing.T) {
	h := newHarness(t)

	var (
		mu    sync.Mutex
		calls int
	)
	h.gateway.GetStatusFn = func(context.Context, string, string) (model.TransactionDetail, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return model.TransactionDetail{}, errors.New("connection reset")
		}
		return model.TransactionDetail{Status: model.StatusPendingAnchor}, nil
	}

	require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))

	h.waitStatusCalls(t, 1)
	h.waitArmed(t)

	snap := h.driver.Snapshot()
	assert.Equal(t, StateWaiting, snap.State)
	assert.NoError(t, snap.Err)
	assert.Empty(t, snap.Message)
	assert.Equal(t, 1, snap.Failures)

	deadline, ok := h.clock.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, start.Add(interval), deadline)

	h.clock.Advance(interval)
	h.waitStatusCalls(t, 2)
	h.waitArmed(t)
	assert.Equal(t, StateWaiting, h.driver.Snapshot().State)
	assert.Equal(t, 0, h.driver.Snapshot().Failures)
}

func TestDriver_ScenarioD_TeardownDuringPendingPoll(t *testing.T) {
	h := newHarness(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	returned := make(chan struct{})
	h.gateway.GetStatusFn = func(context.Context, string, string) (model.TransactionDetail, error) {
		close(entered)
		<-release
		defer close(returned)
		return model.TransactionDetail{Status: model.StatusCompleted}, nil
	}

	require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))
	<-entered

	h.driver.Teardown()
	before := h.driver.Snapshot()
	assert.Equal(t, StateWaiting, before.State)
	assert.False(t, before.Polling)

	close(release)
	<-returned

	assert.Never(t, func() bool {
		return h.driver.Snapshot().Version != before.Version
	}, 100*time.Millisecond, pollStep)

	after := h.driver.Snapshot()
	assert.Equal(t, StateWaiting, after.State)
	assert.Equal(t, model.TransactionStatus(""), after.Action.Status)
	assert.Equal(t, 0, h.clock.PendingTimers())
	assert.Len(t, h.gateway.StatusCalls(), 1)
}

func TestDriver_NextTickAfterExactInterval(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))
	h.waitStatusCalls(t, 1)

	for i := 2; i <= 4; i++ {
		h.waitArmed(t)
		h.clock.Advance(interval - time.Nanosecond)
		assert.Never(t, func() bool { return len(h.gateway.StatusCalls()) == i }, 30*time.Millisecond, pollStep)

		h.clock.Advance(time.Nanosecond)
		h.waitStatusCalls(t, i)
		assert.Equal(t, StateWaiting, h.driver.Snapshot().State)
	}
}

func TestDriver_ActionableStopsPollingOnce(t *testing.T) {
	h := newHarness(t)
	h.gateway.GetStatusFn = func(context.Context, string, string) (model.TransactionDetail, error) {
		return model.TransactionDetail{
			Status:    model.StatusPendingUserTransferStart,
			AmountIn:  decimal.RequireFromString("100.00"),
			AmountFee: decimal.RequireFromString("1.50"),
			AmountOut: decimal.RequireFromString("98.50"),
		}, nil
	}

	require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("150")))
	h.waitState(t, StateConfirmTransfer)

	snap := h.driver.Snapshot()
	assert.True(t, snap.Detail.AmountIn.Equal(decimal.RequireFromString("100")))
	assert.True(t, snap.Detail.AmountFee.Equal(decimal.RequireFromString("1.5")))
	assert.True(t, snap.Detail.AmountOut.Equal(decimal.RequireFromString("98.5")))
	assert.False(t, snap.Polling)

	// Repeated stops change nothing and no tick is ever issued again.
	h.driver.scheduler.Stop()
	h.driver.scheduler.Stop()
	h.driver.Teardown()
	h.clock.Advance(time.Hour)
	assert.Never(t, func() bool { return h.gateway.StatusCallsFor("tx-1") > 1 }, 50*time.Millisecond, pollStep)
	assert.Equal(t, 1, h.gateway.StatusCallsFor("tx-1"))

	h.settle()
	record := h.db.MustGet("tx-1")
	assert.Equal(t, model.StatusPendingUserTransferStart, record.Action.Status)
	assert.True(t, record.Detail.AmountOut.Equal(decimal.RequireFromString("98.50")))
}

func TestDriver_TerminalStatusIsSingleFire(t *testing.T) {
	for _, status := range []model.TransactionStatus{model.StatusCompleted, model.StatusError} {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(t)
			h.gateway.GetStatusFn = statuses(status)

			require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))
			h.waitStatusCalls(t, 1)
			require.Eventually(t, func() bool {
				state := h.driver.Snapshot().State
				return state == StateSuccess || state == StateError
			}, waitFor, pollStep)

			for i := 0; i < 3; i++ {
				h.driver.scheduler.Stop()
			}
			h.clock.Advance(10 * interval)
			assert.Never(t, func() bool { return len(h.gateway.StatusCalls()) > 1 }, 50*time.Millisecond, pollStep)
		})
	}
}

func TestDriver_RoundTripConfirm(t *testing.T) {
	h := newHarness(t)
	h.gateway.GetStatusFn = func(context.Context, string, string) (model.TransactionDetail, error) {
		return model.TransactionDetail{
			Status:    model.StatusPendingUserTransferStart,
			AmountIn:  decimal.RequireFromString("50"),
			AmountFee: decimal.RequireFromString("0.5"),
			AmountOut: decimal.RequireFromString("49.5"),
		}, nil
	}

	ctx := context.Background()
	require.NoError(t, h.driver.ConfirmOpen(ctx, usdc("50")))
	h.waitState(t, StateConfirmTransfer)

	snap := h.driver.Snapshot()
	require.NotNil(t, snap.Action)
	require.NoError(t, h.driver.Confirm(ctx, snap.Action.TransactionID, snap.Action.AssetCode))

	assert.Equal(t, StateSuccess, h.driver.Snapshot().State)
	assert.Equal(t, []anchor.StatusCall{{TransactionID: "tx-1", AssetCode: "USDC"}}, h.gateway.ConfirmCalls())
	assert.Equal(t, model.OutcomeCompleted, h.outcome(t, "tx-1"))

	// A second confirm is not allowed.
	assert.ErrorIs(t, h.driver.Confirm(ctx, "tx-1", "USDC"), ErrInvalidTransition)
}

func TestDriver_ConfirmFailure(t *testing.T) {
	tests := []struct {
		err     error
		name    string
		message string
	}{
		{
			name:    "backend message is shown",
			err:     &anchor.Error{StatusCode: 409, Message: "Withdrawal window closed"},
			message: "Withdrawal window closed",
		},
		{
			name:    "untyped error falls back",
			err:     errors.New("EOF"),
			message: common.MsgUnknownConfirm,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.gateway.GetStatusFn = statuses(model.StatusPendingUserTransferStart)
			h.gateway.ConfirmWithdrawFn = func(context.Context, string, string) error { return tt.err }

			ctx := context.Background()
			require.NoError(t, h.driver.ConfirmOpen(ctx, usdc("10")))
			h.waitState(t, StateConfirmTransfer)

			err := h.driver.Confirm(ctx, "tx-1", "USDC")
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrUnknownConfirm)

			snap := h.driver.Snapshot()
			assert.Equal(t, StateError, snap.State)
			assert.Equal(t, tt.message, snap.Message)
			assert.Equal(t, model.OutcomeFailed, h.outcome(t, "tx-1"))
		})
	}
}

func TestDriver_ConfirmRequiresMatchingAction(t *testing.T) {
	h := newHarness(t)
	h.gateway.GetStatusFn = statuses(model.StatusPendingUserTransferStart)
	ctx := context.Background()

	assert.ErrorIs(t, h.driver.Confirm(ctx, "tx-1", "USDC"), ErrInvalidTransition)

	require.NoError(t, h.driver.ConfirmOpen(ctx, usdc("10")))
	h.waitState(t, StateConfirmTransfer)

	assert.ErrorIs(t, h.driver.Confirm(ctx, "tx-9", "USDC"), ErrInvalidTransition)
	assert.ErrorIs(t, h.driver.Confirm(ctx, "tx-1", "EURC"), ErrInvalidTransition)
	assert.Empty(t, h.gateway.ConfirmCalls())
}

func TestDriver_AnchorReportedError(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{name: "with anchor message", message: "KYC rejected"},
		{name: "without anchor message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.gateway.GetStatusFn = func(context.Context, string, string) (model.TransactionDetail, error) {
				return model.TransactionDetail{Status: model.StatusError, Message: tt.message}, nil
			}

			require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))
			h.waitState(t, StateError)

			snap := h.driver.Snapshot()
			assert.ErrorIs(t, snap.Err, common.ErrAnchorReportedError)
			assert.Equal(t, common.MsgAnchorReportedError, snap.Message)
			assert.Equal(t, tt.message, snap.Detail.Message)
			assert.Equal(t, model.OutcomeFailed, h.outcome(t, "tx-1"))
			assert.Equal(t, tt.message, h.db.MustGet("tx-1").Detail.Message)
		})
	}
}

func TestDriver_SecondWithdrawalSupersedesFirst(t *testing.T) {
	h := newHarness(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	returned := make(chan struct{})
	h.gateway.GetStatusFn = func(_ context.Context, id, _ string) (model.TransactionDetail, error) {
		if id == "tx-1" {
			close(entered)
			<-release
			defer close(returned)
			return model.TransactionDetail{Status: model.StatusCompleted}, nil
		}
		return model.TransactionDetail{Status: model.StatusPendingAnchor}, nil
	}

	ctx := context.Background()
	require.NoError(t, h.driver.ConfirmOpen(ctx, usdc("10")))
	<-entered

	eurc := model.Asset{Code: "EURC", Balance: decimal.NewFromInt(20)}
	require.NoError(t, h.driver.ConfirmOpen(ctx, eurc))
	require.Eventually(t, func() bool { return h.gateway.StatusCallsFor("tx-2") == 1 }, waitFor, pollStep)

	close(release)
	<-returned

	h.tick(t)
	require.Eventually(t, func() bool { return h.gateway.StatusCallsFor("tx-2") == 2 }, waitFor, pollStep)

	snap := h.driver.Snapshot()
	assert.Equal(t, StateWaiting, snap.State)
	require.NotNil(t, snap.Action)
	assert.Equal(t, "tx-2", snap.Action.TransactionID)
	assert.Equal(t, "EURC", snap.Action.AssetCode)
	require.NotNil(t, snap.Resumable)
	assert.Equal(t, "tx-1", snap.Resumable.TransactionID)

	assert.Equal(t, 1, h.gateway.StatusCallsFor("tx-1"))
	assert.Equal(t, model.OutcomeResumable, h.outcome(t, "tx-1"))
}

func TestDriver_SupersededOpenIsDiscarded(t *testing.T) {
	h := newHarness(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.gateway.OpenInteractiveFn = func(_ context.Context, asset string) (anchor.Interactive, error) {
		if asset == "USDC" {
			once.Do(func() { close(entered) })
			<-release
			return anchor.Interactive{ID: "slow", URL: "https://anchor.example.com/slow"}, nil
		}
		return anchor.Interactive{ID: "fast", URL: "https://anchor.example.com/fast"}, nil
	}

	ctx := context.Background()
	errs := make(chan error, 1)
	go func() { errs <- h.driver.ConfirmOpen(ctx, usdc("10")) }()
	<-entered

	require.NoError(t, h.driver.ConfirmOpen(ctx, model.Asset{Code: "EURC", Balance: decimal.NewFromInt(5)}))
	close(release)

	assert.ErrorIs(t, <-errs, ErrSuperseded)
	snap := h.driver.Snapshot()
	assert.Equal(t, "fast", snap.Action.TransactionID)
	assert.Equal(t, StateWaiting, snap.State)
}

func TestDriver_InvalidSession(t *testing.T) {
	tests := []struct {
		name    string
		session session.Static
	}{
		{name: "no token", session: session.Static{PublicKey: "GABC"}},
		{name: "no public key", session: session.Static{AccessToken: "tok"}},
		{name: "empty", session: session.Static{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := anchor.NewMockGateway()
			d := NewWithConfig(gateway, &launcher.Recorder{}, tt.session, nil, Config{Clock: poll.NewFakeClock(start)})

			err := d.ConfirmOpen(context.Background(), usdc("10"))
			assert.ErrorIs(t, err, common.ErrInvalidSession)
			assert.Empty(t, gateway.OpenCalls())

			snap := d.Snapshot()
			assert.Equal(t, StateError, snap.State)
			assert.Equal(t, common.MsgInvalidSession, snap.Message)

			// Resume is gated the same way.
			err = d.Resume(context.Background(), model.WithdrawalAction{TransactionID: "tx-1", AssetCode: "USDC"})
			assert.ErrorIs(t, err, common.ErrInvalidSession)
			assert.Empty(t, gateway.StatusCalls())
		})
	}
}

func TestDriver_RefusedAttemptKeepsWaitingWithdrawal(t *testing.T) {
	tests := []struct {
		name    string
		attempt func(ctx context.Context, d *Driver, sessions *swappableSession) error
		wantErr error
	}{
		{
			name: "dust balance",
			attempt: func(ctx context.Context, d *Driver, _ *swappableSession) error {
				return d.ConfirmOpen(ctx, model.Asset{Code: "EURC", Balance: decimal.RequireFromString("0.005")})
			},
			wantErr: common.ErrInsufficientBalance,
		},
		{
			name: "signed out before opening",
			attempt: func(ctx context.Context, d *Driver, sessions *swappableSession) error {
				sessions.set(session.Session{})
				return d.ConfirmOpen(ctx, usdc("20"))
			},
			wantErr: common.ErrInvalidSession,
		},
		{
			name: "signed out before resuming",
			attempt: func(ctx context.Context, d *Driver, sessions *swappableSession) error {
				sessions.set(session.Session{})
				return d.Resume(ctx, model.WithdrawalAction{TransactionID: "tx-old", AssetCode: "USDC"})
			},
			wantErr: common.ErrInvalidSession,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &swappableSession{current: session.Session{AccessToken: "access-token", PublicKey: "GABC"}}
			h := newHarnessWithSessions(t, sessions)
			h.gateway.GetStatusFn = statuses(model.StatusPendingAnchor)

			ctx := context.Background()
			require.NoError(t, h.driver.ConfirmOpen(ctx, usdc("10")))
			h.waitStatusCalls(t, 1)
			h.waitArmed(t)
			before := h.driver.Snapshot()

			err := tt.attempt(ctx, h.driver, sessions)
			require.ErrorIs(t, err, tt.wantErr)

			snap := h.driver.Snapshot()
			assert.Equal(t, StateWaiting, snap.State)
			require.NotNil(t, snap.Action)
			assert.Equal(t, "tx-1", snap.Action.TransactionID)
			assert.NoError(t, snap.Err)
			assert.Nil(t, snap.Resumable)
			assert.True(t, snap.Polling)
			assert.Equal(t, before.Version, snap.Version, "refusal must not publish a change")
			assert.Equal(t, []string{"USDC"}, h.gateway.OpenCalls())

			h.tick(t)
			h.waitStatusCalls(t, 2)
			assert.Equal(t, model.OutcomePending, h.outcome(t, "tx-1"))
		})
	}
}

func TestDriver_OpenInteractiveFailure(t *testing.T) {
	h := newHarness(t)
	h.gateway.OpenInteractiveFn = func(context.Context, string) (anchor.Interactive, error) {
		return anchor.Interactive{}, errors.New("dial tcp: connection refused")
	}

	err := h.driver.ConfirmOpen(context.Background(), usdc("10"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAnchorConnectFailed)

	snap := h.driver.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, common.MsgAnchorConnectFailed, snap.Message)
	assert.Nil(t, snap.Action)
	assert.Empty(t, h.launcher.URLs())
	assert.Equal(t, 0, h.clock.PendingTimers())
	assert.Never(t, func() bool { return len(h.gateway.StatusCalls()) > 0 }, 30*time.Millisecond, pollStep)
}

func TestDriver_OpenInteractiveWithoutID(t *testing.T) {
	h := newHarness(t)
	h.gateway.OpenInteractiveFn = func(context.Context, string) (anchor.Interactive, error) {
		return anchor.Interactive{URL: "https://anchor.example.com/flow"}, nil
	}

	err := h.driver.ConfirmOpen(context.Background(), usdc("10"))
	assert.ErrorIs(t, err, common.ErrAnchorConnectFailed)
	assert.Equal(t, StateError, h.driver.Snapshot().State)
}

func TestDriver_LaunchesDecoratedURL(t *testing.T) {
	tests := []struct {
		configure func(*Config)
		name      string
		callback  string
	}{
		{name: "post message", callback: "postMessage"},
		{
			name:     "callback url",
			callback: "https://wallet.example.com/done",
			configure: func(c *Config) {
				c.CallbackMode = anchor.CallbackURL
				c.CallbackURL = "https://wallet.example.com/done"
			},
		},
		{
			name:      "none",
			configure: func(c *Config) { c.CallbackMode = anchor.CallbackNone },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h *harness
			if tt.configure != nil {
				h = newHarness(t, tt.configure)
			} else {
				h = newHarness(t)
			}

			require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))

			urls := h.launcher.URLs()
			require.Len(t, urls, 1)
			u, err := url.Parse(urls[0])
			require.NoError(t, err)
			assert.Equal(t, "tx-1", u.Query().Get("id"))
			assert.Equal(t, tt.callback, u.Query().Get("callback"))
			assert.Equal(t, urls[0], h.driver.Snapshot().Action.InteractiveURL)
		})
	}
}

func TestDriver_LaunchFailureKeepsWaiting(t *testing.T) {
	h := newHarness(t)
	h.launcher.Err = errors.New("no display")

	require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))
	assert.Equal(t, StateWaiting, h.driver.Snapshot().State)
	h.waitStatusCalls(t, 1)
}

func TestDriver_CloseWaitingAndResume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.driver.ConfirmOpen(ctx, usdc("10")))
	h.waitStatusCalls(t, 1)
	h.waitArmed(t)

	require.NoError(t, h.driver.CloseWaiting())

	snap := h.driver.Snapshot()
	assert.Equal(t, StateNone, snap.State)
	assert.Nil(t, snap.Action)
	assert.False(t, snap.Polling)
	require.NotNil(t, snap.Resumable)
	assert.Equal(t, "tx-1", snap.Resumable.TransactionID)
	assert.Equal(t, model.StatusPendingAnchor, snap.Resumable.Status)
	assert.Equal(t, model.OutcomeResumable, h.outcome(t, "tx-1"))

	// The armed tick was cancelled.
	assert.Equal(t, 0, h.clock.PendingTimers())
	h.clock.Advance(time.Minute)
	assert.Never(t, func() bool { return len(h.gateway.StatusCalls()) > 1 }, 30*time.Millisecond, pollStep)

	// Closing again is not a valid transition.
	assert.ErrorIs(t, h.driver.CloseWaiting(), ErrInvalidTransition)

	h.gateway.GetStatusFn = statuses(model.StatusCompleted)
	require.NoError(t, h.driver.Resume(ctx, *snap.Resumable))
	h.waitState(t, StateSuccess)

	assert.Equal(t, []string{"USDC"}, h.gateway.OpenCalls())
	assert.Equal(t, 2, h.gateway.StatusCallsFor("tx-1"))
	assert.Nil(t, h.driver.Snapshot().Resumable)
	assert.Equal(t, model.OutcomeCompleted, h.outcome(t, "tx-1"))
}

func TestDriver_TeardownMakesWaitingResumable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.driver.ConfirmOpen(ctx, usdc("10")))
	h.waitStatusCalls(t, 1)
	h.waitArmed(t)

	h.driver.Teardown()
	h.driver.Teardown()

	snap := h.driver.Snapshot()
	assert.Equal(t, StateWaiting, snap.State)
	assert.False(t, snap.Polling)
	require.NotNil(t, snap.Resumable)
	assert.Equal(t, 0, h.clock.PendingTimers())
	assert.Equal(t, model.OutcomeResumable, h.outcome(t, "tx-1"))

	require.NoError(t, h.driver.Resume(ctx, *snap.Resumable))
	h.waitStatusCalls(t, 2)
	assert.Equal(t, model.OutcomePending, h.outcome(t, "tx-1"))
}

func TestDriver_BoundedPollFailures(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.MaxPollFailures = 2 })
	h.gateway.GetStatusFn = func(context.Context, string, string) (model.TransactionDetail, error) {
		return model.TransactionDetail{}, common.ErrPollFailed
	}

	require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))
	h.waitStatusCalls(t, 1)
	h.waitArmed(t)
	assert.Equal(t, StateWaiting, h.driver.Snapshot().State)

	h.clock.Advance(interval)
	h.waitState(t, StateError)

	snap := h.driver.Snapshot()
	assert.ErrorIs(t, snap.Err, common.ErrPollFailed)
	assert.Equal(t, common.MsgPollFailed, snap.Message)
	require.NotNil(t, snap.Resumable)
	assert.Equal(t, "tx-1", snap.Resumable.TransactionID)
	assert.Equal(t, 0, h.clock.PendingTimers())
	assert.Equal(t, model.OutcomeResumable, h.outcome(t, "tx-1"))
}

func TestDriver_UnboundedPollFailuresByDefault(t *testing.T) {
	h := newHarness(t)
	h.gateway.GetStatusFn = func(context.Context, string, string) (model.TransactionDetail, error) {
		return model.TransactionDetail{}, common.ErrPollFailed
	}

	require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))
	h.waitStatusCalls(t, 1)
	for i := 2; i <= 10; i++ {
		h.tick(t)
		h.waitStatusCalls(t, i)
	}

	snap := h.driver.Snapshot()
	assert.Equal(t, StateWaiting, snap.State)
	assert.Equal(t, 10, snap.Failures)
	assert.NoError(t, snap.Err)
}

func TestDriver_Dismiss(t *testing.T) {
	t.Run("success returns to none", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.GetStatusFn = statuses(model.StatusCompleted)

		require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))
		h.waitState(t, StateSuccess)

		require.NoError(t, h.driver.Dismiss())
		snap := h.driver.Snapshot()
		assert.Equal(t, StateNone, snap.State)
		assert.Nil(t, snap.Action)
		assert.Nil(t, snap.Selected)
		assert.Equal(t, model.OutcomeCompleted, h.outcome(t, "tx-1"))
	})

	t.Run("confirm transfer is recorded as dismissed", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.GetStatusFn = statuses(model.StatusPendingUserTransferStart)

		require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))
		h.waitState(t, StateConfirmTransfer)

		require.NoError(t, h.driver.Dismiss())
		assert.Equal(t, StateNone, h.driver.Snapshot().State)
		assert.Equal(t, model.OutcomeDismissed, h.outcome(t, "tx-1"))
	})

	t.Run("none clears staged error", func(t *testing.T) {
		h := newHarness(t)
		require.Error(t, h.driver.Select(usdc("0")))
		require.NotEmpty(t, h.driver.Snapshot().Message)

		require.NoError(t, h.driver.Dismiss())
		assert.Empty(t, h.driver.Snapshot().Message)
	})

	t.Run("none clears selection", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.driver.Select(usdc("25")))
		require.NotNil(t, h.driver.Snapshot().Selected)

		require.NoError(t, h.driver.Dismiss())
		assert.Nil(t, h.driver.Snapshot().Selected)
		assert.Empty(t, h.gateway.OpenCalls())
	})

	t.Run("waiting cannot be dismissed", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("10")))

		assert.ErrorIs(t, h.driver.Dismiss(), ErrInvalidTransition)
		assert.Equal(t, StateWaiting, h.driver.Snapshot().State)
	})
}

func TestDriver_Select(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.driver.Select(usdc("25")))
	snap := h.driver.Snapshot()
	assert.Equal(t, StateNone, snap.State)
	require.NotNil(t, snap.Selected)
	assert.Equal(t, "USDC", snap.Selected.Code)
	assert.Empty(t, h.gateway.OpenCalls())

	err := h.driver.Select(usdc("0.01"))
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)
	snap = h.driver.Snapshot()
	assert.Equal(t, StateNone, snap.State)
	assert.Nil(t, snap.Selected)
	assert.Equal(t, common.MsgInsufficientBalance, snap.Message)

	require.NoError(t, h.driver.ConfirmOpen(context.Background(), usdc("25")))
	assert.ErrorIs(t, h.driver.Select(usdc("25")), ErrInvalidTransition)
}

func TestDriver_LoadResumable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, r := range testutil.NewRecordBuilder().
		Completed("old", "USDC", "10").
		Resumable("open-1", "USDC").
		Resumable("open-2", "EURC").
		Build() {
		require.NoError(t, testutil.Seed(ctx, h.db.Storage, r))
	}

	require.NoError(t, h.driver.LoadResumable(ctx))

	snap := h.driver.Snapshot()
	require.NotNil(t, snap.Resumable)
	assert.Equal(t, "open-2", snap.Resumable.TransactionID)
	assert.Equal(t, "EURC", snap.Resumable.AssetCode)
}

func TestDriver_WithoutStore(t *testing.T) {
	gateway := anchor.NewMockGateway()
	gateway.GetStatusFn = statuses(model.StatusCompleted)
	d := NewWithConfig(gateway, nil, session.Static{AccessToken: "t", PublicKey: "G"}, nil, Config{Clock: poll.NewFakeClock(start)})

	require.NoError(t, d.LoadResumable(context.Background()))
	require.NoError(t, d.ConfirmOpen(context.Background(), usdc("10")))
	require.Eventually(t, func() bool { return d.Snapshot().State == StateSuccess }, waitFor, pollStep)
}

func TestDriver_SubscribeAndUnsubscribe(t *testing.T) {
	h := newHarness(t)

	var (
		mu       sync.Mutex
		versions []uint64
	)
	unsubscribe := h.driver.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, s.Version)
	})

	require.NoError(t, h.driver.Select(usdc("5")))
	require.NoError(t, h.driver.Dismiss())
	unsubscribe()
	require.Error(t, h.driver.Select(usdc("0")))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, versions, 2)
	assert.Less(t, versions[0], versions[1])
}

func TestDriver_ContextCancelEndsPolling(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, h.driver.ConfirmOpen(ctx, usdc("10")))
	h.waitStatusCalls(t, 1)
	h.waitArmed(t)

	cancel()
	h.clock.Advance(interval)
	assert.Never(t, func() bool { return len(h.gateway.StatusCalls()) > 1 }, 50*time.Millisecond, pollStep)
}
