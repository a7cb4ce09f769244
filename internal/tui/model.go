// Package tui is the interactive terminal front end for withdrawals.
package tui

import (
	"context"
	"errors"

	"github.com/Veraticus/offramp/internal/anchor"
	"github.com/Veraticus/offramp/internal/common"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/tui/components"
	"github.com/Veraticus/offramp/internal/tui/themes"
	"github.com/Veraticus/offramp/internal/withdraw"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Driver is the withdrawal flow the TUI renders and controls.
type Driver interface {
	Select(asset model.Asset) error
	ConfirmOpen(ctx context.Context, asset model.Asset) error
	Resume(ctx context.Context, action model.WithdrawalAction) error
	LoadResumable(ctx context.Context) error
	CloseWaiting() error
	Confirm(ctx context.Context, transactionID, assetCode string) error
	Dismiss() error
	Teardown()
	Snapshot() withdraw.Snapshot
	Subscribe(fn withdraw.Listener) func()
}

// Model holds the main TUI state.
type Model struct {
	ctx      context.Context
	driver   Driver
	balances anchor.BalanceFetcher
	feed     *withdraw.Feed
	theme    themes.Theme
	keymap   KeyMap
	help     help.Model
	assets   components.AssetListModel
	waiting  components.WaitingModel
	transfer components.ConfirmTransferModel
	snap     withdraw.Snapshot
	status   string
	config   Config
	width    int
	height   int
	loading  bool
	quitting bool
}

// newModel creates a model bound to driver. feed must already be
// subscribed to the driver.
func newModel(ctx context.Context, driver Driver, balances anchor.BalanceFetcher, feed *withdraw.Feed, cfg Config) Model {
	m := Model{
		ctx:      ctx,
		driver:   driver,
		balances: balances,
		feed:     feed,
		theme:    cfg.Theme,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		assets:   components.NewAssetList(nil, cfg.Theme),
		waiting:  components.NewWaiting(cfg.Theme),
		transfer: components.NewConfirmTransfer(cfg.Theme),
		config:   cfg,
		width:    cfg.Width,
		height:   cfg.Height,
		loading:  balances != nil,
	}
	m.applySnapshot(driver.Snapshot())
	return m
}

// Init starts listening for driver changes and loads balances.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForSnapshot(m.feed)}
	if m.balances != nil {
		cmds = append(cmds, loadBalances(m.ctx, m.balances))
	}
	if busy(m.snap.State) {
		cmds = append(cmds, m.waiting.Tick())
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.assets.Resize(msg.Width)
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		return m.handleSnapshot(msg.snap)

	case balancesLoadedMsg:
		m.loading = false
		if msg.err != nil {
			common.LogError(msg.err, "Failed to load balances", nil)
			m.status = common.MsgAnchorConnectFailed
			return m, nil
		}
		m.status = ""
		m.assets.SetAssets(msg.assets)
		return m, nil

	case driverResultMsg:
		m.handleDriverResult(msg)
		return m, nil

	case components.AssetChosenMsg:
		return m, m.selectAsset(msg.Asset)

	case components.ConfirmDecisionMsg:
		if msg.Accepted {
			return m, m.confirm(msg.TransactionID, msg.AssetCode)
		}
		return m, m.dismiss()

	case spinner.TickMsg:
		if !busy(m.snap.State) {
			return m, nil
		}
		var cmd tea.Cmd
		m.waiting, cmd = m.waiting.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleSnapshot(snap withdraw.Snapshot) (tea.Model, tea.Cmd) {
	next := waitForSnapshot(m.feed)
	if snap.Version < m.snap.Version {
		return m, next
	}

	prev := m.snap
	m.applySnapshot(snap)

	cmds := []tea.Cmd{next}
	if busy(snap.State) && !busy(prev.State) {
		cmds = append(cmds, m.waiting.Tick())
	}
	if prev.State == withdraw.StateSuccess && snap.State == withdraw.StateNone && m.balances != nil {
		m.loading = true
		cmds = append(cmds, loadBalances(m.ctx, m.balances))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) applySnapshot(snap withdraw.Snapshot) {
	m.snap = snap
	m.waiting.SetAction(snap.Action, snap.Failures)
	if snap.State == withdraw.StateConfirmTransfer {
		m.transfer.SetAction(snap.Action, snap.Detail, snap.Confirming)
	}
}

func (m *Model) handleDriverResult(msg driverResultMsg) {
	var userErr *common.UserError
	switch {
	case msg.err == nil, errors.Is(msg.err, withdraw.ErrSuperseded):
	case errors.As(msg.err, &userErr):
		// Surfaced through the snapshot.
	case errors.Is(msg.err, withdraw.ErrInvalidTransition):
		common.LogDebug("Ignored driver operation", common.Fields{"op": msg.op, "error": msg.err.Error()})
	default:
		common.LogError(msg.err, "Driver operation failed", common.Fields{"op": msg.op})
		m.status = common.UserMessage(msg.err)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.keymap.forSnapshot(m.snap)

	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit()
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, keys.Resume):
		if m.snap.Resumable != nil {
			return m, m.resume(*m.snap.Resumable)
		}
		return m, nil
	}

	switch m.snap.State {
	case withdraw.StateNone:
		return m.handleIdleKey(msg, keys)
	case withdraw.StateWaiting:
		if key.Matches(msg, keys.Close) {
			return m, m.closeWaiting()
		}
	case withdraw.StateConfirmTransfer:
		var cmd tea.Cmd
		m.transfer, cmd = m.transfer.Update(msg)
		return m, cmd
	case withdraw.StateSuccess, withdraw.StateError:
		if key.Matches(msg, keys.Dismiss) {
			return m, m.dismiss()
		}
	}
	return m, nil
}

func (m Model) handleIdleKey(msg tea.KeyMsg, keys KeyMap) (tea.Model, tea.Cmd) {
	switch {
	case m.snap.Err != nil:
		if key.Matches(msg, keys.Dismiss) {
			return m, m.dismiss()
		}
	case m.snap.Selected != nil:
		switch {
		case key.Matches(msg, keys.Open):
			return m, m.confirmOpen(*m.snap.Selected)
		case key.Matches(msg, keys.Decline):
			return m, m.dismiss()
		}
	default:
		if key.Matches(msg, keys.Refresh) && m.balances != nil {
			m.loading = true
			return m, loadBalances(m.ctx, m.balances)
		}
		var cmd tea.Cmd
		m.assets, cmd = m.assets.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.driver.Teardown()
	m.feed.Close()
	return m, tea.Quit
}

// busy reports whether the anchor is working and the spinner should run.
func busy(s withdraw.State) bool {
	return s == withdraw.StateStarted || s == withdraw.StateWaiting
}
