package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/offramp/internal/anchor"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/withdraw"
	tea "github.com/charmbracelet/bubbletea"
)

const balancesTimeout = 30 * time.Second

// waitForSnapshot blocks until the driver publishes a change or the feed
// is closed.
func waitForSnapshot(feed *withdraw.Feed) tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case <-feed.Done():
				return nil
			case <-feed.Ready():
				if snap, ok := feed.Take(); ok {
					return snapshotMsg{snap: snap}
				}
			}
		}
	}
}

// loadBalances fetches the wallet's balance lines.
func loadBalances(ctx context.Context, fetcher anchor.BalanceFetcher) tea.Cmd {
	return func() tea.Msg {
		if fetcher == nil {
			return balancesLoadedMsg{err: fmt.Errorf("balance source not configured")}
		}

		ctx, cancel := context.WithTimeout(ctx, balancesTimeout)
		defer cancel()

		assets, err := fetcher.Balances(ctx)
		return balancesLoadedMsg{assets: assets, err: err}
	}
}

func (m Model) selectAsset(asset model.Asset) tea.Cmd {
	return func() tea.Msg {
		return driverResultMsg{op: "select", err: m.driver.Select(asset)}
	}
}

func (m Model) confirmOpen(asset model.Asset) tea.Cmd {
	return func() tea.Msg {
		return driverResultMsg{op: "open", err: m.driver.ConfirmOpen(m.ctx, asset)}
	}
}

func (m Model) resume(action model.WithdrawalAction) tea.Cmd {
	return func() tea.Msg {
		return driverResultMsg{op: "resume", err: m.driver.Resume(m.ctx, action)}
	}
}

func (m Model) confirm(transactionID, assetCode string) tea.Cmd {
	return func() tea.Msg {
		return driverResultMsg{op: "confirm", err: m.driver.Confirm(m.ctx, transactionID, assetCode)}
	}
}

func (m Model) closeWaiting() tea.Cmd {
	return func() tea.Msg {
		return driverResultMsg{op: "close", err: m.driver.CloseWaiting()}
	}
}

func (m Model) dismiss() tea.Cmd {
	return func() tea.Msg {
		return driverResultMsg{op: "dismiss", err: m.driver.Dismiss()}
	}
}
