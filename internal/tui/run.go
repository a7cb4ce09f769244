package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/offramp/internal/anchor"
	"github.com/Veraticus/offramp/internal/common"
	"github.com/Veraticus/offramp/internal/withdraw"
	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the withdrawal TUI until the user quits or ctx is canceled.
// Polling stops when Run returns; a withdrawal that was still waiting is
// left resumable.
func Run(ctx context.Context, driver Driver, balances anchor.BalanceFetcher, opts ...Option) error {
	cfg := newConfig(opts...)

	feed := withdraw.NewFeed()
	unsubscribe := driver.Subscribe(feed.Offer)
	defer func() {
		unsubscribe()
		driver.Teardown()
		feed.Close()
	}()

	if err := driver.LoadResumable(ctx); err != nil {
		common.LogWarn("Could not load interrupted withdrawals", common.Fields{"error": err.Error()})
	}

	p := tea.NewProgram(newModel(ctx, driver, balances, feed, cfg), cfg.programOptions(ctx)...)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
