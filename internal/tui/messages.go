package tui

import (
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/withdraw"
)

// Message types for the TUI.
type (
	snapshotMsg struct {
		snap withdraw.Snapshot
	}

	balancesLoadedMsg struct {
		err    error
		assets []model.Asset
	}

	driverResultMsg struct {
		err error
		op  string
	}
)
