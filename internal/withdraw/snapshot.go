package withdraw

import (
	"github.com/Veraticus/offramp/internal/common"
	"github.com/Veraticus/offramp/internal/model"
)

// Snapshot is an immutable copy of the driver's state for rendering.
type Snapshot struct {
	Err        error
	Action     *model.WithdrawalAction
	Selected   *model.Asset
	Resumable  *model.WithdrawalAction
	Message    string // user-facing text for Err
	Detail     model.TransactionDetail
	Version    uint64 // increases with every change; older snapshots can be dropped
	State      State
	Failures   int // consecutive failed polls
	Polling    bool
	Confirming bool
}

// Listener receives a snapshot after every state change. Listeners run on
// the goroutine that caused the change and must not call back into the
// driver, not even Snapshot.
type Listener func(Snapshot)

func (d *Driver) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      d.state,
		Detail:     d.detail,
		Err:        d.err,
		Message:    common.UserMessage(d.err),
		Version:    d.version,
		Failures:   d.failures,
		Polling:    d.scheduler.Active(),
		Confirming: d.confirming,
	}
	if d.action != nil {
		a := *d.action
		snap.Action = &a
	}
	if d.selected != nil {
		s := *d.selected
		snap.Selected = &s
	}
	if d.resumable != nil {
		r := *d.resumable
		snap.Resumable = &r
	}
	return snap
}
