package model

// TransactionStatus is the status an anchor reports for a transaction.
type TransactionStatus string

// Statuses reported by anchors. Only completed, error and
// pending_user_transfer_start change the client's behavior; every other
// value is a passive pending substate.
const (
	StatusCompleted                   TransactionStatus = "completed"
	StatusError                       TransactionStatus = "error"
	StatusIncomplete                  TransactionStatus = "incomplete"
	StatusPendingAnchor               TransactionStatus = "pending_anchor"
	StatusPendingExternal             TransactionStatus = "pending_external"
	StatusPendingUserTransferStart    TransactionStatus = "pending_user_transfer_start"
	StatusPendingUserTransferComplete TransactionStatus = "pending_user_transfer_complete"
	StatusPendingUser                 TransactionStatus = "pending_user"
	StatusPendingStellar              TransactionStatus = "pending_stellar"
	StatusPendingTrust                TransactionStatus = "pending_trust"
	StatusRefunded                    TransactionStatus = "refunded"
	StatusExpired                     TransactionStatus = "expired"
	StatusNoMarket                    TransactionStatus = "no_market"
	StatusTooSmall                    TransactionStatus = "too_small"
	StatusTooLarge                    TransactionStatus = "too_large"
)

// StatusClass groups statuses by how the withdrawal driver reacts to them.
type StatusClass int

const (
	// ClassPassive keeps polling.
	ClassPassive StatusClass = iota
	// ClassActionable stops polling and asks the user to confirm.
	ClassActionable
	// ClassTerminal stops polling permanently.
	ClassTerminal
)

func (c StatusClass) String() string {
	switch c {
	case ClassActionable:
		return "actionable"
	case ClassTerminal:
		return "terminal"
	default:
		return "passive"
	}
}

// Class returns the fixed classification of s.
func (s TransactionStatus) Class() StatusClass {
	switch s {
	case StatusCompleted, StatusError:
		return ClassTerminal
	case StatusPendingUserTransferStart:
		return ClassActionable
	default:
		return ClassPassive
	}
}

// IsTerminal reports whether no further changes are expected for s.
func (s TransactionStatus) IsTerminal() bool {
	return s.Class() == ClassTerminal
}

// IsActionable reports whether s requires an explicit user confirmation.
func (s TransactionStatus) IsActionable() bool {
	return s.Class() == ClassActionable
}

func (s TransactionStatus) String() string {
	return string(s)
}
