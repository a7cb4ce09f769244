package anchor

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/offramp/internal/model"
)

// MockGateway is a mock implementation of Gateway and BalanceFetcher for testing.
// It is safe for concurrent use because poll ticks run on their own goroutines.
type MockGateway struct {
	// Functions that can be set by tests to control behavior
	OpenInteractiveFn func(ctx context.Context, assetCode string) (Interactive, error)
	GetStatusFn       func(ctx context.Context, transactionID, assetCode string) (model.TransactionDetail, error)
	ConfirmWithdrawFn func(ctx context.Context, transactionID, assetCode string) error
	BalancesFn        func(ctx context.Context) ([]model.Asset, error)

	openCalls    []string
	statusCalls  []StatusCall
	confirmCalls []StatusCall
	balanceCalls int
	mu           sync.Mutex
}

// StatusCall records the parameters of a GetStatus or ConfirmWithdraw call.
type StatusCall struct {
	TransactionID string
	AssetCode     string
}

// NewMockGateway creates a new mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// OpenInteractive implements Gateway.OpenInteractive.
func (m *MockGateway) OpenInteractive(ctx context.Context, assetCode string) (Interactive, error) {
	m.mu.Lock()
	m.openCalls = append(m.openCalls, assetCode)
	n := len(m.openCalls)
	fn := m.OpenInteractiveFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, assetCode)
	}

	// Default behavior: a fresh transaction per call
	id := fmt.Sprintf("tx-%d", n)
	return Interactive{
		ID:   id,
		URL:  "https://anchor.example.com/withdraw?id=" + id,
		Type: "interactive_customer_info_needed",
	}, nil
}

// GetStatus implements Gateway.GetStatus.
func (m *MockGateway) GetStatus(ctx context.Context, transactionID, assetCode string) (model.TransactionDetail, error) {
	m.mu.Lock()
	m.statusCalls = append(m.statusCalls, StatusCall{TransactionID: transactionID, AssetCode: assetCode})
	fn := m.GetStatusFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, transactionID, assetCode)
	}

	// Default behavior: anchor is still working
	return model.TransactionDetail{Status: model.StatusPendingAnchor}, nil
}

// ConfirmWithdraw implements Gateway.ConfirmWithdraw.
func (m *MockGateway) ConfirmWithdraw(ctx context.Context, transactionID, assetCode string) error {
	m.mu.Lock()
	m.confirmCalls = append(m.confirmCalls, StatusCall{TransactionID: transactionID, AssetCode: assetCode})
	fn := m.ConfirmWithdrawFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, transactionID, assetCode)
	}
	return nil
}

// Balances implements BalanceFetcher.Balances.
func (m *MockGateway) Balances(ctx context.Context) ([]model.Asset, error) {
	m.mu.Lock()
	m.balanceCalls++
	fn := m.BalancesFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return []model.Asset{}, nil
}

// OpenCalls returns the asset codes passed to OpenInteractive.
func (m *MockGateway) OpenCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.openCalls...)
}

// StatusCalls returns the recorded GetStatus calls.
func (m *MockGateway) StatusCalls() []StatusCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatusCall(nil), m.statusCalls...)
}

// StatusCallsFor counts GetStatus calls for one transaction.
func (m *MockGateway) StatusCallsFor(transactionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.statusCalls {
		if c.TransactionID == transactionID {
			n++
		}
	}
	return n
}

// ConfirmCalls returns the recorded ConfirmWithdraw calls.
func (m *MockGateway) ConfirmCalls() []StatusCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatusCall(nil), m.confirmCalls...)
}

// BalanceCalls returns how many times Balances was called.
func (m *MockGateway) BalanceCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceCalls
}

// Reset clears all call tracking.
func (m *MockGateway) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCalls = nil
	m.statusCalls = nil
	m.confirmCalls = nil
	m.balanceCalls = 0
}

// Ensure MockGateway implements the interfaces.
var (
	_ Gateway        = (*MockGateway)(nil)
	_ BalanceFetcher = (*MockGateway)(nil)
)
