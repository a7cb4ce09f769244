// Package testutil provides test utilities for the offramp project.
// It offers isolated in-memory databases and builders for withdrawal history.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/service"
	"github.com/Veraticus/offramp/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
	Records []model.WithdrawalRecord
}

// SetupTestDB creates a new in-memory test database seeded with the given
// withdrawal records. It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.NewRecordBuilder().
//		Completed("tx-1", "USDC", "98.50").
//		Resumable("tx-2", "EURC").
//		Build()...)
func SetupTestDB(t *testing.T, records ...model.WithdrawalRecord) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Records: records})
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	Records        []model.WithdrawalRecord
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	// Create in-memory SQLite storage
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	ctx := context.Background()

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	// Run migrations unless skipped
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	for _, record := range opts.Records {
		if err := Seed(ctx, store, record); err != nil {
			t.Fatalf("failed to seed withdrawal %q: %v", record.Action.TransactionID, err)
		}
	}

	// Run custom setup
	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{
		Storage: store,
		Records: opts.Records,
		t:       t,
	}
}

// Seed writes a full withdrawal record through the public storage API.
func Seed(ctx context.Context, store service.Storage, record model.WithdrawalRecord) error {
	if err := store.SaveAction(ctx, record.Action); err != nil {
		return err
	}
	if hasDetail(record.Detail) {
		if err := store.SaveDetail(ctx, record.Action.TransactionID, record.Detail); err != nil {
			return err
		}
	}
	if record.Outcome != "" && record.Outcome != model.OutcomePending {
		if err := store.SetOutcome(ctx, record.Action.TransactionID, record.Outcome); err != nil {
			return err
		}
	}
	return nil
}

// MustGet returns the stored record or fails the test.
func (db *TestDB) MustGet(transactionID string) *model.WithdrawalRecord {
	db.t.Helper()
	record, err := db.Storage.GetAction(context.Background(), transactionID)
	if err != nil {
		db.t.Fatalf("failed to get withdrawal %q: %v", transactionID, err)
	}
	return record
}

func hasDetail(d model.TransactionDetail) bool {
	return d.Message != "" || !d.AmountIn.IsZero() || !d.AmountFee.IsZero() || !d.AmountOut.IsZero()
}
