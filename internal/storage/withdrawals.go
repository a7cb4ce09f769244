package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/offramp/internal/common"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/service"
	"github.com/shopspring/decimal"
)

const withdrawalColumns = `transaction_id, asset_code, interactive_url, status, outcome,
	amount_in, amount_fee, amount_out, message, created_at, updated_at`

// SaveAction inserts a new withdrawal action with outcome pending. Saving an
// existing transaction id refreshes its URL and status and leaves the rest alone.
func (s *SQLiteStorage) SaveAction(ctx context.Context, action model.WithdrawalAction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAction(&action); err != nil {
		return err
	}

	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO withdrawals (transaction_id, asset_code, interactive_url, status, outcome, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			interactive_url = excluded.interactive_url,
			status = CASE WHEN excluded.status = '' THEN withdrawals.status ELSE excluded.status END,
			updated_at = excluded.updated_at
	`, action.TransactionID, action.AssetCode, action.InteractiveURL, string(action.Status),
		string(model.OutcomePending), action.CreatedAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("failed to save withdrawal %s: %w", action.TransactionID, err)
	}
	return nil
}

// UpdateStatus records the last status reported by the anchor.
func (s *SQLiteStorage) UpdateStatus(ctx context.Context, transactionID string, status model.TransactionStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}
	if err := validateStatus(status); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE withdrawals SET status = ?, updated_at = ? WHERE transaction_id = ?`,
		string(status), s.now(), transactionID)
	if err != nil {
		return fmt.Errorf("failed to update status for %s: %w", transactionID, err)
	}
	return requireRow(result, transactionID)
}

// SaveDetail stores the status, amounts and message of a status record.
func (s *SQLiteStorage) SaveDetail(ctx context.Context, transactionID string, detail model.TransactionDetail) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}
	if err := validateDetail(&detail); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE withdrawals SET
			status = CASE WHEN ? = '' THEN status ELSE ? END,
			amount_in = ?, amount_fee = ?, amount_out = ?, message = ?, updated_at = ?
		WHERE transaction_id = ?
	`, string(detail.Status), string(detail.Status),
		detail.AmountIn.String(), detail.AmountFee.String(), detail.AmountOut.String(),
		detail.Message, s.now(), transactionID)
	if err != nil {
		return fmt.Errorf("failed to save detail for %s: %w", transactionID, err)
	}
	return requireRow(result, transactionID)
}

// SetOutcome moves a withdrawal to a new lifecycle marker.
func (s *SQLiteStorage) SetOutcome(ctx context.Context, transactionID string, outcome model.Outcome) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}
	if err := validateOutcome(outcome); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE withdrawals SET outcome = ?, updated_at = ? WHERE transaction_id = ?`,
		string(outcome), s.now(), transactionID)
	if err != nil {
		return fmt.Errorf("failed to set outcome for %s: %w", transactionID, err)
	}
	return requireRow(result, transactionID)
}

// GetAction returns one stored withdrawal, or common.ErrNotFound.
func (s *SQLiteStorage) GetAction(ctx context.Context, transactionID string) (*model.WithdrawalRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE transaction_id = ?`, transactionID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("withdrawal %s: %w", transactionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal %s: %w", transactionID, err)
	}
	return record, nil
}

// ListActions returns stored withdrawals, newest first.
func (s *SQLiteStorage) ListActions(ctx context.Context, filter service.ActionFilter) ([]model.WithdrawalRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFilter(&filter); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.AssetCode != "" {
		where = append(where, "asset_code = ?")
		args = append(args, filter.AssetCode)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if len(filter.Outcomes) > 0 {
		placeholders := make([]string, len(filter.Outcomes))
		for i, o := range filter.Outcomes {
			placeholders[i] = "?"
			args = append(args, string(o))
		}
		where = append(where, "outcome IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, transaction_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query withdrawals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.WithdrawalRecord
	for rows.Next() {
		record, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", scanErr)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawals: %w", err)
	}
	return records, nil
}

// ResumableActions returns withdrawals whose polling was interrupted: those
// closed by the user and those left pending by a process that went away.
func (s *SQLiteStorage) ResumableActions(ctx context.Context) ([]model.WithdrawalRecord, error) {
	return s.ListActions(ctx, service.ActionFilter{
		Outcomes: []model.Outcome{model.OutcomeResumable, model.OutcomePending},
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.WithdrawalRecord, error) {
	var (
		record               model.WithdrawalRecord
		url                  sql.NullString
		status, outcome      string
		amountIn, fee, out   string
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(
		&record.Action.TransactionID,
		&record.Action.AssetCode,
		&url,
		&status,
		&outcome,
		&amountIn,
		&fee,
		&out,
		&record.Detail.Message,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	record.Action.InteractiveURL = url.String
	record.Action.Status = model.TransactionStatus(status)
	record.Action.CreatedAt = createdAt.UTC()
	record.Detail.Status = record.Action.Status
	record.Outcome = model.Outcome(outcome)
	record.UpdatedAt = updatedAt.UTC()

	var err error
	if record.Detail.AmountIn, err = parseStored(amountIn); err != nil {
		return nil, err
	}
	if record.Detail.AmountFee, err = parseStored(fee); err != nil {
		return nil, err
	}
	if record.Detail.AmountOut, err = parseStored(out); err != nil {
		return nil, err
	}
	return &record, nil
}

func parseStored(s string) (decimal.Decimal, error) {
	d, err := model.ParseAmount(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrInvalidDecimals, err)
	}
	return d, nil
}

func requireRow(result sql.Result, transactionID string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("withdrawal %s: %w", transactionID, common.ErrNotFound)
	}
	return nil
}
