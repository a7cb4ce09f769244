// Package ofx writes settled withdrawals as an OFX bank statement.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/Veraticus/offramp/internal/common"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
)

// Options describes the statement account.
type Options struct {
	Now       func() time.Time
	Currency  string // ISO 4217, defaults to USD
	AccountID string
	BankID    string
}

// Exporter implements OFX statement generation.
type Exporter struct {
	opts Options
}

// NewExporter creates a new OFX exporter.
func NewExporter(opts Options) *Exporter {
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.AccountID == "" {
		opts.AccountID = "offramp"
	}
	if opts.BankID == "" {
		opts.BankID = "000000000"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Exporter{opts: opts}
}

// Export writes completed records to w as an OFX 2.0.3 bank statement. Other
// outcomes are skipped. It returns the number of transactions written.
func (e *Exporter) Export(ctx context.Context, w io.Writer, records []model.WithdrawalRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cur, err := ofxgo.NewCurrSymbol(e.opts.Currency)
	if err != nil {
		return 0, fmt.Errorf("%w: currency %q: %w", common.ErrInvalidConfig, e.opts.Currency, err)
	}

	settled := make([]model.WithdrawalRecord, 0, len(records))
	for _, r := range records {
		if r.Outcome == model.OutcomeCompleted {
			settled = append(settled, r)
		}
	}
	sort.SliceStable(settled, func(i, j int) bool {
		return settled[i].UpdatedAt.Before(settled[j].UpdatedAt)
	})

	now := e.opts.Now().UTC()
	list := &ofxgo.TransactionList{
		DtStart: ofxgo.Date{Time: now},
		DtEnd:   ofxgo.Date{Time: now},
	}
	if len(settled) > 0 {
		list.DtStart = ofxgo.Date{Time: posted(settled[0])}
		list.DtEnd = ofxgo.Date{Time: posted(settled[len(settled)-1])}
	}

	var balance ofxgo.Amount
	for _, r := range settled {
		tx, convErr := convertRecord(r)
		if convErr != nil {
			common.LogWarn("Skipping withdrawal in OFX export", common.Fields{
				"transaction_id": r.Action.TransactionID,
				"error":          convErr,
			})
			continue
		}
		balance.Add(&balance.Rat, &tx.TrnAmt.Rat)
		list.Transactions = append(list.Transactions, tx)
	}

	stmt := &ofxgo.StatementResponse{
		TrnUID: ofxgo.UID(uuid.NewString()),
		Status: ofxgo.Status{
			Code:     0,
			Severity: "INFO",
		},
		CurDef: *cur,
		BankAcctFrom: ofxgo.BankAcct{
			BankID:   ofxgo.String(e.opts.BankID),
			AcctID:   ofxgo.String(e.opts.AccountID),
			AcctType: ofxgo.AcctTypeChecking,
		},
		BankTranList: list,
		BalAmt:       balance,
		DtAsOf:       ofxgo.Date{Time: now},
	}

	resp := &ofxgo.Response{
		Version: ofxgo.OfxVersion203,
		Signon: ofxgo.SignonResponse{
			Status: ofxgo.Status{
				Code:     0,
				Severity: "INFO",
			},
			DtServer: ofxgo.Date{Time: now},
			Language: "ENG",
		},
		Bank: []ofxgo.Message{stmt},
	}

	buf, err := resp.Marshal()
	if err != nil {
		return 0, fmt.Errorf("failed to marshal OFX statement: %w", err)
	}
	if _, err := buf.WriteTo(w); err != nil {
		return 0, fmt.Errorf("failed to write OFX statement: %w", err)
	}

	slog.Debug("Exported OFX statement",
		"records", len(records),
		"transactions", len(list.Transactions))
	return len(list.Transactions), nil
}

// convertRecord turns one completed withdrawal into a DEBIT.
func convertRecord(r model.WithdrawalRecord) (ofxgo.Transaction, error) {
	if r.Action.TransactionID == "" {
		return ofxgo.Transaction{}, fmt.Errorf("missing transaction id")
	}

	var amt ofxgo.Amount
	if _, ok := amt.SetString(r.Detail.AmountOut.Neg().String()); !ok {
		return ofxgo.Transaction{}, fmt.Errorf("invalid amount %s", r.Detail.AmountOut)
	}

	memo := fmt.Sprintf("%s withdrawal", r.Action.AssetCode)
	if !r.Detail.AmountFee.IsZero() {
		memo = fmt.Sprintf("%s (fee %s)", memo, r.Detail.AmountFee.String())
	}

	return ofxgo.Transaction{
		TrnType:  ofxgo.TrnTypeDebit,
		DtPosted: ofxgo.Date{Time: posted(r)},
		TrnAmt:   amt,
		FiTID:    ofxgo.String(r.Action.TransactionID),
		Name:     ofxgo.String("Withdrawal " + r.Action.AssetCode),
		Memo:     ofxgo.String(memo),
	}, nil
}

// posted is when the withdrawal settled, falling back to when it started.
func posted(r model.WithdrawalRecord) time.Time {
	if !r.UpdatedAt.IsZero() {
		return r.UpdatedAt.UTC()
	}
	return r.Action.CreatedAt.UTC()
}
