package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/service"
	"github.com/charmbracelet/lipgloss"
)

// RenderHistory writes stored withdrawals as a table followed by totals.
func RenderHistory(w io.Writer, records []model.WithdrawalRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No withdrawals yet."))
		return err
	}

	headers := []string{"CREATED", "TRANSACTION", "ASSET", "STATUS", "OUTCOME", "AMOUNT OUT"}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Action.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Action.TransactionID,
			r.Action.AssetCode,
			string(r.Action.Status),
			string(r.Outcome),
			r.Detail.AmountOut.String(),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := lipgloss.Width(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	header := make([]string, len(headers))
	for i, h := range headers {
		header[i] = TableCellStyle.Width(widths[i] + 2).Render(h)
	}
	b.WriteString(TableHeaderStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, header...)))
	b.WriteString("\n")

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			style := TableCellStyle.Width(widths[i] + 2)
			if i == 4 {
				style = style.Inherit(OutcomeStyle(model.Outcome(cell)))
			}
			cells[i] = style.Render(cell)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(formatSummary(service.Summarize(records)))

	_, err := fmt.Fprintln(w, b.String())
	return err
}

func formatSummary(s service.WithdrawalSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s completed, %s failed, %s open, %s dismissed",
		SuccessStyle.Render(fmt.Sprint(s.Completed)),
		ErrorStyle.Render(fmt.Sprint(s.Failed)),
		WarningStyle.Render(fmt.Sprint(s.Pending)),
		SubtleStyle.Render(fmt.Sprint(s.Dismissed)))

	codes := make([]string, 0, len(s.ByAsset))
	for code := range s.ByAsset {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		a := s.ByAsset[code]
		fmt.Fprintf(&b, "\n  %-8s %d withdrawn, %s out, %s in fees",
			code, a.Count, BoldStyle.Render(a.AmountOut.String()), a.AmountFee.String())
	}
	return b.String()
}
