package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/offramp/internal/cli"
	"github.com/Veraticus/offramp/internal/common"
	"github.com/Veraticus/offramp/internal/config"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/ofx"
	"github.com/Veraticus/offramp/internal/service"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show and export past withdrawals",
	}

	cmd.AddCommand(historyListCmd())
	cmd.AddCommand(historyExportCmd())

	return cmd
}

func historyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored withdrawals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := historyFilter(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			filter.Limit = limit

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			records, err := loadHistory(cmd, cfg, filter)
			if err != nil {
				return err
			}
			return cli.RenderHistory(cmd.OutOrStdout(), records)
		},
	}

	addFilterFlags(cmd)
	cmd.Flags().Int("limit", 50, "Maximum number of withdrawals to show (0 for all)")
	cmd.Flags().StringSlice("outcome", nil, "Only show these outcomes (pending, resumable, completed, failed, dismissed)")

	return cmd
}

func historyExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export completed withdrawals for your bookkeeping",
		Long: `Write completed withdrawals as an OFX bank statement. Each withdrawal
becomes one debit of the amount the anchor paid out, keyed by its
transaction id so re-imports do not duplicate it.`,
		Args: cobra.NoArgs,
		RunE: runHistoryExport,
	}

	addFilterFlags(cmd)
	cmd.Flags().String("format", "ofx", "Export format (ofx)")
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runHistoryExport(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if !strings.EqualFold(format, "ofx") {
		return fmt.Errorf("%w: unsupported export format %q", common.ErrInvalidConfig, format)
	}

	filter, err := historyFilter(cmd)
	if err != nil {
		return err
	}
	filter.Outcomes = []model.Outcome{model.OutcomeCompleted}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	records, err := loadHistory(cmd, cfg, filter)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	output, _ := cmd.Flags().GetString("output")
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	exporter := ofx.NewExporter(ofx.Options{
		Currency:  cfg.Export.Currency,
		AccountID: cfg.Export.AccountID,
	})
	n, err := exporter.Export(cmd.Context(), w, records)
	if err != nil {
		return err
	}

	slog.Info("Exported withdrawals", "count", n, "format", "ofx", "output", output)
	if output != "" {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess(fmt.Sprintf("Exported %d withdrawals to %s", n, output)))
	}
	return nil
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("asset", "", "Only include this asset")
	cmd.Flags().String("since", "", "Only include withdrawals created on or after this date (YYYY-MM-DD)")
}

// historyFilter builds a filter from the asset, since and outcome flags.
func historyFilter(cmd *cobra.Command) (service.ActionFilter, error) {
	var filter service.ActionFilter

	asset, _ := cmd.Flags().GetString("asset")
	filter.AssetCode = strings.ToUpper(asset)

	since, _ := cmd.Flags().GetString("since")
	if since != "" {
		t, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return filter, fmt.Errorf("%w: --since must be YYYY-MM-DD: %w", common.ErrInvalidConfig, err)
		}
		filter.Since = &t
	}

	if cmd.Flags().Lookup("outcome") != nil {
		outcomes, _ := cmd.Flags().GetStringSlice("outcome")
		for _, o := range outcomes {
			outcome := model.Outcome(strings.ToLower(o))
			if !outcome.IsValid() {
				return filter, fmt.Errorf("%w: unknown outcome %q", common.ErrInvalidConfig, o)
			}
			filter.Outcomes = append(filter.Outcomes, outcome)
		}
	}

	return filter, nil
}

func loadHistory(cmd *cobra.Command, cfg *config.Config, filter service.ActionFilter) ([]model.WithdrawalRecord, error) {
	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	return store.ListActions(cmd.Context(), filter)
}
