package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/offramp/internal/anchor/sandbox"
	"github.com/Veraticus/offramp/internal/cli"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/spf13/cobra"
)

func sandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run a local stand-in for the anchor backend",
		Long: `Serve the wallet backend's anchor endpoints from memory so the whole
withdrawal flow can be tried without a real anchor.

Point offramp at it with ANCHOR_BASE_URL=http://localhost:8787.`,
		Args: cobra.NoArgs,
		RunE: runSandbox,
	}

	cmd.Flags().String("addr", "localhost:8787", "Address to listen on")
	cmd.Flags().String("token", "", "Require this bearer token")
	cmd.Flags().StringSlice("balance", []string{"USDC=150.00", "EURC=0.005"}, "Balances to serve as CODE=AMOUNT")
	cmd.Flags().StringSlice("script", nil, "Status sequence for an asset as CODE=status,status,...")
	cmd.Flags().Int("fail-polls", 0, "Answer the first N status checks of every transaction with 503")
	cmd.Flags().String("confirm-error", "", "Reject confirmations with this message")

	return cmd
}

func runSandbox(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	token, _ := cmd.Flags().GetString("token")
	balances, _ := cmd.Flags().GetStringSlice("balance")
	scripts, _ := cmd.Flags().GetStringSlice("script")
	failPolls, _ := cmd.Flags().GetInt("fail-polls")
	confirmError, _ := cmd.Flags().GetString("confirm-error")

	cfg := sandbox.Config{
		Token:        token,
		FailPolls:    failPolls,
		ConfirmError: confirmError,
	}
	var err error
	if cfg.Balances, err = parseBalances(balances); err != nil {
		return err
	}
	if cfg.Scripts, err = parseScripts(scripts); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           sandbox.New(cfg).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Sandbox anchor listening on http://"+addr))
	slog.Info("Sandbox started", "addr", addr, "balances", len(cfg.Balances), "scripts", len(cfg.Scripts))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sandbox server failed: %w", err)
		}
		return nil
	case <-cmd.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop sandbox: %w", err)
	}
	slog.Info("Sandbox stopped")
	return nil
}

// parseBalances reads CODE=AMOUNT pairs.
func parseBalances(pairs []string) ([]sandbox.Balance, error) {
	balances := make([]sandbox.Balance, 0, len(pairs))
	for _, b := range pairs {
		code, amount, ok := strings.Cut(b, "=")
		if !ok || code == "" {
			return nil, fmt.Errorf("invalid --balance %q: want CODE=AMOUNT", b)
		}
		if _, err := model.ParseAmount(amount); err != nil {
			return nil, fmt.Errorf("invalid --balance %q: %w", b, err)
		}
		balances = append(balances, sandbox.Balance{AssetCode: strings.ToUpper(code), Amount: amount})
	}
	return balances, nil
}

// parseScripts reads CODE=status,status,... status sequences.
func parseScripts(specs []string) (map[string][]model.TransactionStatus, error) {
	scripts := make(map[string][]model.TransactionStatus, len(specs))
	for _, s := range specs {
		code, list, ok := strings.Cut(s, "=")
		if !ok || code == "" || list == "" {
			return nil, fmt.Errorf("invalid --script %q: want CODE=status,status", s)
		}
		var statuses []model.TransactionStatus
		for _, status := range strings.Split(list, ",") {
			statuses = append(statuses, model.TransactionStatus(strings.TrimSpace(status)))
		}
		scripts[strings.ToUpper(code)] = statuses
	}
	return scripts, nil
}
