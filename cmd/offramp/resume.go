package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/offramp/internal/cli"
	"github.com/Veraticus/offramp/internal/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func resumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [transaction-id]",
		Short: "Resume following an interrupted withdrawal",
		Long: `Pick up a withdrawal whose status checks were stopped, either because
the waiting view was closed or because offramp exited while the anchor
was still working. The anchor's flow is not opened again.

Without a transaction id the most recent interrupted withdrawal is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runResume,
	}

	cmd.Flags().Bool("plain", false, "Use line-based prompts instead of the full-screen interface")

	return cmd
}

func runResume(cmd *cobra.Command, args []string) error {
	plain, _ := cmd.Flags().GetBool("plain")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var transactionID string
	if len(args) == 1 {
		transactionID = args[0]
	}
	action, err := findResumable(cmd.Context(), store, transactionID)
	if err != nil {
		return err
	}

	if plain {
		out := cmd.OutOrStdout()
		handler := cli.NewInterruptHandler(out)
		ctx := handler.HandleInterrupts(cmd.Context(), true)

		driver := newDriver(cfg, client, nil, store)
		defer driver.Teardown()

		_, _ = fmt.Fprintln(out, cli.FormatTitle(cli.WaitIcon+" Resuming "+action.TransactionID))
		_, err = cli.NewRunner(driver, cli.NewPrompter(cmd.InOrStdin(), out), out).Resume(ctx, action)
		if handler.WasInterrupted() || errors.Is(err, cli.ErrDeclined) {
			return nil
		}
		if err != nil {
			return reportedError{err: err}
		}
		return nil
	}

	closeLog, err := logToFile(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	// Resuming never launches the browser again.
	driver := newDriver(cfg, client, nil, store)
	if err := driver.Resume(cmd.Context(), action); err != nil {
		return err
	}
	return tui.Run(cmd.Context(), driver, client,
		tui.WithAltScreen(true),
		tui.WithThemeName(viper.GetString("ui.theme")))
}
