package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/offramp/internal/anchor"
	"github.com/Veraticus/offramp/internal/cli"
	"github.com/Veraticus/offramp/internal/config"
	"github.com/Veraticus/offramp/internal/launcher"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/storage"
	"github.com/Veraticus/offramp/internal/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func withdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw [asset]",
		Short: "Withdraw a balance through the anchor",
		Long: `Open the anchor's interactive withdrawal for one of your balances and
follow it until the anchor settles it.

Without an asset the full-screen interface lists your balances. Balances
of 0.01 or less cannot be withdrawn.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWithdraw,
	}

	cmd.Flags().Bool("plain", false, "Use line-based prompts instead of the full-screen interface")
	cmd.Flags().Bool("no-browser", false, "Print the anchor link instead of opening a browser")
	cmd.Flags().String("theme", "default", "Color theme for the full-screen interface (default, catppuccin-mocha)")

	_ = viper.BindPFlag("ui.theme", cmd.Flags().Lookup("theme"))

	return cmd
}

func runWithdraw(cmd *cobra.Command, args []string) error {
	plain, _ := cmd.Flags().GetBool("plain")
	noBrowser, _ := cmd.Flags().GetBool("no-browser")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if plain {
		return runPlainWithdraw(cmd, cfg, client, store, args, noBrowser)
	}

	closeLog, err := logToFile(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	// The TUI shows the link itself, so nothing is printed over it.
	var launch launcher.Launcher
	if !noBrowser {
		launch = launcher.NewBrowser()
	}
	driver := newDriver(cfg, client, launch, store)

	if len(args) == 1 {
		assets, err := client.Balances(ctx)
		if err != nil {
			return err
		}
		asset, err := findAsset(assets, args[0])
		if err != nil {
			return err
		}
		preselect(driver, asset)
	}

	return tui.Run(ctx, driver, client,
		tui.WithAltScreen(true),
		tui.WithThemeName(viper.GetString("ui.theme")))
}

func runPlainWithdraw(cmd *cobra.Command, cfg *config.Config, client *anchor.Client, store *storage.SQLiteStorage, args []string, noBrowser bool) error {
	out := cmd.OutOrStdout()
	handler := cli.NewInterruptHandler(out)
	ctx := handler.HandleInterrupts(cmd.Context(), true)

	prompter := cli.NewPrompter(cmd.InOrStdin(), out)
	asset, err := chooseAsset(ctx, client, prompter, args)
	if err != nil {
		return err
	}

	driver := newDriver(cfg, client, newLauncher(noBrowser, out), store)
	defer driver.Teardown()

	_, _ = fmt.Fprintln(out, cli.FormatTitle(cli.AppIcon+" Withdrawing "+asset.Code))
	_, err = cli.NewRunner(driver, prompter, out).Withdraw(ctx, asset)
	if handler.WasInterrupted() || errors.Is(err, cli.ErrDeclined) {
		return nil
	}
	if err != nil {
		return reportedError{err: err}
	}
	return nil
}

func chooseAsset(ctx context.Context, client anchor.BalanceFetcher, prompter *cli.Prompter, args []string) (model.Asset, error) {
	assets, err := client.Balances(ctx)
	if err != nil {
		return model.Asset{}, err
	}
	if len(args) == 1 {
		return findAsset(assets, args[0])
	}
	return prompter.ChooseAsset(ctx, assets)
}
