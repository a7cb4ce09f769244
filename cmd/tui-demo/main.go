// Package main provides a demo program for the TUI
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Veraticus/offramp/internal/anchor"
	"github.com/Veraticus/offramp/internal/model"
	"github.com/Veraticus/offramp/internal/session"
	"github.com/Veraticus/offramp/internal/tui"
	"github.com/Veraticus/offramp/internal/withdraw"
	"github.com/shopspring/decimal"
)

// script is the status sequence every demo withdrawal walks through.
var script = []model.TransactionStatus{
	model.StatusIncomplete,
	model.StatusPendingAnchor,
	model.StatusPendingAnchor,
	model.StatusPendingUserTransferStart,
}

func main() {
	ctx := context.Background()

	var (
		mu    sync.Mutex
		polls = make(map[string]int)
	)

	gateway := anchor.NewMockGateway()
	gateway.BalancesFn = func(context.Context) ([]model.Asset, error) {
		return []model.Asset{
			{Code: "USDC", Issuer: "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN", Balance: decimal.RequireFromString("150.00")},
			{Code: "EURC", Issuer: "GDHU6WRG4IEQXM5NZ4BMPKOXHW76MZM4Y2IEMFDVXBSDP6FJY4ITNPP2", Balance: decimal.RequireFromString("0.005")},
		}, nil
	}
	gateway.GetStatusFn = func(_ context.Context, transactionID, _ string) (model.TransactionDetail, error) {
		mu.Lock()
		n := polls[transactionID]
		polls[transactionID]++
		mu.Unlock()

		if n >= len(script) {
			n = len(script) - 1
		}
		return model.TransactionDetail{
			Status:    script[n],
			AmountIn:  decimal.RequireFromString("100.00"),
			AmountFee: decimal.RequireFromString("1.50"),
			AmountOut: decimal.RequireFromString("98.50"),
		}, nil
	}

	cfg := withdraw.DefaultConfig()
	cfg.Interval = time.Second
	driver := withdraw.NewWithConfig(gateway, nil, session.Static{AccessToken: "demo", PublicKey: "GDEMO"}, nil, cfg)

	if err := tui.Run(ctx, driver, gateway, tui.WithSize(120, 40), tui.WithAltScreen(true)); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
