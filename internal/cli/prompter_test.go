package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/offramp/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompter_Confirm(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "yes", input: "y\n", expected: true},
		{name: "full yes", input: "YES\n", expected: true},
		{name: "no", input: "n\n", expected: false},
		{name: "empty defaults to no", input: "\n", expected: false},
		{name: "anything else", input: "maybe\n", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)

			ok, err := p.Confirm(context.Background(), "Proceed?")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
			assert.Contains(t, out.String(), "Proceed? [y/N]")
		})
	}
}

func TestPrompter_ConfirmEOF(t *testing.T) {
	p := NewPrompter(strings.NewReader(""), io.Discard)
	_, err := p.Confirm(context.Background(), "Proceed?")
	assert.ErrorIs(t, err, ErrInputTerminated)
}

func TestPrompter_Canceled(t *testing.T) {
	assets := []model.Asset{{Code: "USDC", Balance: decimal.RequireFromString("25")}}

	tests := []struct {
		name string
		ask  func(ctx context.Context, p *Prompter) error
	}{
		{
			name: "confirm",
			ask: func(ctx context.Context, p *Prompter) error {
				_, err := p.Confirm(ctx, "Proceed?")
				return err
			},
		},
		{
			name: "choose asset",
			ask: func(ctx context.Context, p *Prompter) error {
				_, err := p.ChooseAsset(ctx, assets)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name+" times out", func(t *testing.T) {
			pr, pw := io.Pipe()
			defer func() { _ = pw.Close() }()

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			err := tt.ask(ctx, NewPrompter(pr, io.Discard))
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})

		t.Run(tt.name+" already canceled", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := tt.ask(ctx, NewPrompter(strings.NewReader("1\n"), io.Discard))
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestPrompter_AnswerAfterCancelIsKept(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()
	p := NewPrompter(pr, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Confirm(ctx, "Open the anchor?")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() { _, _ = io.WriteString(pw, "  yes  \n") }()

	ok, err := p.Confirm(context.Background(), "Open the anchor?")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPrompter_ReadsSuccessiveLines(t *testing.T) {
	p := NewPrompter(strings.NewReader("y\nn\nEURC"), io.Discard)
	ctx := context.Background()

	first, err := p.Confirm(ctx, "First?")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := p.Confirm(ctx, "Second?")
	require.NoError(t, err)
	assert.False(t, second)

	asset, err := p.ChooseAsset(ctx, []model.Asset{
		{Code: "USDC", Balance: decimal.RequireFromString("25")},
		{Code: "EURC", Balance: decimal.RequireFromString("3")},
	})
	require.NoError(t, err)
	assert.Equal(t, "EURC", asset.Code)

	_, err = p.Confirm(ctx, "Third?")
	assert.ErrorIs(t, err, ErrInputTerminated)
}

func TestPrompter_ReadError(t *testing.T) {
	pr, pw := io.Pipe()
	_ = pw.CloseWithError(errors.New("tty gone"))

	_, err := NewPrompter(pr, io.Discard).Confirm(context.Background(), "Proceed?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tty gone")
	assert.NotErrorIs(t, err, ErrInputTerminated)
}

func TestPrompter_ChooseAsset(t *testing.T) {
	assets := []model.Asset{
		{Code: "USDC", Balance: decimal.RequireFromString("25")},
		{Code: "EURC", Balance: decimal.RequireFromString("0.01")},
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "by number", input: "1\n", expected: "USDC"},
		{name: "by code", input: "eurc\n", expected: "EURC"},
		{name: "retries invalid input", input: "7\nfoo\n2\n", expected: "EURC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)

			asset, err := p.ChooseAsset(context.Background(), assets)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, asset.Code)
			assert.Contains(t, out.String(), "nothing to withdraw")
		})
	}
}

func TestPrompter_ChooseAssetEmpty(t *testing.T) {
	p := NewPrompter(strings.NewReader("1\n"), io.Discard)
	_, err := p.ChooseAsset(context.Background(), nil)
	assert.Error(t, err)
}
