package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Veraticus/offramp/internal/model"
)

// ErrInputTerminated is returned when input ends before an answer was given.
var ErrInputTerminated = errors.New("input terminated")

// Prompter asks the user questions on a terminal. Reads give up when the
// context ends, and a line typed after that is kept for the next question.
type Prompter struct {
	writer io.Writer
	input  *bufio.Reader
	lines  chan line
	start  sync.Once
}

type line struct {
	err  error
	text string
}

// NewPrompter creates a prompter with the given reader and writer.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		writer: writer,
		input:  bufio.NewReader(reader),
		lines:  make(chan line),
	}
}

// Confirm asks a yes/no question. Anything but y or yes means no.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	if _, err := fmt.Fprintf(p.writer, "%s", FormatPrompt(question+" [y/N]")); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}

	answer, err := p.readLine(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ChooseAsset lists balances and asks which one to withdraw. Assets that
// cannot be withdrawn are listed but marked.
func (p *Prompter) ChooseAsset(ctx context.Context, assets []model.Asset) (model.Asset, error) {
	if len(assets) == 0 {
		return model.Asset{}, fmt.Errorf("no balances to withdraw from")
	}

	if _, err := fmt.Fprintln(p.writer, FormatPrompt("Balances:")); err != nil {
		return model.Asset{}, fmt.Errorf("failed to write balances: %w", err)
	}
	for i, a := range assets {
		line := fmt.Sprintf("  [%d] %-8s %s", i+1, a.Code, a.Balance.String())
		if !a.CanWithdraw() {
			line += SubtleStyle.Render("  (nothing to withdraw)")
		}
		if _, err := fmt.Fprintln(p.writer, line); err != nil {
			return model.Asset{}, fmt.Errorf("failed to write balance line: %w", err)
		}
	}

	for {
		if _, err := fmt.Fprintf(p.writer, "%s", FormatPrompt("Asset")); err != nil {
			return model.Asset{}, fmt.Errorf("failed to write prompt: %w", err)
		}
		input, err := p.readLine(ctx)
		if err != nil {
			return model.Asset{}, err
		}

		if n, convErr := strconv.Atoi(input); convErr == nil && n >= 1 && n <= len(assets) {
			return assets[n-1], nil
		}
		for _, a := range assets {
			if strings.EqualFold(a.Code, input) {
				return a, nil
			}
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

func (p *Prompter) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.start.Do(func() { go p.scan() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-p.lines:
		if !ok {
			return "", ErrInputTerminated
		}
		return l.text, l.err
	}
}

// scan feeds lines to readLine until the input ends. A blocked terminal read
// cannot be interrupted, so the goroutine outlives a canceled question.
func (p *Prompter) scan() {
	defer close(p.lines)
	for {
		text, err := p.input.ReadString('\n')
		if text != "" {
			p.lines <- line{text: strings.TrimSpace(text)}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.lines <- line{err: fmt.Errorf("failed to read input: %w", err)}
			}
			return
		}
	}
}
