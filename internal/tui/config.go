package tui

import (
	"context"

	"github.com/Veraticus/offramp/internal/tui/themes"
	tea "github.com/charmbracelet/bubbletea"
)

// Config holds TUI configuration.
type Config struct {
	Theme     themes.Theme
	Width     int
	Height    int
	AltScreen bool
	ShowHelp  bool
}

// Option configures the withdrawal TUI.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Theme:    themes.Default,
		Width:    80,
		Height:   24,
		ShowHelp: true,
	}
}

func newConfig(opts ...Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c Config) programOptions(ctx context.Context) []tea.ProgramOption {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if c.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	return opts
}

// WithTheme sets the color theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) { c.Theme = theme }
}

// WithThemeName picks a theme by its ui.theme name. Unknown names keep the default.
func WithThemeName(name string) Option {
	return WithTheme(themes.GetTheme(name))
}

// WithSize sets the size used before the terminal reports its own.
func WithSize(width, height int) Option {
	return func(c *Config) { c.Width, c.Height = width, height }
}

// WithAltScreen runs the program in the terminal's alternate screen, so the
// balances and waiting views do not scroll the shell history.
func WithAltScreen(enabled bool) Option {
	return func(c *Config) { c.AltScreen = enabled }
}

// WithHelp toggles the key help footer.
func WithHelp(show bool) Option {
	return func(c *Config) { c.ShowHelp = show }
}
