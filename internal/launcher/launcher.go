// Package launcher hands interactive URLs to the platform's browser.
package launcher

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"
)

// Launcher opens a URL outside the application. The caller learns nothing
// about what happens there.
type Launcher interface {
	Open(url string) error
}

// Browser opens URLs with the operating system's default handler.
type Browser struct {
	// command builds the process to run; replaced in tests.
	command func(url string) *exec.Cmd
}

// NewBrowser creates a launcher for the current platform.
func NewBrowser() *Browser {
	return &Browser{command: browserCommand(runtime.GOOS)}
}

// Open implements Launcher.
func (b *Browser) Open(url string) error {
	if b.command == nil {
		return fmt.Errorf("no browser launcher for %s", runtime.GOOS)
	}
	cmd := b.command(url)
	if cmd == nil {
		return fmt.Errorf("no browser launcher for %s", runtime.GOOS)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	// Reap the child so it does not linger as a zombie.
	go func() { _ = cmd.Wait() }()
	return nil
}

func browserCommand(goos string) func(url string) *exec.Cmd {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return func(url string) *exec.Cmd {
			return exec.Command("xdg-open", url) //nolint:gosec,forbidigo
		}
	case "windows":
		return func(url string) *exec.Cmd {
			return exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:gosec,forbidigo
		}
	case "darwin":
		return func(url string) *exec.Cmd {
			return exec.Command("open", url) //nolint:gosec,forbidigo
		}
	default:
		return nil
	}
}

// Printer writes the URL instead of launching anything, for headless use.
type Printer struct {
	W io.Writer
}

// Open implements Launcher.
func (p Printer) Open(url string) error {
	_, err := fmt.Fprintf(p.W, "Open this link to continue your withdrawal:\n  %s\n", url)
	return err
}

// Recorder remembers opened URLs. Useful in tests.
type Recorder struct {
	Err  error
	urls []string
	mu   sync.Mutex
}

// Open implements Launcher.
func (r *Recorder) Open(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, url)
	return r.Err
}

// URLs returns every URL passed to Open.
func (r *Recorder) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}

var (
	_ Launcher = (*Browser)(nil)
	_ Launcher = Printer{}
	_ Launcher = (*Recorder)(nil)
)
