// Package shell is the terminal UI shell: it renders orchestrator messages,
// tracks navigation and collects credential input.
package shell

import (
	"fmt"
	"io"
	"sync"

	"github.com/atinyakov/doafavor/internal/models"
)

// Terminal renders messages and navigation requests as lines of text.
type Terminal struct {
	out io.Writer

	mu    sync.Mutex
	route string
}

// NewTerminal returns a Terminal writing to out, positioned at the login route.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out, route: models.RouteLogin}
}

// ShowMessage prints text with a marker for its kind.
func (t *Terminal) ShowMessage(kind models.MessageKind, text string) {
	marker := "❌"
	if kind == models.MessageSuccess {
		marker = "✅"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "%s %s\n", marker, text)
}

// RequestNavigation records route as the current screen.
func (t *Terminal) RequestNavigation(route string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.route = route
	fmt.Fprintf(t.out, "-> %s\n", route)
}

// Route is the current screen.
func (t *Terminal) Route() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.route
}
