package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/storefront/internal/client/services"
)

// consoleNotifier prints notifications as "[kind] message". It is called
// from background goroutines too, so writes are serialized.
type consoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleNotifier(w io.Writer) *consoleNotifier {
	return &consoleNotifier{w: w}
}

func (n *consoleNotifier) Notify(kind services.NotificationKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.w, "[%s] %s\n", kind, message)
}
