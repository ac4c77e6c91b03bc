package build

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// captureHandler is a slog.Handler that records entries for one plugin
// invocation and optionally forwards them to a parent handler.
type captureHandler struct {
	store  *captureStore
	attrs  []slog.Attr
	groups []string
	next   slog.Handler
}

type captureStore struct {
	mu      sync.Mutex
	entries []core.LogEntry
}

func newCaptureHandler(next slog.Handler) *captureHandler {
	return &captureHandler{store: &captureStore{}, next: next}
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := core.LogEntry{Level: r.Level.String(), Message: r.Message}
	if len(h.attrs) > 0 || r.NumAttrs() > 0 {
		entry.Attrs = make(map[string]any, len(h.attrs)+r.NumAttrs())
		for _, a := range h.attrs {
			entry.Attrs[a.Key] = a.Value.Resolve().Any()
		}
		prefix := strings.Join(h.groups, ".")
		r.Attrs(func(a slog.Attr) bool {
			key := a.Key
			if prefix != "" {
				key = prefix + "." + key
			}
			entry.Attrs[key] = a.Value.Resolve().Any()
			return true
		})
	}

	h.store.mu.Lock()
	h.store.entries = append(h.store.entries, entry)
	h.store.mu.Unlock()

	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	prefix := strings.Join(h.groups, ".")
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	if h.next != nil {
		clone.next = h.next.WithAttrs(attrs)
	}
	return &clone
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	if h.next != nil {
		clone.next = h.next.WithGroup(name)
	}
	return &clone
}

// Entries returns the captured entries in emission order.
func (h *captureHandler) Entries() []core.LogEntry {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return append([]core.LogEntry(nil), h.store.entries...)
}
