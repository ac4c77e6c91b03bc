package starlark

import (
	"log/slog"

	"go.starlark.net/starlark"
)

// DefaultMaxSteps bounds the work of one rule invocation.
const DefaultMaxSteps uint64 = 10_000_000

// newThread creates a thread whose print() output goes to the logger.
func newThread(name string, maxSteps uint64, logger *slog.Logger) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(t *starlark.Thread, msg string) {
			logger.Debug(msg, slog.String("script", t.Name))
		},
	}
	if maxSteps > 0 {
		thread.SetMaxExecutionSteps(maxSteps)
	}
	return thread
}
