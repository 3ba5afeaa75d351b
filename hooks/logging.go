// Package hooks provides reusable httprpc hooks for logging, tracing, request
// IDs and argument validation.
package hooks

import (
	"log/slog"
	"time"

	"github.com/broady/httprpc"
)

type logging struct {
	httprpc.BaseHook
	logger *slog.Logger
}

// Logging creates a hook that logs outgoing calls using slog.
// It logs the start of each call, the response status and duration, and
// failures with their error kind.
func Logging(logger *slog.Logger) httprpc.Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return logging{logger: logger}
}

func (h logging) BeforeRequest(c *httprpc.CallContext) error {
	h.logger.InfoContext(c.Context(), "call started",
		slog.String("method", c.Method().FullName()),
		slog.String("verb", c.Method().Verb()),
		slog.String("template", c.Method().Template()),
	)
	return nil
}

func (h logging) AfterResponse(c *httprpc.CallContext) error {
	h.logger.InfoContext(c.Context(), "call completed",
		slog.String("method", c.Method().FullName()),
		slog.Int("status", c.Response.StatusCode),
		slog.Duration("duration", time.Since(c.Start())),
	)
	return nil
}

func (h logging) OnError(c *httprpc.CallContext, err error) {
	h.logger.ErrorContext(c.Context(), "call failed",
		slog.String("method", c.Method().FullName()),
		slog.String("kind", string(httprpc.KindOf(err))),
		slog.Duration("duration", time.Since(c.Start())),
		slog.Any("error", err),
	)
}
