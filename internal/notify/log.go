package notify

import (
	"context"
	"log/slog"
	"strings"
)

// LogTransport writes messages to the logger instead of sending them. Links
// stay usable from the log in development.
type LogTransport struct {
	log *slog.Logger
}

func NewLogTransport(log *slog.Logger) LogTransport {
	if log == nil {
		log = slog.Default()
	}
	return LogTransport{log: log}
}

func (LogTransport) Name() string { return "log" }

func (t LogTransport) Deliver(ctx context.Context, msg Message) error {
	t.log.InfoContext(ctx, "email",
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}
