package external

import (
	"context"
	"log/slog"
)

// CallEvent records metadata about a single outbound call.
type CallEvent struct {
	Service   string
	Operation string
	LatencyMs int64
	Success   bool
	ErrorCode string
}

// Observer receives events about outbound calls.
type Observer interface {
	OnCallComplete(event CallEvent)
}

// LogObserver writes call events to a structured logger.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnCallComplete(event CallEvent) {
	level := slog.LevelDebug
	if !event.Success {
		level = slog.LevelWarn
	}
	o.logger.Log(context.Background(), level, "external_call",
		"service", event.Service,
		"operation", event.Operation,
		"latency_ms", event.LatencyMs,
		"success", event.Success,
		"error_code", event.ErrorCode,
	)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) OnCallComplete(CallEvent) {}
