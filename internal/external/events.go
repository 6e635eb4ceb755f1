package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	backend "github.com/redis/go-redis/v9"
)

// RedisEventSink publishes lifecycle events as JSON on a Redis channel.
type RedisEventSink struct {
	client  *backend.Client
	channel string
}

func NewRedisEventSink(client *backend.Client, channel string) *RedisEventSink {
	return &RedisEventSink{client: client, channel: channel}
}

func (s *RedisEventSink) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		return fmt.Errorf("publishing %s event: %w", ev.Type, err)
	}
	return nil
}

// LogEventSink writes events to the log. Used when no broker is configured.
type LogEventSink struct {
	logger *slog.Logger
}

func NewLogEventSink(logger *slog.Logger) *LogEventSink {
	return &LogEventSink{logger: logger}
}

func (s *LogEventSink) Publish(ctx context.Context, ev Event) error {
	s.logger.InfoContext(ctx, "work_order_event",
		"type", string(ev.Type),
		"work_order_id", ev.WorkOrderID,
		"work_plan_id", ev.PlanID,
		"status", ev.Status,
	)
	return nil
}
