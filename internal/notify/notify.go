// Package notify publishes phase-completion events. Delivery is best
// effort: a failed publish is logged and counted, never returned.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kiranshivaraju/equiplens/internal/cache"
	"github.com/kiranshivaraju/equiplens/internal/metrics"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// Notifier broadcasts dataset events to subscribers.
type Notifier interface {
	Notify(ctx context.Context, ownerID uuid.UUID, ev models.Event)
}

// RedisNotifier publishes each event on the owner's channel and on the
// shared broadcast channel.
type RedisNotifier struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, logger: logger}
}

func (n *RedisNotifier) Notify(ctx context.Context, ownerID uuid.UUID, ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		n.fail(ev, "", err)
		return
	}

	channels := []string{cache.NotifyBroadcastChannel}
	if ownerID != uuid.Nil {
		channels = append([]string{cache.NotifyOwnerChannel(ownerID)}, channels...)
	}
	for _, ch := range channels {
		if err := n.client.Publish(ctx, ch, data).Err(); err != nil {
			n.fail(ev, ch, err)
		}
	}
}

func (n *RedisNotifier) fail(ev models.Event, channel string, err error) {
	metrics.NotificationFailures.Inc()
	n.logger.Warn("notification not delivered",
		"dataset_id", ev.DatasetID,
		"status", ev.Status,
		"channel", channel,
		"error", err,
	)
}

// LogNotifier writes events to the log. The offline CLI uses it.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, ownerID uuid.UUID, ev models.Event) {
	n.logger.Info("dataset event", "dataset_id", ev.DatasetID, "owner_id", ownerID, "status", ev.Status)
}

var (
	_ Notifier = (*RedisNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
