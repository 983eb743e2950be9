package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kiranshivaraju/equiplens/internal/metrics"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

const taskField = "task"

// RedisConfig configures a RedisQueue.
type RedisConfig struct {
	Stream      string
	Group       string
	Consumer    string
	Concurrency int
	MaxAttempts int
	ReclaimIdle time.Duration
	Block       time.Duration
}

// RedisQueue is a Queue on a Redis Stream read through a consumer group.
// A message is acknowledged only after its handler succeeded, it was
// re-enqueued for another attempt, or it was moved to the dead-letter
// stream. Deliveries left pending by a crashed worker are reclaimed after
// ReclaimIdle.
type RedisQueue struct {
	client *redis.Client
	cfg    RedisConfig
	logger *slog.Logger
}

// NewRedisQueue creates a queue on client. Zero config values get defaults.
func NewRedisQueue(client *redis.Client, cfg RedisConfig, logger *slog.Logger) *RedisQueue {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Block <= 0 {
		cfg.Block = time.Second
	}
	if cfg.ReclaimIdle <= 0 {
		cfg.ReclaimIdle = 5 * time.Minute
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "worker"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisQueue{client: client, cfg: cfg, logger: logger}
}

// DeadLetterStream is where tasks go after their last failed attempt.
func (q *RedisQueue) DeadLetterStream() string {
	return q.cfg.Stream + ":dlq"
}

func (q *RedisQueue) Enqueue(ctx context.Context, task models.Task) error {
	return q.add(ctx, q.cfg.Stream, task)
}

func (q *RedisQueue) add(ctx context.Context, stream string, task models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encoding task: %w", err)
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{taskField: data},
	}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}

// Run consumes tasks until ctx is cancelled, then waits for in-flight
// handlers. Handlers run detached from ctx so a shutdown lets them finish.
func (q *RedisQueue) Run(ctx context.Context, handler Handler) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	sem := make(chan struct{}, q.cfg.Concurrency)
	var wg sync.WaitGroup
	dispatch := func(msg redis.XMessage) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			q.process(context.WithoutCancel(ctx), handler, msg)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		q.reclaimLoop(ctx, dispatch)
	}()

	q.logger.Info("queue consumer started",
		"stream", q.cfg.Stream, "group", q.cfg.Group, "consumer", q.cfg.Consumer)

	for ctx.Err() == nil {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.cfg.Group,
			Consumer: q.cfg.Consumer,
			Streams:  []string{q.cfg.Stream, ">"},
			Count:    int64(q.cfg.Concurrency),
			Block:    q.cfg.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.logger.Error("queue read failed", "stream", q.cfg.Stream, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		for _, s := range streams {
			for _, msg := range s.Messages {
				dispatch(msg)
			}
		}
	}

	wg.Wait()
	q.logger.Info("queue consumer stopped", "stream", q.cfg.Stream)
	return nil
}

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group %s: %w", q.cfg.Group, err)
	}
	return nil
}

func (q *RedisQueue) reclaimLoop(ctx context.Context, dispatch func(redis.XMessage)) {
	ticker := time.NewTicker(q.cfg.ReclaimIdle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msgs, err := q.reclaim(ctx)
			if err != nil {
				if ctx.Err() == nil {
					q.logger.Warn("queue reclaim failed", "stream", q.cfg.Stream, "error", err)
				}
				continue
			}
			for _, msg := range msgs {
				dispatch(msg)
			}
		}
	}
}

// reclaim takes ownership of deliveries idle for longer than ReclaimIdle.
func (q *RedisQueue) reclaim(ctx context.Context) ([]redis.XMessage, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.cfg.Stream,
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		MinIdle:  q.cfg.ReclaimIdle,
		Start:    "0-0",
		Count:    int64(q.cfg.Concurrency),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		q.logger.Info("reclaimed idle deliveries", "stream", q.cfg.Stream, "count", len(msgs))
	}
	return msgs, nil
}

func (q *RedisQueue) process(ctx context.Context, handler Handler, msg redis.XMessage) {
	task, err := decodeTask(msg)
	if err != nil {
		q.logger.Error("dropping undecodable task", "message_id", msg.ID, "error", err)
		q.ack(ctx, msg.ID)
		return
	}

	err = safeHandle(ctx, handler, task)
	switch {
	case err == nil:
		metrics.QueueTasks.WithLabelValues(task.Kind, "succeeded").Inc()
	case retryable(err, task, q.cfg.MaxAttempts):
		q.logger.Warn("task failed, retrying",
			"task_id", task.ID, "kind", task.Kind, "attempt", task.Attempt, "error", err)
		next := task
		next.Attempt++
		if addErr := q.Enqueue(ctx, next); addErr != nil {
			// Leave the delivery pending so it is reclaimed later.
			q.logger.Error("re-enqueue failed", "task_id", task.ID, "error", addErr)
			return
		}
		metrics.QueueTasks.WithLabelValues(task.Kind, "retried").Inc()
	default:
		q.logger.Error("task dead-lettered",
			"task_id", task.ID, "kind", task.Kind, "dataset_id", task.DatasetID,
			"attempt", task.Attempt, "error", err)
		if addErr := q.add(ctx, q.DeadLetterStream(), task); addErr != nil {
			q.logger.Error("dead-letter failed", "task_id", task.ID, "error", addErr)
			return
		}
		metrics.QueueTasks.WithLabelValues(task.Kind, "dead_lettered").Inc()
	}
	q.ack(ctx, msg.ID)
}

func (q *RedisQueue) ack(ctx context.Context, id string) {
	if err := q.client.XAck(ctx, q.cfg.Stream, q.cfg.Group, id).Err(); err != nil {
		q.logger.Warn("xack failed", "message_id", id, "error", err)
	}
}

func decodeTask(msg redis.XMessage) (models.Task, error) {
	var task models.Task
	raw, ok := msg.Values[taskField]
	if !ok {
		return task, fmt.Errorf("message %s has no %q field", msg.ID, taskField)
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return task, fmt.Errorf("message %s: unexpected %T payload", msg.ID, raw)
	}
	if err := json.Unmarshal(data, &task); err != nil {
		return task, fmt.Errorf("message %s: %w", msg.ID, err)
	}
	return task, nil
}

var _ Queue = (*RedisQueue)(nil)
