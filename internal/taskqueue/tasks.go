package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"relayengine/internal/models"
)

// TypeNotify is the task type of queued notifications
const TypeNotify = "notify:send"

// NotificationSender delivers a notification synchronously
type NotificationSender interface {
	Send(ctx context.Context, n models.Notification) error
}

// NewNotifyTask encodes a notification as a task
func NewNotifyTask(n models.Notification) (*asynq.Task, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notify task: %w", err)
	}
	return asynq.NewTask(TypeNotify, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// Queue enqueues notifications so the engine never waits on the messaging API
type Queue struct {
	client *asynq.Client
}

// NewQueue creates an enqueueing client for the Redis at redisAddr
func NewQueue(redisAddr string) *Queue {
	return &Queue{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

// Notify enqueues n for the worker
func (q *Queue) Notify(ctx context.Context, n models.Notification) error {
	task, err := NewNotifyTask(n)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue notification for rule %s: %w", n.RuleID, err)
	}
	log.Printf("TASKQUEUE: Enqueued notification %s for rule %s", info.ID, n.RuleID)
	return nil
}

// Close releases the client
func (q *Queue) Close() error {
	return q.client.Close()
}

// HandleNotifyTask returns the handler delivering queued notifications through sender
func HandleNotifyTask(sender NotificationSender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var n models.Notification
		if err := json.Unmarshal(t.Payload(), &n); err != nil {
			return fmt.Errorf("decode notify task: %v: %w", err, asynq.SkipRetry)
		}
		if err := sender.Send(ctx, n); err != nil {
			log.Printf("TASKQUEUE: Notification for rule %s failed: %v", n.RuleID, err)
			return err
		}
		log.Printf("TASKQUEUE: Delivered notification for rule %s to %s", n.RuleID, n.Destination)
		return nil
	}
}
