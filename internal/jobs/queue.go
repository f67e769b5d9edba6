package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	TaskAuditEvent     = "audit:download"
	TaskSitemapRefresh = "sitemap:refresh"
)

type Queue struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	log    logrus.FieldLogger
}

func NewQueue(redisAddr string, log logrus.FieldLogger) *Queue {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	client := asynq.NewClient(redisOpt)
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: log.WithField("component", "asynq"),
		},
	)
	return &Queue{client: client, server: server, mux: asynq.NewServeMux(), log: log}
}

// isTaskConflict checks whether the error indicates a task ID conflict,
// using errors.Is for unwrapped sentinel values and a string fallback.
func isTaskConflict(err error) bool {
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "task ID conflicts") || strings.Contains(msg, "duplicate task")
}

func (q *Queue) RegisterHandler(taskType string, handler asynq.Handler) {
	q.mux.Handle(taskType, handler)
}

// Enqueue marshals payload and enqueues it. A task ID that is already
// queued counts as success.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) (string, error) {
	task, err := newTask(taskType, payload, opts...)
	if err != nil {
		return "", err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		if isTaskConflict(err) {
			q.log.WithField("type", taskType).Debug("task already queued, skipping")
			return "", nil
		}
		return "", fmt.Errorf("enqueue: %w", err)
	}
	return info.ID, nil
}

func newTask(taskType string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(taskType, data, opts...), nil
}

func (q *Queue) Start() error {
	q.log.Info("job queue worker starting")
	return q.server.Start(q.mux)
}

func (q *Queue) Stop() {
	q.server.Shutdown()
	q.client.Close()
}
