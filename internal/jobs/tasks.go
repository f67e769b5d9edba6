package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/JustinTDCT/CineGate/internal/audit"
)

// ──────── Audit events ────────

// AuditSink hands events to the queue; a worker persists them later.
type AuditSink struct {
	q *Queue
}

func NewAuditSink(q *Queue) *AuditSink {
	return &AuditSink{q: q}
}

func (*AuditSink) Name() string { return "queue" }

func (s *AuditSink) Write(ctx context.Context, e audit.Event) error {
	_, err := s.q.Enqueue(ctx, TaskAuditEvent, e,
		asynq.Queue("low"),
		asynq.MaxRetry(5),
		asynq.TaskID(e.ID.String()),
		asynq.Retention(time.Hour),
	)
	return err
}

// AuditHandler writes queued events into sink.
type AuditHandler struct {
	sink audit.Sink
}

func NewAuditHandler(sink audit.Sink) *AuditHandler {
	return &AuditHandler{sink: sink}
}

func (h *AuditHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var e audit.Event
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return fmt.Errorf("unmarshal: %v: %w", err, asynq.SkipRetry)
	}
	if !e.Type.Valid() {
		return fmt.Errorf("unknown event type %q: %w", e.Type, asynq.SkipRetry)
	}
	return h.sink.Write(ctx, e)
}

// ──────── Sitemap refresh ────────

// Refresher rebuilds a cached artifact.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type SitemapHandler struct {
	r Refresher
}

func NewSitemapHandler(r Refresher) *SitemapHandler {
	return &SitemapHandler{r: r}
}

func (h *SitemapHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	return h.r.Refresh(ctx)
}

// ──────── Register all handlers ────────

func RegisterHandlers(q *Queue, auditSink audit.Sink, sitemap Refresher) {
	q.RegisterHandler(TaskAuditEvent, NewAuditHandler(auditSink))
	if sitemap != nil {
		q.RegisterHandler(TaskSitemapRefresh, NewSitemapHandler(sitemap))
	}
}
