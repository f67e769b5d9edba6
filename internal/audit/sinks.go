package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/JustinTDCT/CineGate/internal/metrics"
)

// LogSink writes events as structured log lines.
type LogSink struct {
	Log logrus.FieldLogger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Write(_ context.Context, e Event) error {
	s.Log.WithFields(logrus.Fields{
		"event_id": e.ID.String(),
		"type":     e.Type,
		"slug":     e.Slug,
		"quality":  e.Quality,
		"service":  e.Service,
		"reason":   e.Reason,
		"ip":       e.ClientIP,
	}).Info("download audit")
	return nil
}

// Fallback writes to Primary and, when that fails, to Secondary.
type Fallback struct {
	Primary   Sink
	Secondary Sink
}

func (f Fallback) Name() string { return f.Primary.Name() }

func (f Fallback) Write(ctx context.Context, e Event) error {
	err := f.Primary.Write(ctx, e)
	if err == nil {
		return nil
	}
	metrics.AuditDropped.WithLabelValues(f.Primary.Name()).Inc()
	if sErr := f.Secondary.Write(ctx, e); sErr != nil {
		return fmt.Errorf("%s: %w; %s: %w", f.Primary.Name(), err, f.Secondary.Name(), sErr)
	}
	return nil
}

// PostgresSink appends events to the download_events table.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (*PostgresSink) Name() string { return "postgres" }

const insertEvent = `INSERT INTO download_events
	(event_id, event_type, slug, quality, service, reason, client_ip, user_agent, context, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (event_id) DO NOTHING`

func (s *PostgresSink) Write(ctx context.Context, e Event) error {
	extra := []byte("{}")
	if len(e.Context) > 0 {
		b, err := json.Marshal(e.Context)
		if err != nil {
			return fmt.Errorf("marshal context: %w", err)
		}
		extra = b
	}
	_, err := s.db.ExecContext(ctx, insertEvent,
		e.ID.String(), string(e.Type), e.Slug, e.Quality, e.Service, e.Reason,
		e.ClientIP, e.UserAgent, string(extra), e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert download event: %w", err)
	}
	return nil
}
