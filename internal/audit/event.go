// Package audit records download negotiation transitions and redirect token
// decisions. Recording is fire-and-forget: a failing sink never delays the
// request that produced the event.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	QualityChosen     EventType = "quality_chosen"
	ServiceChosen     EventType = "service_chosen"
	DownloadInitiated EventType = "download_initiated"
	LinkRetrieved     EventType = "link_retrieved"
	LinkFailed        EventType = "link_failed"
	TokenIssued       EventType = "token_issued"
	TokenGranted      EventType = "token_granted"
	TokenBlocked      EventType = "token_blocked"
)

// ClientEventTypes are the transitions a client may report itself.
var ClientEventTypes = []EventType{QualityChosen, ServiceChosen, DownloadInitiated, LinkRetrieved, LinkFailed}

func (t EventType) Valid() bool {
	switch t {
	case QualityChosen, ServiceChosen, DownloadInitiated, LinkRetrieved, LinkFailed,
		TokenIssued, TokenGranted, TokenBlocked:
		return true
	}
	return false
}

type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       EventType      `json:"type"`
	Slug       string         `json:"slug,omitempty"`
	Quality    string         `json:"quality,omitempty"`
	Service    string         `json:"service,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	ClientIP   string         `json:"clientIp,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Recorder accepts events without blocking the caller.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Sink persists one event.
type Sink interface {
	Name() string
	Write(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

type clientKey struct{}

// Client carries request-scoped client details into recorded events.
type Client struct {
	IP        string
	UserAgent string
}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

func ClientFrom(ctx context.Context) Client {
	c, _ := ctx.Value(clientKey{}).(Client)
	return c
}
