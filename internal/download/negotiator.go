package download

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/JustinTDCT/CineGate/internal/audit"
)

// DefaultRevealDelay is how long a client waits between choosing a service
// and asking for the link.
const DefaultRevealDelay = 5 * time.Second

var (
	ErrInvalidChoice = errors.New("choice not offered")
	ErrOutOfOrder    = errors.New("step not available in current state")
	ErrStepFailed    = errors.New("download step failed")
)

type State int

const (
	StateIdle State = iota
	StateQualityChosen
	StateServiceChosen
	StateLinkReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateQualityChosen:
		return "QUALITY_CHOSEN"
	case StateServiceChosen:
		return "SERVICE_CHOSEN"
	case StateLinkReady:
		return "LINK_READY"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// API is the server side of the negotiation as seen by a client.
type API interface {
	Qualities(ctx context.Context, slug string) (QualitiesResponse, error)
	Services(ctx context.Context, slug, quality string) (ServicesResponse, error)
	Link(ctx context.Context, slug, quality, service string) (LinkResponse, error)
}

// Reporter is implemented by APIs that accept client-side audit events.
type Reporter interface {
	Report(ctx context.Context, e audit.Event) error
}

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Negotiator walks one slug through the reveal steps. Choosing a quality
// clears the service and link; choosing a service clears the link and
// restarts the reveal gate. Not safe for concurrent use.
type Negotiator struct {
	api   API
	slug  string
	delay time.Duration
	clock Clock

	state     State
	qualities []string
	services  []string
	quality   string
	service   string
	link      *Link
	revealAt  time.Time
}

type NegotiatorOption func(*Negotiator)

func WithClock(c Clock) NegotiatorOption {
	return func(n *Negotiator) { n.clock = c }
}

func NewNegotiator(api API, slug string, delay time.Duration, opts ...NegotiatorOption) *Negotiator {
	if delay < 0 {
		delay = 0
	}
	n := &Negotiator{api: api, slug: slug, delay: delay, clock: systemClock{}}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *Negotiator) State() State        { return n.state }
func (n *Negotiator) Quality() string     { return n.quality }
func (n *Negotiator) Service() string     { return n.service }
func (n *Negotiator) Qualities() []string { return n.qualities }
func (n *Negotiator) Services() []string  { return n.services }

// Link is the revealed link, or nil before LINK_READY.
func (n *Negotiator) Link() *Link { return n.link }

// Delay is the reveal gate length currently in force.
func (n *Negotiator) Delay() time.Duration { return n.delay }

// Load fetches the qualities on offer and resets to IDLE. A reveal delay
// advertised by the server replaces the one given to NewNegotiator.
func (n *Negotiator) Load(ctx context.Context) ([]string, error) {
	n.reset(StateIdle)
	n.qualities = nil
	res, err := n.api.Qualities(ctx, n.slug)
	if err != nil {
		return nil, err
	}
	if !res.Success || len(res.Qualities) == 0 {
		return nil, fmt.Errorf("%w: no qualities for %s", ErrStepFailed, n.slug)
	}
	n.qualities = res.Qualities
	if res.RevealDelayMs > 0 {
		n.delay = time.Duration(res.RevealDelayMs) * time.Millisecond
	}
	return n.qualities, nil
}

// ChooseQuality selects q and fetches its services.
func (n *Negotiator) ChooseQuality(ctx context.Context, q string) ([]string, error) {
	if !slices.Contains(n.qualities, q) {
		return nil, fmt.Errorf("%w: quality %q", ErrInvalidChoice, q)
	}
	n.reset(StateIdle)
	res, err := n.api.Services(ctx, n.slug, q)
	if err != nil {
		return nil, err
	}
	if !res.Success || len(res.Services) == 0 {
		return nil, fmt.Errorf("%w: no services for %s", ErrStepFailed, q)
	}
	n.quality = q
	n.services = make([]string, len(res.Services))
	for i, s := range res.Services {
		n.services[i] = s.ServiceName
	}
	n.state = StateQualityChosen
	return n.services, nil
}

// ChooseService selects s and arms the reveal gate.
func (n *Negotiator) ChooseService(ctx context.Context, s string) error {
	if n.state < StateQualityChosen {
		return fmt.Errorf("%w: %s", ErrOutOfOrder, n.state)
	}
	if !slices.Contains(n.services, s) {
		return fmt.Errorf("%w: service %q", ErrInvalidChoice, s)
	}
	n.service = s
	n.link = nil
	n.revealAt = n.clock.Now().Add(n.delay)
	n.state = StateServiceChosen
	n.report(ctx, audit.ServiceChosen)
	return nil
}

// RevealIn is the time left on the gate; zero once it has elapsed.
func (n *Negotiator) RevealIn() time.Duration {
	if n.state != StateServiceChosen {
		return 0
	}
	if d := n.revealAt.Sub(n.clock.Now()); d > 0 {
		return d
	}
	return 0
}

// CanReveal reports whether the link step is open.
func (n *Negotiator) CanReveal() bool {
	return n.state == StateServiceChosen && n.RevealIn() == 0
}

// WaitGate blocks until the reveal gate has elapsed. Anything that acts on
// the chosen service, such as requesting a redirect token, waits here first.
func (n *Negotiator) WaitGate(ctx context.Context) error {
	if n.state != StateServiceChosen && n.state != StateLinkReady {
		return fmt.Errorf("%w: %s", ErrOutOfOrder, n.state)
	}
	wait := n.RevealIn()
	if wait <= 0 {
		return nil
	}
	select {
	case <-n.clock.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reveal waits out the gate and fetches the link. A failed fetch leaves the
// negotiator in SERVICE_CHOSEN so it can be retried.
func (n *Negotiator) Reveal(ctx context.Context) (*Link, error) {
	switch n.state {
	case StateLinkReady:
		return n.link, nil
	case StateServiceChosen:
	default:
		return nil, fmt.Errorf("%w: %s", ErrOutOfOrder, n.state)
	}
	if err := n.WaitGate(ctx); err != nil {
		return nil, err
	}
	res, err := n.api.Link(ctx, n.slug, n.quality, n.service)
	if err == nil && (!res.Success || res.Link == nil) {
		err = fmt.Errorf("%w: no link for %s/%s", ErrStepFailed, n.quality, n.service)
	}
	if err != nil {
		return nil, err
	}
	n.link = res.Link
	n.state = StateLinkReady
	return n.link, nil
}

func (n *Negotiator) reset(to State) {
	n.state = to
	n.quality = ""
	n.service = ""
	n.services = nil
	n.link = nil
	n.revealAt = time.Time{}
}

// report forwards a transition only the client observes; failures are
// ignored.
func (n *Negotiator) report(ctx context.Context, t audit.EventType) {
	r, ok := n.api.(Reporter)
	if !ok {
		return
	}
	_ = r.Report(ctx, audit.Event{Type: t, Slug: n.slug, Quality: n.quality, Service: n.service})
}
