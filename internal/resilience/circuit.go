package resilience

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker position.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker judges a dependency on its most recent outcomes. It trips once the
// window holds at least minRequests results and the failure share reaches
// failureRatio, then admits a single probe after openFor.
type Breaker struct {
	mu sync.Mutex

	minRequests  int
	failureRatio float64
	openFor      time.Duration

	state    State
	openedAt time.Time
	probing  bool
	window   outcomes

	target string
	logger zerolog.Logger
	now    func() time.Time
}

// outcomes is a fixed ring of call results; true means failure.
type outcomes struct {
	ring     []bool
	next     int
	size     int
	failures int
}

func newOutcomes(capacity int) outcomes {
	return outcomes{ring: make([]bool, capacity)}
}

func (o *outcomes) add(failed bool) {
	if o.size == len(o.ring) {
		if o.ring[o.next] {
			o.failures--
		}
	} else {
		o.size++
	}
	o.ring[o.next] = failed
	if failed {
		o.failures++
	}
	o.next = (o.next + 1) % len(o.ring)
}

func (o *outcomes) reset() {
	clear(o.ring)
	o.next, o.size, o.failures = 0, 0, 0
}

func (o *outcomes) failureRatio() float64 {
	if o.size == 0 {
		return 0
	}
	return float64(o.failures) / float64(o.size)
}

// NewBreaker builds a closed breaker. The outcome window is twice minRequests
// so a burst of old successes cannot hide a fresh outage for long.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if minRequests <= 0 {
		minRequests = 1
	}
	if failureRatio <= 0 {
		failureRatio = 0.5
	}
	if failureRatio > 1 {
		failureRatio = 1
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		minRequests:  minRequests,
		failureRatio: failureRatio,
		openFor:      openFor,
		window:       newOutcomes(minRequests * 2),
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
}

// WithTarget names the downstream dependency for metrics and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	setStateGauge(b.label(), b.state)
	return b
}

// WithLogger sets the logger for transition events.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
	return b
}

// WithClock replaces the time source.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.now = now
	}
	return b
}

// Allow reports whether a call may proceed. While half-open only one probe is
// in flight at a time.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) < b.openFor {
			return false
		}
		b.moveLocked(ctx, HalfOpen)
	}
	if b.probing {
		return false
	}
	b.probing = true
	return true
}

// Report records the outcome of an allowed call.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.probing = false
		if success {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
	case Closed:
		b.window.add(!success)
		if b.window.size >= b.minRequests && b.window.failureRatio() >= b.failureRatio {
			b.moveLocked(ctx, Open)
		}
	}
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) moveLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	b.window.reset()
	if next == Open {
		b.openedAt = b.now()
	}
	label := b.label()
	observeTransition(label, prev, next)

	logger := b.logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		logger = *l
	}
	evt := logger.Info().Str("target", label).Str("from_state", prev.String()).Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}

// Backoff returns base * 2^(attempt-1) spread by +/- jitterPct.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << uint(attempt-1)
	if jitterPct <= 0 {
		return d
	}
	spread := float64(d) * jitterPct
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
