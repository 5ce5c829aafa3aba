// Package notify delivers local reminder notifications. The gateway keeps an
// in-memory timer per scheduled trigger and hands fired notifications to a
// caller-supplied handler.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmsas95/medimate/internal/errors"
	"github.com/gmsas95/medimate/internal/metrics"
	"github.com/gmsas95/medimate/internal/trigger"
)

// Payload is what a fired notification carries to the handler.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Handler receives fired notifications.
type Handler func(payload Payload, firedAt time.Time)

// Gateway schedules and cancels notification triggers.
type Gateway interface {
	// RequestPermission reports whether notifications may be scheduled.
	RequestPermission() bool
	// Schedule arms a trigger and returns its id. Fails when permission was
	// not granted or the spec has no future fire.
	Schedule(spec trigger.Spec, payload Payload) (string, error)
	// Cancel disarms a trigger. Unknown ids are ignored.
	Cancel(id string)
	// CancelAll disarms every trigger.
	CancelAll()
}

type timerEntry struct {
	timer   *time.Timer
	spec    trigger.Spec
	payload Payload
}

// LocalGateway is an in-process Gateway backed by time.AfterFunc timers.
// Repeating triggers re-arm themselves after each fire under the same id.
type LocalGateway struct {
	logger  *zap.Logger
	handler Handler
	granted bool
	now     func() time.Time
	metrics *metrics.Metrics

	mu     sync.Mutex
	timers map[string]*timerEntry
}

// NewLocalGateway creates a gateway. granted mirrors the user's notification
// permission setting; when false every Schedule call is rejected.
func NewLocalGateway(logger *zap.Logger, handler Handler, granted bool) *LocalGateway {
	return &LocalGateway{
		logger:  logger,
		handler: handler,
		granted: granted,
		now:     time.Now,
		timers:  make(map[string]*timerEntry),
	}
}

// WithClock overrides the time source, for tests.
func (g *LocalGateway) WithClock(now func() time.Time) *LocalGateway {
	g.now = now
	return g
}

// WithMetrics attaches trigger counters.
func (g *LocalGateway) WithMetrics(m *metrics.Metrics) *LocalGateway {
	g.metrics = m
	return g
}

// RequestPermission reports the stored permission state.
func (g *LocalGateway) RequestPermission() bool {
	return g.granted
}

// Schedule arms a timer for the spec's next fire.
func (g *LocalGateway) Schedule(spec trigger.Spec, payload Payload) (string, error) {
	if !g.granted {
		return "", errors.ErrPermissionDenied
	}

	now := g.now()
	next, ok := trigger.NextFire(spec, now)
	if !ok {
		return "", errors.New("VALID_001", "trigger has no future fire time")
	}

	id := uuid.New().String()

	g.mu.Lock()
	defer g.mu.Unlock()

	entry := &timerEntry{spec: spec, payload: payload}
	entry.timer = time.AfterFunc(next.Sub(now), func() {
		g.fire(id)
	})
	g.timers[id] = entry
	g.metrics.TriggerScheduled()

	g.logger.Debug("Trigger scheduled",
		zap.String("trigger_id", id),
		zap.Time("next_fire", next),
		zap.Bool("repeats", spec.Repeats),
	)

	return id, nil
}

// Cancel disarms a trigger.
func (g *LocalGateway) Cancel(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if entry, exists := g.timers[id]; exists {
		entry.timer.Stop()
		delete(g.timers, id)
		g.metrics.TriggerCanceled()
	}
}

// CancelAll disarms every trigger.
func (g *LocalGateway) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, entry := range g.timers {
		entry.timer.Stop()
		delete(g.timers, id)
		g.metrics.TriggerCanceled()
	}
}

// Pending returns the number of armed triggers.
func (g *LocalGateway) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.timers)
}

func (g *LocalGateway) fire(id string) {
	g.mu.Lock()
	entry, exists := g.timers[id]
	if !exists {
		g.mu.Unlock()
		return
	}

	firedAt := g.now()
	if entry.spec.Repeats {
		if next, ok := trigger.NextFire(entry.spec, firedAt); ok {
			entry.timer = time.AfterFunc(next.Sub(firedAt), func() {
				g.fire(id)
			})
		} else {
			delete(g.timers, id)
		}
	} else {
		delete(g.timers, id)
	}
	payload := entry.payload
	g.mu.Unlock()

	g.metrics.TriggerFired()
	if g.handler != nil {
		g.handler(payload, firedAt)
	}
}
