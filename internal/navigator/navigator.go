// Package navigator watches the document for route changes. The router
// that swaps page content emits no completion event, so navigation is a
// two-step handshake: an interaction records an intent, then debounced
// document mutations are checked for the target route's signature
// element. Only the latest intent is honored; an intent whose signature
// never appears expires after the configured confirmation timeout.
package navigator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/coderDevDev/dxp-dubai/internal/dom"
	dxperrors "github.com/coderDevDev/dxp-dubai/internal/errors"
	"github.com/coderDevDev/dxp-dubai/internal/logging"
	"github.com/coderDevDev/dxp-dubai/internal/registry"
)

// State is the navigator's confirmation state.
type State int

const (
	StateIdle State = iota
	StateAwaiting
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaiting:
		return "awaiting_confirmation"
	default:
		return "unknown"
	}
}

// Intent is one captured navigation. Generation increases with every
// intent, so completions carrying an older generation are stale.
type Intent struct {
	Target     string
	Generation uint64
	CreatedAt  time.Time

	confirmed bool
}

// RouteLoader runs the load-and-render sequence for a confirmed route.
// The navigator invokes it off its own loop so a slow fetch never blocks
// a newer intent.
type RouteLoader func(ctx context.Context, route string, generation uint64)

// Events receives navigation lifecycle signals.
type Events interface {
	RouteChanged(ctx context.Context, route string)
	RouteTimeout(ctx context.Context, route string, waited time.Duration)
}

// NopEvents discards all navigation signals.
type NopEvents struct{}

func (NopEvents) RouteChanged(context.Context, string) {}

func (NopEvents) RouteTimeout(context.Context, string, time.Duration) {}

// Navigator owns the intent state machine and the debounced signature
// checks that drive it.
type Navigator struct {
	doc      *dom.Document
	registry *registry.SiteRegistry
	timing   config.TimingConfig
	loader   RouteLoader
	events   Events
	logger   logging.Logger

	generation atomic.Uint64

	mutex        sync.Mutex
	intent       *Intent
	confirmTimer *time.Timer
	settleTimer  *time.Timer
	checkTimer   *time.Timer
	started      bool

	checks    chan struct{}
	mutations <-chan dom.Mutation
}

// New creates a navigator. The loader may be nil when confirmation only
// needs to move the page marker (some tests and the export path do this).
func New(doc *dom.Document, reg *registry.SiteRegistry, timing config.TimingConfig, loader RouteLoader, events Events, logger logging.Logger) *Navigator {
	if loader == nil {
		loader = func(context.Context, string, uint64) {}
	}
	if events == nil {
		events = NopEvents{}
	}
	return &Navigator{
		doc:      doc,
		registry: reg,
		timing:   timing,
		loader:   loader,
		events:   events,
		logger:   logger.WithComponent("navigator"),
		checks:   make(chan struct{}, 1),
	}
}

// Start subscribes to document mutations and runs the confirmation loop
// until ctx is cancelled or Stop is called.
func (n *Navigator) Start(ctx context.Context) {
	n.mutex.Lock()
	if n.started {
		n.mutex.Unlock()
		return
	}
	n.started = true
	n.mutations = n.doc.Subscribe()
	n.mutex.Unlock()

	go n.run(ctx)
}

// Stop detaches from the document and halts pending timers. The current
// intent, if any, is abandoned.
func (n *Navigator) Stop() {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if !n.started {
		return
	}
	n.started = false
	n.doc.Unsubscribe(n.mutations)
	n.stopTimersLocked()
	n.intent = nil
}

func (n *Navigator) stopTimersLocked() {
	for _, t := range []*time.Timer{n.confirmTimer, n.settleTimer, n.checkTimer} {
		if t != nil {
			t.Stop()
		}
	}
}

// NavigateIntent records an interaction targeting a route. A prior
// unconfirmed intent is overwritten, never queued. The returned Intent
// carries the generation the eventual load-and-render will be checked
// against.
func (n *Navigator) NavigateIntent(ctx context.Context, target string) (Intent, error) {
	if _, ok := n.registry.Route(target); !ok {
		return Intent{}, &dxperrors.RouteUnknownError{Target: target}
	}

	gen := n.generation.Add(1)

	n.mutex.Lock()
	if n.intent != nil {
		n.logger.Debug(ctx, "intent superseded", "previous", n.intent.Target, "next", target)
	}
	n.stopTimersLocked()
	n.intent = &Intent{Target: target, Generation: gen, CreatedAt: time.Now()}
	n.confirmTimer = time.AfterFunc(n.timing.ConfirmTimeout, func() {
		n.expireIntent(ctx, gen)
	})
	snapshot := *n.intent
	n.mutex.Unlock()

	n.logger.Info(ctx, "navigation intent captured", "route", target, "generation", gen)

	// The router may already have swapped the content in.
	n.bumpCheck()

	return snapshot, nil
}

// CurrentIntent returns a copy of the pending intent, if any.
func (n *Navigator) CurrentIntent() (Intent, bool) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.intent == nil {
		return Intent{}, false
	}
	return *n.intent, true
}

// State reports Idle or AwaitingConfirmation.
func (n *Navigator) State() State {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.intent == nil {
		return StateIdle
	}
	return StateAwaiting
}

// Generation returns the newest intent generation. Completions holding
// an older value are stale and must be discarded.
func (n *Navigator) Generation() uint64 {
	return n.generation.Load()
}

// DetectInitialRoute resolves the route already on screen at startup:
// the document's page marker if it names a known route, otherwise the
// first route whose signature element is present, otherwise the
// configured fallback.
func (n *Navigator) DetectInitialRoute(ctx context.Context, fallback string) string {
	if marker := n.doc.PageMarker(); marker != "" {
		if _, ok := n.registry.Route(marker); ok {
			n.logger.Debug(ctx, "initial route from page marker", "route", marker)
			return marker
		}
		n.logger.Warn(ctx, nil, "page marker names unknown route", "marker", marker)
	}

	for _, route := range n.registry.Routes() {
		matched, err := n.doc.Matches(route.Signature)
		if err == nil && matched {
			n.logger.Debug(ctx, "initial route from signature", "route", route.Name)
			return route.Name
		}
	}

	if _, ok := n.registry.Route(fallback); ok {
		n.logger.Debug(ctx, "initial route from configuration", "route", fallback)
		return fallback
	}
	if routes := n.registry.Routes(); len(routes) > 0 {
		return routes[0].Name
	}
	return fallback
}

func (n *Navigator) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-n.mutations:
			if !ok {
				return
			}
			if n.awaitingUnconfirmed() {
				n.bumpCheck()
			}
		case <-n.checks:
			n.confirmFromDocument(ctx)
		}
	}
}

// bumpCheck coalesces mutation bursts: every call resets the debounce
// timer, so one check fires per quiet window.
func (n *Navigator) bumpCheck() {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if n.checkTimer != nil {
		n.checkTimer.Stop()
	}
	n.checkTimer = time.AfterFunc(n.timing.Debounce, func() {
		select {
		case n.checks <- struct{}{}:
		default:
		}
	})
}

func (n *Navigator) awaitingUnconfirmed() bool {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.intent != nil && !n.intent.confirmed
}

// confirmFromDocument checks whether the pending intent's signature
// element is now present and, if so, runs the confirmation sequence.
func (n *Navigator) confirmFromDocument(ctx context.Context) {
	n.mutex.Lock()
	if n.intent == nil || n.intent.confirmed {
		n.mutex.Unlock()
		return
	}
	target := n.intent.Target
	gen := n.intent.Generation
	n.mutex.Unlock()

	route, ok := n.registry.Route(target)
	if !ok {
		n.logger.Warn(ctx, nil, "pending intent names unknown route", "route", target)
		return
	}

	matched, err := n.doc.Matches(route.Signature)
	if err != nil {
		n.logger.Warn(ctx, err, "signature selector failed", "route", target, "selector", route.Signature)
		return
	}
	if !matched {
		n.logger.Debug(ctx, "signature not present yet", "route", target)
		return
	}

	n.confirm(ctx, route, gen)
}

// confirm moves the page marker, announces the change, hands the route
// to the loader, and schedules the settle that returns the machine to
// Idle.
func (n *Navigator) confirm(ctx context.Context, route registry.Route, gen uint64) {
	n.mutex.Lock()
	if n.intent == nil || n.intent.Generation != gen {
		// Superseded while the signature check ran.
		n.mutex.Unlock()
		return
	}
	n.intent.confirmed = true
	waited := time.Since(n.intent.CreatedAt)
	if n.confirmTimer != nil {
		n.confirmTimer.Stop()
	}
	n.settleTimer = time.AfterFunc(n.timing.IntentSettle, func() {
		n.clearIntent(gen)
	})
	n.mutex.Unlock()

	n.doc.SetPageMarker(route.Name)
	n.logger.Info(ctx, "route confirmed", "route", route.Name, "generation", gen, "waited", waited.String())
	n.events.RouteChanged(ctx, route.Name)

	go n.loader(ctx, route.Name, gen)
}

// clearIntent retires a confirmed intent once its settle delay passes.
// A newer intent keeps its own generation, so it is never cleared here.
func (n *Navigator) clearIntent(gen uint64) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if n.intent != nil && n.intent.Generation == gen && n.intent.confirmed {
		n.intent = nil
	}
}

// expireIntent abandons an intent whose signature never appeared.
func (n *Navigator) expireIntent(ctx context.Context, gen uint64) {
	n.mutex.Lock()
	if n.intent == nil || n.intent.Generation != gen || n.intent.confirmed {
		n.mutex.Unlock()
		return
	}
	target := n.intent.Target
	waited := time.Since(n.intent.CreatedAt)
	n.intent = nil
	n.mutex.Unlock()

	err := &dxperrors.ConfirmTimeoutError{Target: target, Waited: waited}
	n.logger.Warn(ctx, err, "route confirmation timed out", "route", target, "generation", gen)
	n.events.RouteTimeout(ctx, target, waited)
}
