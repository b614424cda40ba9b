// Package renderer turns fetched payloads into mount point content. A
// mount still carrying its placeholder gets the staged transition (dim,
// fixed delay, swap, restore); everything else is replaced immediately.
// Either way a deferred phase follows: lazy media activation and the
// content-rendered notification collaborators re-bind on.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/coderDevDev/dxp-dubai/internal/content"
	"github.com/coderDevDev/dxp-dubai/internal/dom"
	dxperrors "github.com/coderDevDev/dxp-dubai/internal/errors"
	"github.com/coderDevDev/dxp-dubai/internal/logging"
	"github.com/coderDevDev/dxp-dubai/internal/registry"
)

// dimOpacity is the opacity mounts are held at while a staged swap waits.
const dimOpacity = "0.35"

// Outcome says what a render attempt did to a mount.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeStaged
	OutcomeSkippedNoMount
	OutcomeSkippedNoData
	OutcomeSkippedStale
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeStaged:
		return "staged"
	case OutcomeSkippedNoMount:
		return "skipped_no_mount"
	case OutcomeSkippedNoData:
		return "skipped_no_data"
	case OutcomeSkippedStale:
		return "skipped_stale"
	default:
		return "unknown"
	}
}

// Result reports one mount's render. Done closes once every asynchronous
// stage (staged swap, lazy media, notification) has finished; skipped
// results come with Done already closed.
type Result struct {
	Mount   string
	Outcome Outcome
	Done    <-chan struct{}
}

// Skipped builds a result for a mount that was never rendered.
func Skipped(mount string, outcome Outcome) Result {
	return Result{Mount: mount, Outcome: outcome, Done: closedDone()}
}

func closedDone() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Notifier receives the content-rendered signal after a mount's deferred
// phase completes.
type Notifier interface {
	ContentRendered(ctx context.Context, route, mount string)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, route, mount string)

// ContentRendered implements Notifier
func (f NotifierFunc) ContentRendered(ctx context.Context, route, mount string) {
	f(ctx, route, mount)
}

// Renderer writes payloads into the document's mount points
type Renderer struct {
	doc      *dom.Document
	registry *registry.SiteRegistry
	timing   config.TimingConfig
	notifier Notifier
	logger   logging.Logger
}

// New creates a renderer over a document and site manifest
func New(doc *dom.Document, reg *registry.SiteRegistry, timing config.TimingConfig, notifier Notifier, logger logging.Logger) *Renderer {
	if notifier == nil {
		notifier = NotifierFunc(func(context.Context, string, string) {})
	}
	return &Renderer{
		doc:      doc,
		registry: reg,
		timing:   timing,
		notifier: notifier,
		logger:   logger.WithComponent("renderer"),
	}
}

// Render writes every mount of the route from the given payloads, keyed
// by resource name. Fetching has already happened by the time this runs;
// Render itself never touches a source.
func (r *Renderer) Render(ctx context.Context, route string, payloads map[string]*content.Payload) ([]Result, error) {
	if _, ok := r.registry.Route(route); !ok {
		return nil, &dxperrors.RouteUnknownError{Target: route}
	}

	mounts := r.registry.MountsForRoute(route)
	results := make([]Result, 0, len(mounts))
	for _, mount := range mounts {
		results = append(results, r.RenderMount(ctx, route, mount, payloads[mount.Resource]))
	}
	return results, nil
}

// RenderMount writes one mount. Missing mounts and missing data are
// outcomes, not errors: routes can be rendered ahead of the document
// reaching them, and a skipped mount must not fail its siblings.
func (r *Renderer) RenderMount(ctx context.Context, route string, mount registry.Mount, payload *content.Payload) Result {
	if payload == nil {
		r.logger.Warn(ctx, nil, "no payload for mount", "mount", mount.ID, "resource", mount.Resource)
		return Skipped(mount.ID, OutcomeSkippedNoData)
	}

	markup, err := r.markupFor(ctx, mount, payload)
	if err != nil {
		r.logger.Warn(ctx, err, "could not build markup", "mount", mount.ID, "view", string(mount.View))
		return Skipped(mount.ID, OutcomeSkippedNoData)
	}

	if !r.doc.HasElement(mount.ID) {
		r.logger.Warn(ctx, nil, "mount point absent, skipping", "mount", mount.ID, "route", route)
		return Skipped(mount.ID, OutcomeSkippedNoMount)
	}

	if mount.Placeholder && r.isPlaceholder(mount.ID) {
		return r.renderStaged(ctx, route, mount, markup)
	}
	return r.renderImmediate(ctx, route, mount, markup)
}

// renderImmediate swaps content in place and schedules the deferred phase.
func (r *Renderer) renderImmediate(ctx context.Context, route string, mount registry.Mount, markup string) Result {
	if err := r.doc.ReplaceContent(mount.ID, markup); err != nil {
		r.logger.Warn(ctx, err, "mount vanished before replace", "mount", mount.ID)
		return Skipped(mount.ID, OutcomeSkippedNoMount)
	}
	r.logger.Debug(ctx, "content applied", "mount", mount.ID, "route", route)

	done := make(chan struct{})
	go r.deferredPhase(ctx, route, mount.ID, done)
	return Result{Mount: mount.ID, Outcome: OutcomeApplied, Done: done}
}

// renderStaged dims the mount now and completes the swap after the
// configured delay, off the caller's goroutine.
func (r *Renderer) renderStaged(ctx context.Context, route string, mount registry.Mount, markup string) Result {
	if err := r.doc.SetOpacity(mount.ID, dimOpacity); err != nil {
		r.logger.Warn(ctx, err, "mount vanished before staging", "mount", mount.ID)
		return Skipped(mount.ID, OutcomeSkippedNoMount)
	}
	r.logger.Debug(ctx, "staged swap started", "mount", mount.ID, "delay", r.timing.StagedSwap.String())

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// Leave the scaffold readable when the session goes away.
			if err := r.doc.SetOpacity(mount.ID, "1"); err != nil && !errors.Is(err, dom.ErrNotFound) {
				r.logger.Debug(ctx, "could not restore opacity", "mount", mount.ID)
			}
			close(done)
			return
		case <-time.After(r.timing.StagedSwap):
		}

		if err := r.completeStagedSwap(mount.ID, markup); err != nil {
			r.logger.Warn(ctx, err, "staged swap failed", "mount", mount.ID)
			close(done)
			return
		}
		r.logger.Debug(ctx, "staged swap completed", "mount", mount.ID, "route", route)

		r.deferredPhase(ctx, route, mount.ID, done)
	}()

	return Result{Mount: mount.ID, Outcome: OutcomeStaged, Done: done}
}

// completeStagedSwap is the write half of the staged transition: replace
// content, lift the dim, and retire the placeholder flag.
func (r *Renderer) completeStagedSwap(mountID, markup string) error {
	if err := r.doc.ReplaceContent(mountID, markup); err != nil {
		return err
	}
	if err := r.doc.SetOpacity(mountID, "1"); err != nil {
		return err
	}
	return r.doc.SetAttr(mountID, "data-placeholder", "false")
}

// deferredPhase runs after content lands: a short settle, lazy media
// activation, then the content-rendered notification. Closes done last.
func (r *Renderer) deferredPhase(ctx context.Context, route, mountID string, done chan struct{}) {
	defer close(done)

	select {
	case <-ctx.Done():
		return
	case <-time.After(r.timing.PostRender):
	}

	activated, err := r.doc.ActivateLazyMedia(mountID)
	if err != nil {
		r.logger.Debug(ctx, "lazy media activation skipped", "mount", mountID)
	} else if activated > 0 {
		r.logger.Debug(ctx, "lazy media activated", "mount", mountID, "count", activated)
	}

	r.notifier.ContentRendered(ctx, route, mountID)
}

// ApplyLayout applies the active preset of a layout payload to the
// document. Route changes reapply it so presets survive router swaps.
func (r *Renderer) ApplyLayout(ctx context.Context, payload *content.Payload) error {
	if payload == nil || payload.Layout == nil {
		return fmt.Errorf("layout payload is empty")
	}

	layout := payload.Layout
	r.doc.ApplyPreset(layout.ActivePreset, layout.ActiveDirectives())
	r.logger.Debug(ctx, "layout preset applied", "preset", layout.ActivePreset)
	return nil
}

// markupFor builds the HTML fragment for a mount from its payload.
func (r *Renderer) markupFor(ctx context.Context, mount registry.Mount, payload *content.Payload) (string, error) {
	switch mount.View {
	case registry.ViewHero, registry.ViewCopySection:
		if payload.Copy == nil {
			return "", fmt.Errorf("mount %q needs a copy payload, got %s", mount.ID, payload.Kind)
		}
		section, ok := payload.Copy.Sections[mount.Section]
		if !ok {
			return "", fmt.Errorf("copy section %q not present", mount.Section)
		}
		bodyHTML, err := markdownToHTML(section.Body)
		if err != nil {
			return "", err
		}
		if mount.View == registry.ViewHero {
			return renderToString(ctx, heroComponent(section, bodyHTML))
		}
		return renderToString(ctx, copyComponent(section, bodyHTML))

	case registry.ViewListingFeatured:
		if payload.Listing == nil {
			return "", fmt.Errorf("mount %q needs a listing payload, got %s", mount.ID, payload.Kind)
		}
		items := featuredSubset(payload.Listing.Projects, mount.Limit)
		return renderToString(ctx, listingComponent("slider-track", items))

	case registry.ViewListingGrid:
		if payload.Listing == nil {
			return "", fmt.Errorf("mount %q needs a listing payload, got %s", mount.ID, payload.Kind)
		}
		return renderToString(ctx, listingComponent("grid-track", payload.Listing.Projects))

	default:
		return "", fmt.Errorf("unknown view %q", mount.View)
	}
}

// isPlaceholder reports whether the mount still shows scaffold content.
func (r *Renderer) isPlaceholder(mountID string) bool {
	val, ok := r.doc.Attr(mountID, "data-placeholder")
	return ok && val == "true"
}
