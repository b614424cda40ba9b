// Package content implements the data access layer: typed payloads, the
// session-scoped cache, and the fetcher that tries the primary remote
// source once and falls back to static files.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	dxperrors "github.com/coderDevDev/dxp-dubai/internal/errors"
	"github.com/coderDevDev/dxp-dubai/internal/registry"
)

// ErrInvalidPayload marks bodies that decoded as JSON but fail the
// per-kind shape checks. The fetcher treats it as a source failure.
var ErrInvalidPayload = errors.New("invalid payload")

// ProjectItem is one entry of a listing payload
type ProjectItem struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Category   string `json:"category,omitempty"`
	Year       int    `json:"year,omitempty"`
	Blurb      string `json:"blurb,omitempty"`
	MediaURL   string `json:"mediaUrl,omitempty"`
	LinkTarget string `json:"linkTarget,omitempty"`
}

// Listing is the collection payload backing slider and grid views
type Listing struct {
	Projects []ProjectItem `json:"projects"`
}

// CopySection is one block of page copy. Body is Markdown.
type CopySection struct {
	Heading string `json:"heading"`
	Body    string `json:"body,omitempty"`
}

// Copy is the page copy payload, keyed by section name
type Copy struct {
	Sections map[string]CopySection `json:"sections"`
}

// Layout is the route-independent presentation payload: named presets
// of style directives plus the one currently active.
type Layout struct {
	ActivePreset string                       `json:"activePreset"`
	Presets      map[string]map[string]string `json:"presets"`
}

// Payload is one fetched and validated content resource. Exactly one of
// Listing, Copy, Layout is set, matching Kind.
type Payload struct {
	Resource  string
	Kind      registry.ResourceKind
	Listing   *Listing
	Copy      *Copy
	Layout    *Layout
	Origin    dxperrors.Source
	FetchedAt time.Time
}

// DecodePayload strictly decodes and validates a resource body. Callers
// stamp Origin and FetchedAt. Shape violations wrap ErrInvalidPayload so
// they can be told apart from JSON syntax errors.
func DecodePayload(res registry.Resource, data []byte) (*Payload, error) {
	payload := &Payload{
		Resource: res.Name,
		Kind:     res.Kind,
	}

	switch res.Kind {
	case registry.KindListing:
		// A pointer shadow detects a missing projects key, which is a
		// different defect than an empty collection.
		var shadow struct {
			Projects *[]ProjectItem `json:"projects"`
		}
		if err := json.Unmarshal(data, &shadow); err != nil {
			return nil, fmt.Errorf("failed to decode listing: %w", err)
		}
		if shadow.Projects == nil {
			return nil, fmt.Errorf("%w: listing is missing the projects key", ErrInvalidPayload)
		}
		listing := &Listing{Projects: *shadow.Projects}
		for i, item := range listing.Projects {
			if item.ID == 0 {
				return nil, fmt.Errorf("%w: project %d is missing an id", ErrInvalidPayload, i)
			}
			if item.Title == "" {
				return nil, fmt.Errorf("%w: project %d is missing a title", ErrInvalidPayload, item.ID)
			}
		}
		payload.Listing = listing

	case registry.KindCopy:
		var copyDoc Copy
		if err := json.Unmarshal(data, &copyDoc); err != nil {
			return nil, fmt.Errorf("failed to decode copy: %w", err)
		}
		if copyDoc.Sections == nil {
			return nil, fmt.Errorf("%w: copy is missing the sections key", ErrInvalidPayload)
		}
		for key, section := range copyDoc.Sections {
			if section.Heading == "" {
				return nil, fmt.Errorf("%w: copy section %q is missing a heading", ErrInvalidPayload, key)
			}
		}
		payload.Copy = &copyDoc

	case registry.KindLayout:
		var layout Layout
		if err := json.Unmarshal(data, &layout); err != nil {
			return nil, fmt.Errorf("failed to decode layout: %w", err)
		}
		if layout.ActivePreset == "" {
			return nil, fmt.Errorf("%w: layout is missing activePreset", ErrInvalidPayload)
		}
		if _, ok := layout.Presets[layout.ActivePreset]; !ok {
			return nil, fmt.Errorf("%w: active preset %q is not among the presets", ErrInvalidPayload, layout.ActivePreset)
		}
		payload.Layout = &layout

	default:
		return nil, fmt.Errorf("%w: unknown resource kind %q", ErrInvalidPayload, res.Kind)
	}

	return payload, nil
}

// ActiveDirectives returns the directives of the active preset.
func (l *Layout) ActiveDirectives() map[string]string {
	return l.Presets[l.ActivePreset]
}
