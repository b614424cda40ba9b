// Package registry holds the site manifest: the content resources the
// engine can fetch, the routes it can confirm, and the mount points it
// renders into. The manifest is immutable after load; the registry adds
// lookups and change notifications for development reloads.
package registry

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/coderDevDev/dxp-dubai/internal/dom"
)

// ResourceKind classifies content payloads
type ResourceKind string

const (
	KindListing ResourceKind = "listing"
	KindCopy    ResourceKind = "copy"
	KindLayout  ResourceKind = "layout"
)

// ViewKind names how a mount presents its resource
type ViewKind string

const (
	ViewListingFeatured ViewKind = "listing-featured"
	ViewListingGrid     ViewKind = "listing-grid"
	ViewCopySection     ViewKind = "copy-section"
	ViewHero            ViewKind = "hero"
)

// Resource names one fetchable content payload. PrimaryPath is joined to
// the configured base URL; FallbackPath is resolved inside the static
// content directory.
type Resource struct {
	Name         string       `yaml:"name" json:"name"`
	Kind         ResourceKind `yaml:"kind" json:"kind"`
	PrimaryPath  string       `yaml:"primary_path" json:"primary_path"`
	FallbackPath string       `yaml:"fallback_path" json:"fallback_path"`
}

// Route is one navigable page of the site. Signature is the selector
// whose presence in the document confirms the route is current; Skeleton
// is the static scaffold the external router injects, kept here so the
// development router shim and the exporter can reproduce it.
type Route struct {
	Name      string `yaml:"name" json:"name"`
	Path      string `yaml:"path" json:"path"`
	Signature string `yaml:"signature" json:"signature"`
	Skeleton  string `yaml:"skeleton" json:"skeleton,omitempty"`
}

// Title returns the route's display title.
func (r Route) Title() string {
	return cases.Title(language.English).String(r.Name)
}

// Mount binds a document element to a view over one resource. Limit
// bounds listing-featured views; Section picks the copy block for
// copy-section views. Placeholder mounts start with scaffold content and
// get the staged upgrade transition on first render.
type Mount struct {
	ID          string   `yaml:"id" json:"id"`
	Route       string   `yaml:"route" json:"route"`
	Resource    string   `yaml:"resource" json:"resource"`
	View        ViewKind `yaml:"view" json:"view"`
	Limit       int      `yaml:"limit" json:"limit,omitempty"`
	Section     string   `yaml:"section" json:"section,omitempty"`
	Placeholder bool     `yaml:"placeholder" json:"placeholder"`
}

// Site is the manifest: everything static the engine needs to know about
// the pages it keeps in sync.
type Site struct {
	Name      string     `yaml:"name" json:"name"`
	Container string     `yaml:"container" json:"container"`
	Resources []Resource `yaml:"resources" json:"resources"`
	Routes    []Route    `yaml:"routes" json:"routes"`
	Mounts    []Mount    `yaml:"mounts" json:"mounts"`
}

// SiteEvent represents a change of the active manifest
type SiteEvent struct {
	Site      *Site
	Timestamp time.Time
}

// SiteRegistry serves manifest lookups and change notifications
type SiteRegistry struct {
	site     *Site
	mutex    sync.RWMutex
	watchers []chan SiteEvent

	resources map[string]Resource
	routes    map[string]Route
	mounts    map[string]Mount
	byRoute   map[string][]Mount
}

// NewSiteRegistry creates a registry over a validated manifest
func NewSiteRegistry(site *Site) (*SiteRegistry, error) {
	if err := ValidateSite(site); err != nil {
		return nil, err
	}

	r := &SiteRegistry{
		watchers: make([]chan SiteEvent, 0),
	}
	r.index(site)
	return r, nil
}

// LoadSiteFile reads and validates a YAML manifest
func LoadSiteFile(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site manifest: %w", err)
	}

	var site Site
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("failed to parse site manifest: %w", err)
	}

	if err := ValidateSite(&site); err != nil {
		return nil, fmt.Errorf("invalid site manifest %s: %w", path, err)
	}
	return &site, nil
}

// index must be called with the write lock held (or before sharing).
func (r *SiteRegistry) index(site *Site) {
	r.site = site
	r.resources = make(map[string]Resource, len(site.Resources))
	r.routes = make(map[string]Route, len(site.Routes))
	r.mounts = make(map[string]Mount, len(site.Mounts))
	r.byRoute = make(map[string][]Mount, len(site.Routes))

	for _, res := range site.Resources {
		r.resources[res.Name] = res
	}
	for _, route := range site.Routes {
		r.routes[route.Name] = route
	}
	for _, mount := range site.Mounts {
		r.mounts[mount.ID] = mount
		r.byRoute[mount.Route] = append(r.byRoute[mount.Route], mount)
	}
}

// Replace swaps the active manifest and notifies watchers
func (r *SiteRegistry) Replace(site *Site) error {
	if err := ValidateSite(site); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.index(site)

	event := SiteEvent{Site: site, Timestamp: time.Now()}
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
	return nil
}

// Site returns the active manifest
func (r *SiteRegistry) Site() *Site {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.site
}

// Container returns the element id the router swaps route skeletons into
func (r *SiteRegistry) Container() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.site.Container
}

// Resource retrieves a resource by name
func (r *SiteRegistry) Resource(name string) (Resource, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	res, exists := r.resources[name]
	return res, exists
}

// Resources returns all resources in manifest order
func (r *SiteRegistry) Resources() []Resource {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]Resource, len(r.site.Resources))
	copy(out, r.site.Resources)
	return out
}

// Route retrieves a route by name
func (r *SiteRegistry) Route(name string) (Route, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	route, exists := r.routes[name]
	return route, exists
}

// Routes returns all routes in manifest order
func (r *SiteRegistry) Routes() []Route {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]Route, len(r.site.Routes))
	copy(out, r.site.Routes)
	return out
}

// Mount retrieves a mount by element id
func (r *SiteRegistry) Mount(id string) (Mount, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	mount, exists := r.mounts[id]
	return mount, exists
}

// MountsForRoute returns the mounts a route renders, in manifest order
func (r *SiteRegistry) MountsForRoute(route string) []Mount {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	mounts := r.byRoute[route]
	out := make([]Mount, len(mounts))
	copy(out, mounts)
	return out
}

// ResourcesForRoute returns the distinct resource names a route needs,
// in first-use order.
func (r *SiteRegistry) ResourcesForRoute(route string) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for _, mount := range r.byRoute[route] {
		if !seen[mount.Resource] {
			seen[mount.Resource] = true
			names = append(names, mount.Resource)
		}
	}
	return names
}

// Watch returns a channel that receives manifest change events
func (r *SiteRegistry) Watch() <-chan SiteEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan SiteEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *SiteRegistry) UnWatch(ch <-chan SiteEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// ValidateSite checks manifest consistency: unique names, known kinds,
// parseable signatures, and mounts that reference declared routes and
// resources.
func ValidateSite(site *Site) error {
	if site == nil {
		return fmt.Errorf("site manifest is nil")
	}
	if site.Name == "" {
		return fmt.Errorf("site name cannot be empty")
	}
	if site.Container == "" {
		return fmt.Errorf("site container cannot be empty")
	}
	if len(site.Routes) == 0 {
		return fmt.Errorf("site declares no routes")
	}

	resources := make(map[string]bool, len(site.Resources))
	for _, res := range site.Resources {
		if res.Name == "" {
			return fmt.Errorf("resource name cannot be empty")
		}
		if resources[res.Name] {
			return fmt.Errorf("duplicate resource %q", res.Name)
		}
		resources[res.Name] = true

		switch res.Kind {
		case KindListing, KindCopy, KindLayout:
		default:
			return fmt.Errorf("resource %q has unknown kind %q", res.Name, res.Kind)
		}
		if res.FallbackPath == "" {
			return fmt.Errorf("resource %q is missing a fallback path", res.Name)
		}
		if res.PrimaryPath == "" {
			return fmt.Errorf("resource %q is missing a primary path", res.Name)
		}
	}

	routes := make(map[string]bool, len(site.Routes))
	for _, route := range site.Routes {
		if route.Name == "" {
			return fmt.Errorf("route name cannot be empty")
		}
		if routes[route.Name] {
			return fmt.Errorf("duplicate route %q", route.Name)
		}
		routes[route.Name] = true

		if route.Signature == "" {
			return fmt.Errorf("route %q is missing a signature selector", route.Name)
		}
		if _, err := dom.ParseSelector(route.Signature); err != nil {
			return fmt.Errorf("route %q has invalid signature: %w", route.Name, err)
		}
		if route.Path == "" {
			return fmt.Errorf("route %q is missing a path", route.Name)
		}
	}

	mounts := make(map[string]bool, len(site.Mounts))
	for _, mount := range site.Mounts {
		if mount.ID == "" {
			return fmt.Errorf("mount id cannot be empty")
		}
		if mounts[mount.ID] {
			return fmt.Errorf("duplicate mount %q", mount.ID)
		}
		mounts[mount.ID] = true

		if !routes[mount.Route] {
			return fmt.Errorf("mount %q references unknown route %q", mount.ID, mount.Route)
		}
		if !resources[mount.Resource] {
			return fmt.Errorf("mount %q references unknown resource %q", mount.ID, mount.Resource)
		}

		switch mount.View {
		case ViewListingFeatured:
			if mount.Limit <= 0 {
				return fmt.Errorf("mount %q needs a positive limit", mount.ID)
			}
		case ViewListingGrid:
		case ViewCopySection, ViewHero:
			if mount.Section == "" {
				return fmt.Errorf("mount %q needs a copy section", mount.ID)
			}
		default:
			return fmt.Errorf("mount %q has unknown view %q", mount.ID, mount.View)
		}
	}

	return nil
}
