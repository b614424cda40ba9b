package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	dxperrors "github.com/coderDevDev/dxp-dubai/internal/errors"
	"github.com/coderDevDev/dxp-dubai/internal/logging"
	"github.com/coderDevDev/dxp-dubai/internal/registry"
)

// maxPayloadBytes bounds how much of a source body is read.
const maxPayloadBytes = 4 << 20

// errPrimaryDisabled stands in for the primary attempt when the
// configuration runs fallback-only.
var errPrimaryDisabled = errors.New("primary source disabled")

// Doer issues HTTP requests. *http.Client satisfies it; tests inject
// fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher resolves content resources. Order per resource: session cache,
// then the primary remote source, then exactly one fallback to the
// static file. Both sources failing yields DataUnavailableError, after
// which nothing is cached so a later explicit retry can still succeed.
type Fetcher struct {
	baseURL      string
	contentDir   string
	fallbackOnly bool
	timeout      time.Duration
	client       Doer
	cache        *SessionCache
	registry     *registry.SiteRegistry
	logger       logging.Logger
}

// FetcherOption customizes a Fetcher
type FetcherOption func(*Fetcher)

// WithClient replaces the HTTP client used for primary fetches
func WithClient(client Doer) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// NewFetcher creates a fetcher bound to a cache and site registry
func NewFetcher(sources config.SourcesConfig, reg *registry.SiteRegistry, cache *SessionCache, logger logging.Logger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		baseURL:      strings.TrimRight(sources.BaseURL, "/"),
		contentDir:   sources.ContentDir,
		fallbackOnly: sources.FallbackOnly,
		timeout:      sources.Timeout,
		client:       &http.Client{Timeout: sources.Timeout},
		cache:        cache,
		registry:     reg,
		logger:       logger.WithComponent("fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Cache returns the session cache the fetcher stores into
func (f *Fetcher) Cache() *SessionCache {
	return f.cache
}

// Fetch resolves one resource by name. Cached payloads are returned as
// is; a miss performs at most one primary request and one fallback read
// for this session.
func (f *Fetcher) Fetch(ctx context.Context, name string) (*Payload, error) {
	res, ok := f.registry.Resource(name)
	if !ok {
		return nil, &dxperrors.ResourceUnknownError{Name: name}
	}

	if payload, ok := f.cache.Get(name); ok {
		f.logger.Debug(ctx, "cache hit", "resource", name, "origin", payload.Origin.String())
		return payload, nil
	}

	payload, err := f.fetchFromSources(ctx, res)
	if err != nil {
		return nil, err
	}

	f.cache.Put(payload)
	f.logger.Debug(ctx, "cached payload", "resource", name, "origin", payload.Origin.String())
	return payload, nil
}

// Prefetch resolves every resource of the site, collecting failures
// instead of stopping at the first one.
func (f *Fetcher) Prefetch(ctx context.Context) ([]*Payload, *dxperrors.ErrorCollector) {
	collector := dxperrors.NewErrorCollector()
	var payloads []*Payload

	for _, res := range f.registry.Resources() {
		payload, err := f.Fetch(ctx, res.Name)
		if err != nil {
			collectFetchError(collector, err)
			continue
		}
		payloads = append(payloads, payload)
	}
	return payloads, collector
}

// collectFetchError files the per-source failures individually, so
// callers can report which source broke, and the aggregate alongside.
func collectFetchError(collector *dxperrors.ErrorCollector, err error) {
	var unavailable *dxperrors.DataUnavailableError
	if errors.As(err, &unavailable) {
		for _, cause := range []error{unavailable.Primary, unavailable.Fallback} {
			var srcErr *dxperrors.SourceError
			if errors.As(cause, &srcErr) {
				collector.Add(*srcErr)
			}
		}
	}
	collector.AddError(err)
}

func (f *Fetcher) fetchFromSources(ctx context.Context, res registry.Resource) (*Payload, error) {
	var primaryErr error

	if f.fallbackOnly {
		primaryErr = dxperrors.NewSourceError(res.Name, dxperrors.SourcePrimary, dxperrors.StageRequest, f.primaryURL(res), errPrimaryDisabled)
	} else {
		payload, err := f.fetchPrimary(ctx, res)
		if err == nil {
			return payload, nil
		}
		primaryErr = err
		f.logger.Warn(ctx, err, "primary source failed, using fallback", "resource", res.Name)
	}

	payload, fallbackErr := f.fetchFallback(ctx, res)
	if fallbackErr == nil {
		return payload, nil
	}
	f.logger.Error(ctx, fallbackErr, "fallback source failed", "resource", res.Name)

	return nil, &dxperrors.DataUnavailableError{
		Resource: res.Name,
		Primary:  primaryErr,
		Fallback: fallbackErr,
	}
}

func (f *Fetcher) primaryURL(res registry.Resource) string {
	return f.baseURL + res.PrimaryPath
}

func (f *Fetcher) fetchPrimary(ctx context.Context, res registry.Resource) (*Payload, error) {
	url := f.primaryURL(res)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, dxperrors.NewSourceError(res.Name, dxperrors.SourcePrimary, dxperrors.StageRequest, url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, dxperrors.NewSourceError(res.Name, dxperrors.SourcePrimary, dxperrors.StageRequest, url, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Debug(ctx, "failed to close response body", "resource", res.Name)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("unexpected status %s", resp.Status)
		return nil, dxperrors.NewSourceError(res.Name, dxperrors.SourcePrimary, dxperrors.StageStatus, url, err)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, dxperrors.NewSourceError(res.Name, dxperrors.SourcePrimary, dxperrors.StageRead, url, err)
	}

	payload, err := f.decode(res, data, dxperrors.SourcePrimary, url)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (f *Fetcher) fetchFallback(_ context.Context, res registry.Resource) (*Payload, error) {
	path := filepath.Join(f.contentDir, res.FallbackPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dxperrors.NewSourceError(res.Name, dxperrors.SourceFallback, dxperrors.StageRead, path, err)
	}

	return f.decode(res, data, dxperrors.SourceFallback, path)
}

// decode turns a raw body into a validated payload, classifying the
// failure stage for the error taxonomy.
func (f *Fetcher) decode(res registry.Resource, data []byte, origin dxperrors.Source, location string) (*Payload, error) {
	payload, err := DecodePayload(res, data)
	if err != nil {
		stage := dxperrors.StageDecode
		if errors.Is(err, ErrInvalidPayload) {
			stage = dxperrors.StageValidate
		}
		return nil, dxperrors.NewSourceError(res.Name, origin, stage, location, err)
	}

	payload.Origin = origin
	payload.FetchedAt = time.Now()
	return payload, nil
}
