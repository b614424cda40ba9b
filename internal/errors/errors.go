package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
	"time"
)

// Source identifies which content source produced an error
type Source int

const (
	SourcePrimary Source = iota
	SourceFallback
)

// String returns the string representation of the source
func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Stage identifies where inside a fetch attempt an error occurred
type Stage int

const (
	StageRequest Stage = iota
	StageStatus
	StageRead
	StageDecode
	StageValidate
)

// String returns the string representation of the stage
func (s Stage) String() string {
	switch s {
	case StageRequest:
		return "request"
	case StageStatus:
		return "status"
	case StageRead:
		return "read"
	case StageDecode:
		return "decode"
	case StageValidate:
		return "validate"
	default:
		return "unknown"
	}
}

// SourceError represents a failed fetch attempt against one source.
// Location carries the URL for primary attempts and the file path for
// fallback attempts.
type SourceError struct {
	Resource  string
	Source    Source
	Stage     Stage
	Location  string
	Err       error
	Timestamp time.Time
}

// NewSourceError creates a source error stamped with the current time
func NewSourceError(resource string, source Source, stage Stage, location string, err error) *SourceError {
	return &SourceError{
		Resource:  resource,
		Source:    source,
		Stage:     stage,
		Location:  location,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (se *SourceError) Error() string {
	return fmt.Sprintf("%s source for %q failed at %s (%s): %v", se.Source, se.Resource, se.Stage, se.Location, se.Err)
}

// Unwrap returns the underlying cause
func (se *SourceError) Unwrap() error {
	return se.Err
}

// DataUnavailableError means both the primary and the fallback source
// failed for a resource. Callers surface it to the user; no content can
// be rendered for the resource in this session until the cache is
// cleared and a source recovers.
type DataUnavailableError struct {
	Resource string
	Primary  error
	Fallback error
}

// Error implements the error interface
func (de *DataUnavailableError) Error() string {
	return fmt.Sprintf("content unavailable for %q: primary: %v; fallback: %v", de.Resource, de.Primary, de.Fallback)
}

// Unwrap exposes both source failures to errors.Is/As chains
func (de *DataUnavailableError) Unwrap() []error {
	return []error{de.Primary, de.Fallback}
}

// IsDataUnavailable reports whether err wraps a DataUnavailableError
func IsDataUnavailable(err error) bool {
	var de *DataUnavailableError
	return stderrors.As(err, &de)
}

// ConfirmTimeoutError means a navigation intent was never confirmed by a
// matching document mutation within the configured window.
type ConfirmTimeoutError struct {
	Target string
	Waited time.Duration
}

// Error implements the error interface
func (ce *ConfirmTimeoutError) Error() string {
	return fmt.Sprintf("route %q not confirmed after %s", ce.Target, ce.Waited)
}

// IsConfirmTimeout reports whether err wraps a ConfirmTimeoutError
func IsConfirmTimeout(err error) bool {
	var ce *ConfirmTimeoutError
	return stderrors.As(err, &ce)
}

// RouteUnknownError means a navigation target is not part of the site
type RouteUnknownError struct {
	Target string
}

// Error implements the error interface
func (re *RouteUnknownError) Error() string {
	return fmt.Sprintf("unknown route %q", re.Target)
}

// ResourceUnknownError means a content resource name is not part of the site
type ResourceUnknownError struct {
	Name string
}

// Error implements the error interface
func (re *ResourceUnknownError) Error() string {
	return fmt.Sprintf("unknown content resource %q", re.Name)
}

// ErrorCollector collects source errors and general errors across a
// multi-resource operation such as prefetching the whole site.
type ErrorCollector struct {
	sourceErrors []SourceError
	errors       []error
	mutex        sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		sourceErrors: make([]SourceError, 0),
		errors:       make([]error, 0),
	}
}

// Add adds a source error to the collector
func (ec *ErrorCollector) Add(err SourceError) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	ec.sourceErrors = append(ec.sourceErrors, err)
}

// AddError adds a general error to the collector
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// GetErrors returns all collected source errors
func (ec *ErrorCollector) GetErrors() []SourceError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]SourceError, len(ec.sourceErrors))
	copy(result, ec.sourceErrors)
	return result
}

// GetAllErrors returns all collected errors (source and general)
func (ec *ErrorCollector) GetAllErrors() []error {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	allErrors := make([]error, 0, len(ec.sourceErrors)+len(ec.errors))
	for i := range ec.sourceErrors {
		allErrors = append(allErrors, &ec.sourceErrors[i])
	}
	allErrors = append(allErrors, ec.errors...)

	return allErrors
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.sourceErrors) > 0 || len(ec.errors) > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.sourceErrors = ec.sourceErrors[:0]
	ec.errors = ec.errors[:0]
}

// GetErrorsByResource returns source errors for a specific resource
func (ec *ErrorCollector) GetErrorsByResource(resource string) []SourceError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var matched []SourceError
	for _, err := range ec.sourceErrors {
		if err.Resource == resource {
			matched = append(matched, err)
		}
	}
	return matched
}

// GetErrorsBySource returns source errors for a specific source
func (ec *ErrorCollector) GetErrorsBySource(source Source) []SourceError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var matched []SourceError
	for _, err := range ec.sourceErrors {
		if err.Source == source {
			matched = append(matched, err)
		}
	}
	return matched
}
