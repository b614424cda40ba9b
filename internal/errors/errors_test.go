package errors

import (
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceError(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewSourceError("listing", SourcePrimary, StageRequest, "https://content.example/api/listing", cause)

	assert.Equal(t, "listing", err.Resource)
	assert.Equal(t, SourcePrimary, err.Source)
	assert.Equal(t, StageRequest, err.Stage)
	assert.NotZero(t, err.Timestamp)

	assert.Contains(t, err.Error(), `primary source for "listing"`)
	assert.Contains(t, err.Error(), "request")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestSourceAndStageStrings(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"primary", SourcePrimary.String(), "primary"},
		{"fallback", SourceFallback.String(), "fallback"},
		{"bad source", Source(9).String(), "unknown"},
		{"request", StageRequest.String(), "request"},
		{"status", StageStatus.String(), "status"},
		{"read", StageRead.String(), "read"},
		{"decode", StageDecode.String(), "decode"},
		{"validate", StageValidate.String(), "validate"},
		{"bad stage", Stage(9).String(), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestDataUnavailableError(t *testing.T) {
	primary := NewSourceError("layout", SourcePrimary, StageStatus, "https://content.example/api/layout", stderrors.New("502"))
	fallback := NewSourceError("layout", SourceFallback, StageRead, "content/layout.json", stderrors.New("no such file"))

	err := &DataUnavailableError{Resource: "layout", Primary: primary, Fallback: fallback}

	assert.Contains(t, err.Error(), `content unavailable for "layout"`)
	assert.ErrorIs(t, err, primary)
	assert.ErrorIs(t, err, fallback)

	wrapped := fmt.Errorf("prefetch: %w", err)
	assert.True(t, IsDataUnavailable(wrapped))
	assert.False(t, IsDataUnavailable(stderrors.New("plain")))
}

func TestConfirmTimeoutError(t *testing.T) {
	err := &ConfirmTimeoutError{Target: "works", Waited: 8 * time.Second}

	assert.Contains(t, err.Error(), `route "works" not confirmed`)
	assert.Contains(t, err.Error(), "8s")

	wrapped := fmt.Errorf("navigate: %w", err)
	assert.True(t, IsConfirmTimeout(wrapped))
	assert.False(t, IsConfirmTimeout(stderrors.New("plain")))
}

func TestLookupErrors(t *testing.T) {
	assert.Contains(t, (&RouteUnknownError{Target: "careers"}).Error(), `unknown route "careers"`)
	assert.Contains(t, (&ResourceUnknownError{Name: "news"}).Error(), `unknown content resource "news"`)
}

func TestErrorCollector(t *testing.T) {
	t.Run("collects and filters", func(t *testing.T) {
		ec := NewErrorCollector()
		assert.False(t, ec.HasErrors())

		ec.Add(SourceError{Resource: "listing", Source: SourcePrimary, Stage: StageStatus})
		ec.Add(SourceError{Resource: "listing", Source: SourceFallback, Stage: StageRead})
		ec.Add(SourceError{Resource: "copy", Source: SourcePrimary, Stage: StageDecode})
		ec.AddError(stderrors.New("general"))
		ec.AddError(nil)

		assert.True(t, ec.HasErrors())
		assert.Len(t, ec.GetErrors(), 3)
		assert.Len(t, ec.GetAllErrors(), 4)
		assert.Len(t, ec.GetErrorsByResource("listing"), 2)
		assert.Len(t, ec.GetErrorsBySource(SourceFallback), 1)

		for _, err := range ec.GetErrors() {
			assert.False(t, err.Timestamp.IsZero())
		}

		ec.Clear()
		assert.False(t, ec.HasErrors())
		assert.Empty(t, ec.GetAllErrors())
	})

	t.Run("concurrent use", func(t *testing.T) {
		ec := NewErrorCollector()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				ec.Add(SourceError{Resource: fmt.Sprintf("r%d", n), Source: SourcePrimary})
				_ = ec.GetErrors()
				_ = ec.HasErrors()
			}(i)
		}
		wg.Wait()

		require.Len(t, ec.GetErrors(), 10)
	})
}
