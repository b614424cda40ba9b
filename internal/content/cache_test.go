package content

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dxperrors "github.com/coderDevDev/dxp-dubai/internal/errors"
	"github.com/coderDevDev/dxp-dubai/internal/registry"
)

func TestSessionCacheIdentity(t *testing.T) {
	a := NewSessionCache()
	b := NewSessionCache()

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.False(t, a.CreatedAt().IsZero())
}

func TestSessionCachePutGet(t *testing.T) {
	cache := NewSessionCache()

	_, ok := cache.Get("listing")
	assert.False(t, ok)

	payload := &Payload{Resource: "listing", Kind: registry.KindListing, Listing: &Listing{}}
	cache.Put(payload)

	got, ok := cache.Get("listing")
	require.True(t, ok)
	assert.Same(t, payload, got)
	assert.Equal(t, 1, cache.Len())

	// Replacement keeps one entry per resource.
	newer := &Payload{Resource: "listing", Kind: registry.KindListing, Origin: dxperrors.SourceFallback}
	cache.Put(newer)
	got, _ = cache.Get("listing")
	assert.Same(t, newer, got)
	assert.Equal(t, 1, cache.Len())
}

func TestSessionCachePutNil(t *testing.T) {
	cache := NewSessionCache()
	cache.Put(nil)
	assert.Equal(t, 0, cache.Len())
}

func TestSessionCacheClear(t *testing.T) {
	cache := NewSessionCache()
	cache.Put(&Payload{Resource: "listing"})
	cache.Put(&Payload{Resource: "copy"})
	require.Equal(t, 2, cache.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
	_, ok := cache.Get("listing")
	assert.False(t, ok)
}

func TestSessionCacheNames(t *testing.T) {
	cache := NewSessionCache()
	cache.Put(&Payload{Resource: "listing"})
	cache.Put(&Payload{Resource: "copy"})
	cache.Put(&Payload{Resource: "layout"})

	assert.Equal(t, []string{"copy", "layout", "listing"}, cache.Names())
}

func TestSessionCacheConcurrentAccess(t *testing.T) {
	cache := NewSessionCache()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			cache.Put(&Payload{Resource: fmt.Sprintf("resource-%d", n%5)})
			_, _ = cache.Get("resource-0")
			_ = cache.Len()
			_ = cache.Names()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, cache.Len())
}
