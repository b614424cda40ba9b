package content

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionCache holds fetched payloads for the lifetime of one session.
// There is no expiry and no persistence: entries live until Clear. At
// most one payload exists per resource name.
//
// Two concurrent first fetches of the same resource may both reach the
// source and Put in either order; both store equivalent data, so the
// last write winning is harmless and deliberately left unsynchronized.
type SessionCache struct {
	id        string
	createdAt time.Time
	payloads  map[string]*Payload
	mutex     sync.RWMutex
}

// NewSessionCache creates an empty cache with a fresh session identity
func NewSessionCache() *SessionCache {
	return &SessionCache{
		id:        uuid.New().String(),
		createdAt: time.Now(),
		payloads:  make(map[string]*Payload),
	}
}

// ID returns the session identity
func (c *SessionCache) ID() string {
	return c.id
}

// CreatedAt returns when the session started
func (c *SessionCache) CreatedAt() time.Time {
	return c.createdAt
}

// Get retrieves a payload by resource name
func (c *SessionCache) Get(name string) (*Payload, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	payload, exists := c.payloads[name]
	return payload, exists
}

// Put stores a payload under its resource name
func (c *SessionCache) Put(payload *Payload) {
	if payload == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.payloads[payload.Resource] = payload
}

// Clear drops every cached payload. The next fetch per resource goes
// back to the sources.
func (c *SessionCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.payloads = make(map[string]*Payload)
}

// Len returns the number of cached payloads
func (c *SessionCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.payloads)
}

// Names returns the cached resource names, sorted
func (c *SessionCache) Names() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	names := make([]string, 0, len(c.payloads))
	for name := range c.payloads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
