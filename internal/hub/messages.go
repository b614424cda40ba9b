package hub

import (
	"strings"
	"time"
)

// Message types pushed to connected clients.
const (
	TypeHello           = "hello"
	TypeContentRendered = "content_rendered"
	TypeRouteChanged    = "route_changed"
	TypeLayoutApplied   = "layout_applied"
	TypeContentReloaded = "content_reloaded"
	TypeRouteTimeout    = "route_timeout"
)

// Message is the wire format for hub notifications.
type Message struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hello greets a newly connected client with the session and the route
// currently on screen.
func Hello(session, route string) Message {
	return Message{Type: TypeHello, Target: route, Content: session, Timestamp: time.Now()}
}

// ContentRendered announces that a mount finished its render sequence.
func ContentRendered(route, mount string) Message {
	return Message{Type: TypeContentRendered, Target: mount, Content: route, Timestamp: time.Now()}
}

// RouteChanged announces a confirmed navigation.
func RouteChanged(route string) Message {
	return Message{Type: TypeRouteChanged, Target: route, Timestamp: time.Now()}
}

// LayoutApplied announces a layout preset taking effect.
func LayoutApplied(preset string) Message {
	return Message{Type: TypeLayoutApplied, Target: preset, Timestamp: time.Now()}
}

// ContentReloaded announces resources whose cached payloads were dropped.
func ContentReloaded(resources []string) Message {
	return Message{Type: TypeContentReloaded, Content: strings.Join(resources, ","), Timestamp: time.Now()}
}

// RouteTimeout announces an intent whose signature never appeared.
func RouteTimeout(route string, waited time.Duration) Message {
	return Message{Type: TypeRouteTimeout, Target: route, Content: waited.String(), Timestamp: time.Now()}
}
