package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coderDevDev/dxp-dubai/internal/content"
	dxperrors "github.com/coderDevDev/dxp-dubai/internal/errors"
	"github.com/coderDevDev/dxp-dubai/internal/version"
)

// handleIndex serves the live document. The external router normally
// owns this page; here it lets a browser inspect what the session sees.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	html, err := s.engine.Document().HTML()
	if err != nil {
		s.logger.Error(r.Context(), err, "document serialization failed")
		http.Error(w, "Failed to render document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(html)); err != nil {
		s.logger.Warn(r.Context(), err, "failed to write index response")
	}
}

// handleContent fetches one resource through the session (cache first,
// then primary, then fallback) and returns the payload as JSON.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/content/"), "/")[0]
	if err := validateName(name); err != nil {
		http.Error(w, "Invalid resource name: "+err.Error(), http.StatusBadRequest)
		return
	}

	payload, err := s.engine.Fetch(r.Context(), name)
	if err != nil {
		var unknown *dxperrors.ResourceUnknownError
		switch {
		case stderrors.As(err, &unknown):
			http.NotFound(w, r)
		case dxperrors.IsDataUnavailable(err):
			http.Error(w, "Content unavailable: "+err.Error(), http.StatusBadGateway)
		default:
			s.logger.Error(r.Context(), err, "content fetch failed", "resource", name)
			http.Error(w, "Fetch failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"resource":   payload.Resource,
		"kind":       payload.Kind,
		"origin":     payload.Origin.String(),
		"fetched_at": payload.FetchedAt,
		"data":       payloadData(payload),
	})
}

func payloadData(p *content.Payload) interface{} {
	switch {
	case p.Listing != nil:
		return p.Listing
	case p.Copy != nil:
		return p.Copy
	case p.Layout != nil:
		return p.Layout
	}
	return nil
}

// handleCache reports cache contents on GET and empties them on DELETE.
func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := s.engine.Status()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"session":   status.Session,
			"resources": status.Cached,
			"count":     len(status.Cached),
			"timestamp": time.Now().Unix(),
		})

	case http.MethodDelete:
		cleared := s.engine.ClearCache(r.Context())
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"cleared":   cleared,
			"count":     len(cleared),
			"timestamp": time.Now().Unix(),
		})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleNavigate registers a navigation intent and immediately simulates
// the external router swapping the route scaffold in, so the intent
// confirms without a real browser.
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	route := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/navigate/"), "/")[0]
	if err := validateName(route); err != nil {
		http.Error(w, "Invalid route name: "+err.Error(), http.StatusBadRequest)
		return
	}

	intent, err := s.engine.NavigateIntent(r.Context(), route)
	if err != nil {
		var unknown *dxperrors.RouteUnknownError
		if stderrors.As(err, &unknown) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error(r.Context(), err, "navigation failed", "route", route)
		http.Error(w, "Navigation failed", http.StatusInternalServerError)
		return
	}

	if err := s.engine.SimulateRouterSwap(r.Context(), route); err != nil {
		s.logger.Error(r.Context(), err, "router swap failed", "route", route)
		http.Error(w, "Router swap failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"route":      intent.Target,
		"generation": intent.Generation,
		"created_at": intent.CreatedAt,
	})
}

// handleRoutes lists the navigable routes from the manifest.
func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reg := s.engine.Registry()
	current := s.engine.CurrentRoute()

	routes := reg.Routes()
	out := make([]map[string]interface{}, 0, len(routes))
	for _, rt := range routes {
		out = append(out, map[string]interface{}{
			"name":      rt.Name,
			"path":      rt.Path,
			"title":     rt.Title(),
			"signature": rt.Signature,
			"resources": reg.ResourcesForRoute(rt.Name),
			"current":   rt.Name == current,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"routes": out,
		"count":  len(out),
	})
}

// handleSession reports the session status snapshot.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.engine.Status())
}

// handleHealth answers health checks with component-level detail.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := s.engine.Status()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.Short(),
		"checks": map[string]interface{}{
			"session": map[string]interface{}{"status": "healthy", "id": status.Session, "route": status.Route},
			"routes":  map[string]interface{}{"status": "healthy", "count": len(s.engine.Registry().Routes())},
			"cache":   map[string]interface{}{"status": "healthy", "resources": len(status.Cached)},
			"hub":     map[string]interface{}{"status": "healthy", "clients": s.hub.ClientCount()},
		},
	}

	writeJSON(w, http.StatusOK, health)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// validateName rejects path parameters that could reach outside the
// manifest namespace. Resource and route names are plain identifiers.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if len(name) > 100 {
		return fmt.Errorf("name too long (max 100 characters)")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("path traversal attempt detected")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return fmt.Errorf("character %q not allowed", r)
		}
	}
	return nil
}
