package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Selector is the parsed form of the small selector language route
// signatures use: "#id", ".class", "tag", "[attr]", "[attr=value]",
// and a tag prefix combined with any of the others ("section#works").
type Selector struct {
	Tag     string
	ID      string
	Class   string
	AttrKey string
	AttrVal string
	HasAttr bool
}

// ParseSelector parses a signature selector string.
func ParseSelector(s string) (Selector, error) {
	var sel Selector

	s = strings.TrimSpace(s)
	if s == "" {
		return sel, fmt.Errorf("empty selector")
	}
	if strings.ContainsAny(s, " >~+,") {
		return sel, fmt.Errorf("combinators are not supported: %q", s)
	}

	// Attribute suffix first so "=" inside it cannot confuse the rest.
	if open := strings.IndexByte(s, '['); open >= 0 {
		if !strings.HasSuffix(s, "]") {
			return sel, fmt.Errorf("unterminated attribute selector: %q", s)
		}
		inner := s[open+1 : len(s)-1]
		if inner == "" {
			return sel, fmt.Errorf("empty attribute selector: %q", s)
		}
		if eq := strings.IndexByte(inner, '='); eq >= 0 {
			sel.AttrKey = inner[:eq]
			sel.AttrVal = strings.Trim(inner[eq+1:], `"'`)
		} else {
			sel.AttrKey = inner
		}
		if sel.AttrKey == "" {
			return sel, fmt.Errorf("attribute selector missing key: %q", s)
		}
		sel.HasAttr = true
		s = s[:open]
	}

	switch {
	case strings.HasPrefix(s, "#"):
		sel.ID = s[1:]
	case strings.HasPrefix(s, "."):
		sel.Class = s[1:]
	case strings.Contains(s, "#"):
		parts := strings.SplitN(s, "#", 2)
		sel.Tag = parts[0]
		sel.ID = parts[1]
	case strings.Contains(s, "."):
		parts := strings.SplitN(s, ".", 2)
		sel.Tag = parts[0]
		sel.Class = parts[1]
	default:
		sel.Tag = s
	}

	if sel.Tag == "" && sel.ID == "" && sel.Class == "" && !sel.HasAttr {
		return sel, fmt.Errorf("selector matches nothing: %q", s)
	}

	if (strings.HasPrefix(s, "#") || strings.HasPrefix(s, ".")) && len(s) == 1 {
		return sel, fmt.Errorf("selector missing name: %q", s)
	}

	return sel, nil
}

// Matches reports whether the node satisfies every part of the selector.
func (sel Selector) Matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if sel.Tag != "" && n.Data != sel.Tag {
		return false
	}
	if sel.ID != "" {
		if id, ok := nodeAttr(n, "id"); !ok || id != sel.ID {
			return false
		}
	}
	if sel.Class != "" {
		classes, ok := nodeAttr(n, "class")
		if !ok {
			return false
		}
		found := false
		for _, c := range strings.Fields(classes) {
			if c == sel.Class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if sel.HasAttr {
		val, ok := nodeAttr(n, sel.AttrKey)
		if !ok {
			return false
		}
		if sel.AttrVal != "" && val != sel.AttrVal {
			return false
		}
	}
	return true
}

func nodeAttr(n *html.Node, name string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val, true
		}
	}
	return "", false
}
