// Package dom holds the live document the synchronization engine renders
// into. The tree is parsed once at session start and mutated in place;
// every write emits a Mutation so observers (the navigation watcher chief
// among them) can react without polling.
package dom

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNotFound is returned when a mutation targets an element that is not
// part of the current document.
var ErrNotFound = errors.New("element not found")

// MutationKind classifies document mutations
type MutationKind int

const (
	MutationChildList MutationKind = iota
	MutationAttribute
)

// String returns the string representation of the mutation kind
func (k MutationKind) String() string {
	switch k {
	case MutationChildList:
		return "childlist"
	case MutationAttribute:
		return "attribute"
	default:
		return "unknown"
	}
}

// Mutation records a single document write. Target carries the element
// id when one is present, otherwise the tag name.
type Mutation struct {
	Kind      MutationKind
	Target    string
	Attr      string
	Timestamp time.Time
}

// Document wraps a parsed HTML tree behind a mutex. All reads and writes
// go through methods; the tree itself never escapes.
type Document struct {
	root     *html.Node
	mutex    sync.RWMutex
	watchers []chan Mutation
}

// ParseDocument parses a full HTML document from r.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{
		root:     root,
		watchers: make([]chan Mutation, 0),
	}, nil
}

// ParseDocumentString parses a full HTML document from a string.
func ParseDocumentString(s string) (*Document, error) {
	return ParseDocument(strings.NewReader(s))
}

// Subscribe returns a channel that receives document mutations
func (d *Document) Subscribe() <-chan Mutation {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	ch := make(chan Mutation, 100)
	d.watchers = append(d.watchers, ch)
	return ch
}

// Unsubscribe removes a watcher channel and closes it
func (d *Document) Unsubscribe(ch <-chan Mutation) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for i, watcher := range d.watchers {
		if watcher == ch {
			close(watcher)
			d.watchers = append(d.watchers[:i], d.watchers[i+1:]...)
			break
		}
	}
}

// notify must be called with the write lock held.
func (d *Document) notify(kind MutationKind, target, attr string) {
	event := Mutation{
		Kind:      kind,
		Target:    target,
		Attr:      attr,
		Timestamp: time.Now(),
	}

	for _, watcher := range d.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// HasElement reports whether an element with the given id exists
func (d *Document) HasElement(id string) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return d.byID(id) != nil
}

// Matches reports whether any element satisfies the selector
func (d *Document) Matches(selector string) (bool, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return false, err
	}

	d.mutex.RLock()
	defer d.mutex.RUnlock()

	return d.findFirst(func(n *html.Node) bool { return sel.Matches(n) }) != nil, nil
}

// MatchCount returns how many elements satisfy the selector
func (d *Document) MatchCount(selector string) (int, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return 0, err
	}

	d.mutex.RLock()
	defer d.mutex.RUnlock()

	count := 0
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if sel.Matches(n) {
			count++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(d.root)
	return count, nil
}

// TextContent returns the concatenated text of the element's subtree,
// or the empty string when the element is absent.
func (d *Document) TextContent(id string) string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	node := d.byID(id)
	if node == nil {
		return ""
	}

	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(node)
	return sb.String()
}

// Attr returns the value of an attribute on the element with the given id
func (d *Document) Attr(id, name string) (string, bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	node := d.byID(id)
	if node == nil {
		return "", false
	}
	return nodeAttr(node, name)
}

// ReplaceContent swaps the element's children for the parsed fragment.
func (d *Document) ReplaceContent(id, fragment string) error {
	nodes, err := parseFragment(fragment)
	if err != nil {
		return err
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	node := d.byID(id)
	if node == nil {
		return fmt.Errorf("replace content %q: %w", id, ErrNotFound)
	}

	for node.FirstChild != nil {
		node.RemoveChild(node.FirstChild)
	}
	for _, child := range nodes {
		node.AppendChild(child)
	}

	d.notify(MutationChildList, id, "")
	return nil
}

// SetAttr sets an attribute on the element with the given id
func (d *Document) SetAttr(id, name, value string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	node := d.byID(id)
	if node == nil {
		return fmt.Errorf("set attribute %q on %q: %w", name, id, ErrNotFound)
	}

	setNodeAttr(node, name, value)
	d.notify(MutationAttribute, id, name)
	return nil
}

// RemoveAttr removes an attribute from the element with the given id
func (d *Document) RemoveAttr(id, name string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	node := d.byID(id)
	if node == nil {
		return fmt.Errorf("remove attribute %q from %q: %w", name, id, ErrNotFound)
	}

	removeNodeAttr(node, name)
	d.notify(MutationAttribute, id, name)
	return nil
}

// PageMarker returns the data-page attribute of the document body
func (d *Document) PageMarker() string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	body := d.body()
	if body == nil {
		return ""
	}
	marker, _ := nodeAttr(body, "data-page")
	return marker
}

// SetPageMarker writes the data-page attribute on the document body
func (d *Document) SetPageMarker(route string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	body := d.body()
	if body == nil {
		return
	}
	setNodeAttr(body, "data-page", route)
	d.notify(MutationAttribute, "body", "data-page")
}

// Title returns the document title text
func (d *Document) Title() string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	node := d.findFirst(func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Title
	})
	if node == nil || node.FirstChild == nil {
		return ""
	}
	return node.FirstChild.Data
}

// SetTitle replaces the document title text
func (d *Document) SetTitle(title string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	node := d.findFirst(func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Title
	})
	if node == nil {
		return
	}
	for node.FirstChild != nil {
		node.RemoveChild(node.FirstChild)
	}
	node.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	d.notify(MutationChildList, "title", "")
}

// SetOpacity writes the opacity declaration of the element's style
// attribute, preserving any other declarations.
func (d *Document) SetOpacity(id, value string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	node := d.byID(id)
	if node == nil {
		return fmt.Errorf("set opacity on %q: %w", id, ErrNotFound)
	}

	style, _ := nodeAttr(node, "style")
	setNodeAttr(node, "style", mergeStyleDecl(style, "opacity", value))
	d.notify(MutationAttribute, id, "style")
	return nil
}

// Opacity reads the opacity declaration of the element's style attribute
func (d *Document) Opacity(id string) string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	node := d.byID(id)
	if node == nil {
		return ""
	}
	style, _ := nodeAttr(node, "style")
	return styleDecl(style, "opacity")
}

// ApplyPreset marks the body with the preset name and merges its style
// directives in as CSS custom properties.
func (d *Document) ApplyPreset(name string, directives map[string]string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	body := d.body()
	if body == nil {
		return
	}

	setNodeAttr(body, "data-preset", name)

	style, _ := nodeAttr(body, "style")
	for _, key := range sortedKeys(directives) {
		prop := key
		if !strings.HasPrefix(prop, "--") {
			prop = "--" + prop
		}
		style = mergeStyleDecl(style, prop, directives[key])
	}
	setNodeAttr(body, "style", style)

	d.notify(MutationAttribute, "body", "data-preset")
}

// ActivateLazyMedia promotes data-src/data-srcset to src/srcset on media
// elements inside the given element and marks them loaded. Returns how
// many elements were activated.
func (d *Document) ActivateLazyMedia(id string) (int, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	node := d.byID(id)
	if node == nil {
		return 0, fmt.Errorf("activate lazy media in %q: %w", id, ErrNotFound)
	}

	activated := 0
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && isMediaTag(n) {
			touched := false
			if src, ok := nodeAttr(n, "data-src"); ok {
				setNodeAttr(n, "src", src)
				removeNodeAttr(n, "data-src")
				touched = true
			}
			if srcset, ok := nodeAttr(n, "data-srcset"); ok {
				setNodeAttr(n, "srcset", srcset)
				removeNodeAttr(n, "data-srcset")
				touched = true
			}
			if touched {
				setNodeAttr(n, "data-lazy", "loaded")
				activated++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(node)

	if activated > 0 {
		d.notify(MutationAttribute, id, "data-lazy")
	}
	return activated, nil
}

// Fragment serializes the inner HTML of the element with the given id
func (d *Document) Fragment(id string) (string, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	node := d.byID(id)
	if node == nil {
		return "", fmt.Errorf("fragment %q: %w", id, ErrNotFound)
	}

	var sb strings.Builder
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("failed to render fragment: %w", err)
		}
	}
	return sb.String(), nil
}

// HTML serializes the whole document
func (d *Document) HTML() (string, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var sb strings.Builder
	if err := html.Render(&sb, d.root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return sb.String(), nil
}

// byID must be called with a lock held.
func (d *Document) byID(id string) *html.Node {
	return d.findFirst(func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := nodeAttr(n, "id")
		return ok && v == id
	})
}

// findFirst must be called with a lock held.
func (d *Document) findFirst(pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if found != nil {
			return
		}
		if pred(n) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(d.root)
	return found
}

// body must be called with a lock held.
func (d *Document) body() *html.Node {
	return d.findFirst(func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	})
}

func parseFragment(fragment string) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
	return nodes, nil
}

func setNodeAttr(n *html.Node, name, value string) {
	for i, attr := range n.Attr {
		if attr.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeNodeAttr(n *html.Node, name string) {
	for i, attr := range n.Attr {
		if attr.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func isMediaTag(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Img, atom.Source, atom.Video, atom.Iframe:
		return true
	}
	return false
}

// styleDecl extracts one declaration's value out of a style string.
func styleDecl(style, prop string) string {
	for _, decl := range strings.Split(style, ";") {
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.TrimSpace(parts[0]) == prop {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// mergeStyleDecl sets one declaration in a style string, keeping the rest.
func mergeStyleDecl(style, prop, value string) string {
	var decls []string
	replaced := false
	for _, decl := range strings.Split(style, ";") {
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		if key == prop {
			decls = append(decls, prop+": "+value)
			replaced = true
			continue
		}
		decls = append(decls, key+": "+strings.TrimSpace(parts[1]))
	}
	if !replaced {
		decls = append(decls, prop+": "+value)
	}
	return strings.Join(decls, "; ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
