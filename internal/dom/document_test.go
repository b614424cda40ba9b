package dom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>Dubai Exhibitions</title></head>
<body data-page="home">
  <main id="app">
    <section id="home-hero" class="hero" data-placeholder="true"><p>Loading…</p></section>
    <section id="works-slider" data-placeholder="true"></section>
  </main>
</body>
</html>`

func newTestDocument(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseDocumentString(testPage)
	require.NoError(t, err)
	return doc
}

func drain(ch <-chan Mutation) []Mutation {
	var out []Mutation
	for {
		select {
		case m := <-ch:
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestParseDocument(t *testing.T) {
	doc := newTestDocument(t)

	assert.True(t, doc.HasElement("app"))
	assert.True(t, doc.HasElement("home-hero"))
	assert.False(t, doc.HasElement("works-grid"))
	assert.Equal(t, "Dubai Exhibitions", doc.Title())
	assert.Equal(t, "home", doc.PageMarker())
}

func TestReplaceContent(t *testing.T) {
	doc := newTestDocument(t)
	ch := doc.Subscribe()

	err := doc.ReplaceContent("home-hero", `<h1>Designing Dubai</h1><p>Spatial stories.</p>`)
	require.NoError(t, err)

	assert.Contains(t, doc.TextContent("home-hero"), "Designing Dubai")
	assert.NotContains(t, doc.TextContent("home-hero"), "Loading")

	fragment, err := doc.Fragment("home-hero")
	require.NoError(t, err)
	assert.Contains(t, fragment, "<h1>Designing Dubai</h1>")

	mutations := drain(ch)
	require.Len(t, mutations, 1)
	assert.Equal(t, MutationChildList, mutations[0].Kind)
	assert.Equal(t, "home-hero", mutations[0].Target)
	assert.WithinDuration(t, time.Now(), mutations[0].Timestamp, time.Second)
}

func TestReplaceContentMissingElement(t *testing.T) {
	doc := newTestDocument(t)

	err := doc.ReplaceContent("works-grid", `<div></div>`)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttributes(t *testing.T) {
	doc := newTestDocument(t)

	val, ok := doc.Attr("home-hero", "data-placeholder")
	require.True(t, ok)
	assert.Equal(t, "true", val)

	require.NoError(t, doc.SetAttr("home-hero", "data-placeholder", "false"))
	val, _ = doc.Attr("home-hero", "data-placeholder")
	assert.Equal(t, "false", val)

	require.NoError(t, doc.RemoveAttr("home-hero", "data-placeholder"))
	_, ok = doc.Attr("home-hero", "data-placeholder")
	assert.False(t, ok)

	assert.ErrorIs(t, doc.SetAttr("missing", "k", "v"), ErrNotFound)
}

func TestPageMarker(t *testing.T) {
	doc := newTestDocument(t)
	ch := doc.Subscribe()

	doc.SetPageMarker("works")
	assert.Equal(t, "works", doc.PageMarker())

	mutations := drain(ch)
	require.Len(t, mutations, 1)
	assert.Equal(t, MutationAttribute, mutations[0].Kind)
	assert.Equal(t, "data-page", mutations[0].Attr)
}

func TestTitle(t *testing.T) {
	doc := newTestDocument(t)

	doc.SetTitle("Works · Dubai Exhibitions")
	assert.Equal(t, "Works · Dubai Exhibitions", doc.Title())
}

func TestOpacity(t *testing.T) {
	doc := newTestDocument(t)

	require.NoError(t, doc.SetOpacity("home-hero", "0.35"))
	assert.Equal(t, "0.35", doc.Opacity("home-hero"))

	// Other declarations survive an opacity update.
	require.NoError(t, doc.SetAttr("home-hero", "style", "color: red; opacity: 0.35"))
	require.NoError(t, doc.SetOpacity("home-hero", "1"))
	assert.Equal(t, "1", doc.Opacity("home-hero"))
	style, _ := doc.Attr("home-hero", "style")
	assert.Contains(t, style, "color: red")
}

func TestApplyPreset(t *testing.T) {
	doc := newTestDocument(t)

	doc.ApplyPreset("dusk", map[string]string{"accent": "#d97706", "--ink": "#1c1a18"})

	marker, _ := doc.Attr("app", "data-preset")
	assert.Empty(t, marker)

	html, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, html, `data-preset="dusk"`)
	assert.Contains(t, html, "--accent: #d97706")
	assert.Contains(t, html, "--ink: #1c1a18")
}

func TestMatches(t *testing.T) {
	doc := newTestDocument(t)

	tests := []struct {
		selector string
		want     bool
	}{
		{"#home-hero", true},
		{"#works-grid", false},
		{".hero", true},
		{"main", true},
		{"[data-page=home]", true},
		{"[data-page=works]", false},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			got, err := doc.Matches(tt.selector)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := doc.Matches("div p")
	assert.Error(t, err)
}

func TestMatchCount(t *testing.T) {
	doc := newTestDocument(t)
	require.NoError(t, doc.ReplaceContent("works-slider", `<div class="project-card"></div><div class="project-card"></div>`))

	count, err := doc.MatchCount(".project-card")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestActivateLazyMedia(t *testing.T) {
	doc := newTestDocument(t)
	require.NoError(t, doc.ReplaceContent("works-slider", `
		<figure>
			<img data-src="/media/azure.jpg" alt="Azure Tower">
			<video data-src="/media/azure.mp4"></video>
			<img src="/media/eager.jpg" alt="already loaded">
		</figure>`))

	activated, err := doc.ActivateLazyMedia("works-slider")
	require.NoError(t, err)
	assert.Equal(t, 2, activated)

	fragment, err := doc.Fragment("works-slider")
	require.NoError(t, err)
	assert.Contains(t, fragment, `src="/media/azure.jpg"`)
	assert.Contains(t, fragment, `data-lazy="loaded"`)

	// Activation consumes data-src, so a second pass is a no-op.
	activated, err = doc.ActivateLazyMedia("works-slider")
	require.NoError(t, err)
	assert.Equal(t, 0, activated)

	_, err = doc.ActivateLazyMedia("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscribeDropsWhenFull(t *testing.T) {
	doc := newTestDocument(t)
	ch := doc.Subscribe()

	// Overflow the buffer; writers must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 150; i++ {
			doc.SetPageMarker("home")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("document writer blocked on a full subscriber channel")
	}

	assert.LessOrEqual(t, len(drain(ch)), 100)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	doc := newTestDocument(t)
	ch := doc.Subscribe()
	doc.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
}

func TestStyleDeclHelpers(t *testing.T) {
	style := mergeStyleDecl("", "opacity", "0.35")
	assert.Equal(t, "opacity: 0.35", style)

	style = mergeStyleDecl("color: red; opacity: 0.35", "opacity", "1")
	assert.Equal(t, "color: red; opacity: 1", style)

	assert.Equal(t, "1", styleDecl("color: red; opacity: 1", "opacity"))
	assert.Equal(t, "", styleDecl("color: red", "opacity"))
}
