package renderer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/coderDevDev/dxp-dubai/internal/content"
)

// renderToString drives a templ component into a string.
func renderToString(ctx context.Context, component templ.Component) (string, error) {
	var sb strings.Builder
	if err := component.Render(ctx, &sb); err != nil {
		return "", fmt.Errorf("failed to render component: %w", err)
	}
	return sb.String(), nil
}

// heroComponent renders a copy section as the page hero.
func heroComponent(section content.CopySection, bodyHTML string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<div class="hero-inner"><h1>%s</h1>`, templ.EscapeString(section.Heading)); err != nil {
			return err
		}
		if bodyHTML != "" {
			if err := templ.Raw(bodyHTML).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// copyComponent renders a copy section as a standalone block.
func copyComponent(section content.CopySection, bodyHTML string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<div class="copy-inner"><h2>%s</h2>`, templ.EscapeString(section.Heading)); err != nil {
			return err
		}
		if bodyHTML != "" {
			if err := templ.Raw(bodyHTML).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// projectCard renders one listing entry. Media is emitted lazily via
// data-src so activation can happen after the mount settles.
func projectCard(item content.ProjectItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<article class="project-card" data-project-id="%d">`, item.ID); err != nil {
			return err
		}

		linked := item.LinkTarget != ""
		if linked {
			if _, err := fmt.Fprintf(w, `<a href="%s">`, templ.EscapeString(string(templ.URL(item.LinkTarget)))); err != nil {
				return err
			}
		}

		if item.MediaURL != "" {
			if _, err := fmt.Fprintf(w,
				`<figure><img data-src="%s" alt="%s" data-lazy="pending"></figure>`,
				templ.EscapeString(string(templ.URL(item.MediaURL))),
				templ.EscapeString(item.Title),
			); err != nil {
				return err
			}
		}

		if _, err := fmt.Fprintf(w, `<h3>%s</h3>`, templ.EscapeString(item.Title)); err != nil {
			return err
		}

		if meta := cardMeta(item); meta != "" {
			if _, err := fmt.Fprintf(w, `<p class="meta">%s</p>`, templ.EscapeString(meta)); err != nil {
				return err
			}
		}

		if linked {
			if _, err := io.WriteString(w, `</a>`); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</article>`)
		return err
	})
}

func cardMeta(item content.ProjectItem) string {
	switch {
	case item.Category != "" && item.Year != 0:
		return fmt.Sprintf("%s, %d", item.Category, item.Year)
	case item.Category != "":
		return item.Category
	case item.Year != 0:
		return fmt.Sprintf("%d", item.Year)
	default:
		return ""
	}
}

// listingComponent renders project cards inside a track wrapper.
func listingComponent(trackClass string, items []content.ProjectItem) templ.Component {
	cards := make([]templ.Component, 0, len(items))
	for _, item := range items {
		cards = append(cards, projectCard(item))
	}

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<div class="%s">`, templ.EscapeString(trackClass)); err != nil {
			return err
		}
		if err := templ.Join(cards...).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// featuredSubset slices the leading items for a slider view. Both the
// featured view and the grid view render from the same underlying slice,
// so item N of the slider is item N of the grid.
func featuredSubset(items []content.ProjectItem, limit int) []content.ProjectItem {
	if limit <= 0 || limit >= len(items) {
		return items
	}
	return items[:limit]
}
