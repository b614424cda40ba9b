package registry

// DefaultSite returns the built-in manifest for the Dubai exhibitions
// site: three routes, three content resources, and the four mounts the
// engine keeps in sync. Deployments with a different page structure
// supply their own manifest via site.manifest.
func DefaultSite() *Site {
	return &Site{
		Name:      "dxp-dubai",
		Container: "app",
		Resources: []Resource{
			{
				Name:         "listing",
				Kind:         KindListing,
				PrimaryPath:  "/api/projects",
				FallbackPath: "listing.json",
			},
			{
				Name:         "copy",
				Kind:         KindCopy,
				PrimaryPath:  "/api/copy",
				FallbackPath: "copy.json",
			},
			{
				Name:         "layout",
				Kind:         KindLayout,
				PrimaryPath:  "/api/layout",
				FallbackPath: "layout.json",
			},
		},
		Routes: []Route{
			{
				Name:      "home",
				Path:      "/",
				Signature: "#home-hero",
				Skeleton: `<section id="home-hero" class="hero" data-placeholder="true"><p class="placeholder-copy">Loading…</p></section>` +
					`<section id="works-slider" class="slider" data-placeholder="true"></section>`,
			},
			{
				Name:      "works",
				Path:      "/works",
				Signature: "#works-grid",
				Skeleton:  `<section id="works-grid" class="grid"></section>`,
			},
			{
				Name:      "about",
				Path:      "/about",
				Signature: "#about-copy",
				Skeleton:  `<section id="about-copy" class="copy" data-placeholder="true"><p class="placeholder-copy">Loading…</p></section>`,
			},
		},
		Mounts: []Mount{
			{
				ID:          "home-hero",
				Route:       "home",
				Resource:    "copy",
				View:        ViewHero,
				Section:     "home-hero",
				Placeholder: true,
			},
			{
				ID:          "works-slider",
				Route:       "home",
				Resource:    "listing",
				View:        ViewListingFeatured,
				Limit:       6,
				Placeholder: true,
			},
			{
				ID:       "works-grid",
				Route:    "works",
				Resource: "listing",
				View:     ViewListingGrid,
			},
			{
				ID:          "about-copy",
				Route:       "about",
				Resource:    "copy",
				View:        ViewCopySection,
				Section:     "about",
				Placeholder: true,
			},
		},
	}
}
