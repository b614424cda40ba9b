package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Scaffold a content workspace with config and fallback fixtures",
	Long: `Create a working content setup in the given directory (or the current
one): a .dxp.yml configuration, fallback content files for every
built-in resource, and optionally a site manifest to customize routes
and mounts.

The scaffolded workspace runs offline: sources.fallback_only is set so
dxp serve works before any remote content endpoint exists.

Examples:
  dxp init                         # Scaffold in the current directory
  dxp init demo-site               # Scaffold in ./demo-site
  dxp init --manifest              # Also write an editable site.yml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initManifest bool

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initManifest, "manifest", false, "Also write an editable site.yml manifest")
}

func runInit(cmd *cobra.Command, args []string) error {
	var projectDir string

	if len(args) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		projectDir = cwd
	} else {
		projectDir = args[0]
		if err := os.MkdirAll(projectDir, 0755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
	}

	fmt.Printf("Initializing content workspace in %s\n", projectDir)

	if err := os.MkdirAll(filepath.Join(projectDir, "content"), 0755); err != nil {
		return fmt.Errorf("failed to create content directory: %w", err)
	}

	files := map[string]string{
		".dxp.yml":             starterConfig,
		"content/listing.json": starterListing,
		"content/copy.json":    starterCopy,
		"content/layout.json":  starterLayout,
	}
	if initManifest {
		files["site.yml"] = starterManifest
	}

	for name, body := range files {
		if err := writeIfAbsent(filepath.Join(projectDir, name), body); err != nil {
			return err
		}
	}

	fmt.Println("Workspace initialized.")
	fmt.Println("\nNext steps:")
	if len(args) > 0 {
		fmt.Println("  1. cd " + projectDir)
		fmt.Println("  2. dxp serve")
	} else {
		fmt.Println("  1. dxp serve")
	}
	fmt.Printf("  Then open http://localhost:8090\n")

	return nil
}

// writeIfAbsent writes the file unless it already exists, so rerunning
// init never clobbers local edits.
func writeIfAbsent(path, body string) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  %s already exists, skipping\n", path)
		return nil
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("  wrote %s\n", path)
	return nil
}

const starterConfig = `# dxp configuration file
server:
  port: 8090
  host: localhost
  environment: development

sources:
  # Remote content origin, e.g. https://cms.example.com. Leave empty and
  # keep fallback_only while developing offline.
  base_url: ""
  content_dir: content
  fallback_only: true
  timeout: 5s

site:
  # Path to a site manifest. Empty uses the built-in site definition;
  # run "dxp init --manifest" for an editable copy.
  manifest: ""
  default_route: home

timing:
  debounce: 150ms
  staged_swap: 300ms
  post_render: 100ms
  intent_settle: 250ms
  confirm_timeout: 8s

watch:
  enabled: true

log:
  level: info
  format: text
`

const starterListing = `{
  "projects": [
    {
      "id": 1,
      "title": "Azure Tower",
      "category": "exhibition",
      "year": 2024,
      "blurb": "A twin-atrium pavilion wrapped in photovoltaic glass.",
      "mediaUrl": "/media/azure-tower.jpg",
      "linkTarget": "/works/azure-tower"
    },
    {
      "id": 2,
      "title": "Desert Bloom Pavilion",
      "category": "installation",
      "year": 2024,
      "blurb": "Kinetic shade petals that track the afternoon sun.",
      "mediaUrl": "/media/desert-bloom.jpg",
      "linkTarget": "/works/desert-bloom"
    },
    {
      "id": 3,
      "title": "Marina Lightline",
      "category": "public space",
      "year": 2023,
      "blurb": "Three kilometres of programmable waterfront lighting.",
      "mediaUrl": "/media/marina-lightline.jpg",
      "linkTarget": "/works/marina-lightline"
    },
    {
      "id": 4,
      "title": "Souk Canopy Revival",
      "category": "restoration",
      "year": 2023,
      "blurb": "Hand-woven palm canopies over the old spice market.",
      "mediaUrl": "/media/souk-canopy.jpg",
      "linkTarget": "/works/souk-canopy"
    }
  ]
}
`

const starterCopy = `{
  "sections": {
    "home-hero": {
      "heading": "Designing Dubai",
      "body": "Exhibitions, pavilions, and public spaces built for the Gulf light."
    },
    "about": {
      "heading": "About the studio",
      "body": "We design and build exhibitions across the Emirates.\n\nFrom concept sketches to opening night, one team carries the project."
    }
  }
}
`

const starterLayout = `{
  "activePreset": "dusk",
  "presets": {
    "dusk": {
      "accent": "#d97706",
      "surface": "#1c1917",
      "ink": "#fafaf9"
    },
    "noon": {
      "accent": "#0369a1",
      "surface": "#fafaf9",
      "ink": "#1c1917"
    }
  }
}
`

const starterManifest = `# Site manifest: routes, content resources, and the mounts that bind
# document sections to content views. Point site.manifest at this file
# in .dxp.yml to use it instead of the built-in definition.
name: dxp-dubai
container: app

resources:
  - name: listing
    kind: listing
    primary_path: /api/projects
    fallback_path: listing.json
  - name: copy
    kind: copy
    primary_path: /api/copy
    fallback_path: copy.json
  - name: layout
    kind: layout
    primary_path: /api/layout
    fallback_path: layout.json

routes:
  - name: home
    path: /
    signature: "#home-hero"
    skeleton: '<section id="home-hero" class="hero" data-placeholder="true"><p class="placeholder-copy">Loading…</p></section><section id="works-slider" class="slider" data-placeholder="true"></section>'
  - name: works
    path: /works
    signature: "#works-grid"
    skeleton: '<section id="works-grid" class="grid"></section>'
  - name: about
    path: /about
    signature: "#about-copy"
    skeleton: '<section id="about-copy" class="copy" data-placeholder="true"><p class="placeholder-copy">Loading…</p></section>'

mounts:
  - id: home-hero
    route: home
    resource: copy
    view: hero
    section: home-hero
    placeholder: true
  - id: works-slider
    route: home
    resource: listing
    view: listing-featured
    limit: 6
    placeholder: true
  - id: works-grid
    route: works
    resource: listing
    view: listing-grid
  - id: about-copy
    route: about
    resource: copy
    view: copy-section
    section: about
    placeholder: true
`
