// Package sidebar builds the navigable tutorial menu from its YAML
// declaration.
//
// The sidebar is constructed once at startup and is immutable
// afterwards; per-page progress is recomputed live from the state
// store.
package sidebar

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"labguide/internal/config"
	"labguide/internal/locale"
	"labguide/internal/state"
)

// HiddenLabel marks a menu that never shows in listings but still
// participates in the linear page flow.
const HiddenLabel = "__hidden__"

// MenuItem is a single entry in a menu.
type MenuItem struct {
	Label        string
	Target       string
	ShowProgress bool
}

// Menu groups ordered items under a section label.
type Menu struct {
	Label    string
	Children []MenuItem
}

// Hidden reports whether the menu is excluded from display listings.
func (m Menu) Hidden() bool { return m.Label == HiddenLabel }

// Links holds the named external URLs rendered in the toolbar.
type Links struct {
	Documentation string
	GetHelp       string
	About         string
	Bugs          string
	Settings      string
}

// Sidebar is the root navigation aggregate.
type Sidebar struct {
	Header string
	Navbar []Menu
	Links  Links
}

// raw YAML shapes; ShowProgress defaults to true when omitted.
type rawItem struct {
	Label        string `yaml:"label" json:"label"`
	Target       string `yaml:"target" json:"target"`
	ShowProgress *bool  `yaml:"show_progress" json:"show_progress,omitempty"`
}

type rawMenu struct {
	Label    string    `yaml:"label" json:"label"`
	Children []rawItem `yaml:"children" json:"children"`
}

type rawLinks struct {
	Documentation string `yaml:"documentation" json:"documentation,omitempty"`
	GetHelp       string `yaml:"gethelp" json:"gethelp,omitempty"`
	About         string `yaml:"about" json:"about,omitempty"`
	Bugs          string `yaml:"bugs" json:"bugs,omitempty"`
	Settings      string `yaml:"settings" json:"settings,omitempty"`
}

type rawSidebar struct {
	Header string   `yaml:"header" json:"header,omitempty"`
	Navbar []rawMenu `yaml:"navbar" json:"navbar"`
	Links  rawLinks `yaml:"links" json:"links"`
}

// Load reads and validates the sidebar declaration at path. Every item
// target must have a default-locale message bundle under contentDir;
// anything else is a fatal configuration error.
func Load(path, contentDir string) (*Sidebar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &config.Error{Msg: fmt.Sprintf("read sidebar %s: %v", path, err)}
	}
	return Parse(data, contentDir)
}

// Parse builds a Sidebar from YAML bytes. contentDir may be empty to
// skip target resolution (used by display-only tooling).
func Parse(data []byte, contentDir string) (*Sidebar, error) {
	var raw rawSidebar
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &config.Error{Msg: fmt.Sprintf("parse sidebar: %v", err)}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	sb := &Sidebar{
		Header: raw.Header,
		Links: Links{
			Documentation: raw.Links.Documentation,
			GetHelp:       raw.Links.GetHelp,
			About:         raw.Links.About,
			Bugs:          raw.Links.Bugs,
			Settings:      raw.Links.Settings,
		},
	}

	seen := make(map[string]bool)
	for _, rm := range raw.Navbar {
		menu := Menu{Label: rm.Label}
		for _, ri := range rm.Children {
			show := true
			if ri.ShowProgress != nil {
				show = *ri.ShowProgress
			}
			if seen[ri.Target] {
				return nil, &config.Error{
					Field: "navbar",
					Msg:   fmt.Sprintf("duplicate page target %q", ri.Target),
				}
			}
			seen[ri.Target] = true

			if contentDir != "" {
				bundle := locale.BundlePath(contentDir, ri.Target, locale.DefaultLocale)
				if _, err := os.Stat(bundle); err != nil {
					return nil, &config.Error{
						Field: "navbar",
						Msg:   fmt.Sprintf("page target %q has no bundle at %s", ri.Target, bundle),
					}
				}
			}

			menu.Children = append(menu.Children, MenuItem{
				Label:        ri.Label,
				Target:       ri.Target,
				ShowProgress: show,
			})
		}
		sb.Navbar = append(sb.Navbar, menu)
	}

	return sb, nil
}

// FlattenedPages returns every page target in declaration order,
// hidden menus included. Cheap enough to recompute on each call.
func (s *Sidebar) FlattenedPages() []string {
	var pages []string
	for _, menu := range s.Navbar {
		for _, item := range menu.Children {
			pages = append(pages, item.Target)
		}
	}
	return pages
}

// PrevAndNext locates page in the flattened sequence and returns its
// neighbors. Pages outside the linear flow (settings and the like)
// yield ("", "") which is not an error.
func (s *Sidebar) PrevAndNext(page string) (prev, next string) {
	pages := s.FlattenedPages()
	for i, p := range pages {
		if p != page {
			continue
		}
		if i > 0 {
			prev = pages[i-1]
		}
		if i < len(pages)-1 {
			next = pages[i+1]
		}
		return prev, next
	}
	return "", ""
}

// HomePage returns the first page of the linear flow, or "".
func (s *Sidebar) HomePage() string {
	pages := s.FlattenedPages()
	if len(pages) == 0 {
		return ""
	}
	return pages[0]
}

// Progress reads the item's completion record from the store. Missing
// keys yield the zero Progress ("no data"), never an error.
func (s *Sidebar) Progress(item MenuItem, store state.Store) state.Progress {
	return state.PageProgress(store, item.Target)
}

// RenderedLabel is the item label with its progress suffix.
func (item MenuItem) RenderedLabel(p state.Progress) string {
	if !item.ShowProgress {
		return item.Label
	}
	switch {
	case !p.Started():
		return item.Label + " (not started)"
	case p.Done():
		return item.Label + " ✅"
	default:
		return fmt.Sprintf("%s (%d/%d)", item.Label, p.Completed, p.Total)
	}
}
