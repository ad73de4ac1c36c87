package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sort"
	"strings"
	"sync"

	_ "golang.org/x/image/webp"

	"github.com/snapbooth/snapbooth/internal/events"
	"github.com/snapbooth/snapbooth/internal/observability"
	"github.com/snapbooth/snapbooth/internal/storage"
)

// Summary is the listing view of a loaded layout.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// Store loads layout documents from a sandboxed directory and tracks the
// active selection. Layouts are immutable after load; selecting a template
// swaps the active pointer without mutating any loaded document.
type Store struct {
	sandbox *storage.Sandbox
	bus     *events.Bus
	logger  *slog.Logger

	mu      sync.RWMutex
	layouts map[string]*Layout
	active  string
	vars    map[string]string
}

// NewStore creates a template store rooted at the sandbox directory.
func NewStore(sandbox *storage.Sandbox, bus *events.Bus, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sandbox: sandbox,
		bus:     bus,
		logger:  observability.WithComponent(logger, "templates"),
		layouts: make(map[string]*Layout),
		vars:    make(map[string]string),
	}
}

// Load scans the template directory for *.json layout documents, validating
// each and decoding any referenced background image. An empty directory is
// populated with the built-in default set first. A document that fails to
// parse or validate is skipped with a warning so one bad file cannot take
// down the whole catalog.
func (s *Store) Load() error {
	entries, err := s.sandbox.List(".")
	if err != nil {
		return fmt.Errorf("listing template directory: %w", err)
	}

	hasLayouts := false
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			hasLayouts = true
			break
		}
	}
	if !hasLayouts {
		if err := s.materializeDefaults(); err != nil {
			return fmt.Errorf("writing default templates: %w", err)
		}
		entries, err = s.sandbox.List(".")
		if err != nil {
			return fmt.Errorf("listing template directory: %w", err)
		}
	}

	loaded := make(map[string]*Layout)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		layout, err := s.loadOne(e.Name())
		if err != nil {
			s.logger.Warn("skipping invalid template", "file", e.Name(), "error", err)
			continue
		}
		if _, dup := loaded[layout.Name]; dup {
			s.logger.Warn("skipping duplicate template name", "file", e.Name(), "name", layout.Name)
			continue
		}
		loaded[layout.Name] = layout
	}

	if len(loaded) == 0 {
		return fmt.Errorf("no valid templates in %s", s.sandbox.BaseDir())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.layouts = loaded
	if _, ok := s.layouts[s.active]; !ok {
		// Prefer "default", else the first name in sorted order.
		if _, ok := s.layouts["default"]; ok {
			s.active = "default"
		} else {
			names := make([]string, 0, len(s.layouts))
			for n := range s.layouts {
				names = append(names, n)
			}
			sort.Strings(names)
			s.active = names[0]
		}
	}

	s.logger.Info("templates loaded", "count", len(loaded), "active", s.active)
	return nil
}

func (s *Store) loadOne(file string) (*Layout, error) {
	data, err := s.sandbox.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var layout Layout
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&layout); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	if layout.Name == "" {
		layout.Name = strings.TrimSuffix(file, ".json")
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	if layout.Background.Kind == BackgroundImage {
		raw, err := s.sandbox.ReadFile(layout.Background.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("background image %q: %w", layout.Background.ImagePath, err)
		}
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decoding background image %q: %w", layout.Background.ImagePath, err)
		}
		layout.Background.img = img
	}

	return &layout, nil
}

// List returns summaries sorted by name.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.layouts))
	for name, l := range s.layouts {
		out = append(out, Summary{Name: name, Description: l.Description, Active: name == s.active})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Select makes the named layout active for subsequent captures.
func (s *Store) Select(name string) error {
	s.mu.Lock()
	if _, ok := s.layouts[name]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown template %q", name)
	}
	prev := s.active
	s.active = name
	s.mu.Unlock()

	if prev != name {
		s.logger.Info("template selected", "template", name, "previous", prev)
		if s.bus != nil {
			s.bus.Publish(events.TypeTemplateSelected, map[string]any{
				"template": name,
				"previous": prev,
			})
		}
	}
	return nil
}

// Active returns the active layout and its name.
func (s *Store) Active() (*Layout, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layouts[s.active], s.active
}

// Get returns the named layout, or nil if unknown.
func (s *Store) Get(name string) *Layout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layouts[name]
}

// SetVariable sets one substitution variable for {name} placeholders.
func (s *Store) SetVariable(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
}

// Variables returns a copy of the substitution context.
func (s *Store) Variables() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

func (s *Store) materializeDefaults() error {
	for file, layout := range defaultLayouts() {
		data, err := json.MarshalIndent(layout, "", "  ")
		if err != nil {
			return err
		}
		if err := s.sandbox.AtomicWrite(file, append(data, '\n')); err != nil {
			return err
		}
		s.logger.Info("materialized default template", "file", file)
	}
	return nil
}

// defaultLayouts is the built-in template set written to an empty template
// directory on first start. All of them target a 1200x1800 portrait print.
func defaultLayouts() map[string]*Layout {
	return map[string]*Layout{
		"default.json": {
			Name:        "default",
			Description: "Plain white card with a centered photo",
			FinalSize:   Size{Width: 1200, Height: 1800},
			PhotoSlot:   Rect{X: 100, Y: 200, Width: 1000, Height: 1250},
			Background:  Background{Kind: BackgroundSolid, Color: RGB{R: 255, G: 255, B: 255}},
			Text: []TextElement{
				{Text: "{event_name}", Position: Point{X: 100, Y: 60}, FontSize: 72, Color: RGB{R: 30, G: 30, B: 30}, Weight: WeightBold},
				{Text: "{date}", Position: Point{X: 100, Y: 1560}, FontSize: 48, Color: RGB{R: 90, G: 90, B: 90}},
			},
		},
		"school.json": {
			Name:        "school",
			Description: "School picture day card with name and class lines",
			FinalSize:   Size{Width: 1200, Height: 1800},
			PhotoSlot:   Rect{X: 150, Y: 150, Width: 900, Height: 1125},
			Background:  Background{Kind: BackgroundSolid, Color: RGB{R: 235, G: 242, B: 250}},
			Text: []TextElement{
				{Text: "{school_name}", Position: Point{X: 150, Y: 40}, FontSize: 60, Color: RGB{R: 20, G: 40, B: 90}, Weight: WeightBold},
				{Text: "{name}", Position: Point{X: 150, Y: 1330}, FontSize: 64, Color: RGB{R: 20, G: 20, B: 20}, Weight: WeightBold},
				{Text: "Class of {class_year}", Position: Point{X: 150, Y: 1430}, FontSize: 44, Color: RGB{R: 70, G: 70, B: 70}},
			},
			Decorations: []Decoration{
				{Type: DecorationBorder, Width: 12, Color: RGB{R: 20, G: 40, B: 90}},
				{Type: DecorationDividerLine, Start: Point{X: 150, Y: 1300}, End: Point{X: 1050, Y: 1300}, Width: 4, Color: RGB{R: 20, G: 40, B: 90}},
			},
		},
		"dual_photo.json": {
			Name:        "dual_photo",
			Description: "Mugshot card with front and side views",
			FinalSize:   Size{Width: 1200, Height: 1800},
			DualPhoto:   true,
			PhotoSlots: []NamedSlot{
				{Name: "front_view", Rect: Rect{X: 60, Y: 260, Width: 530, Height: 1060}},
				{Name: SideViewSlot, Rect: Rect{X: 610, Y: 260, Width: 530, Height: 1060}},
			},
			Background: Background{Kind: BackgroundSolid, Color: RGB{R: 210, G: 205, B: 195}},
			Text: []TextElement{
				{Text: "{event_name}", Position: Point{X: 60, Y: 60}, FontSize: 72, Color: RGB{R: 40, G: 40, B: 40}, Weight: WeightBold},
				{Text: "{name}", Position: Point{X: 60, Y: 1420}, FontSize: 64, Color: RGB{R: 40, G: 40, B: 40}, Weight: WeightBold},
				{Text: "{date}", Position: Point{X: 60, Y: 1540}, FontSize: 48, Color: RGB{R: 90, G: 90, B: 90}},
			},
			Decorations: []Decoration{
				{Type: DecorationHeightChart, Position: Point{X: 1160, Y: 260}, Height: 1060},
				{Type: DecorationDividerLine, Start: Point{X: 60, Y: 1380}, End: Point{X: 1140, Y: 1380}, Width: 4, Color: RGB{R: 40, G: 40, B: 40}},
			},
		},
		"party.json": {
			Name:        "party",
			Description: "Party strip with a height chart and bold footer",
			FinalSize:   Size{Width: 1200, Height: 1800},
			PhotoSlot:   Rect{X: 80, Y: 120, Width: 1040, Height: 1300},
			Background:  Background{Kind: BackgroundSolid, Color: RGB{R: 28, G: 24, B: 46}},
			Text: []TextElement{
				{Text: "{event_name}", Position: Point{X: 80, Y: 30}, FontSize: 64, Color: RGB{R: 255, G: 214, B: 64}, Weight: WeightBold},
				{Text: "{tagline}", Position: Point{X: 80, Y: 1480}, FontSize: 52, Color: RGB{R: 240, G: 240, B: 240}, Weight: WeightBold},
				{Text: "{date}", Position: Point{X: 80, Y: 1580}, FontSize: 40, Color: RGB{R: 180, G: 180, B: 190}},
			},
			Decorations: []Decoration{
				{Type: DecorationHeightChart, Position: Point{X: 1140, Y: 120}, Height: 1300},
			},
		},
	}
}
