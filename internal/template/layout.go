// Package template provides declarative photo layouts and the compositor
// that renders a captured frame into a finished, branded image.
package template

import (
	"encoding/json"
	"fmt"
	"image"
)

// RGB is an 8-bit color, serialized as a [r, g, b] JSON array.
type RGB struct {
	R, G, B uint8
}

// UnmarshalJSON decodes a [r, g, b] array.
func (c *RGB) UnmarshalJSON(data []byte) error {
	var arr []int
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("color must be a [r, g, b] array: %w", err)
	}
	if len(arr) != 3 {
		return fmt.Errorf("color must have exactly 3 components, got %d", len(arr))
	}
	for _, v := range arr {
		if v < 0 || v > 255 {
			return fmt.Errorf("color component %d out of range 0-255", v)
		}
	}
	c.R, c.G, c.B = uint8(arr[0]), uint8(arr[1]), uint8(arr[2])
	return nil
}

// MarshalJSON encodes the color as a [r, g, b] array.
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{int(c.R), int(c.G), int(c.B)})
}

// Point is a pixel position, serialized as an [x, y] JSON array.
type Point struct {
	X, Y int
}

// UnmarshalJSON decodes an [x, y] array.
func (p *Point) UnmarshalJSON(data []byte) error {
	var arr []int
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("position must be an [x, y] array: %w", err)
	}
	if len(arr) != 2 {
		return fmt.Errorf("position must have exactly 2 components, got %d", len(arr))
	}
	p.X, p.Y = arr[0], arr[1]
	return nil
}

// MarshalJSON encodes the point as an [x, y] array.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

// Size is a pixel extent, serialized as a [width, height] JSON array.
type Size struct {
	Width, Height int
}

// UnmarshalJSON decodes a [width, height] array.
func (s *Size) UnmarshalJSON(data []byte) error {
	var arr []int
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("size must be a [width, height] array: %w", err)
	}
	if len(arr) != 2 {
		return fmt.Errorf("size must have exactly 2 components, got %d", len(arr))
	}
	s.Width, s.Height = arr[0], arr[1]
	return nil
}

// MarshalJSON encodes the size as a [width, height] array.
func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Width, s.Height})
}

// Rect is the photo slot rectangle.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SideViewSlot is the slot name carrying the mirrored (or second-exposure)
// profile shot in a dual-photo layout.
const SideViewSlot = "side_view"

// NamedSlot is one photo slot in a dual-photo layout.
type NamedSlot struct {
	Name string `json:"name"`
	Rect
}

// BackgroundKind discriminates the background variant.
type BackgroundKind int

const (
	// BackgroundSolid fills the canvas with a color.
	BackgroundSolid BackgroundKind = iota
	// BackgroundImage scales an image file to the canvas.
	BackgroundImage
)

// Background is a tagged variant: either a solid color or an image
// reference, never both. The JSON form is {"color": [r,g,b]} or
// {"image": "path"}; documents setting both are rejected at load time.
type Background struct {
	Kind      BackgroundKind
	Color     RGB
	ImagePath string

	// img is the decoded background image, attached by the Store after
	// validation so composition never touches the filesystem.
	img image.Image
}

// backgroundDoc is the raw JSON shape before variant resolution.
type backgroundDoc struct {
	Color *RGB    `json:"color"`
	Image *string `json:"image"`
}

// UnmarshalJSON resolves the background variant.
func (b *Background) UnmarshalJSON(data []byte) error {
	var doc backgroundDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding background: %w", err)
	}

	hasImage := doc.Image != nil && *doc.Image != ""
	switch {
	case doc.Color != nil && hasImage:
		return fmt.Errorf("background must set either color or image, not both")
	case hasImage:
		b.Kind = BackgroundImage
		b.ImagePath = *doc.Image
	case doc.Color != nil:
		b.Kind = BackgroundSolid
		b.Color = *doc.Color
	default:
		return fmt.Errorf("background must set color or image")
	}
	return nil
}

// MarshalJSON encodes the active variant only.
func (b Background) MarshalJSON() ([]byte, error) {
	if b.Kind == BackgroundImage {
		return json.Marshal(backgroundDoc{Image: &b.ImagePath})
	}
	c := b.Color
	return json.Marshal(backgroundDoc{Color: &c})
}

// FontWeight selects the typeface weight for a text element.
type FontWeight string

const (
	// WeightNormal is the regular typeface.
	WeightNormal FontWeight = "normal"
	// WeightBold is the bold typeface.
	WeightBold FontWeight = "bold"
)

// TextElement is one line of text drawn onto the canvas. Text may contain
// {name} placeholders substituted from the variable context at composition
// time.
type TextElement struct {
	Type     string     `json:"type,omitempty"`
	Text     string     `json:"text"`
	Position Point      `json:"position"`
	FontSize int        `json:"font_size"`
	Color    RGB        `json:"color"`
	Weight   FontWeight `json:"font_weight,omitempty"`
}

// Decoration kinds.
const (
	DecorationBorder      = "border"
	DecorationHeightChart = "height_chart"
	DecorationDividerLine = "divider_line"
)

// Decoration is one decorative element, discriminated by Type. Fields are
// interpreted per kind; unknown kinds fail layout validation.
type Decoration struct {
	Type string `json:"type"`
	// Border
	Width int `json:"width,omitempty"`
	Color RGB `json:"color,omitempty"`
	// HeightChart
	Position Point `json:"position,omitempty"`
	Height   int   `json:"height,omitempty"`
	// DividerLine
	Start Point `json:"start,omitempty"`
	End   Point `json:"end,omitempty"`
}

// Layout is a named, versionless declarative template document. Once
// loaded and validated it is treated as immutable; re-selection replaces
// it wholesale.
type Layout struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	PhotoSlot   Rect          `json:"photo_position"`
	DualPhoto   bool          `json:"dual_photo,omitempty"`
	PhotoSlots  []NamedSlot   `json:"image_positions,omitempty"`
	Background  Background    `json:"background"`
	Text        []TextElement `json:"text_elements"`
	Decorations []Decoration  `json:"decorative_elements,omitempty"`
	FinalSize   Size          `json:"final_size"`
}

// Validate checks the layout geometry and element fields. Validation runs
// at load/select time; composition assumes an already-validated layout.
func (l *Layout) Validate() error {
	if l.FinalSize.Width < 1 || l.FinalSize.Height < 1 {
		return fmt.Errorf("final_size must be positive, got %dx%d", l.FinalSize.Width, l.FinalSize.Height)
	}

	if l.DualPhoto {
		if len(l.PhotoSlots) == 0 {
			return fmt.Errorf("dual_photo layout must declare image_positions")
		}
		seen := make(map[string]bool, len(l.PhotoSlots))
		for i, slot := range l.PhotoSlots {
			if slot.Name == "" {
				return fmt.Errorf("image_positions[%d] must be named", i)
			}
			if seen[slot.Name] {
				return fmt.Errorf("image_positions[%d]: duplicate slot name %q", i, slot.Name)
			}
			seen[slot.Name] = true
			if err := l.checkSlot(slot.Rect); err != nil {
				return fmt.Errorf("image_positions[%d] (%s): %w", i, slot.Name, err)
			}
		}
	} else if err := l.checkSlot(l.PhotoSlot); err != nil {
		return fmt.Errorf("photo_position: %w", err)
	}

	for i, t := range l.Text {
		if t.FontSize < 1 {
			return fmt.Errorf("text_elements[%d].font_size must be positive", i)
		}
		switch t.Weight {
		case "", WeightNormal, WeightBold:
		default:
			return fmt.Errorf("text_elements[%d].font_weight must be normal or bold, got %q", i, t.Weight)
		}
	}

	for i, d := range l.Decorations {
		switch d.Type {
		case DecorationBorder:
			if d.Width < 1 {
				return fmt.Errorf("decorative_elements[%d]: border width must be positive", i)
			}
		case DecorationHeightChart:
			if d.Height < 1 {
				return fmt.Errorf("decorative_elements[%d]: height_chart height must be positive", i)
			}
		case DecorationDividerLine:
			if d.Width < 1 {
				return fmt.Errorf("decorative_elements[%d]: divider_line width must be positive", i)
			}
		default:
			return fmt.Errorf("decorative_elements[%d]: unknown type %q", i, d.Type)
		}
	}

	return nil
}

func (l *Layout) checkSlot(slot Rect) error {
	if slot.Width < 1 || slot.Height < 1 {
		return fmt.Errorf("must have positive size, got %dx%d", slot.Width, slot.Height)
	}
	if slot.X < 0 || slot.Y < 0 ||
		slot.X+slot.Width > l.FinalSize.Width ||
		slot.Y+slot.Height > l.FinalSize.Height {
		return fmt.Errorf("%+v exceeds final size %dx%d", slot, l.FinalSize.Width, l.FinalSize.Height)
	}
	return nil
}

// BackgroundImage returns the decoded background image, or nil for solid
// backgrounds.
func (l *Layout) BackgroundImage() image.Image {
	return l.Background.img
}
