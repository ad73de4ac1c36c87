package template

import (
	"fmt"
	"image"
	"image/color"
	"regexp"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Substitute replaces {name} placeholders in text with values from vars.
// Unknown names resolve to the empty string, never an error: a booth must
// keep producing photos even when an operator forgot to set a variable.
func Substitute(text string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		return vars[m[1:len(m)-1]]
	})
}

// Compositor renders a captured frame into a layout. Composition is a pure
// function of its inputs: the same frame, layout and variables always
// produce the same pixels.
type Compositor struct {
	regular *opentype.Font
	bold    *opentype.Font
}

// NewCompositor parses the embedded typefaces.
func NewCompositor() (*Compositor, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing regular typeface: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing bold typeface: %w", err)
	}
	return &Compositor{regular: regular, bold: bold}, nil
}

// Compose renders photo into layout, substituting vars into text elements.
// Draw order is fixed: background, photo, text, decorations. The photo is
// scaled to cover the slot and center-cropped, so the slot is always filled
// exactly regardless of the source aspect ratio.
//
// For a dual-photo layout driven by a single exposure, the same photo fills
// every slot and the side_view slot receives a horizontally mirrored copy,
// simulating a profile shot.
func (c *Compositor) Compose(photo image.Image, layout *Layout, vars map[string]string) (*image.RGBA, error) {
	return c.compose(photo, photo, layout, vars)
}

// ComposeDual renders two separate exposures into a dual-photo layout: side
// fills the side_view slot, front fills every other slot. The side exposure
// is drawn as captured, not mirrored.
func (c *Compositor) ComposeDual(front, side image.Image, layout *Layout, vars map[string]string) (*image.RGBA, error) {
	if layout != nil && !layout.DualPhoto {
		return nil, fmt.Errorf("layout %q is not a dual-photo layout", layout.Name)
	}
	if side == nil {
		return nil, fmt.Errorf("nil side photo")
	}
	return c.compose(front, side, layout, vars)
}

func (c *Compositor) compose(front, side image.Image, layout *Layout, vars map[string]string) (*image.RGBA, error) {
	if front == nil {
		return nil, fmt.Errorf("nil photo")
	}
	if layout == nil {
		return nil, fmt.Errorf("nil layout")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, layout.FinalSize.Width, layout.FinalSize.Height))
	c.drawBackground(canvas, layout)
	if layout.DualPhoto {
		for _, slot := range layout.PhotoSlots {
			src := front
			if slot.Name == SideViewSlot {
				src = side
				if front == side {
					// Single exposure: mirror it for the profile slot.
					src = flipHorizontal(side)
				}
			}
			if err := c.drawPhoto(canvas, src, slot.Rect); err != nil {
				return nil, fmt.Errorf("slot %q: %w", slot.Name, err)
			}
		}
	} else if err := c.drawPhoto(canvas, front, layout.PhotoSlot); err != nil {
		return nil, err
	}
	if err := c.drawText(canvas, layout.Text, vars); err != nil {
		return nil, err
	}
	if err := c.drawDecorations(canvas, layout); err != nil {
		return nil, err
	}
	return canvas, nil
}

// flipHorizontal mirrors the image around its vertical axis.
func flipHorizontal(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(b.Dx()-1-x, y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}

func (c *Compositor) drawBackground(canvas *image.RGBA, layout *Layout) {
	if bg := layout.BackgroundImage(); bg != nil {
		draw.CatmullRom.Scale(canvas, canvas.Bounds(), bg, bg.Bounds(), draw.Src, nil)
		return
	}
	col := layout.Background.Color
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.RGBA{col.R, col.G, col.B, 255}), image.Point{}, draw.Src)
}

// drawPhoto cover-scales the photo into the slot. The scale factor is the
// larger of the two axis ratios; the overflow on the other axis is cropped
// symmetrically.
func (c *Compositor) drawPhoto(canvas *image.RGBA, photo image.Image, slot Rect) error {
	src := photo.Bounds()
	srcW, srcH := src.Dx(), src.Dy()
	if srcW < 1 || srcH < 1 {
		return fmt.Errorf("photo has empty bounds")
	}

	scaleX := float64(slot.Width) / float64(srcW)
	scaleY := float64(slot.Height) / float64(srcH)
	scale := scaleX
	if scaleY > scale {
		scale = scaleY
	}

	cropW := int(float64(slot.Width)/scale + 0.5)
	cropH := int(float64(slot.Height)/scale + 0.5)
	if cropW > srcW {
		cropW = srcW
	}
	if cropH > srcH {
		cropH = srcH
	}
	cropX := src.Min.X + (srcW-cropW)/2
	cropY := src.Min.Y + (srcH-cropH)/2

	dst := image.Rect(slot.X, slot.Y, slot.X+slot.Width, slot.Y+slot.Height)
	crop := image.Rect(cropX, cropY, cropX+cropW, cropY+cropH)
	draw.CatmullRom.Scale(canvas, dst, photo, crop, draw.Src, nil)
	return nil
}

func (c *Compositor) drawText(canvas *image.RGBA, elements []TextElement, vars map[string]string) error {
	for i, el := range elements {
		text := Substitute(el.Text, vars)
		if text == "" {
			continue
		}
		face, err := c.face(el.Weight, float64(el.FontSize))
		if err != nil {
			return fmt.Errorf("text_elements[%d]: %w", i, err)
		}
		c.drawString(canvas, face, text, el.Position, el.Color)
		if err := face.Close(); err != nil {
			return fmt.Errorf("text_elements[%d]: closing face: %w", i, err)
		}
	}
	return nil
}

func (c *Compositor) face(weight FontWeight, size float64) (font.Face, error) {
	src := c.regular
	if weight == WeightBold {
		src = c.bold
	}
	return opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// drawString anchors the string's top-left corner at pos. Text that would
// extend past the canvas is drawn as-is and clipped by the canvas bounds.
func (c *Compositor) drawString(canvas *image.RGBA, face font.Face, text string, pos Point, col RGB) {
	d := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.RGBA{col.R, col.G, col.B, 255}),
		Face: face,
		Dot:  fixed.P(pos.X, pos.Y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

func (c *Compositor) drawDecorations(canvas *image.RGBA, layout *Layout) error {
	for i, d := range layout.Decorations {
		switch d.Type {
		case DecorationBorder:
			c.drawBorder(canvas, d.Width, d.Color)
		case DecorationDividerLine:
			drawLine(canvas, d.Start, d.End, d.Width, d.Color)
		case DecorationHeightChart:
			if err := c.drawHeightChart(canvas, d); err != nil {
				return fmt.Errorf("decorative_elements[%d]: %w", i, err)
			}
		default:
			return fmt.Errorf("decorative_elements[%d]: unknown type %q", i, d.Type)
		}
	}
	return nil
}

func (c *Compositor) drawBorder(canvas *image.RGBA, width int, col RGB) {
	b := canvas.Bounds()
	fill := image.NewUniform(color.RGBA{col.R, col.G, col.B, 255})
	// Top, bottom, left, right strips.
	draw.Draw(canvas, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+width), fill, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(b.Min.X, b.Max.Y-width, b.Max.X, b.Max.Y), fill, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(b.Min.X, b.Min.Y, b.Min.X+width, b.Max.Y), fill, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(b.Max.X-width, b.Min.Y, b.Max.X, b.Max.Y), fill, image.Point{}, draw.Src)
}

// drawHeightChart draws a vertical ruler with a tick every 50 pixels and a
// numbered label every 100.
func (c *Compositor) drawHeightChart(canvas *image.RGBA, d Decoration) error {
	col := d.Color
	if col == (RGB{}) {
		col = RGB{R: 255, G: 255, B: 255}
	}
	top := d.Position
	bottom := Point{X: d.Position.X, Y: d.Position.Y + d.Height}
	drawLine(canvas, top, bottom, 3, col)

	face, err := c.face(WeightNormal, 18)
	if err != nil {
		return err
	}
	defer face.Close()

	for off := 0; off <= d.Height; off += 50 {
		y := d.Position.Y + d.Height - off
		tickLen := 10
		if off%100 == 0 {
			tickLen = 18
		}
		drawLine(canvas, Point{X: d.Position.X - tickLen, Y: y}, Point{X: d.Position.X, Y: y}, 2, col)
		if off%100 == 0 && off > 0 {
			label := strconv.Itoa(off / 100)
			c.drawString(canvas, face, label, Point{X: d.Position.X - tickLen - 24, Y: y - 10}, col)
		}
	}
	return nil
}

// drawLine rasterizes a thick line by stamping a square brush along the
// segment. Good enough for straight decorative strokes.
func drawLine(canvas *image.RGBA, from, to Point, width int, col RGB) {
	if width < 1 {
		width = 1
	}
	rgba := color.RGBA{col.R, col.G, col.B, 255}
	half := width / 2

	dx := to.X - from.X
	dy := to.Y - from.Y
	steps := abs(dx)
	if abs(dy) > steps {
		steps = abs(dy)
	}
	if steps == 0 {
		stamp(canvas, from.X, from.Y, half, rgba)
		return
	}
	for i := 0; i <= steps; i++ {
		x := from.X + dx*i/steps
		y := from.Y + dy*i/steps
		stamp(canvas, x, y, half, rgba)
	}
}

func stamp(canvas *image.RGBA, cx, cy, half int, col color.RGBA) {
	b := canvas.Bounds()
	for y := cy - half; y <= cy+half; y++ {
		for x := cx - half; x <= cx+half; x++ {
			if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
				canvas.SetRGBA(x, y, col)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
