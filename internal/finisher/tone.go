// Package finisher applies tone adjustments to composed images and writes
// them to the output directory with collision-free names.
package finisher

import (
	"image"

	"github.com/snapbooth/snapbooth/internal/config"
)

// ApplyTone adjusts img in place and returns it. Contrast is applied as a
// multiplicative gain and brightness as an additive offset, in that order,
// each channel computed as clamp(v*contrast + brightness); alpha is left
// untouched. The optional denoise pass runs last.
func ApplyTone(img *image.RGBA, cfg config.ToneConfig) *image.RGBA {
	if cfg.Contrast != 1.0 || cfg.Brightness != 0 {
		// Precomputed per-value lookup keeps the pass branch-free.
		var lut [256]uint8
		for v := 0; v < 256; v++ {
			lut[v] = clamp(float64(v)*cfg.Contrast + float64(cfg.Brightness))
		}
		pix := img.Pix
		for i := 0; i < len(pix); i += 4 {
			pix[i] = lut[pix[i]]
			pix[i+1] = lut[pix[i+1]]
			pix[i+2] = lut[pix[i+2]]
		}
	}
	if cfg.Denoise {
		return boxBlur3(img)
	}
	return img
}

func clamp(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// boxBlur3 runs a single 3x3 box filter over the color channels. Edge
// pixels average only the in-bounds neighborhood.
func boxBlur3(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	w, h := b.Dx(), b.Dy()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sumR, sumG, sumB, n int
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					i := img.PixOffset(b.Min.X+nx, b.Min.Y+ny)
					sumR += int(img.Pix[i])
					sumG += int(img.Pix[i+1])
					sumB += int(img.Pix[i+2])
					n++
				}
			}
			i := out.PixOffset(b.Min.X+x, b.Min.Y+y)
			out.Pix[i] = uint8(sumR / n)
			out.Pix[i+1] = uint8(sumG / n)
			out.Pix[i+2] = uint8(sumB / n)
			out.Pix[i+3] = img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+3]
		}
	}
	return out
}
