// Package annotate renders detected boxes onto MRI images.
//
// Highlight draws a translucent filled rectangle with an opaque outline on a
// copy of the source image. BuildMask produces a single-channel mask of the
// same size with pixels inside any box set to 255. Neither function modifies
// its inputs.
//
// Box corners are inclusive pixel coordinates; both renderers reorder
// corners per axis and clip to the image.
package annotate

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/menta2k/mri-highlighter/pkg/types"
)

const (
	// DefaultFillAlpha is the opacity of the highlight fill
	DefaultFillAlpha = 100
	// DefaultStroke is the outline width in pixels
	DefaultStroke = 3
	// MaskForeground marks pixels inside a box
	MaskForeground = 255
)

// Options controls highlight rendering
type Options struct {
	Color     color.NRGBA
	FillAlpha uint8
	Stroke    int
}

// DefaultOptions returns red fill and outline at the standard opacity
func DefaultOptions() Options {
	return Options{
		Color:     color.NRGBA{R: 255, A: 255},
		FillAlpha: DefaultFillAlpha,
		Stroke:    DefaultStroke,
	}
}

// Highlight returns a four-channel copy of img with every box drawn on it.
// With no boxes the copy is pixel-identical to img.
func Highlight(img image.Image, boxes []types.BoundingBox, opts Options) image.Image {
	dst := imaging.Clone(img)
	if len(boxes) == 0 {
		return dst
	}
	if opts.Stroke < 0 {
		opts.Stroke = 0
	}

	fill := opts.Color
	fill.A = opts.FillAlpha
	outline := opts.Color
	outline.A = 255

	bounds := dst.Bounds()
	for _, box := range boxes {
		rect := pixelRect(box, bounds, 0).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		draw.Draw(dst, rect, image.NewUniform(fill), image.Point{}, draw.Over)
		drawOutline(dst, pixelRect(box, bounds, opts.Stroke), outline, opts.Stroke)
	}
	return dst
}

// BuildMask returns a size.X by size.Y mask with every box filled
func BuildMask(size image.Point, boxes []types.BoundingBox) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, max(size.X, 0), max(size.Y, 0)))
	bounds := mask.Bounds()
	if bounds.Empty() {
		return mask
	}
	for _, box := range boxes {
		r := pixelRect(box, bounds, 0).Intersect(bounds)
		if r.Empty() {
			continue
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			row := mask.Pix[y*mask.Stride : y*mask.Stride+bounds.Dx()]
			for x := r.Min.X; x < r.Max.X; x++ {
				row[x] = MaskForeground
			}
		}
	}
	return mask
}

// Overlay tints the masked pixels of a copy of img, for previewing masks
func Overlay(img image.Image, mask *image.Gray, opts Options) image.Image {
	dst := imaging.Clone(img)
	if mask == nil {
		return dst
	}
	tint := opts.Color
	tint.A = opts.FillAlpha
	area := dst.Bounds().Intersect(mask.Bounds())
	// Gray and Alpha share a one-byte-per-pixel layout
	alpha := &image.Alpha{Pix: mask.Pix, Stride: mask.Stride, Rect: mask.Rect}
	draw.DrawMask(dst, area, image.NewUniform(tint), image.Point{}, alpha, area.Min, draw.Over)
	return dst
}

// pixelRect converts inclusive corners to a half-open rectangle. Corners are
// first clamped to within pad+1 pixels outside bounds, so edges beyond the
// image stay beyond it and X2+1 cannot overflow.
func pixelRect(box types.BoundingBox, bounds image.Rectangle, pad int) image.Rectangle {
	b := box.Normalized()
	loX, hiX := bounds.Min.X-1-pad, bounds.Max.X+pad
	loY, hiY := bounds.Min.Y-1-pad, bounds.Max.Y+pad
	return image.Rect(
		clampInt(b.X1, loX, hiX), clampInt(b.Y1, loY, hiY),
		clampInt(b.X2, loX, hiX)+1, clampInt(b.Y2, loY, hiY)+1,
	)
}

func drawOutline(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
