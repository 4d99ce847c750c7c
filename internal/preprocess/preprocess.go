// Package preprocess builds the image variants fed to OCR engines for a
// single page: a deskewed original, contrast-enhanced and binarised
// renditions, and upscaled copies for small print. Every variant carries
// the transform needed to map engine coordinates back onto the source page.
package preprocess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"strconv"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// Variant names, in generation order.
const (
	VariantOriginal    = "original"
	VariantEnhanced    = "enhanced"
	VariantCLAHE       = "clahe"
	VariantSharp       = "sharp"
	VariantAdaptiveBin = "adaptive_bin"
	VariantOtsuBin     = "otsu_bin"
)

// minDeskewDegrees is the smallest skew worth correcting.
const minDeskewDegrees = 0.1

// Options controls variant generation.
type Options struct {
	// Deskew enables skew detection and correction.
	Deskew bool

	// MaxAngle bounds skew detection, in degrees either side of horizontal.
	MaxAngle float64

	// Scales lists upscale factors; factors <= 1 are ignored.
	Scales []float64

	// MaxVariants caps the number of variants returned.
	MaxVariants int

	// TopForScaling is how many base variants get upscaled copies.
	TopForScaling int
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		Deskew:        true,
		MaxAngle:      10,
		Scales:        []float64{1, 2},
		MaxVariants:   8,
		TopForScaling: 3,
	}
}

// Variant is one preprocessed rendition of a page image.
type Variant struct {
	Name  string
	Image image.Image

	// ScaleFactor is the upscale applied after rotation; 1 for base variants.
	ScaleFactor float64

	// RotationDegrees is the deskew rotation applied to the source, with the
	// y axis pointing down (positive turns clockwise on screen).
	RotationDegrees float64

	OriginalSize image.Point
	RotatedSize  image.Point
}

// ToOriginal maps a word box from variant pixel space back to the source
// image: undo the scale, then rotate the box centre back about the image
// centre. Width and height are only rescaled.
func (v Variant) ToOriginal(w domain.WordBox) domain.WordBox {
	scale := v.ScaleFactor
	if scale <= 0 {
		scale = 1
	}
	w.X /= scale
	w.Y /= scale
	w.Width /= scale
	w.Height /= scale

	if math.Abs(v.RotationDegrees) < 0.01 {
		return w
	}

	cx := w.X + w.Width/2 - float64(v.RotatedSize.X)/2
	cy := w.Y + w.Height/2 - float64(v.RotatedSize.Y)/2

	rad := -v.RotationDegrees * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	ox := cx*cos - cy*sin + float64(v.OriginalSize.X)/2
	oy := cx*sin + cy*cos + float64(v.OriginalSize.Y)/2

	w.X = ox - w.Width/2
	w.Y = oy - w.Height/2
	return w
}

// PNG encodes the variant image.
func (v Variant) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, v.Image); err != nil {
		return nil, fmt.Errorf("encode variant %s: %w", v.Name, err)
	}
	return buf.Bytes(), nil
}

// Engine generates OCR variants.
type Engine struct {
	opts Options
}

// New creates an engine. Zero-valued numeric options take their defaults.
func New(opts Options) *Engine {
	def := DefaultOptions()
	if opts.MaxAngle <= 0 {
		opts.MaxAngle = def.MaxAngle
	}
	if len(opts.Scales) == 0 {
		opts.Scales = def.Scales
	}
	if opts.MaxVariants <= 0 {
		opts.MaxVariants = def.MaxVariants
	}
	if opts.TopForScaling <= 0 {
		opts.TopForScaling = def.TopForScaling
	}
	return &Engine{opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Variants builds the variant list for img. Base variants come first in
// fixed order, followed by upscaled copies of the leading base variants
// for each scale above 1. The list never exceeds MaxVariants.
func (e *Engine) Variants(ctx context.Context, img image.Image) ([]Variant, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("preprocess: empty image: %w", domain.ErrInvalidInput)
	}

	src := toRGBA(img)
	origSize := src.Rect.Size()

	rotation := 0.0
	if e.opts.Deskew {
		skew := DetectSkew(grayscale(src), e.opts.MaxAngle)
		if math.Abs(skew) >= minDeskewDegrees {
			rotation = -skew
			src = Rotate(src, rotation)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray := grayscale(src)
	denoised := medianGray(gray)
	equalised := clahe(denoised, claheClipLimit, claheTiles)
	sharp := unsharp(equalised)
	adaptive := adaptiveThreshold(equalised, adaptiveBlock, adaptiveC)
	otsu := otsuThreshold(equalised)
	enhanced := unsharp(clahe(grayscale(medianRGB(src)), claheClipLimit, claheTiles))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := []struct {
		name string
		img  image.Image
	}{
		{VariantOriginal, src},
		{VariantEnhanced, enhanced},
		{VariantCLAHE, equalised},
		{VariantSharp, sharp},
		{VariantAdaptiveBin, adaptive},
		{VariantOtsuBin, otsu},
	}

	rotSize := src.Rect.Size()
	variant := func(name string, im image.Image, scale float64) Variant {
		return Variant{
			Name:            name,
			Image:           im,
			ScaleFactor:     scale,
			RotationDegrees: rotation,
			OriginalSize:    origSize,
			RotatedSize:     rotSize,
		}
	}

	out := make([]Variant, 0, e.opts.MaxVariants)
	for _, b := range base {
		if len(out) >= e.opts.MaxVariants {
			return out, nil
		}
		out = append(out, variant(b.name, b.img, 1))
	}

	top := e.opts.TopForScaling
	if top > len(base) {
		top = len(base)
	}
	for _, s := range e.opts.Scales {
		if s <= 1 {
			continue
		}
		for _, b := range base[:top] {
			if len(out) >= e.opts.MaxVariants {
				return out, nil
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			name := b.name + "_x" + strconv.FormatFloat(s, 'f', -1, 64)
			out = append(out, variant(name, upscale(b.img, s), s))
		}
	}
	return out, nil
}
