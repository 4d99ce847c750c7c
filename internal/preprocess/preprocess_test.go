package preprocess

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// barsImage draws dark horizontal bars on white, rotated by degrees.
func barsImage(w, h int, degrees float64) image.Image {
	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.RotateAbout(gg.Radians(degrees), float64(w)/2, float64(h)/2)
	dc.SetRGB(0, 0, 0)
	for y := h / 5; y < h*4/5; y += h / 6 {
		dc.DrawRectangle(float64(w)/10, float64(y), float64(w)*8/10, float64(h)/35+2)
	}
	dc.Fill()
	return dc.Image()
}

func uniformGray(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestVariants_OrderAndCap(t *testing.T) {
	e := New(Options{Deskew: false})

	vs, err := e.Variants(context.Background(), barsImage(64, 48, 0))
	require.NoError(t, err)

	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.Name
	}
	assert.Equal(t, []string{
		"original", "enhanced", "clahe", "sharp", "adaptive_bin", "otsu_bin",
		"original_x2", "enhanced_x2",
	}, names)

	for _, v := range vs[:6] {
		assert.Equal(t, 1.0, v.ScaleFactor)
		assert.Equal(t, image.Pt(64, 48), v.Image.Bounds().Size())
	}
	for _, v := range vs[6:] {
		assert.Equal(t, 2.0, v.ScaleFactor)
		assert.Equal(t, image.Pt(128, 96), v.Image.Bounds().Size())
	}
}

func TestVariants_CapBelowBase(t *testing.T) {
	e := New(Options{MaxVariants: 3, Scales: []float64{1, 3}})

	vs, err := e.Variants(context.Background(), barsImage(40, 30, 0))
	require.NoError(t, err)
	require.Len(t, vs, 3)
	assert.Equal(t, "clahe", vs[2].Name)
}

func TestVariants_FractionalScaleName(t *testing.T) {
	e := New(Options{MaxVariants: 7, Scales: []float64{1.5}})

	vs, err := e.Variants(context.Background(), barsImage(40, 30, 0))
	require.NoError(t, err)
	require.Len(t, vs, 7)
	assert.Equal(t, "original_x1.5", vs[6].Name)
	assert.Equal(t, image.Pt(60, 45), vs[6].Image.Bounds().Size())
}

func TestVariants_BlankPageNotRotated(t *testing.T) {
	e := New(DefaultOptions())

	vs, err := e.Variants(context.Background(), uniformGray(50, 40, 255))
	require.NoError(t, err)
	require.NotEmpty(t, vs)
	assert.Equal(t, 0.0, vs[0].RotationDegrees)
	assert.Equal(t, vs[0].OriginalSize, vs[0].RotatedSize)
}

func TestVariants_EmptyImage(t *testing.T) {
	_, err := New(DefaultOptions()).Variants(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVariants_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}).Variants(ctx, barsImage(40, 30, 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectSkew(t *testing.T) {
	img := barsImage(400, 300, 3)

	angle := DetectSkew(grayscale(img), 10)

	assert.InDelta(t, 3.0, angle, 0.5)
}

func TestDetectSkew_ThickLinesAtSeveralAngles(t *testing.T) {
	tests := []struct {
		name    string
		degrees float64
	}{
		{"level", 0},
		{"descending", 4.5},
		{"ascending", -3},
		{"steep", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := barsImage(600, 400, tt.degrees)

			angle := DetectSkew(grayscale(img), 10)

			assert.InDelta(t, tt.degrees, angle, 0.5)
		})
	}
}

func TestDetectSkew_Blank(t *testing.T) {
	assert.Equal(t, 0.0, DetectSkew(uniformGray(80, 60, 255), 10))
}

func TestRotate_ExpandsCanvas(t *testing.T) {
	src := uniformGray(100, 50, 0)

	out := Rotate(src, 30)

	assert.Equal(t, image.Pt(111, 93), out.Rect.Size())
	r, g, b, _ := out.At(0, 0).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})
}

func TestToOriginal_Scale(t *testing.T) {
	v := Variant{ScaleFactor: 2}
	got := v.ToOriginal(domain.WordBox{Text: "x", X: 100, Y: 50, Width: 20, Height: 10, Confidence: 0.9})
	assert.Equal(t, domain.WordBox{Text: "x", X: 50, Y: 25, Width: 10, Height: 5, Confidence: 0.9}, got)
}

func TestToOriginal_Rotation(t *testing.T) {
	v := Variant{
		ScaleFactor:     1,
		RotationDegrees: 180,
		OriginalSize:    image.Pt(100, 100),
		RotatedSize:     image.Pt(100, 100),
	}
	got := v.ToOriginal(domain.WordBox{X: 8, Y: 8, Width: 4, Height: 4})
	assert.InDelta(t, 88, got.X, 1e-9)
	assert.InDelta(t, 88, got.Y, 1e-9)
	assert.Equal(t, 4.0, got.Width)
}

func TestToOriginal_ScaleThenRotation(t *testing.T) {
	v := Variant{
		ScaleFactor:     2,
		RotationDegrees: 90,
		OriginalSize:    image.Pt(100, 50),
		RotatedSize:     image.Pt(50, 100),
	}
	// Centre of the rotated image maps to the centre of the original.
	got := v.ToOriginal(domain.WordBox{X: 40, Y: 90, Width: 20, Height: 20})
	assert.InDelta(t, 45, got.X, 1e-9)
	assert.InDelta(t, 20, got.Y, 1e-9)
}

func TestOtsuThreshold(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 10, 2))
	for x := 0; x < 10; x++ {
		v := uint8(30)
		if x >= 5 {
			v = 220
		}
		g.SetGray(x, 0, color.Gray{Y: v})
		g.SetGray(x, 1, color.Gray{Y: v})
	}

	level := otsuLevel(g)
	assert.GreaterOrEqual(t, level, uint8(30))
	assert.Less(t, level, uint8(220))

	out := otsuThreshold(g)
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), out.GrayAt(9, 1).Y)
}

func TestAdaptiveThreshold_Binary(t *testing.T) {
	out := adaptiveThreshold(grayscale(barsImage(60, 40, 0)), adaptiveBlock, adaptiveC)
	for _, p := range out.Pix {
		assert.True(t, p == 0 || p == 255)
	}
	// Uniform background stays white.
	assert.Equal(t, uint8(255), out.GrayAt(0, 0).Y)
}

func TestCLAHE_UniformStaysUniform(t *testing.T) {
	out := clahe(uniformGray(33, 17, 128), claheClipLimit, claheTiles)
	require.Equal(t, image.Pt(33, 17), out.Rect.Size())
	first := out.Pix[0]
	for _, p := range out.Pix {
		assert.Equal(t, first, p)
	}
}

func TestMedianGray_RemovesSpeck(t *testing.T) {
	g := uniformGray(5, 5, 255)
	g.SetGray(2, 2, color.Gray{Y: 0})

	out := medianGray(g)

	assert.Equal(t, uint8(255), out.GrayAt(2, 2).Y)
}

func TestVariant_PNG(t *testing.T) {
	data, err := Variant{Name: "original", Image: uniformGray(4, 4, 10)}.PNG()
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}
