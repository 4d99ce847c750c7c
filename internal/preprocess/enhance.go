package preprocess

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

const (
	claheClipLimit = 2.0
	claheTiles     = 8

	sharpenSigma  = 3.0
	sharpenAmount = 1.5
	sharpenBlur   = -0.5

	adaptiveBlock = 35
	adaptiveC     = 11
)

// grayscale converts img to an 8-bit grey image anchored at the origin.
func grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// toRGBA copies img into an RGBA image anchored at the origin.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
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

func clamp8(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func median9(win [9]uint8) uint8 {
	for i := 1; i < len(win); i++ {
		for j := i; j > 0 && win[j-1] > win[j]; j-- {
			win[j-1], win[j] = win[j], win[j-1]
		}
	}
	return win[4]
}

// medianGray applies a 3x3 median filter with replicated borders.
func medianGray(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	var win [9]uint8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				row := clampInt(y+dy, 0, h-1) * src.Stride
				for dx := -1; dx <= 1; dx++ {
					win[n] = src.Pix[row+clampInt(x+dx, 0, w-1)]
					n++
				}
			}
			dst.Pix[y*dst.Stride+x] = median9(win)
		}
	}
	return dst
}

// medianRGB median-filters each colour channel independently.
func medianRGB(src *image.RGBA) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	plane := image.NewGray(image.Rect(0, 0, w, h))
	for c := 0; c < 3; c++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				plane.Pix[y*plane.Stride+x] = src.Pix[y*src.Stride+x*4+c]
			}
		}
		filtered := medianGray(plane)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.Pix[y*dst.Stride+x*4+c] = filtered.Pix[y*filtered.Stride+x]
			}
		}
	}
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func gaussianKernel(sigma float64, radius int) []float64 {
	k := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+radius] = v
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// gaussianBlur returns the separable gaussian blur of src as a float plane
// in row-major order.
func gaussianBlur(src *image.Gray, sigma float64, radius int) []float64 {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	k := gaussianKernel(sigma, radius)

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := y * src.Stride
		for x := 0; x < w; x++ {
			var s float64
			for i := -radius; i <= radius; i++ {
				s += k[i+radius] * float64(src.Pix[row+clampInt(x+i, 0, w-1)])
			}
			tmp[y*w+x] = s
		}
	}

	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float64
			for i := -radius; i <= radius; i++ {
				s += k[i+radius] * tmp[clampInt(y+i, 0, h-1)*w+x]
			}
			out[y*w+x] = s
		}
	}
	return out
}

// unsharp sharpens by subtracting a wide gaussian blur.
func unsharp(src *image.Gray) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	blur := gaussianBlur(src, sharpenSigma, int(math.Ceil(3*sharpenSigma)))
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := float64(src.Pix[y*src.Stride+x])
			dst.Pix[y*dst.Stride+x] = clamp8(sharpenAmount*p + sharpenBlur*blur[y*w+x])
		}
	}
	return dst
}

// adaptiveThreshold binarises against a gaussian-weighted local mean over a
// block x block window: pixels brighter than mean - c become white.
func adaptiveThreshold(src *image.Gray, block int, c float64) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	sigma := 0.3*(float64(block-1)*0.5-1) + 0.8
	mean := gaussianBlur(src, sigma, block/2)
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if float64(src.Pix[y*src.Stride+x]) > mean[y*w+x]-c {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// otsuLevel returns the global threshold maximising between-class variance.
func otsuLevel(src *image.Gray) uint8 {
	var hist [256]int
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		for _, p := range src.Pix[y*src.Stride : y*src.Stride+w] {
			hist[p]++
		}
	}
	total := float64(w * h)
	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i * n)
	}

	var sumBg, weightBg, bestVar float64
	best := 0
	for t := 0; t < 256; t++ {
		weightBg += float64(hist[t])
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}
		sumBg += float64(t * hist[t])
		meanBg := sumBg / weightBg
		meanFg := (sumAll - sumBg) / weightFg
		between := weightBg * weightFg * (meanBg - meanFg) * (meanBg - meanFg)
		if between > bestVar {
			bestVar = between
			best = t
		}
	}
	return uint8(best)
}

// otsuThreshold binarises with Otsu's global threshold.
func otsuThreshold(src *image.Gray) *image.Gray {
	level := otsuLevel(src)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if src.Pix[y*src.Stride+x] > level {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

// clahe performs contrast-limited adaptive histogram equalisation over a
// tiles x tiles grid, bilinearly blending neighbouring tile mappings.
func clahe(src *image.Gray, clipLimit float64, tiles int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	tw := (w + tiles - 1) / tiles
	th := (h + tiles - 1) / tiles
	nx := (w + tw - 1) / tw
	ny := (h + th - 1) / th

	luts := make([][256]uint8, nx*ny)
	for ty := 0; ty < ny; ty++ {
		for tx := 0; tx < nx; tx++ {
			x0, y0 := tx*tw, ty*th
			x1, y1 := min(x0+tw, w), min(y0+th, h)
			luts[ty*nx+tx] = tileLUT(src, x0, y0, x1, y1, clipLimit)
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)/float64(th) - 0.5
		ty1 := int(math.Floor(fy))
		ay := fy - float64(ty1)
		ty2 := clampInt(ty1+1, 0, ny-1)
		ty1 = clampInt(ty1, 0, ny-1)
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)/float64(tw) - 0.5
			tx1 := int(math.Floor(fx))
			ax := fx - float64(tx1)
			tx2 := clampInt(tx1+1, 0, nx-1)
			tx1 = clampInt(tx1, 0, nx-1)

			v := src.Pix[y*src.Stride+x]
			top := (1-ax)*float64(luts[ty1*nx+tx1][v]) + ax*float64(luts[ty1*nx+tx2][v])
			bottom := (1-ax)*float64(luts[ty2*nx+tx1][v]) + ax*float64(luts[ty2*nx+tx2][v])
			dst.Pix[y*dst.Stride+x] = clamp8((1-ay)*top + ay*bottom)
		}
	}
	return dst
}

func tileLUT(src *image.Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		for _, p := range src.Pix[y*src.Stride+x0 : y*src.Stride+x1] {
			hist[p]++
		}
	}
	area := (x1 - x0) * (y1 - y0)

	clip := int(clipLimit * float64(area) / 256)
	if clip < 1 {
		clip = 1
	}
	excess := 0
	for i, n := range hist {
		if n > clip {
			excess += n - clip
			hist[i] = clip
		}
	}
	inc, rem := excess/256, excess%256
	for i := range hist {
		hist[i] += inc
		if i < rem {
			hist[i]++
		}
	}

	var lut [256]uint8
	cdf := 0
	for i, n := range hist {
		cdf += n
		lut[i] = clamp8(float64(cdf) * 255 / float64(area))
	}
	return lut
}
