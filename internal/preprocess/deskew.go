package preprocess

import (
	"image"
	"math"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

const (
	// skewWorkWidth bounds the width skew detection runs at.
	skewWorkWidth = 1000

	houghStepDegrees = 0.2
	edgeThreshold    = 200
	projectionSteps  = 31

	// peakWindowDegrees bounds how far from the accumulator peak an angle
	// may lie and still refine the estimate.
	peakWindowDegrees = 1.0
)

// DetectSkew estimates the dominant text line angle of g in degrees,
// restricted to |angle| < maxAngle. The y axis points down, so a positive
// angle means lines descend to the right. Near-horizontal edge lines found
// by a Hough vote give the angle of the accumulator peak; when none qualify,
// the angle whose horizontal ink profile has the highest variance is used
// instead.
func DetectSkew(g *image.Gray, maxAngle float64) float64 {
	small := shrink(g, skewWorkWidth)
	if a, ok := houghAngle(small, maxAngle); ok {
		return a
	}
	return projectionAngle(small, maxAngle)
}

func shrink(g *image.Gray, maxWidth int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w <= maxWidth {
		return g
	}
	nh := max(1, h*maxWidth/w)
	dst := image.NewGray(image.Rect(0, 0, maxWidth, nh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), g, g.Rect, draw.Src, nil)
	return dst
}

// houghAngle votes horizontal-edge pixels into a (angle, rho) accumulator.
// Each angle is scored by its strongest rho cell; the result is the
// vote-weighted mean of qualifying angles around the best one, where a
// cell qualifies with at least w/8 votes.
func houghAngle(g *image.Gray, maxAngle float64) (float64, bool) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w < 3 || h < 3 {
		return 0, false
	}
	px := func(x, y int) int { return int(g.Pix[y*g.Stride+x]) }

	var edges []image.Point
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gy := px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1) -
				px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1)
			if gy >= edgeThreshold || gy <= -edgeThreshold {
				edges = append(edges, image.Point{X: x, Y: y})
			}
		}
	}
	if len(edges) == 0 {
		return 0, false
	}

	var angles []float64
	for a := -maxAngle + houghStepDegrees; a < maxAngle-houghStepDegrees/2; a += houghStepDegrees {
		angles = append(angles, a)
	}
	if len(angles) == 0 {
		return 0, false
	}
	rhoOffset := w
	rhoSize := 2*w + h + 1
	acc := make([]int32, len(angles)*rhoSize)
	sins := make([]float64, len(angles))
	coss := make([]float64, len(angles))
	for i, a := range angles {
		sins[i], coss[i] = math.Sincos(a * math.Pi / 180)
	}
	for _, p := range edges {
		fx, fy := float64(p.X), float64(p.Y)
		for i := range angles {
			r := int(math.Round(fy*coss[i]-fx*sins[i])) + rhoOffset
			if r >= 0 && r < rhoSize {
				acc[i*rhoSize+r]++
			}
		}
	}

	threshold := int32(max(w/8, 10))
	peaks := make([]int32, len(angles))
	top := 0
	for i := range angles {
		for _, votes := range acc[i*rhoSize : (i+1)*rhoSize] {
			peaks[i] = max(peaks[i], votes)
		}
		if peaks[i] > peaks[top] {
			top = i
		}
	}
	if peaks[top] < threshold {
		return 0, false
	}

	// A straight line only concentrates its votes near its true angle,
	// so weight the strongest cell of each neighbouring angle.
	span := int(math.Round(peakWindowDegrees / houghStepDegrees))
	var sum, weight float64
	for i := max(0, top-span); i <= min(len(angles)-1, top+span); i++ {
		if peaks[i] < threshold {
			continue
		}
		v := float64(peaks[i] - threshold + 1)
		sum += angles[i] * v
		weight += v
	}
	return sum / weight, true
}

// projectionAngle sweeps candidate corrections and keeps the one whose
// per-row ink totals vary most. A blank page yields 0.
func projectionAngle(g *image.Gray, maxAngle float64) float64 {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	cx, cy := float64(w)/2, float64(h)/2
	diag := int(math.Ceil(math.Hypot(float64(w), float64(h))))
	rows := make([]float64, 2*diag+1)

	best, bestVar := 0.0, 0.0
	for i := 0; i < projectionSteps; i++ {
		a := -maxAngle + 2*maxAngle*float64(i)/float64(projectionSteps-1)
		sin, cos := math.Sincos(a * math.Pi / 180)
		for j := range rows {
			rows[j] = 0
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				ink := 255 - float64(g.Pix[y*g.Stride+x])
				if ink == 0 {
					continue
				}
				ry := -(float64(x)-cx)*sin + (float64(y)-cy)*cos
				rows[int(math.Round(ry))+diag] += ink
			}
		}
		if v := variance(rows); v > bestVar {
			best, bestVar = a, v
		}
	}
	return best
}

// Rotate turns img by degrees (clockwise on screen) about its centre onto
// an expanded white canvas that holds the whole result.
func Rotate(img image.Image, degrees float64) *image.RGBA {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	rad := gg.Radians(degrees)
	sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))
	nw := max(1, int(h*sin+w*cos))
	nh := max(1, int(h*cos+w*sin))

	dc := gg.NewContext(nw, nh)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.RotateAbout(rad, float64(nw)/2, float64(nh)/2)
	dc.DrawImageAnchored(img, nw/2, nh/2, 0.5, 0.5)
	return toRGBA(dc.Image())
}

func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var acc float64
	for _, v := range vals {
		acc += (v - mean) * (v - mean)
	}
	return acc / float64(len(vals))
}
