package preprocess

import (
	"image"

	"golang.org/x/image/draw"
)

// upscale resizes img by factor using Catmull-Rom resampling. Grey inputs
// stay grey.
func upscale(img image.Image, factor float64) image.Image {
	b := img.Bounds()
	rect := image.Rect(0, 0, max(1, int(float64(b.Dx())*factor)), max(1, int(float64(b.Dy())*factor)))

	var dst draw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewRGBA(rect)
	}
	draw.CatmullRom.Scale(dst, rect, img, b, draw.Src, nil)
	return dst
}
