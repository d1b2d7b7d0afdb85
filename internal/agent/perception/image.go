// internal/agent/perception/image.go
package perception

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

const (
	// DefaultMaxDim bounds screenshots sent for action selection.
	DefaultMaxDim = 1280
	// VerifyMaxDim bounds the before/after pair sent for verification;
	// half the resolution halves the token cost.
	VerifyMaxDim = 768

	jpegQuality = 85
)

// Compress decodes a screenshot, downscales it so its longest side is at
// most maxDim, and re-encodes as JPEG. On any decode failure the original
// bytes are returned untouched.
func Compress(data []byte, maxDim int) []byte {
	if len(data) == 0 {
		return data
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxDim || h > maxDim {
		scale := float64(maxDim) / float64(w)
		if s := float64(maxDim) / float64(h); s < scale {
			scale = s
		}
		dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
		img = dst
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return data
	}
	return buf.Bytes()
}

// cropRegion is the pixel geometry of a crop within its source image, kept
// so sub-image coordinates can be mapped back to full-image space.
type cropRegion struct {
	x1, y1 float64
	w, h   float64
	srcW   float64
	srcH   float64
}

// cropPadded cuts the region described by a normalized [y_min, x_min,
// y_max, x_max] box plus padding (a fraction of the image) out of the
// screenshot, returning JPEG bytes and the crop geometry.
func cropPadded(data []byte, box []int, pad float64) ([]byte, cropRegion, error) {
	if len(box) != 4 {
		return nil, cropRegion{}, fmt.Errorf("box must have 4 values, got %d", len(box))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, cropRegion{}, fmt.Errorf("decode screenshot: %w", err)
	}
	bounds := img.Bounds()
	srcW, srcH := float64(bounds.Dx()), float64(bounds.Dy())

	yMin := float64(box[0]) / 1000.0
	xMin := float64(box[1]) / 1000.0
	yMax := float64(box[2]) / 1000.0
	xMax := float64(box[3]) / 1000.0

	region := cropRegion{
		x1:   clamp01(xMin-pad) * srcW,
		y1:   clamp01(yMin-pad) * srcH,
		srcW: srcW,
		srcH: srcH,
	}
	x2 := clamp01(xMax+pad) * srcW
	y2 := clamp01(yMax+pad) * srcH
	region.w = x2 - region.x1
	region.h = y2 - region.y1
	if region.w < 1 || region.h < 1 {
		return nil, cropRegion{}, fmt.Errorf("degenerate crop box %v", box)
	}

	rect := image.Rect(
		bounds.Min.X+int(region.x1), bounds.Min.Y+int(region.y1),
		bounds.Min.X+int(x2), bounds.Min.Y+int(y2),
	)
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Copy(dst, image.Point{}, img, rect, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, cropRegion{}, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), region, nil
}

// mapToFull converts a normalized coordinate inside the crop back to the
// full image's 0-1000 space.
func (r cropRegion) mapToFull(cx, cy int) (int, int) {
	px := float64(cx)/1000.0*r.w + r.x1
	py := float64(cy)/1000.0*r.h + r.y1
	return clampNorm(int(px/r.srcW*1000.0 + 0.5)), clampNorm(int(py/r.srcH*1000.0 + 0.5))
}

// mapBoxToFull converts a crop-relative [y_min, x_min, y_max, x_max] box
// back to full-image normalized space.
func (r cropRegion) mapBoxToFull(box []int) []int {
	if len(box) != 4 {
		return box
	}
	mapY := func(v int) int {
		return clampNorm(int((float64(v)/1000.0*r.h+r.y1)/r.srcH*1000.0 + 0.5))
	}
	mapX := func(v int) int {
		return clampNorm(int((float64(v)/1000.0*r.w+r.x1)/r.srcW*1000.0 + 0.5))
	}
	return []int{mapY(box[0]), mapX(box[1]), mapY(box[2]), mapX(box[3])}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampNorm(v int) int {
	if v < 0 {
		return 0
	}
	if v > 1000 {
		return 1000
	}
	return v
}
