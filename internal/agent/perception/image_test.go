// internal/agent/perception/image_test.go
package perception

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestCompress_DownscalesLargeImages(t *testing.T) {
	shot := testScreenshot(t, 2560, 1440)
	out := Compress(shot, DefaultMaxDim)
	w, h := decodeDims(t, out)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
}

func TestCompress_KeepsSmallImageDimensions(t *testing.T) {
	shot := testScreenshot(t, 640, 480)
	w, h := decodeDims(t, Compress(shot, DefaultMaxDim))
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestCompress_PassesThroughUndecodableBytes(t *testing.T) {
	raw := []byte("definitely not an image")
	assert.Equal(t, raw, Compress(raw, DefaultMaxDim))
	assert.Empty(t, Compress(nil, DefaultMaxDim))
}

func TestCropRegion_MapToFull(t *testing.T) {
	// Crop covering pixels [200,200] to [800,800] of a 1000x1000 image.
	r := cropRegion{x1: 200, y1: 200, w: 600, h: 600, srcW: 1000, srcH: 1000}

	// Center of the crop maps to the center of the covered region.
	cx, cy := r.mapToFull(500, 500)
	assert.Equal(t, 500, cx)
	assert.Equal(t, 500, cy)

	// Crop origin maps to the crop's top-left corner in full space.
	cx, cy = r.mapToFull(0, 0)
	assert.Equal(t, 200, cx)
	assert.Equal(t, 200, cy)

	// Crop extremes stay inside the normalized range.
	cx, cy = r.mapToFull(1000, 1000)
	assert.Equal(t, 800, cx)
	assert.Equal(t, 800, cy)
}

func TestCropRegion_MapBoxToFull(t *testing.T) {
	r := cropRegion{x1: 0, y1: 0, w: 500, h: 500, srcW: 1000, srcH: 1000}
	// A box spanning the whole crop maps to the crop's extent.
	box := r.mapBoxToFull([]int{0, 0, 1000, 1000})
	assert.Equal(t, []int{0, 0, 500, 500}, box)
}

func TestCropPadded_RejectsBadInput(t *testing.T) {
	shot := testScreenshot(t, 100, 100)
	_, _, err := cropPadded(shot, []int{1, 2, 3}, 0.2)
	assert.Error(t, err)
	_, _, err = cropPadded([]byte("junk"), []int{0, 0, 500, 500}, 0.2)
	assert.Error(t, err)
}
