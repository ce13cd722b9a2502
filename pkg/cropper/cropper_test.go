package cropper

import (
	"image"
	"image/color"
	"testing"

	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 64, 255})
		}
	}
	return img
}

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Fatal("New() returned nil")
	}
	if c.PaddingRatio() != 0.2 {
		t.Errorf("Expected padding 0.2, got %f", c.PaddingRatio())
	}
}

func TestNewWithConfig(t *testing.T) {
	c := NewWithConfig(CropConfig{PaddingRatio: -1})
	if c.PaddingRatio() != 0 {
		t.Errorf("Expected negative padding clamped to 0, got %f", c.PaddingRatio())
	}
}

func TestZoomRegion(t *testing.T) {
	bounds := image.Rect(0, 0, 640, 480)

	tests := []struct {
		name string
		box  types.Box
		want image.Rectangle
	}{
		{
			name: "inside",
			box:  types.Box{XMin: 200, YMin: 100, XMax: 300, YMax: 250},
			want: image.Rect(180, 70, 320, 280),
		},
		{
			name: "clipped top left",
			box:  types.Box{XMin: 10, YMin: 5, XMax: 110, YMax: 105},
			want: image.Rect(0, 0, 130, 125),
		},
		{
			name: "clipped bottom right",
			box:  types.Box{XMin: 540, YMin: 380, XMax: 640, YMax: 480},
			want: image.Rect(520, 360, 640, 480),
		},
		{
			name: "fractional rounds outward",
			box:  types.Box{XMin: 100.5, YMin: 100.5, XMax: 150.5, YMax: 150.5},
			want: image.Rect(90, 90, 161, 161),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ZoomRegion(tt.box, DefaultPaddingRatio, bounds)
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCrop(t *testing.T) {
	img := createTestImage(400, 300)
	c := New()

	result, err := c.Crop(img, types.Box{XMin: 100, YMin: 50, XMax: 200, YMax: 150})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	if result.Region != image.Rect(80, 30, 220, 170) {
		t.Errorf("Expected region (80,30)-(220,170), got %v", result.Region)
	}
	b := result.Image.Bounds()
	if b.Min != (image.Point{}) || b.Dx() != 140 || b.Dy() != 140 {
		t.Errorf("Expected 140x140 image at origin, got %v", b)
	}

	src := types.Box{XMin: 10, YMin: 20, XMax: 30, YMax: 40}
	if got := result.ToSource(src); got.XMin != 90 || got.YMin != 50 {
		t.Errorf("Expected translated box at (90,50), got %+v", got)
	}
}

func TestCropOutsideImage(t *testing.T) {
	img := createTestImage(100, 100)
	c := New()

	if _, err := c.Crop(img, types.Box{XMin: 500, YMin: 500, XMax: 600, YMax: 600}); err == nil {
		t.Error("Expected error for box outside image")
	}
}
