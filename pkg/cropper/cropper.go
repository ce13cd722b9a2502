package cropper

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// DefaultPaddingRatio expands the dial box by 20% of its size on every side
const DefaultPaddingRatio = 0.2

// ZoomCropper cuts a padded region around a detected dial
type ZoomCropper struct {
	config CropConfig
}

// CropConfig holds configuration for zoom cropping
type CropConfig struct {
	// PaddingRatio is the fraction of box width/height added on each side
	PaddingRatio float64
	// MinSize is the smallest acceptable crop edge in pixels
	MinSize int
}

// New creates a new ZoomCropper with default configuration
func New() *ZoomCropper {
	return &ZoomCropper{
		config: CropConfig{
			PaddingRatio: DefaultPaddingRatio,
			MinSize:      8,
		},
	}
}

// NewWithConfig creates a new ZoomCropper with custom configuration
func NewWithConfig(config CropConfig) *ZoomCropper {
	if config.PaddingRatio < 0 {
		config.PaddingRatio = 0
	}
	return &ZoomCropper{config: config}
}

// PaddingRatio returns the configured padding
func (c *ZoomCropper) PaddingRatio() float64 {
	return c.config.PaddingRatio
}

// CropResult contains the result of a zoom crop
type CropResult struct {
	// Image starts at (0,0); detections on it are relative to Region.Min
	Image  image.Image
	Region image.Rectangle
}

// ZoomRegion expands box by padding*width horizontally and padding*height
// vertically on each side, rounds outward to whole pixels and clips the
// result to bounds.
func ZoomRegion(box types.Box, padding float64, bounds image.Rectangle) image.Rectangle {
	box = box.Canonical()
	padX := box.Width() * padding
	padY := box.Height() * padding

	r := image.Rect(
		int(math.Floor(box.XMin-padX)),
		int(math.Floor(box.YMin-padY)),
		int(math.Ceil(box.XMax+padX)),
		int(math.Ceil(box.YMax+padY)),
	)
	return r.Intersect(bounds)
}

// Crop cuts the padded region around box out of img
func (c *ZoomCropper) Crop(img image.Image, box types.Box) (CropResult, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return CropResult{}, fmt.Errorf("invalid image dimensions")
	}

	region := ZoomRegion(box, c.config.PaddingRatio, bounds)
	if region.Empty() {
		return CropResult{}, fmt.Errorf("crop region %v does not overlap image %v", region, bounds)
	}
	if region.Dx() < c.config.MinSize || region.Dy() < c.config.MinSize {
		return CropResult{}, fmt.Errorf("crop region %dx%d is smaller than %dpx", region.Dx(), region.Dy(), c.config.MinSize)
	}

	return CropResult{
		Image:  imaging.Crop(img, region),
		Region: region,
	}, nil
}

// ToSource maps a box detected on the crop back into source image coordinates
func (r CropResult) ToSource(b types.Box) types.Box {
	return b.Translate(float64(r.Region.Min.X), float64(r.Region.Min.Y))
}
