package processing

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
)

// EnhanceOptions controls the clean-up applied to a zoomed dial before the
// second detection pass. The image size never changes.
type EnhanceOptions struct {
	// Contrast in [-1, 1]; 0 leaves the image as is
	Contrast float64 `json:"contrast"`
	// Gamma above 1 brightens shadows; 0 or 1 disables
	Gamma   float64 `json:"gamma"`
	Sharpen bool    `json:"sharpen"`
}

// Enabled reports whether any adjustment is configured
func (o EnhanceOptions) Enabled() bool {
	return o.Contrast != 0 || (o.Gamma != 0 && o.Gamma != 1) || o.Sharpen
}

// Enhance applies the configured adjustments
func Enhance(img image.Image, opts EnhanceOptions) image.Image {
	if !opts.Enabled() {
		return img
	}

	out := img
	if opts.Gamma != 0 && opts.Gamma != 1 {
		out = adjust.Gamma(out, opts.Gamma)
	}
	if opts.Contrast != 0 {
		out = adjust.Contrast(out, opts.Contrast)
	}
	if opts.Sharpen {
		out = effect.Sharpen(out)
	}
	return out
}

// Enhancer returns opts bound as a single-argument function
func Enhancer(opts EnhanceOptions) func(image.Image) image.Image {
	return func(img image.Image) image.Image {
		return Enhance(img, opts)
	}
}
