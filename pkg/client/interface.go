package client

import (
	"context"
	"errors"
	"image"

	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// ErrUnavailable marks detector failures caused by the backend not being
// reachable or not having capacity, as opposed to a bad input
var ErrUnavailable = errors.New("detector unavailable")

// Detector finds clock landmarks in an image. Boxes are in the pixel
// coordinates of img, and detections below confidence are dropped.
type Detector interface {
	Detect(ctx context.Context, img image.Image, confidence float64) ([]types.Detection, error)
}

// DetectorFunc adapts a function to the Detector interface
type DetectorFunc func(ctx context.Context, img image.Image, confidence float64) ([]types.Detection, error)

func (f DetectorFunc) Detect(ctx context.Context, img image.Image, confidence float64) ([]types.Detection, error) {
	return f(ctx, img, confidence)
}

// VisionClient is a vision language model backend
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	LocateLandmarks(ctx context.Context, model, prompt, imgB64 string) (*types.LandmarkResult, error)
}
