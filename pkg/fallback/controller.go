// Package fallback runs landmark detection with a single zoomed retry.
//
// A reading is first attempted on the full image (Direct). When required
// landmarks are missing, the most confident dial rim from that pass is
// padded, cropped and detected once more (Zoomed). There is no third pass.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/pinthoz/analogic-watch-detector/pkg/client"
	"github.com/pinthoz/analogic-watch-detector/pkg/clock"
	"github.com/pinthoz/analogic-watch-detector/pkg/cropper"
	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// Stage identifies which pass produced a result
type Stage string

const (
	StageDirect Stage = "direct"
	StageZoomed Stage = "zoomed"
)

// ErrDetectionFailed matches any *DetectionFailedError with errors.Is
var ErrDetectionFailed = errors.New("time detection failed")

// DetectionFailedError is the terminal failure of a read attempt
type DetectionFailedError struct {
	Reason string
	// Missing holds the landmarks absent from the last resolved pass
	Missing []string
}

func (e *DetectionFailedError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("time detection failed: %s (missing %v)", e.Reason, e.Missing)
	}
	return "time detection failed: " + e.Reason
}

func (e *DetectionFailedError) Is(target error) bool {
	return target == ErrDetectionFailed
}

// Enhancer optionally transforms the zoomed crop before the second pass
type Enhancer func(image.Image) image.Image

// Result is a successful reading and the pass that produced it
type Result struct {
	Reading    types.ClockReading
	Resolution *clock.Resolution
	Stage      Stage
	// Image is the frame the resolution's points refer to (the crop when zoomed)
	Image image.Image
	// CropRect is the zoom region in source coordinates, empty for Direct
	CropRect   image.Rectangle
	Detections []types.Detection
	// FirstPass holds the direct detections when the result is zoomed
	FirstPass []types.Detection
}

// Passes returns the detections of every pass that ran, direct first
func (r *Result) Passes() [][]types.Detection {
	if r.Stage == StageZoomed {
		return [][]types.Detection{r.FirstPass, r.Detections}
	}
	return [][]types.Detection{r.Detections}
}

// Config holds controller settings
type Config struct {
	// PaddingRatio expands the rim box on each side before cropping
	PaddingRatio float64
	// DetectTimeout bounds each detector call; zero leaves the caller's context as is
	DetectTimeout time.Duration
}

// DefaultConfig returns the standard controller settings
func DefaultConfig() Config {
	return Config{PaddingRatio: cropper.DefaultPaddingRatio}
}

// Controller orchestrates the direct and zoomed passes
type Controller struct {
	detector client.Detector
	resolver *clock.Resolver
	cropper  *cropper.ZoomCropper
	config   Config
	enhance  Enhancer
	logger   *slog.Logger
}

// Option customizes a Controller
type Option func(*Controller)

// WithResolver replaces the default hand rules
func WithResolver(r *clock.Resolver) Option {
	return func(c *Controller) { c.resolver = r }
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithEnhancer applies fn to the zoomed crop before it is detected
func WithEnhancer(fn Enhancer) Option {
	return func(c *Controller) { c.enhance = fn }
}

// New creates a controller around a detector
func New(detector client.Detector, config Config, opts ...Option) *Controller {
	if config.PaddingRatio <= 0 {
		config.PaddingRatio = cropper.DefaultPaddingRatio
	}
	c := &Controller{
		detector: detector,
		resolver: clock.DefaultResolver(),
		cropper:  cropper.NewWithConfig(cropper.CropConfig{PaddingRatio: config.PaddingRatio, MinSize: 1}),
		config:   config,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DetectAndResolve reads the time in img, zooming into the dial once if the
// direct pass misses a required landmark. It returns a *DetectionFailedError
// when no reading can be produced, and the wrapped detector error when the
// detector itself fails.
func (c *Controller) DetectAndResolve(ctx context.Context, img image.Image, confidence float64) (*Result, error) {
	dets, err := c.detect(ctx, img, confidence)
	if err != nil {
		return nil, fmt.Errorf("direct detection: %w", err)
	}

	res, err := c.resolver.Resolve(clock.Aggregate(dets))
	if err == nil {
		c.logger.Debug("clock resolved", "stage", StageDirect, "time", res.Reading.String(), "detections", len(dets))
		return &Result{
			Reading:    res.Reading,
			Resolution: res,
			Stage:      StageDirect,
			Image:      img,
			Detections: dets,
		}, nil
	}
	if !errors.Is(err, clock.ErrMissingLandmark) {
		return nil, err
	}

	missing := clock.Missing(err)
	circle, ok := clock.BestOf(dets, types.ClassCircle)
	if !ok {
		c.logger.Info("no dial rim to zoom into", "missing", missing)
		return nil, &DetectionFailedError{Reason: "no clock rim detected", Missing: missing}
	}

	crop, err := c.cropper.Crop(img, circle.Box)
	if err != nil {
		return nil, &DetectionFailedError{Reason: err.Error(), Missing: missing}
	}
	c.logger.Info("retrying on zoomed dial", "missing", missing, "crop", crop.Region.String())

	zoomed := crop.Image
	if c.enhance != nil {
		zoomed = c.enhance(zoomed)
	}

	zdets, err := c.detect(ctx, zoomed, confidence)
	if err != nil {
		return nil, fmt.Errorf("zoomed detection: %w", err)
	}

	res, err = c.resolver.Resolve(clock.Aggregate(zdets))
	if err != nil {
		c.logger.Info("zoomed pass failed", "error", err)
		return nil, &DetectionFailedError{Reason: "landmarks missing after zoom", Missing: clock.Missing(err)}
	}

	c.logger.Debug("clock resolved", "stage", StageZoomed, "time", res.Reading.String(), "detections", len(zdets))
	return &Result{
		Reading:    res.Reading,
		Resolution: res,
		Stage:      StageZoomed,
		Image:      zoomed,
		CropRect:   crop.Region,
		Detections: zdets,
		FirstPass:  dets,
	}, nil
}

func (c *Controller) detect(ctx context.Context, img image.Image, confidence float64) ([]types.Detection, error) {
	if c.config.DetectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.DetectTimeout)
		defer cancel()
	}
	return c.detector.Detect(ctx, img, confidence)
}
