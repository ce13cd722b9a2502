// Package clockreader reads the time shown on analog clocks in images.
//
// A landmark detector (YOLO over ONNX Runtime, or a vision language model)
// finds the dial rim, the pivot, the hands and the "12" mark. The geometry
// of those landmarks is turned into a time, and when a required landmark is
// missing the reader zooms into the dial once and tries again.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		clockreader "github.com/pinthoz/analogic-watch-detector"
//		"github.com/pinthoz/analogic-watch-detector/pkg/yolo"
//	)
//
//	func main() {
//		det, err := yolo.NewDetector(yolo.Config{ModelPath: "models/best.onnx"}, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer det.Close()
//
//		reader := clockreader.New(det)
//		result, err := reader.ReadFile(context.Background(), "clock.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(result.Reading.String())
//	}
//
// The package consists of these main components:
//
//  1. Clock (pkg/clock): aggregation of detections and the time resolver
//  2. Fallback (pkg/fallback): the direct pass and the single zoomed retry
//  3. Overlay (pkg/overlay): drawing the resolved hands for inspection
//  4. Detectors (pkg/yolo, pkg/detection): landmark detection backends
package clockreader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/pinthoz/analogic-watch-detector/pkg/client"
	"github.com/pinthoz/analogic-watch-detector/pkg/clock"
	"github.com/pinthoz/analogic-watch-detector/pkg/fallback"
	"github.com/pinthoz/analogic-watch-detector/pkg/overlay"
	"github.com/pinthoz/analogic-watch-detector/pkg/processing"
	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// Version of the clock reader library
const Version = "1.0.0"

// DefaultConfidence is the minimum detector confidence for a landmark
const DefaultConfidence = 0.5

// ErrInvalidImage wraps load and validation failures of the input image
var ErrInvalidImage = errors.New("invalid image")

// Options configures a Reader
type Options struct {
	Confidence float64
	Fallback   fallback.Config
	Processing processing.Config
	Style      overlay.Style
	// Enhance is applied to the zoomed crop before the second pass
	Enhance processing.EnhanceOptions
	Logger  *slog.Logger
}

// DefaultOptions returns the standard reader settings
func DefaultOptions() Options {
	return Options{
		Confidence: DefaultConfidence,
		Fallback:   fallback.DefaultConfig(),
		Processing: processing.DefaultConfig(),
		Style:      overlay.DefaultStyle(),
	}
}

// Reader provides a high-level interface for reading clocks
type Reader struct {
	processor  *processing.Processor
	controller *fallback.Controller
	renderer   *overlay.Renderer
	confidence float64
	logger     *slog.Logger
}

// New creates a Reader with default options
func New(detector client.Detector) *Reader {
	r, err := NewWithOptions(detector, DefaultOptions())
	if err != nil {
		// default style always parses
		panic(err)
	}
	return r
}

// NewWithOptions creates a Reader with custom options
func NewWithOptions(detector client.Detector, opts Options) (*Reader, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Confidence <= 0 {
		opts.Confidence = DefaultConfidence
	}

	renderer, err := overlay.New(opts.Style)
	if err != nil {
		return nil, err
	}

	ctrlOpts := []fallback.Option{fallback.WithLogger(logger)}
	if opts.Enhance.Enabled() {
		ctrlOpts = append(ctrlOpts, fallback.WithEnhancer(processing.Enhancer(opts.Enhance)))
	}

	return &Reader{
		processor:  processing.NewProcessorWithConfig(opts.Processing),
		controller: fallback.New(detector, opts.Fallback, ctrlOpts...),
		renderer:   renderer,
		confidence: opts.Confidence,
		logger:     logger,
	}, nil
}

// LoadImage loads an image from a file path or http(s) URL
func (r *Reader) LoadImage(source string) (image.Image, error) {
	img, err := r.processor.LoadImageSmart(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// DecodeImage decodes jpg, png or webp bytes
func (r *Reader) DecodeImage(data []byte) (image.Image, error) {
	img, err := r.processor.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// ReadImage reads the time shown in img
func (r *Reader) ReadImage(ctx context.Context, img image.Image) (*fallback.Result, error) {
	if err := r.processor.ValidateImage(img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return r.controller.DetectAndResolve(ctx, img, r.confidence)
}

// ReadFile is a convenience function that loads and reads an image
func (r *Reader) ReadFile(ctx context.Context, path string) (*fallback.Result, error) {
	img, err := r.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return r.ReadImage(client.WithSource(ctx, path), img)
}

// BatchItem is the outcome of one image in ReadBatch
type BatchItem struct {
	Path   string
	Image  image.Image
	Result *fallback.Result
	Err    error
}

// ReadBatch reads every path with a pool of workers. Items are returned in
// the order of paths; a failing image never stops the batch.
func (r *Reader) ReadBatch(ctx context.Context, paths []string, workers int) []BatchItem {
	if workers < 1 {
		workers = 1
	}
	items := make([]BatchItem, len(paths))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				items[i] = r.readOne(ctx, paths[i])
			}
		}()
	}

	for i := range paths {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(paths); j++ {
				items[j] = BatchItem{Path: paths[j], Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return items
		}
	}
	close(jobs)
	wg.Wait()
	return items
}

func (r *Reader) readOne(ctx context.Context, path string) BatchItem {
	item := BatchItem{Path: path}
	if err := ctx.Err(); err != nil {
		item.Err = err
		return item
	}

	img, err := r.LoadImage(path)
	if err != nil {
		item.Err = err
		return item
	}
	item.Image = img
	item.Result, item.Err = r.ReadImage(client.WithSource(ctx, path), img)
	if item.Err != nil {
		r.logger.Info("clock not read", "path", path, "error", item.Err)
	}
	return item
}

// Confidence returns the mean detector confidence of the landmarks behind res
func (r *Reader) Confidence(res *fallback.Result) float64 {
	if res == nil {
		return 0
	}
	return clock.AverageConfidence(res.Detections)
}

// RenderOverlay draws the resolved hands onto the image the result refers to
func (r *Reader) RenderOverlay(res *fallback.Result) *image.NRGBA {
	return r.renderer.Render(res.Image, res.Resolution)
}

// SaveOverlay writes the overlay of res to path
func (r *Reader) SaveOverlay(res *fallback.Result, path string, opts types.OutputOptions) error {
	return r.renderer.Save(res.Image, res.Resolution, path, opts)
}

// RecordOverlay writes the overlay of res to path, logging instead of
// returning a failure. The reading stays valid whether or not this succeeds.
func (r *Reader) RecordOverlay(res *fallback.Result, path string, opts types.OutputOptions) bool {
	if err := r.SaveOverlay(res, path, opts); err != nil {
		r.logger.Warn("overlay not saved", "path", path, "error", err)
		return false
	}
	return true
}

// OverlayDataURI returns the overlay of res as a data:image/jpeg;base64 URI
func (r *Reader) OverlayDataURI(res *fallback.Result, quality int) (string, error) {
	return r.processor.DataURI(r.RenderOverlay(res), quality)
}

// GetImageInfo returns basic information about an image
func (r *Reader) GetImageInfo(img image.Image) processing.ImageInfo {
	return r.processor.GetImageInfo(img)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
