package yolo

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/pinthoz/analogic-watch-detector/pkg/client"
	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// Config holds detector settings
type Config struct {
	ModelPath    string
	LibraryPath  string
	PoolSize     int
	Threads      int
	IoUThreshold float64
	// Classes in model label order; defaults to types.ClassNames
	Classes []string
}

// Detector finds clock landmarks with a YOLOv8 ONNX model
type Detector struct {
	pool    *SessionPool
	classes []string
	iou     float64
	logger  *slog.Logger
}

var _ client.Detector = (*Detector)(nil)

// Timings records where time went for one Detect call
type Timings struct {
	Acquire     time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
}

// NewDetector initializes ONNX Runtime and loads the session pool
func NewDetector(cfg Config, logger *slog.Logger) (*Detector, error) {
	if err := InitRuntime(cfg.LibraryPath); err != nil {
		return nil, err
	}
	classes := cfg.Classes
	if len(classes) == 0 {
		classes = types.ClassNames
	}

	pool, err := NewSessionPool(cfg.ModelPath, len(classes), cfg.PoolSize, cfg.Threads)
	if err != nil {
		return nil, err
	}
	return newDetector(pool, classes, cfg.IoUThreshold, logger), nil
}

func newDetector(pool *SessionPool, classes []string, iou float64, logger *slog.Logger) *Detector {
	if iou <= 0 {
		iou = DefaultIoUThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{pool: pool, classes: classes, iou: iou, logger: logger}
}

// Detect implements client.Detector
func (d *Detector) Detect(ctx context.Context, img image.Image, confidence float64) ([]types.Detection, error) {
	var t Timings

	start := time.Now()
	session, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, &ProcessingError{Message: "acquire session", Cause: err}
	}
	defer d.pool.Release(session)
	t.Acquire = time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	sx, sy, err := Preprocess(img, InputSize, session.Input.GetData())
	if err != nil {
		return nil, &ProcessingError{Message: "prepare input buffer", Cause: err}
	}
	t.Preprocess = time.Since(start)

	start = time.Now()
	if err := session.Session.Run(); err != nil {
		return nil, &ProcessingError{Message: "model inference", Cause: err}
	}
	t.Inference = time.Since(start)

	start = time.Now()
	raw, err := DecodeOutput(session.Output.GetData(), d.classes, NumAnchors, sx, sy, confidence)
	if err != nil {
		return nil, &ProcessingError{Message: "process predictions", Cause: err}
	}
	dets := NMS(raw, d.iou)

	ToImageFrame(dets, img.Bounds())
	t.Postprocess = time.Since(start)

	d.logger.Debug("yolo detect",
		"detections", len(dets),
		"candidates", len(raw),
		"acquire", t.Acquire,
		"preprocess", t.Preprocess,
		"inference", t.Inference,
		"postprocess", t.Postprocess,
	)
	return dets, nil
}

// Stats exposes session pool usage
func (d *Detector) Stats() PoolStats {
	return d.pool.Stats()
}

// Close releases all sessions
func (d *Detector) Close() error {
	d.pool.Destroy()
	return nil
}
