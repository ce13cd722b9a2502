package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/pinthoz/analogic-watch-detector/pkg/client"
	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// DetectionsSuffix is appended to an image's base name for its detections file
const DetectionsSuffix = "_detections.json"

// DetectionsPath returns the detections file for an image name inside dir
func DetectionsPath(dir, name string) string {
	return filepath.Join(dir, name+DetectionsSuffix)
}

// ReplayDetector serves previously recorded detections.
//
// Frames are kept per image: the n-th call for an image returns its n-th
// frame filtered by confidence, and calls past the last frame return nothing.
// The image is taken from client.SourceName(ctx). Calls without a source use
// the frames given to NewReplayDetector.
type ReplayDetector struct {
	mu      sync.Mutex
	sources map[string][][]types.Detection
	calls   map[string]int
	total   int
	// dir, when set, holds <name>_detections.json files loaded on first use
	dir string
}

// NewReplayDetector replays frames in order for a single image
func NewReplayDetector(frames [][]types.Detection) *ReplayDetector {
	return NewKeyedReplayDetector(map[string][][]types.Detection{"": frames})
}

// NewKeyedReplayDetector replays frames per image name
func NewKeyedReplayDetector(sources map[string][][]types.Detection) *ReplayDetector {
	if sources == nil {
		sources = make(map[string][][]types.Detection)
	}
	return &ReplayDetector{sources: sources, calls: make(map[string]int)}
}

// NewReplayDetectorFromFile loads frames written by SaveDetections for a single image
func NewReplayDetectorFromFile(path string) (*ReplayDetector, error) {
	frames, err := LoadDetections(path)
	if err != nil {
		return nil, err
	}
	return NewReplayDetector(frames), nil
}

// NewReplayDetectorFromDir replays the detections files in dir, one per image
func NewReplayDetectorFromDir(dir string) (*ReplayDetector, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("replay path %s is not a directory", dir)
	}
	r := NewKeyedReplayDetector(nil)
	r.dir = dir
	return r, nil
}

// Detect implements client.Detector
func (r *ReplayDetector) Detect(ctx context.Context, img image.Image, confidence float64) ([]types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := client.SourceName(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	frames, err := r.framesFor(key)
	if err != nil {
		return nil, err
	}
	i := r.calls[key]
	r.calls[key]++
	r.total++

	if i >= len(frames) {
		return nil, nil
	}

	out := make([]types.Detection, 0, len(frames[i]))
	for _, d := range frames[i] {
		if d.Confidence >= confidence {
			out = append(out, d)
		}
	}
	return out, nil
}

// framesFor must be called with mu held
func (r *ReplayDetector) framesFor(key string) ([][]types.Detection, error) {
	if frames, ok := r.sources[key]; ok {
		return frames, nil
	}
	if r.dir == "" || key == "" {
		// a single-image replay serves every unnamed or unknown source
		return r.sources[""], nil
	}

	frames, err := LoadDetections(DetectionsPath(r.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		frames = nil
	} else if err != nil {
		return nil, err
	}
	r.sources[key] = frames
	return frames, nil
}

// Calls returns how many times Detect has been called across all images
func (r *ReplayDetector) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Reset rewinds every image to its first frame
func (r *ReplayDetector) Reset() {
	r.mu.Lock()
	r.calls = make(map[string]int)
	r.total = 0
	r.mu.Unlock()
}
