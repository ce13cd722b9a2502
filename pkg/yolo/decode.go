package yolo

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// DefaultIoUThreshold is the overlap above which same-class boxes are suppressed
const DefaultIoUThreshold = 0.45

// Preprocess resizes img to size x size and writes it into dst as planar
// RGB scaled to [0,1]. It returns the x and y factors that map model
// coordinates back onto img, relative to img.Bounds().Min.
func Preprocess(img image.Image, size int, dst []float32) (float64, float64, error) {
	channelSize := size * size
	if len(dst) < 3*channelSize {
		return 0, 0, fmt.Errorf("input buffer too small: got %d, want %d", len(dst), 3*channelSize)
	}

	b := img.Bounds()
	resized := imaging.Resize(img, size, size, imaging.Linear)

	for y := 0; y < size; y++ {
		row := resized.Pix[y*resized.Stride:]
		offset := y * size
		for x := 0; x < size; x++ {
			i := offset + x
			p := row[x*4 : x*4+3]
			dst[i] = float32(p[0]) / 255.0
			dst[channelSize+i] = float32(p[1]) / 255.0
			dst[channelSize*2+i] = float32(p[2]) / 255.0
		}
	}

	return float64(b.Dx()) / float64(size), float64(b.Dy()) / float64(size), nil
}

// DecodeOutput reads a channel-major [4+len(classes)][anchors] YOLOv8 head.
// Each anchor keeps its best class; anchors below confidence are dropped.
// Boxes are scaled by sx, sy into source pixels relative to the image origin;
// ToImageFrame places them in the image's own coordinates.
func DecodeOutput(data []float32, classes []string, anchors int, sx, sy, confidence float64) ([]types.Detection, error) {
	nc := len(classes)
	if want := (4 + nc) * anchors; len(data) != want {
		return nil, fmt.Errorf("unexpected predictions length: got %d, want %d", len(data), want)
	}

	dets := make([]types.Detection, 0, 64)
	for i := 0; i < anchors; i++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < nc; c++ {
			if s := data[(4+c)*anchors+i]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || float64(bestScore) < confidence {
			continue
		}

		cx := float64(data[i])
		cy := float64(data[anchors+i])
		w := float64(data[2*anchors+i])
		h := float64(data[3*anchors+i])

		dets = append(dets, types.Detection{
			ClassName:  classes[best],
			ClassID:    best,
			Confidence: float64(bestScore),
			Box: types.Box{
				XMin: (cx - w/2) * sx,
				YMin: (cy - h/2) * sy,
				XMax: (cx + w/2) * sx,
				YMax: (cy + h/2) * sy,
			},
		})
	}
	return dets, nil
}

// NMS runs per-class non-maximum suppression and returns the survivors by
// descending confidence
func NMS(dets []types.Detection, iouThreshold float64) []types.Detection {
	sorted := make([]types.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]types.Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.ClassID == d.ClassID && IoU(k.Box, d.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

// IoU returns the intersection over union of two boxes
func IoU(a, b types.Box) float64 {
	x1 := math.Max(a.XMin, b.XMin)
	y1 := math.Max(a.YMin, b.YMin)
	x2 := math.Min(a.XMax, b.XMax)
	y2 := math.Min(a.YMax, b.YMax)

	inter := math.Max(0, x2-x1) * math.Max(0, y2-y1)
	union := a.Width()*a.Height() + b.Width()*b.Height() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// ToImageFrame clips origin-relative boxes to bounds and moves them into the
// coordinate frame of an image whose bounds do not start at (0,0)
func ToImageFrame(dets []types.Detection, bounds image.Rectangle) {
	for i := range dets {
		box := clipBox(dets[i].Box, float64(bounds.Dx()), float64(bounds.Dy()))
		dets[i].Box = box.Translate(float64(bounds.Min.X), float64(bounds.Min.Y))
	}
}

// clipBox keeps a box inside a w x h image
func clipBox(b types.Box, w, h float64) types.Box {
	return types.Box{
		XMin: math.Max(0, math.Min(b.XMin, w)),
		YMin: math.Max(0, math.Min(b.YMin, h)),
		XMax: math.Max(0, math.Min(b.XMax, w)),
		YMax: math.Max(0, math.Min(b.YMax, h)),
	}
}
