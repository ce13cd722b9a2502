// Package clock turns raw landmark detections into a clock reading.
//
// The flow is Aggregate (one detection per class) followed by
// Resolver.Resolve (angles to hours, minutes and seconds).
package clock

import (
	"sort"

	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// Frame holds the single most confident detection per landmark class
type Frame struct {
	best map[string]types.Detection
}

// Aggregate keeps, for each class, the detection with the strictly greatest
// confidence. On ties the first detection seen wins. Inverted boxes are
// normalized on the way in.
func Aggregate(dets []types.Detection) Frame {
	f := Frame{best: make(map[string]types.Detection, len(types.ClassNames))}
	for _, d := range dets {
		d.Box = d.Box.Canonical()
		cur, ok := f.best[d.ClassName]
		if !ok || d.Confidence > cur.Confidence {
			f.best[d.ClassName] = d
		}
	}
	return f
}

// Get returns the detection kept for a class
func (f Frame) Get(class string) (types.Detection, bool) {
	d, ok := f.best[class]
	return d, ok
}

// Has reports whether the frame contains a class
func (f Frame) Has(class string) bool {
	_, ok := f.best[class]
	return ok
}

// Len returns the number of classes in the frame
func (f Frame) Len() int {
	return len(f.best)
}

// Detections returns the kept detections ordered by class id, unknown
// classes last in name order
func (f Frame) Detections() []types.Detection {
	out := make([]types.Detection, 0, len(f.best))
	for _, d := range f.best {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := types.ClassID(out[i].ClassName), types.ClassID(out[j].ClassName)
		if ai < 0 {
			ai = len(types.ClassNames)
		}
		if aj < 0 {
			aj = len(types.ClassNames)
		}
		if ai != aj {
			return ai < aj
		}
		return out[i].ClassName < out[j].ClassName
	})
	return out
}

// BestOf returns the highest-confidence detection of a class from a raw list
func BestOf(dets []types.Detection, class string) (types.Detection, bool) {
	return Aggregate(dets).Get(class)
}

// confidenceClasses are the landmarks that contribute to the reported confidence
var confidenceClasses = map[string]bool{
	types.ClassHours:   true,
	types.ClassMinutes: true,
	types.ClassSeconds: true,
	types.ClassCenter:  true,
	types.ClassTwelve:  true,
}

// AverageConfidence is the mean confidence over every hand, center and 12
// detection in the list. The rim is left out. Returns 0 for no matches.
func AverageConfidence(dets []types.Detection) float64 {
	var sum float64
	var n int
	for _, d := range dets {
		if confidenceClasses[d.ClassName] {
			sum += d.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
