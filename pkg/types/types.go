package types

import (
	"encoding/json"
	"fmt"
	"math"
)

// Landmark class names produced by the detector
const (
	ClassCircle  = "circle"
	ClassHours   = "hours"
	ClassMinutes = "minutes"
	ClassSeconds = "seconds"
	ClassCenter  = "center"
	ClassTwelve  = "12"
)

// ClassNames lists the landmark classes in model label order (index == class id)
var ClassNames = []string{ClassCircle, ClassHours, ClassMinutes, ClassSeconds, ClassCenter, ClassTwelve}

// ClassID returns the model label index for a class name, or -1 if unknown
func ClassID(name string) int {
	for i, n := range ClassNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Point is a 2-D pixel coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned rectangle in pixel coordinates.
// It is serialized as [x_min, y_min, x_max, y_max].
type Box struct {
	XMin float64
	YMin float64
	XMax float64
	YMax float64
}

// Width returns the box width
func (b Box) Width() float64 { return b.XMax - b.XMin }

// Height returns the box height
func (b Box) Height() float64 { return b.YMax - b.YMin }

// Canonical returns the box with min/max swapped where they are inverted
func (b Box) Canonical() Box {
	if b.XMin > b.XMax {
		b.XMin, b.XMax = b.XMax, b.XMin
	}
	if b.YMin > b.YMax {
		b.YMin, b.YMax = b.YMax, b.YMin
	}
	return b
}

// Translate shifts the box by dx, dy
func (b Box) Translate(dx, dy float64) Box {
	return Box{XMin: b.XMin + dx, YMin: b.YMin + dy, XMax: b.XMax + dx, YMax: b.YMax + dy}
}

func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.XMin, b.YMin, b.XMax, b.YMax})
}

func (b *Box) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("box: %w", err)
	}
	if len(v) != 4 {
		return fmt.Errorf("box: expected 4 coordinates, got %d", len(v))
	}
	*b = Box{XMin: v[0], YMin: v[1], XMax: v[2], YMax: v[3]}
	return nil
}

// Detection is one landmark candidate reported by a detector
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
}

// UnmarshalJSON accepts class_id written as a float by other tooling
func (d *Detection) UnmarshalJSON(data []byte) error {
	var raw struct {
		Box        Box      `json:"box"`
		Confidence float64  `json:"confidence"`
		ClassID    *float64 `json:"class_id"`
		ClassName  string   `json:"class_name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Box = raw.Box
	d.Confidence = raw.Confidence
	d.ClassName = raw.ClassName
	if raw.ClassID != nil {
		d.ClassID = int(math.Round(*raw.ClassID))
	} else {
		d.ClassID = ClassID(raw.ClassName)
	}
	return nil
}

// ClockReading is a resolved time. Minutes and Seconds are nil when the
// corresponding hand was not detected.
type ClockReading struct {
	Hours   int  `json:"hours"`
	Minutes *int `json:"minutes"`
	Seconds *int `json:"seconds"`
}

// String formats the reading as HH:MM, or HH:MM:SS when seconds are present.
// Missing minutes are shown as 00.
func (r ClockReading) String() string {
	m := 0
	if r.Minutes != nil {
		m = *r.Minutes
	}
	s := fmt.Sprintf("%02d:%02d", r.Hours, m)
	if r.Seconds != nil {
		s += fmt.Sprintf(":%02d", *r.Seconds)
	}
	return s
}

// Clock formats the reading as HH:MM:SS, rendering absent parts as 00
func (r ClockReading) Clock() string {
	m, s := 0, 0
	if r.Minutes != nil {
		m = *r.Minutes
	}
	if r.Seconds != nil {
		s = *r.Seconds
	}
	return fmt.Sprintf("%02d:%02d:%02d", r.Hours, m, s)
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int { return &v }

// NormBox is a normalized bounding box with coordinates in [0,1] range,
// as returned by vision language models
type NormBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Landmark is a single landmark reported by a vision language model
type Landmark struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        NormBox `json:"box"`
}

// LandmarkResult contains the complete landmark answer from a vision model
type LandmarkResult struct {
	Landmarks   []Landmark `json:"landmarks"`
	Description string     `json:"description"`
}

// OutputOptions controls how images are written
type OutputOptions struct {
	Format   string
	Quality  int
	Lossless bool
}
