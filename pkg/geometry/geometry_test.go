package geometry

import (
	"math"
	"testing"

	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

func TestBoxCenter(t *testing.T) {
	c := BoxCenter(types.Box{XMin: 69.9, YMin: 75.3, XMax: 371.8, YMax: 372.6})
	if math.Abs(c.X-220.85) > 1e-9 || math.Abs(c.Y-223.95) > 1e-9 {
		t.Errorf("Expected (220.85, 223.95), got (%f, %f)", c.X, c.Y)
	}
}

func TestAngleRelativeTo(t *testing.T) {
	center := types.Point{X: 100, Y: 100}
	twelve := types.Point{X: 100, Y: 10}

	tests := []struct {
		name  string
		point types.Point
		want  float64
	}{
		{"twelve", types.Point{X: 100, Y: 50}, 0},
		{"three", types.Point{X: 180, Y: 100}, 90},
		{"six", types.Point{X: 100, Y: 170}, 180},
		{"nine", types.Point{X: 20, Y: 100}, 270},
		{"half past one", types.Point{X: 150, Y: 50}, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AngleRelativeTo(center, tt.point, twelve)
			if !ok {
				t.Fatal("Expected defined angle")
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestAngleRelativeToDegenerate(t *testing.T) {
	center := types.Point{X: 50, Y: 50}
	if _, ok := AngleRelativeTo(center, center, types.Point{X: 50, Y: 0}); ok {
		t.Error("Expected undefined angle for point at the pivot")
	}
	if _, ok := AngleRelativeTo(center, types.Point{X: 60, Y: 50}, center); ok {
		t.Error("Expected undefined angle for reference at the pivot")
	}
}

func TestNormalize(t *testing.T) {
	tests := map[float64]float64{
		0:     0,
		360:   0,
		-90:   270,
		450:   90,
		-720:  0,
		359.5: 359.5,
	}
	for in, want := range tests {
		if got := Normalize(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("Normalize(%f): expected %f, got %f", in, want, got)
		}
	}
}

func TestPointAtRoundTrip(t *testing.T) {
	center := types.Point{X: 200, Y: 200}
	ref := types.Point{X: 200, Y: 20}
	for deg := 0.0; deg < 360; deg += 7.5 {
		p := PointAt(center, ref, deg, 120)
		got, ok := AngleRelativeTo(center, p, ref)
		if !ok {
			t.Fatalf("Expected defined angle at %f", deg)
		}
		diff := math.Abs(got - deg)
		if diff > 1e-6 && math.Abs(diff-360) > 1e-6 {
			t.Errorf("Expected %f, got %f", deg, got)
		}
	}
}
