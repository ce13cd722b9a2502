// Package evaluation compares predicted clock times with ground truth and
// keeps the per-image predictions file used by batch runs.
//
// Predictions are stored as a two-column CSV with the header
// "Image Name","Predicted Time". Images that produced no reading are
// recorded with the value "failed".
package evaluation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FailedMarker is the predicted time written for images without a reading
const FailedMarker = "failed"

var predictionsHeader = []string{"Image Name", "Predicted Time"}

// Predictions maps image names to predicted times, keeping insertion order
type Predictions struct {
	order  []string
	values map[string]string
}

// NewPredictions creates an empty prediction set
func NewPredictions() *Predictions {
	return &Predictions{values: make(map[string]string)}
}

// LoadPredictions reads a predictions CSV. A missing file yields an empty set.
func LoadPredictions(path string) (*Predictions, error) {
	p := NewPredictions()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open predictions: %w", err)
	}
	defer f.Close()

	rows, err := readRows(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	for i, row := range rows {
		if i == 0 && isHeader(row) {
			continue
		}
		if len(row) == 2 {
			p.Set(row[0], row[1])
		}
	}
	return p, nil
}

// Set records the prediction for an image, replacing any earlier value
func (p *Predictions) Set(name, value string) {
	if _, ok := p.values[name]; !ok {
		p.order = append(p.order, name)
	}
	p.values[name] = value
}

// Get returns the prediction for an image
func (p *Predictions) Get(name string) (string, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Names returns image names in insertion order
func (p *Predictions) Names() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of images
func (p *Predictions) Len() int {
	return len(p.order)
}

// MarkMissing records FailedMarker for every name without a prediction
func (p *Predictions) MarkMissing(names []string) {
	for _, n := range names {
		if _, ok := p.values[n]; !ok {
			p.Set(n, FailedMarker)
		}
	}
}

// Merge copies other's predictions over p
func (p *Predictions) Merge(other *Predictions) {
	for _, n := range other.order {
		p.Set(n, other.values[n])
	}
}

// Save writes the predictions CSV, creating parent directories
func (p *Predictions) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create predictions directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create predictions file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(predictionsHeader); err != nil {
		return err
	}
	for _, n := range p.order {
		if err := w.Write([]string{n, p.values[n]}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// GroundTruth maps image names to their true HH:MM[:SS] time
type GroundTruth map[string]string

// LoadGroundTruth reads a two-column CSV of image name and time. A header
// row, if present, is ignored.
func LoadGroundTruth(path string) (GroundTruth, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ground truth: %w", err)
	}
	defer f.Close()

	rows, err := readRows(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read ground truth: %w", err)
	}

	gt := make(GroundTruth, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		if _, err := ParseClock(row[1]); err != nil {
			continue
		}
		gt[strings.TrimSpace(row[0])] = strings.TrimSpace(row[1])
	}
	return gt, nil
}

// ParseClock converts HH:MM or HH:MM:SS into seconds since 00:00:00
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	var total int
	for i, unit := range []int{3600, 60, 1} {
		if i >= len(parts) {
			break
		}
		v, err := strconv.Atoi(parts[i])
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		total += v * unit
	}
	return total, nil
}

// Deviation returns the absolute difference in seconds between two times
func Deviation(predicted, truth string) (int, error) {
	if predicted == FailedMarker {
		return 0, fmt.Errorf("no prediction")
	}
	p, err := ParseClock(predicted)
	if err != nil {
		return 0, err
	}
	t, err := ParseClock(truth)
	if err != nil {
		return 0, err
	}
	if p > t {
		return p - t, nil
	}
	return t - p, nil
}

// ImageResult is the comparison for one image
type ImageResult struct {
	Name      string
	Predicted string
	Truth     string
	Deviation int
	// Compared is false when the image failed or has no ground truth
	Compared bool
}

// Report summarizes a prediction set against ground truth
type Report struct {
	Images        []ImageResult
	Compared      int
	Failed        int
	Exact         int
	MeanDeviation float64
	MaxDeviation  int
}

// Evaluate compares every prediction with its ground truth entry
func Evaluate(preds *Predictions, gt GroundTruth) Report {
	var r Report
	var sum int

	for _, name := range preds.order {
		res := ImageResult{Name: name, Predicted: preds.values[name], Truth: gt[name]}
		if res.Predicted == FailedMarker {
			r.Failed++
		}

		if res.Truth != "" {
			if d, err := Deviation(res.Predicted, res.Truth); err == nil {
				res.Deviation = d
				res.Compared = true
				r.Compared++
				sum += d
				if d == 0 {
					r.Exact++
				}
				if d > r.MaxDeviation {
					r.MaxDeviation = d
				}
			}
		}
		r.Images = append(r.Images, res)
	}

	if r.Compared > 0 {
		r.MeanDeviation = math.Round(float64(sum)/float64(r.Compared)*100) / 100
	}
	return r
}

func readRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), predictionsHeader[0])
}
