package evaluation

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"03:30", 3*3600 + 30*60, false},
		{"10:10:31", 10*3600 + 10*60 + 31, false},
		{" 12:00:00 ", 12 * 3600, false},
		{"3", 0, true},
		{"aa:bb", 0, true},
		{"01:02:03:04", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q): unexpected error state %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

func TestDeviation(t *testing.T) {
	d, err := Deviation("03:30:00", "03:31:15")
	if err != nil {
		t.Fatalf("Deviation failed: %v", err)
	}
	if d != 75 {
		t.Errorf("Expected 75, got %d", d)
	}

	if d, _ := Deviation("10:00", "09:59:50"); d != 10 {
		t.Errorf("Expected 10, got %d", d)
	}
	if _, err := Deviation(FailedMarker, "01:00"); err == nil {
		t.Error("Expected error for failed prediction")
	}
}

func TestPredictionsMergeAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "files", "predictions.csv")

	existing := NewPredictions()
	existing.Set("clock_1", "01:00:00")
	existing.Set("clock_2", "02:00:00")
	if err := existing.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadPredictions(path)
	if err != nil {
		t.Fatalf("LoadPredictions failed: %v", err)
	}
	run := NewPredictions()
	run.Set("clock_2", "02:30:00")
	run.Set("clock_3", "03:00:00")
	loaded.Merge(run)
	loaded.MarkMissing([]string{"clock_2", "clock_3", "clock_4"})

	if err := loaded.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	want := "Image Name,Predicted Time\nclock_1,01:00:00\nclock_2,02:30:00\nclock_3,03:00:00\nclock_4,failed\n"
	if string(data) != want {
		t.Errorf("Expected:\n%s\ngot:\n%s", want, data)
	}
}

func TestLoadPredictionsMissingFile(t *testing.T) {
	p, err := LoadPredictions(filepath.Join(t.TempDir(), "none.csv"))
	if err != nil {
		t.Fatalf("LoadPredictions failed: %v", err)
	}
	if p.Len() != 0 {
		t.Errorf("Expected empty set, got %d", p.Len())
	}
}

func TestEvaluate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gt.csv")
	gtCSV := "Image Name,Time\nclock_1,01:00:00\nclock_2,02:29\nclock_3,03:00:00\n"
	if err := os.WriteFile(path, []byte(gtCSV), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	gt, err := LoadGroundTruth(path)
	if err != nil {
		t.Fatalf("LoadGroundTruth failed: %v", err)
	}
	if len(gt) != 3 {
		t.Errorf("Expected header skipped and 3 entries, got %d", len(gt))
	}

	preds := NewPredictions()
	preds.Set("clock_1", "01:00:00")
	preds.Set("clock_2", "02:30:00")
	preds.Set("clock_3", FailedMarker)
	preds.Set("clock_9", "09:00:00")

	r := Evaluate(preds, gt)
	if r.Compared != 2 || r.Failed != 1 || r.Exact != 1 {
		t.Errorf("Unexpected counts: %+v", r)
	}
	if r.MeanDeviation != 30 || r.MaxDeviation != 60 {
		t.Errorf("Expected mean 30 max 60, got %f %d", r.MeanDeviation, r.MaxDeviation)
	}

	var compared []string
	for _, img := range r.Images {
		if img.Compared {
			compared = append(compared, img.Name)
		}
	}
	if !reflect.DeepEqual(compared, []string{"clock_1", "clock_2"}) {
		t.Errorf("Expected clock_1 and clock_2 compared, got %v", compared)
	}
}
