package clockreader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pinthoz/analogic-watch-detector/pkg/client"
	"github.com/pinthoz/analogic-watch-detector/pkg/detection"
	"github.com/pinthoz/analogic-watch-detector/pkg/fallback"
	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// createTestImage creates a light dial on a dark background
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := x-width/2, y-height/2
			if dx*dx+dy*dy < (width/2-20)*(width/2-20) {
				img.Set(x, y, color.RGBA{240, 240, 240, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

func box(x0, y0, x1, y1 float64) types.Box {
	return types.Box{XMin: x0, YMin: y0, XMax: x1, YMax: y1}
}

// dial330 is a 3:30 dial centered at (100,100)
func dial330() []types.Detection {
	return []types.Detection{
		{ClassName: types.ClassCircle, ClassID: 0, Box: box(20, 20, 180, 180), Confidence: 0.9},
		{ClassName: types.ClassTwelve, ClassID: 5, Box: box(95, 25, 105, 35), Confidence: 0.8},
		{ClassName: types.ClassHours, ClassID: 1, Box: box(145, 95, 155, 105), Confidence: 0.7},
		{ClassName: types.ClassMinutes, ClassID: 2, Box: box(95, 155, 105, 165), Confidence: 0.6},
	}
}

func staticDetector(dets []types.Detection) client.Detector {
	return client.DetectorFunc(func(ctx context.Context, img image.Image, confidence float64) ([]types.Detection, error) {
		return dets, nil
	})
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestNewWithOptions(t *testing.T) {
	if _, err := NewWithOptions(nil, DefaultOptions()); err == nil {
		t.Error("Expected error for nil detector")
	}

	opts := DefaultOptions()
	opts.Style.Hours = "bogus"
	if _, err := NewWithOptions(staticDetector(nil), opts); err == nil {
		t.Error("Expected error for invalid overlay color")
	}
}

func TestReadImageDirect(t *testing.T) {
	reader := New(staticDetector(dial330()))

	result, err := reader.ReadImage(context.Background(), createTestImage(200, 200))
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	if result.Reading.String() != "03:30" {
		t.Errorf("Expected 03:30, got %s", result.Reading.String())
	}
	if result.Stage != fallback.StageDirect {
		t.Errorf("Expected direct stage, got %s", result.Stage)
	}

	// hours 0.7, minutes 0.6, twelve 0.8
	if c := reader.Confidence(result); c < 0.699 || c > 0.701 {
		t.Errorf("Expected confidence 0.7, got %f", c)
	}
}

func TestReadImageZoomed(t *testing.T) {
	first := []types.Detection{
		{ClassName: types.ClassCircle, ClassID: 0, Box: box(20, 20, 180, 180), Confidence: 0.9},
	}
	replay := detection.NewReplayDetector([][]types.Detection{first, dial330()})
	reader := New(replay)

	result, err := reader.ReadImage(context.Background(), createTestImage(200, 200))
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}
	if result.Stage != fallback.StageZoomed {
		t.Errorf("Expected zoomed stage, got %s", result.Stage)
	}
	if replay.Calls() != 2 {
		t.Errorf("Expected 2 detector calls, got %d", replay.Calls())
	}

	out := reader.RenderOverlay(result)
	if out.Bounds().Size() != result.Image.Bounds().Size() {
		t.Errorf("Expected overlay of crop size %v, got %v", result.Image.Bounds().Size(), out.Bounds().Size())
	}
}

func TestReadImageFailed(t *testing.T) {
	reader := New(staticDetector(nil))

	_, err := reader.ReadImage(context.Background(), createTestImage(200, 200))
	if !errors.Is(err, fallback.ErrDetectionFailed) {
		t.Errorf("Expected ErrDetectionFailed, got %v", err)
	}
}

func TestReadImageTooSmall(t *testing.T) {
	reader := New(staticDetector(dial330()))

	_, err := reader.ReadImage(context.Background(), createTestImage(10, 10))
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("Expected ErrInvalidImage, got %v", err)
	}
}

func TestReadBatch(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		p := filepath.Join(dir, name)
		writePNG(t, p, createTestImage(200, 200))
		paths = append(paths, p)
	}
	paths = append(paths, filepath.Join(dir, "missing.png"))

	reader := New(staticDetector(dial330()))
	items := reader.ReadBatch(context.Background(), paths, 3)

	if len(items) != len(paths) {
		t.Fatalf("Expected %d items, got %d", len(paths), len(items))
	}
	for i, item := range items[:3] {
		if item.Path != paths[i] {
			t.Errorf("Expected order preserved at %d, got %s", i, item.Path)
		}
		if item.Err != nil || item.Result.Reading.String() != "03:30" {
			t.Errorf("Unexpected item %d: %v", i, item.Err)
		}
	}
	if !errors.Is(items[3].Err, ErrInvalidImage) {
		t.Errorf("Expected load failure for missing file, got %v", items[3].Err)
	}
}

// dialHours is a dial centered at (100,100) showing only an hour hand tip at (x,y)
func dialHours(x, y float64) []types.Detection {
	return []types.Detection{
		{ClassName: types.ClassCircle, ClassID: 0, Box: box(20, 20, 180, 180), Confidence: 0.9},
		{ClassName: types.ClassTwelve, ClassID: 5, Box: box(95, 25, 105, 35), Confidence: 0.8},
		{ClassName: types.ClassHours, ClassID: 1, Box: box(x-5, y-5, x+5, y+5), Confidence: 0.7},
	}
}

func TestReadBatchReplayPerImage(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		p := filepath.Join(dir, name)
		writePNG(t, p, createTestImage(200, 200))
		paths = append(paths, p)
	}

	rimOnly := []types.Detection{
		{ClassName: types.ClassCircle, ClassID: 0, Box: box(20, 20, 180, 180), Confidence: 0.9},
	}
	replay := detection.NewKeyedReplayDetector(map[string][][]types.Detection{
		"a": {rimOnly, dialHours(150, 100)},
		"b": {dialHours(100, 150)},
		"c": {dialHours(50, 100)},
		"d": {dialHours(100, 50)},
	})
	reader := New(replay)

	want := []string{"03:00", "06:00", "09:00", "12:00"}
	for _, workers := range []int{1, 2, 4} {
		replay.Reset()
		items := reader.ReadBatch(context.Background(), paths, workers)

		for i, item := range items {
			if item.Err != nil {
				t.Errorf("workers=%d %s: unexpected error %v", workers, item.Path, item.Err)
				continue
			}
			if got := item.Result.Reading.String(); got != want[i] {
				t.Errorf("workers=%d %s: expected %s, got %s", workers, item.Path, want[i], got)
			}
		}
		if items[0].Err == nil && items[0].Result.Stage != fallback.StageZoomed {
			t.Errorf("workers=%d: expected a.png to be zoomed, got %s", workers, items[0].Result.Stage)
		}
		if replay.Calls() != 5 {
			t.Errorf("workers=%d: expected 5 detector calls, got %d", workers, replay.Calls())
		}
	}
}

func TestReadFileReplayDirectory(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "clock_7.png")
	writePNG(t, img, createTestImage(200, 200))
	if err := detection.SaveDetections(detection.DetectionsPath(dir, "clock_7"), [][]types.Detection{dial330()}); err != nil {
		t.Fatalf("SaveDetections failed: %v", err)
	}

	replay, err := detection.NewReplayDetectorFromDir(dir)
	if err != nil {
		t.Fatalf("NewReplayDetectorFromDir failed: %v", err)
	}
	reader := New(replay)

	result, err := reader.ReadFile(context.Background(), img)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if result.Reading.String() != "03:30" {
		t.Errorf("Expected 03:30, got %s", result.Reading.String())
	}

	// an image without a detections file is read from an empty frame
	other := filepath.Join(dir, "other.png")
	writePNG(t, other, createTestImage(200, 200))
	if _, err := reader.ReadFile(context.Background(), other); !errors.Is(err, fallback.ErrDetectionFailed) {
		t.Errorf("Expected ErrDetectionFailed, got %v", err)
	}
}

func TestReadBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := New(staticDetector(dial330()))
	items := reader.ReadBatch(ctx, []string{"x.png", "y.png"}, 1)
	for _, item := range items {
		if !errors.Is(item.Err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", item.Err)
		}
	}
}

func TestOverlayOutputs(t *testing.T) {
	reader := New(staticDetector(dial330()))
	result, err := reader.ReadImage(context.Background(), createTestImage(200, 200))
	if err != nil {
		t.Fatalf("ReadImage failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "clock_clock.png")
	if !reader.RecordOverlay(result, path, types.OutputOptions{Format: "png"}) {
		t.Fatal("Expected overlay to be saved")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected overlay file: %v", err)
	}

	// a directory in place of the file makes the write fail without panicking
	blocked := filepath.Join(t.TempDir(), "blocked.png")
	if err := os.Mkdir(blocked, 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if reader.RecordOverlay(result, blocked, types.OutputOptions{Format: "png"}) {
		t.Error("Expected overlay write to report failure")
	}

	uri, err := reader.OverlayDataURI(result, 80)
	if err != nil {
		t.Fatalf("OverlayDataURI failed: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/jpeg;base64,") {
		t.Errorf("Unexpected data URI prefix: %.30s", uri)
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("Expected %s, got %s", Version, GetVersion())
	}
}
