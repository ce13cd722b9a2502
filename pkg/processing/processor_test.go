package processing

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(120, 80)
	dir := t.TempDir()

	for _, format := range []string{"jpg", "png", "webp"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(dir, "sub", "clock."+format)
			if err := p.SaveImage(img, path, format, 90, false); err != nil {
				t.Fatalf("SaveImage failed: %v", err)
			}

			loaded, err := p.LoadImage(path)
			if err != nil {
				t.Fatalf("LoadImage failed: %v", err)
			}
			if loaded.Bounds().Dx() != 120 || loaded.Bounds().Dy() != 80 {
				t.Errorf("Expected 120x80, got %v", loaded.Bounds())
			}
		})
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	p := NewProcessor()
	if _, err := p.DecodeImage([]byte("not an image")); err == nil {
		t.Error("Expected error for garbage data")
	}
}

func TestLoadImageMissing(t *testing.T) {
	p := NewProcessor()
	if _, err := p.LoadImage(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestPrepareImageForModel(t *testing.T) {
	p := NewProcessor()
	b64, err := p.PrepareImageForModel(createTestImage(400, 200), "png", 100, 85)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	if b64 == "" {
		t.Error("Expected base64 output")
	}
}

func TestDataURI(t *testing.T) {
	p := NewProcessor()
	uri, err := p.DataURI(createTestImage(10, 10), 80)
	if err != nil {
		t.Fatalf("DataURI failed: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/jpeg;base64,") {
		t.Errorf("Expected jpeg data URI, got %q", uri[:30])
	}
}

func TestValidateImage(t *testing.T) {
	p := NewProcessorWithConfig(Config{MinImageSize: 50})

	if err := p.ValidateImage(createTestImage(100, 100)); err != nil {
		t.Errorf("Expected valid image, got %v", err)
	}
	if err := p.ValidateImage(createTestImage(100, 20)); err == nil {
		t.Error("Expected error for small image")
	}
	if err := p.ValidateImage(nil); err == nil {
		t.Error("Expected error for nil image")
	}
}

func TestGetImageInfo(t *testing.T) {
	info := NewProcessor().GetImageInfo(createTestImage(300, 150))
	if info.Width != 300 || info.Height != 150 || info.AspectRatio != 2 {
		t.Errorf("Expected 300x150 ratio 2, got %+v", info)
	}
}

func TestEnhance(t *testing.T) {
	img := createTestImage(60, 40)

	if out := Enhance(img, EnhanceOptions{}); out != img {
		t.Error("Expected disabled enhancement to return the input")
	}

	out := Enhance(img, EnhanceOptions{Contrast: 0.3, Gamma: 1.2, Sharpen: true})
	if out.Bounds().Dx() != 60 || out.Bounds().Dy() != 40 {
		t.Errorf("Expected size preserved, got %v", out.Bounds())
	}
}

func TestLoadImageSmartFile(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "c.png")
	if err := p.SaveImage(createTestImage(40, 40), path, "png", 0, false); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected file written: %v", err)
	}
	if _, err := p.LoadImageSmart(path); err != nil {
		t.Errorf("LoadImageSmart failed: %v", err)
	}
}
