package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSortNatural(t *testing.T) {
	paths := []string{"clock_10.jpg", "clock_2.jpg", "Clock_1.png", "clock_02.jpg", "a.jpg"}
	SortNatural(paths)

	want := []string{"a.jpg", "Clock_1.png", "clock_2.jpg", "clock_02.jpg", "clock_10.jpg"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("Expected %v, got %v", want, paths)
	}
}

func TestNaturalLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"img9", "img10", true},
		{"img10", "img9", false},
		{"img", "img1", true},
		{"b1", "a2", false},
		{"x100000000000000000001", "x100000000000000000002", true},
	}

	for _, tt := range tests {
		if got := NaturalLess(tt.a, tt.b); got != tt.want {
			t.Errorf("NaturalLess(%q, %q): expected %v, got %v", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c10.jpg", "c9.png", "notes.txt", "c1.webp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	want := []string{"c1.webp", "c9.png", "c10.jpg"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Expected %v, got %v", want, names)
	}
}

func TestGenerateOutputFilename(t *testing.T) {
	got := GenerateOutputFilename("/in/clock_3.png", "out", "", "_clock_zoomed", "")
	if got != filepath.Join("out", "clock_3_clock_zoomed.png") {
		t.Errorf("Unexpected output filename %s", got)
	}
	if BaseName("/a/b/clock.tar.jpg") != "clock.tar" {
		t.Errorf("Unexpected base name %s", BaseName("/a/b/clock.tar.jpg"))
	}
}

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clock.jpg")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if !DirExists(dir) {
		t.Errorf("Expected %s to be a directory", dir)
	}
	if DirExists(file) {
		t.Errorf("Expected file %s not to count as a directory", file)
	}
	if DirExists(filepath.Join(dir, "missing")) {
		t.Error("Expected missing path not to exist")
	}
}
