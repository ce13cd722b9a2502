package detection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// SaveDetections writes one detection list per image as a JSON array of arrays
func SaveDetections(path string, frames [][]types.Detection) error {
	if frames == nil {
		frames = [][]types.Detection{}
	}
	for i := range frames {
		if frames[i] == nil {
			frames[i] = []types.Detection{}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create detections directory: %w", err)
	}

	data, err := json.MarshalIndent(frames, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal detections: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write detections: %w", err)
	}
	return nil
}

// LoadDetections reads a file written by SaveDetections
func LoadDetections(path string) ([][]types.Detection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read detections: %w", err)
	}

	var frames [][]types.Detection
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("failed to parse detections: %w", err)
	}
	return frames, nil
}
