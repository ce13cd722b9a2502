package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pinthoz/analogic-watch-detector/pkg/overlay"
	"github.com/pinthoz/analogic-watch-detector/pkg/processing"
)

// Detector backends
const (
	BackendONNX     = "onnx"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendReplay   = "replay"
)

// Config holds the application configuration
type Config struct {
	Detector DetectorConfig `json:"detector"`
	Reader   ReaderConfig   `json:"reader"`
	Overlay  overlay.Style  `json:"overlay"`
	Output   OutputConfig   `json:"output"`
	Server   ServerConfig   `json:"server"`
	Store    StoreConfig    `json:"store"`
}

// DetectorConfig selects and configures the landmark detector
type DetectorConfig struct {
	Backend string `json:"backend"`
	// ModelPath is the ONNX weights file for the onnx backend
	ModelPath   string  `json:"model_path"`
	LibraryPath string  `json:"library_path"`
	PoolSize    int     `json:"pool_size"`
	Threads     int     `json:"threads"`
	IoU         float64 `json:"iou_threshold"`
	// Model and URL are used by the vision LLM backends
	Model string `json:"model"`
	URL   string `json:"url"`
	// Prompt replaces the built-in landmark prompt when set
	Prompt string `json:"prompt,omitempty"`
	// SendFormat, SendMaxDim and SendQuality control how images are encoded for the vision model
	SendFormat  string `json:"send_format"`
	SendMaxDim  int    `json:"send_max_dim"`
	SendQuality int    `json:"send_quality"`
	// ReplayPath is a detections JSON file, or a directory of
	// <image>_detections.json files, for the replay backend
	ReplayPath string `json:"replay_path"`
}

// ReaderConfig holds the reading pipeline settings
type ReaderConfig struct {
	Confidence    float64                   `json:"confidence"`
	PaddingRatio  float64                   `json:"padding_ratio"`
	DetectTimeout Duration                  `json:"detect_timeout"`
	MinImageSize  int                       `json:"min_image_size"`
	Workers       int                       `json:"workers"`
	Enhance       processing.EnhanceOptions `json:"enhance"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	DefaultFormat   string `json:"default_format"`
	Quality         int    `json:"quality"`
	OutputDir       string `json:"output_dir"`
	Suffix          string `json:"suffix"`
	ZoomedSuffix    string `json:"zoomed_suffix"`
	PredictionsFile string `json:"predictions_file"`
	SaveDetections  bool   `json:"save_detections"`
	WriteOverlay    bool   `json:"write_overlay"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Addr         string   `json:"addr"`
	CORSOrigins  []string `json:"cors_origins"`
	MaxBodyBytes int64    `json:"max_body_bytes"`
}

// StoreConfig holds reading history settings
type StoreConfig struct {
	Path string `json:"path"`
}

// Duration is a time.Duration written as a string ("30s") in JSON
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var secs float64
		if err2 := json.Unmarshal(data, &secs); err2 != nil {
			return fmt.Errorf("invalid duration %s", data)
		}
		d.Duration = time.Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend:   BackendONNX,
			ModelPath: "models/best.onnx",
			PoolSize:  2,
			Threads:   1,
			IoU:       0.45,
			Model:     "qwen2.5vl:7b",
			URL:       "http://localhost:11434",

			SendFormat:  "jpg",
			SendMaxDim:  1536,
			SendQuality: 85,
		},
		Reader: ReaderConfig{
			Confidence:    0.5,
			PaddingRatio:  0.2,
			DetectTimeout: Duration{60 * time.Second},
			MinImageSize:  32,
			Workers:       2,
		},
		Overlay: overlay.DefaultStyle(),
		Output: OutputConfig{
			DefaultFormat:   "jpg",
			Quality:         90,
			OutputDir:       "./output",
			Suffix:          "_clock",
			ZoomedSuffix:    "_clock_zoomed",
			PredictionsFile: "predictions.csv",
			SaveDetections:  true,
			WriteOverlay:    true,
		},
		Server: ServerConfig{
			Addr:         ":5000",
			CORSOrigins:  []string{"http://localhost:5173"},
			MaxBodyBytes: 20 << 20,
		},
		Store: StoreConfig{
			Path: "readings.db",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields absent from
// the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides settings from environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MODEL_PATH"); v != "" {
		c.Detector.ModelPath = v
	}
	if v := os.Getenv("ONNXRUNTIME_LIB"); v != "" {
		c.Detector.LibraryPath = v
	}
	if v := os.Getenv("DETECTOR_BACKEND"); v != "" {
		c.Detector.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("DETECTOR_URL"); v != "" {
		c.Detector.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			c.Server.Addr = ":" + v
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSOrigins = origins
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Detector.Backend {
	case BackendONNX:
		if c.Detector.ModelPath == "" {
			return fmt.Errorf("detector.model_path is required for the onnx backend")
		}
	case BackendOllama, BackendLlamaCpp:
		if c.Detector.URL == "" || c.Detector.Model == "" {
			return fmt.Errorf("detector.url and detector.model are required for the %s backend", c.Detector.Backend)
		}
		switch strings.ToLower(c.Detector.SendFormat) {
		case "jpg", "jpeg", "png":
		default:
			return fmt.Errorf("detector.send_format must be jpg or png")
		}
		if c.Detector.SendMaxDim < 0 {
			return fmt.Errorf("detector.send_max_dim cannot be negative")
		}
		if c.Detector.SendQuality < 1 || c.Detector.SendQuality > 100 {
			return fmt.Errorf("detector.send_quality must be between 1 and 100")
		}
	case BackendReplay:
		if c.Detector.ReplayPath == "" {
			return fmt.Errorf("detector.replay_path is required for the replay backend")
		}
	default:
		return fmt.Errorf("unknown detector.backend %q", c.Detector.Backend)
	}

	if c.Detector.IoU < 0 || c.Detector.IoU > 1 {
		return fmt.Errorf("detector.iou_threshold must be between 0 and 1")
	}

	if c.Reader.Confidence < 0 || c.Reader.Confidence > 1 {
		return fmt.Errorf("reader.confidence must be between 0 and 1")
	}

	if c.Reader.PaddingRatio <= 0 || c.Reader.PaddingRatio > 1 {
		return fmt.Errorf("reader.padding_ratio must be greater than 0 and at most 1")
	}

	if c.Reader.DetectTimeout.Duration < 0 {
		return fmt.Errorf("reader.detect_timeout cannot be negative")
	}

	if c.Reader.MinImageSize < 1 {
		return fmt.Errorf("reader.min_image_size must be positive")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if _, err := overlay.New(c.Overlay); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "analogic-watch-detector", "config.json")
}
