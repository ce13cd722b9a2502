// Package backend builds the configured landmark detector.
package backend

import (
	"fmt"
	"log/slog"

	"github.com/pinthoz/analogic-watch-detector/internal/config"
	"github.com/pinthoz/analogic-watch-detector/internal/utils"
	"github.com/pinthoz/analogic-watch-detector/pkg/client"
	"github.com/pinthoz/analogic-watch-detector/pkg/detection"
	"github.com/pinthoz/analogic-watch-detector/pkg/llamacpp"
	"github.com/pinthoz/analogic-watch-detector/pkg/ollama"
	"github.com/pinthoz/analogic-watch-detector/pkg/yolo"
)

// Backend is a ready detector plus its optional stats and cleanup
type Backend struct {
	Name     string
	Detector client.Detector
	// Stats reports detector internals for /metrics; nil when there are none
	Stats func() any
	close func() error
}

// Close releases detector resources
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// New creates the detector selected by cfg.Backend
func New(cfg config.DetectorConfig, logger *slog.Logger) (*Backend, error) {
	switch cfg.Backend {
	case config.BackendONNX:
		det, err := yolo.NewDetector(yolo.Config{
			ModelPath:    cfg.ModelPath,
			LibraryPath:  cfg.LibraryPath,
			PoolSize:     cfg.PoolSize,
			Threads:      cfg.Threads,
			IoUThreshold: cfg.IoU,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load ONNX model: %w", err)
		}
		return &Backend{
			Name:     cfg.Backend,
			Detector: det,
			Stats:    func() any { return det.Stats() },
			close:    det.Close,
		}, nil

	case config.BackendOllama:
		c, err := ollama.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return &Backend{Name: cfg.Backend, Detector: landmarkDetector(c, cfg)}, nil

	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return &Backend{Name: cfg.Backend, Detector: landmarkDetector(c, cfg)}, nil

	case config.BackendReplay:
		var det *detection.ReplayDetector
		var err error
		if utils.DirExists(cfg.ReplayPath) {
			det, err = detection.NewReplayDetectorFromDir(cfg.ReplayPath)
		} else {
			det, err = detection.NewReplayDetectorFromFile(cfg.ReplayPath)
		}
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:     cfg.Backend,
			Detector: det,
			Stats:    func() any { return map[string]int{"calls": det.Calls()} },
		}, nil
	}

	return nil, fmt.Errorf("unknown backend: %s (use onnx, ollama, llamacpp or replay)", cfg.Backend)
}

// landmarkDetector applies the prompt and encoding settings of cfg
func landmarkDetector(c client.VisionClient, cfg config.DetectorConfig) *detection.LandmarkDetector {
	d := detection.NewLandmarkDetector(c, cfg.Model)
	if cfg.Prompt != "" {
		d.SetPrompt(cfg.Prompt)
	}
	send := detection.DefaultSendOptions()
	if cfg.SendFormat != "" {
		send.Format = cfg.SendFormat
	}
	if cfg.SendMaxDim > 0 {
		send.MaxDim = cfg.SendMaxDim
	}
	if cfg.SendQuality > 0 {
		send.Quality = cfg.SendQuality
	}
	d.SetSendOptions(send)
	return d
}
