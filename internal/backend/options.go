package backend

import (
	"log/slog"

	clockreader "github.com/pinthoz/analogic-watch-detector"
	"github.com/pinthoz/analogic-watch-detector/internal/config"
	"github.com/pinthoz/analogic-watch-detector/pkg/fallback"
	"github.com/pinthoz/analogic-watch-detector/pkg/processing"
)

// ReaderOptions maps the reader, output and overlay sections of cfg onto
// clockreader options
func ReaderOptions(cfg *config.Config, logger *slog.Logger) clockreader.Options {
	opts := clockreader.DefaultOptions()
	opts.Confidence = cfg.Reader.Confidence
	opts.Fallback = fallback.Config{
		PaddingRatio:  cfg.Reader.PaddingRatio,
		DetectTimeout: cfg.Reader.DetectTimeout.Duration,
	}
	opts.Processing = processing.Config{
		DefaultQuality: cfg.Output.Quality,
		MinImageSize:   cfg.Reader.MinImageSize,
	}
	opts.Style = cfg.Overlay
	opts.Enhance = cfg.Reader.Enhance
	opts.Logger = logger
	return opts
}
