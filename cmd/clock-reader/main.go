package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	clockreader "github.com/pinthoz/analogic-watch-detector"
	"github.com/pinthoz/analogic-watch-detector/internal/backend"
	"github.com/pinthoz/analogic-watch-detector/internal/config"
	"github.com/pinthoz/analogic-watch-detector/internal/utils"
	"github.com/pinthoz/analogic-watch-detector/pkg/clock"
	"github.com/pinthoz/analogic-watch-detector/pkg/detection"
	"github.com/pinthoz/analogic-watch-detector/pkg/evaluation"
	"github.com/pinthoz/analogic-watch-detector/pkg/fallback"
	"github.com/pinthoz/analogic-watch-detector/pkg/processing"
	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

func main() {
	var in, dir, outDir, configPath string
	var backendName, model, url, modelPath, libPath, replayPath string
	var ext string
	var quality, workers int
	var conf float64
	var predictions, truth string
	var noOverlay, enhance, debug bool

	flag.StringVar(&configPath, "config", "", "config file (default ~/.config/analogic-watch-detector/config.json if present)")
	flag.StringVar(&in, "in", "", "input image path or URL (jpg/png/webp)")
	flag.StringVar(&dir, "dir", "", "directory of images to read in natural order")
	flag.StringVar(&outDir, "out", "", "output directory for overlays and detections")

	flag.StringVar(&backendName, "backend", "", "detector backend: onnx|ollama|llamacpp|replay")
	flag.StringVar(&modelPath, "weights", "", "ONNX model path (onnx backend)")
	flag.StringVar(&libPath, "onnxlib", "", "ONNX Runtime shared library path")
	flag.StringVar(&model, "model", "", "vision model name (ollama/llamacpp backends)")
	flag.StringVar(&url, "url", "", "vision server URL (ollama/llamacpp backends)")
	flag.StringVar(&replayPath, "replay", "", "detections JSON, or a directory of <image>_detections.json files, to replay instead of running a model")

	flag.Float64Var(&conf, "conf", 0, "minimum landmark confidence (0..1)")
	flag.IntVar(&workers, "workers", 0, "concurrent images in -dir mode")
	flag.StringVar(&ext, "ext", "", "overlay format: jpg|png|webp")
	flag.IntVar(&quality, "quality", 0, "overlay JPEG/WebP quality (1-100)")
	flag.BoolVar(&noOverlay, "nooverlay", false, "do not write overlay images")
	flag.BoolVar(&enhance, "enhance", false, "sharpen and boost contrast of the zoomed dial before the second pass")

	flag.StringVar(&predictions, "predictions", "", "predictions CSV to merge results into (relative to -out)")
	flag.StringVar(&truth, "truth", "", "ground truth CSV (Image Name,Time) to compare against")
	flag.BoolVar(&debug, "debug", false, "verbose pipeline logging")

	flag.Parse()
	if in == "" && dir == "" {
		log.Fatalf("usage: %s -in clock.jpg|URL | -dir images/ [-backend onnx|ollama|llamacpp|replay] [-out outdir] [-truth ground_truth.csv]", filepath.Base(os.Args[0]))
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg.ApplyEnv()

	if replayPath != "" {
		cfg.Detector.Backend = config.BackendReplay
		cfg.Detector.ReplayPath = replayPath
	}
	setString(&cfg.Detector.Backend, strings.ToLower(backendName))
	setString(&cfg.Detector.ModelPath, modelPath)
	setString(&cfg.Detector.LibraryPath, libPath)
	setString(&cfg.Detector.Model, model)
	setString(&cfg.Detector.URL, url)
	setString(&cfg.Output.OutputDir, outDir)
	setString(&cfg.Output.DefaultFormat, ext)
	setString(&cfg.Output.PredictionsFile, predictions)
	if conf > 0 {
		cfg.Reader.Confidence = conf
	}
	if workers > 0 {
		cfg.Reader.Workers = workers
	}
	if quality > 0 {
		cfg.Output.Quality = quality
	}
	if noOverlay {
		cfg.Output.WriteOverlay = false
	}
	if cfg.Detector.Backend == config.BackendReplay && cfg.Reader.Workers > 1 {
		log.Printf("replay backend: reading with 1 worker instead of %d", cfg.Reader.Workers)
		cfg.Reader.Workers = 1
	}
	if enhance {
		cfg.Reader.Enhance = processing.EnhanceOptions{Contrast: 0.2, Sharpen: true}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
		log.Fatal(err)
	}

	be, err := backend.New(cfg.Detector, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer be.Close()

	reader, err := clockreader.NewWithOptions(be.Detector, backend.ReaderOptions(cfg, logger))
	if err != nil {
		log.Fatal(err)
	}

	paths, err := collectPaths(in, dir)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("reading %d image(s) with %s backend", len(paths), be.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	items := reader.ReadBatch(ctx, paths, cfg.Reader.Workers)

	run := evaluation.NewPredictions()
	var names []string
	for _, item := range items {
		name := utils.BaseName(item.Path)
		names = append(names, name)

		if item.Err != nil {
			if missing := missingOf(item.Err); len(missing) > 0 {
				log.Printf("%s: failed (missing %s)", name, strings.Join(missing, ", "))
			} else {
				log.Printf("%s: failed: %v", name, item.Err)
			}
			continue
		}

		res := item.Result
		run.Set(name, res.Reading.Clock())
		log.Printf("%s: %s [%s] conf=%.2f", name, res.Reading.String(), res.Stage, reader.Confidence(res))
		if debug {
			for _, line := range clock.AngleLines(res.Resolution) {
				log.Printf("  %s", line)
			}
		}

		writeOutputs(reader, cfg, name, res)
	}

	predPath := cfg.Output.PredictionsFile
	if !filepath.IsAbs(predPath) {
		predPath = filepath.Join(cfg.Output.OutputDir, predPath)
	}
	preds, err := evaluation.LoadPredictions(predPath)
	if err != nil {
		log.Fatal(err)
	}
	preds.Merge(run)
	preds.MarkMissing(names)
	if err := preds.Save(predPath); err != nil {
		log.Fatalf("failed to save predictions: %v", err)
	}
	log.Printf("read %d/%d clocks in %v, predictions saved to %s", run.Len(), len(paths), time.Since(start).Round(time.Millisecond), predPath)

	if truth != "" {
		report(run, truth)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.GetConfigPath()
		if !utils.FileExists(path) {
			return config.Default(), nil
		}
	}
	return config.LoadFromFile(path)
}

// collectPaths returns the -in image followed by the images of -dir in natural order
func collectPaths(in, dir string) ([]string, error) {
	var paths []string
	if in != "" {
		paths = append(paths, in)
	}
	if dir != "" {
		if !utils.DirExists(dir) {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
		files, err := utils.ListImageFiles(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		paths = append(paths, files...)
	}
	if len(paths) == 0 {
		return nil, errors.New("no images found")
	}
	return paths, nil
}

// writeOutputs saves the overlay and the detections of every pass of one
// reading. Failures are logged only; the reading itself already succeeded.
func writeOutputs(reader *clockreader.Reader, cfg *config.Config, name string, res *fallback.Result) {
	if cfg.Output.SaveDetections {
		path := detection.DetectionsPath(cfg.Output.OutputDir, name)
		if err := detection.SaveDetections(path, res.Passes()); err != nil {
			log.Printf("%s: detections not saved: %v", name, err)
		}
	}
	if !cfg.Output.WriteOverlay {
		return
	}

	suffix := cfg.Output.Suffix
	if res.Stage == fallback.StageZoomed {
		suffix = cfg.Output.ZoomedSuffix
	}
	format := strings.ToLower(cfg.Output.DefaultFormat)
	path := utils.GenerateOutputFilename(name, cfg.Output.OutputDir, "", suffix, format)
	reader.RecordOverlay(res, path, types.OutputOptions{Format: format, Quality: cfg.Output.Quality})
}

func report(preds *evaluation.Predictions, truthPath string) {
	gt, err := evaluation.LoadGroundTruth(truthPath)
	if err != nil {
		log.Printf("ground truth not loaded: %v", err)
		return
	}

	r := evaluation.Evaluate(preds, gt)
	for _, img := range r.Images {
		if img.Compared {
			log.Printf("%s: predicted %s, truth %s, deviation %ds", img.Name, img.Predicted, img.Truth, img.Deviation)
		}
	}
	fmt.Printf("compared=%d exact=%d mean_deviation=%.2fs max_deviation=%ds\n",
		r.Compared, r.Exact, r.MeanDeviation, r.MaxDeviation)
}

func missingOf(err error) []string {
	var failed *fallback.DetectionFailedError
	if errors.As(err, &failed) {
		return failed.Missing
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
