package detection

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/pinthoz/analogic-watch-detector/pkg/client"
	"github.com/pinthoz/analogic-watch-detector/pkg/processing"
	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt is the default prompt for clock landmark localization
const DefaultPrompt = `You are an analog clock landmark locator.

Return JSON only:
{
  "landmarks": [
    {"label": "circle", "confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence (≤ 20 words)"
}

LABELS
- "circle": the outer rim of the clock face.
- "center": the pivot where the hands meet.
- "hours": the tip region of the hour hand (the short hand).
- "minutes": the tip region of the minute hand (the long hand).
- "seconds": the tip region of the second hand, if there is one.
- "12": the 12 o'clock numeral or mark.

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- Report each label at most once. Omit labels you cannot see.
- confidence is your certainty in [0,1].
- If no clock is visible, return {"landmarks": [], "description": "no clock"}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// SendOptions controls how images are encoded for the vision model
type SendOptions struct {
	Format  string
	MaxDim  int
	Quality int
}

// DefaultSendOptions returns the standard encoding used for model requests
func DefaultSendOptions() SendOptions {
	return SendOptions{Format: "jpg", MaxDim: 1536, Quality: 85}
}

// LandmarkDetector locates clock landmarks with a vision language model
type LandmarkDetector struct {
	client    client.VisionClient
	processor *processing.Processor
	model     string
	prompt    string
	send      SendOptions
}

// NewLandmarkDetector creates a detector for the given backend and model
func NewLandmarkDetector(c client.VisionClient, model string) *LandmarkDetector {
	return &LandmarkDetector{
		client:    c,
		processor: processing.NewProcessor(),
		model:     model,
		prompt:    DefaultPrompt,
		send:      DefaultSendOptions(),
	}
}

// SetPrompt replaces the localization prompt
func (d *LandmarkDetector) SetPrompt(prompt string) {
	d.prompt = prompt
}

// SetSendOptions changes how images are encoded for the model
func (d *LandmarkDetector) SetSendOptions(opts SendOptions) {
	d.send = opts
}

// Detect implements client.Detector
func (d *LandmarkDetector) Detect(ctx context.Context, img image.Image, confidence float64) ([]types.Detection, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, d.send.Format, d.send.MaxDim, d.send.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	result, err := d.client.LocateLandmarks(ctx, d.model, d.prompt, imgB64)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	dets := ToDetections(result, b.Dx(), b.Dy(), confidence)
	for i := range dets {
		dets[i].Box = dets[i].Box.Translate(float64(b.Min.X), float64(b.Min.Y))
	}
	return dets, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *LandmarkDetector) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, d.send.Format, d.send.MaxDim, d.send.Quality)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.model, SimpleTestPrompt, imgB64)
}

// ToDetections converts normalized model landmarks into pixel detections for
// an imgW x imgH image with its origin at (0,0), dropping unknown labels and
// those under confidence
func ToDetections(result *types.LandmarkResult, imgW, imgH int, confidence float64) []types.Detection {
	if result == nil {
		return nil
	}

	out := make([]types.Detection, 0, len(result.Landmarks))
	for _, lm := range result.Landmarks {
		label := normalizeLabel(lm.Label)
		id := types.ClassID(label)
		if id < 0 {
			continue
		}
		conf := clamp(lm.Confidence, 0, 1)
		if conf < confidence {
			continue
		}
		nb := normalizeBox(lm.Box, imgW, imgH)
		out = append(out, types.Detection{
			ClassName:  label,
			ClassID:    id,
			Confidence: conf,
			Box: types.Box{
				XMin: nb.X * float64(imgW),
				YMin: nb.Y * float64(imgH),
				XMax: (nb.X + nb.W) * float64(imgW),
				YMax: (nb.Y + nb.H) * float64(imgH),
			},
		})
	}
	return out
}

// normalizeLabel maps common model spellings onto the class names
func normalizeLabel(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	switch l {
	case "rim", "dial", "clock", "face":
		return types.ClassCircle
	case "hour", "hour hand", "hour_hand":
		return types.ClassHours
	case "minute", "minute hand", "minute_hand":
		return types.ClassMinutes
	case "second", "second hand", "second_hand":
		return types.ClassSeconds
	case "pivot", "centre":
		return types.ClassCenter
	case "twelve", "xii", "12 mark":
		return types.ClassTwelve
	}
	return l
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox ensures box coordinates are within [0,1] bounds, converting
// from pixels when the model ignored the instructions
func normalizeBox(b types.NormBox, imgW, imgH int) types.NormBox {
	if imgW > 0 && imgH > 0 && (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) {
		b = types.NormBox{
			X: b.X / float64(imgW),
			Y: b.Y / float64(imgH),
			W: b.W / float64(imgW),
			H: b.H / float64(imgH),
		}
	}

	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.NormBox{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}
