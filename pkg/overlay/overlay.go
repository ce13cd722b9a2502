// Package overlay draws a resolved clock onto its image for inspection.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/pinthoz/analogic-watch-detector/pkg/clock"
	"github.com/pinthoz/analogic-watch-detector/pkg/processing"
	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// Style holds colors (as hex strings) and stroke widths
type Style struct {
	Center    string `json:"center"`
	Twelve    string `json:"twelve"`
	Hours     string `json:"hours"`
	Minutes   string `json:"minutes"`
	Seconds   string `json:"seconds"`
	Reference string `json:"reference"`
	Text      string `json:"text"`

	HoursWidth     int `json:"hours_width"`
	MinutesWidth   int `json:"minutes_width"`
	SecondsWidth   int `json:"seconds_width"`
	ReferenceWidth int `json:"reference_width"`
	DotRadius      int `json:"dot_radius"`
	TextScale      int `json:"text_scale"`
}

// DefaultStyle returns the standard palette: red pivot and hour hand, blue 12
// mark and minute hand, orange second hand, green reference line
func DefaultStyle() Style {
	return Style{
		Center:         "#ff0000",
		Twelve:         "#0000ff",
		Hours:          "#ff0000",
		Minutes:        "#0000ff",
		Seconds:        "#ffa500",
		Reference:      "#00ff00",
		Text:           "#000000",
		HoursWidth:     5,
		MinutesWidth:   4,
		SecondsWidth:   2,
		ReferenceWidth: 1,
		DotRadius:      3,
		TextScale:      2,
	}
}

type palette struct {
	center, twelve, hours, minutes, seconds, reference, text color.NRGBA
}

// Renderer draws resolutions onto images
type Renderer struct {
	style     Style
	colors    palette
	processor *processing.Processor
}

// New creates a renderer, failing on malformed colors
func New(style Style) (*Renderer, error) {
	var p palette
	fields := []struct {
		name string
		hex  string
		dst  *color.NRGBA
	}{
		{"center", style.Center, &p.center},
		{"twelve", style.Twelve, &p.twelve},
		{"hours", style.Hours, &p.hours},
		{"minutes", style.Minutes, &p.minutes},
		{"seconds", style.Seconds, &p.seconds},
		{"reference", style.Reference, &p.reference},
		{"text", style.Text, &p.text},
	}
	for _, f := range fields {
		c, err := ParseColor(f.hex)
		if err != nil {
			return nil, fmt.Errorf("overlay %s color: %w", f.name, err)
		}
		*f.dst = c
	}

	if style.TextScale < 1 {
		style.TextScale = 1
	}
	return &Renderer{style: style, colors: p, processor: processing.NewProcessor()}, nil
}

// ParseColor parses a #rrggbb color
func ParseColor(hex string) (color.NRGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// Render returns a copy of img with the pivot, 12 mark, hands, reference
// line and angle text drawn on it. res points must be in img's frame.
func (r *Renderer) Render(img image.Image, res *clock.Resolution) *image.NRGBA {
	dst := imaging.Clone(img)
	if res == nil {
		return dst
	}
	// imaging.Clone rebases to (0,0)
	off := img.Bounds().Min
	pt := func(p types.Point) types.Point {
		return types.Point{X: p.X - float64(off.X), Y: p.Y - float64(off.Y)}
	}

	center := pt(res.Center)
	drawDot(dst, pt(res.Twelve), r.style.DotRadius, r.colors.twelve)

	drawLine(dst, center, pt(res.Hour), r.style.HoursWidth, r.colors.hours)
	if res.Minute != nil {
		drawLine(dst, center, pt(*res.Minute), r.style.MinutesWidth, r.colors.minutes)
	}
	if res.Second != nil {
		drawLine(dst, center, pt(*res.Second), r.style.SecondsWidth, r.colors.seconds)
	}
	drawLine(dst, center, pt(res.Twelve), r.style.ReferenceWidth, r.colors.reference)
	drawDot(dst, center, r.style.DotRadius, r.colors.center)

	for i, line := range clock.AngleLines(res) {
		r.drawText(dst, 10, 30*(i+1), line)
	}
	return dst
}

// Save renders res onto img and writes it to path
func (r *Renderer) Save(img image.Image, res *clock.Resolution, path string, opts types.OutputOptions) error {
	out := r.Render(img, res)
	if err := r.processor.SaveImage(out, path, opts.Format, opts.Quality, opts.Lossless); err != nil {
		return fmt.Errorf("failed to save overlay: %w", err)
	}
	return nil
}

// drawText writes s with its baseline at (x, y), scaled by TextScale
func (r *Renderer) drawText(dst *image.NRGBA, x, y int, s string) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil()
	h := face.Metrics().Height.Ceil()
	ascent := face.Metrics().Ascent.Ceil()

	label := image.NewNRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  label,
		Src:  image.NewUniform(r.colors.text),
		Face: face,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(s)

	scale := r.style.TextScale
	var scaled image.Image = label
	if scale > 1 {
		scaled = imaging.Resize(label, w*scale, h*scale, imaging.NearestNeighbor)
	}
	top := y - ascent*scale
	rect := image.Rect(x, top, x+w*scale, top+h*scale)
	draw.Draw(dst, rect, scaled, image.Point{}, draw.Over)
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if !(image.Point{X: x, Y: y}.In(img.Rect)) {
		return
	}
	i := img.PixOffset(x, y)
	img.Pix[i+0] = c.R
	img.Pix[i+1] = c.G
	img.Pix[i+2] = c.B
	img.Pix[i+3] = c.A
}

func drawDot(img *image.NRGBA, p types.Point, radius int, c color.NRGBA) {
	cx, cy := int(math.Round(p.X)), int(math.Round(p.Y))
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				setPixel(img, cx+dx, cy+dy, c)
			}
		}
	}
}

// drawLine walks a Bresenham line, stamping a dot of the stroke width
func drawLine(img *image.NRGBA, a, b types.Point, width int, c color.NRGBA) {
	x0, y0 := int(math.Round(a.X)), int(math.Round(a.Y))
	x1, y1 := int(math.Round(b.X)), int(math.Round(b.Y))
	radius := (width - 1) / 2
	if width%2 == 0 {
		radius = width / 2
	}

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy

	for {
		if radius == 0 {
			setPixel(img, x0, y0, c)
		} else {
			drawDot(img, types.Point{X: float64(x0), Y: float64(y0)}, radius, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
