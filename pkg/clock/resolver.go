package clock

import (
	"math"

	"github.com/pinthoz/analogic-watch-detector/pkg/geometry"
	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// Rounding selects how a hand angle quotient becomes an integer
type Rounding int

const (
	// Floor gives the last passed mark; the hour hand sweeps continuously
	Floor Rounding = iota
	// Nearest rounds half away from zero
	Nearest
)

// floorEpsilon absorbs float error for angles that land exactly on a mark
const floorEpsilon = 1e-9

// HandRule converts a hand angle into a dial value
type HandRule struct {
	Name           string
	DegreesPerUnit float64
	Units          int
	Rounding       Rounding
	// ZeroAs replaces a zero result when non-zero (12 o'clock)
	ZeroAs int
}

// Value maps an angle in [0,360) onto the rule's dial
func (r HandRule) Value(angle float64) int {
	q := angle / r.DegreesPerUnit

	var v int
	switch r.Rounding {
	case Floor:
		v = int(math.Floor(q + floorEpsilon))
	default:
		v = int(math.Round(q))
	}

	v = ((v % r.Units) + r.Units) % r.Units
	if v == 0 && r.ZeroAs != 0 {
		v = r.ZeroAs
	}
	return v
}

var (
	HourRule   = HandRule{Name: types.ClassHours, DegreesPerUnit: 30, Units: 12, Rounding: Floor, ZeroAs: 12}
	MinuteRule = HandRule{Name: types.ClassMinutes, DegreesPerUnit: 6, Units: 60, Rounding: Nearest}
	SecondRule = HandRule{Name: types.ClassSeconds, DegreesPerUnit: 6, Units: 60, Rounding: Nearest}
)

// Resolver maps an aggregated frame to a clock reading
type Resolver struct {
	Hours   HandRule
	Minutes HandRule
	Seconds HandRule
}

// DefaultResolver returns a resolver with the floor-hours, round-minutes rules
func DefaultResolver() *Resolver {
	return &Resolver{Hours: HourRule, Minutes: MinuteRule, Seconds: SecondRule}
}

// Resolution is a reading plus the geometry it was derived from.
// All points share the coordinate frame of the detections.
type Resolution struct {
	Reading types.ClockReading `json:"reading"`

	Center           types.Point  `json:"center"`
	CenterFromCircle bool         `json:"center_from_circle"`
	Twelve           types.Point  `json:"twelve"`
	Hour             types.Point  `json:"hour"`
	Minute           *types.Point `json:"minute,omitempty"`
	Second           *types.Point `json:"second,omitempty"`

	HourAngle   float64  `json:"hour_angle"`
	MinuteAngle *float64 `json:"minute_angle,omitempty"`
	SecondAngle *float64 `json:"second_angle,omitempty"`

	Frame Frame `json:"-"`
}

// Resolve computes the reading for a frame. It fails with a
// *MissingLandmarkError when circle, hours or 12 are absent or unusable.
func (r *Resolver) Resolve(f Frame) (*Resolution, error) {
	var missing []string
	for _, c := range []string{types.ClassCircle, types.ClassHours, types.ClassTwelve} {
		if !f.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingLandmarkError{Classes: missing}
	}

	res := &Resolution{Frame: f}

	if d, ok := f.Get(types.ClassCenter); ok {
		res.Center = geometry.BoxCenter(d.Box)
	} else {
		d, _ := f.Get(types.ClassCircle)
		res.Center = geometry.BoxCenter(d.Box)
		res.CenterFromCircle = true
	}

	twelve, _ := f.Get(types.ClassTwelve)
	hours, _ := f.Get(types.ClassHours)
	res.Twelve = geometry.BoxCenter(twelve.Box)
	res.Hour = geometry.BoxCenter(hours.Box)

	hourAngle, ok := geometry.AngleRelativeTo(res.Center, res.Hour, res.Twelve)
	if !ok {
		if res.Hour == res.Center {
			missing = append(missing, types.ClassHours)
		}
		if res.Twelve == res.Center {
			missing = append(missing, types.ClassTwelve)
		}
		return nil, &MissingLandmarkError{Classes: missing}
	}
	res.HourAngle = hourAngle
	res.Reading.Hours = r.Hours.Value(hourAngle)

	if p, angle, ok := r.optionalHand(f, types.ClassMinutes, res); ok {
		res.Minute, res.MinuteAngle = &p, &angle
		res.Reading.Minutes = types.IntPtr(r.Minutes.Value(angle))
	}
	if p, angle, ok := r.optionalHand(f, types.ClassSeconds, res); ok {
		res.Second, res.SecondAngle = &p, &angle
		res.Reading.Seconds = types.IntPtr(r.Seconds.Value(angle))
	}

	return res, nil
}

func (r *Resolver) optionalHand(f Frame, class string, res *Resolution) (types.Point, float64, bool) {
	d, ok := f.Get(class)
	if !ok {
		return types.Point{}, 0, false
	}
	p := geometry.BoxCenter(d.Box)
	angle, ok := geometry.AngleRelativeTo(res.Center, p, res.Twelve)
	if !ok {
		return types.Point{}, 0, false
	}
	return p, angle, true
}

// Resolve aggregates dets and resolves them with the default rules
func Resolve(dets []types.Detection) (types.ClockReading, error) {
	res, err := DefaultResolver().Resolve(Aggregate(dets))
	if err != nil {
		return types.ClockReading{}, err
	}
	return res.Reading, nil
}
