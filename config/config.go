// Package config loads the JSON file describing one engine's hardware
// wiring, curve choice, named animation presets, and transition map. A
// missing file is not an error, and only the fields actually present
// overlay the built-in defaults.
package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/bdcabreran/ledanimator/animation"
	"github.com/bdcabreran/ledanimator/transition"
)

// Config is the on-disk shape of config.json.
type Config struct {
	GpioPin      int    `json:"gpioPin"`
	LedType      string `json:"ledType"` // single|dual|rgb|rgy|rgbw
	MaxDutyCycle uint16 `json:"maxDutyCycle"`
	Brightness   int    `json:"brightness"` // 0..255, ws2811 global scaling only

	// Curve selects the Fade strategy: quadratic (default), exponential,
	// sine, sine_approx.
	Curve string `json:"curve"`

	// Interpolation selects the color-blend easing used by ColorCycle and
	// interpolate transitions: quadratic (default) or linear.
	Interpolation string `json:"interpolation"`

	Animations  map[string]AnimationSpec `json:"animations"`
	Transitions []TransitionSpec         `json:"transitions"`
}

// AnimationSpec is the JSON encoding of one named animation.Descriptor.
type AnimationSpec struct {
	Kind string `json:"kind"`

	Color  []uint8   `json:"color,omitempty"`
	Colors [][]uint8 `json:"colors,omitempty"`

	ExecutionMs  uint32 `json:"executionMs,omitempty"`
	PeriodMs     uint32 `json:"periodMs,omitempty"`
	OnMs         uint32 `json:"onMs,omitempty"`
	OffMs        uint32 `json:"offMs,omitempty"`
	RiseMs       uint32 `json:"riseMs,omitempty"`
	FallMs       uint32 `json:"fallMs,omitempty"`
	HoldOnMs     uint32 `json:"holdOnMs,omitempty"`
	HoldOffMs    uint32 `json:"holdOffMs,omitempty"`
	DurationMs   uint32 `json:"durationMs,omitempty"`
	TransitionMs uint32 `json:"transitionMs,omitempty"`
	HoldMs       uint32 `json:"holdMs,omitempty"`

	RepeatCount    int32 `json:"repeatCount,omitempty"`
	Invert         bool  `json:"invert,omitempty"`
	LeaveLastColor bool  `json:"leaveLastColor,omitempty"`
}

// TransitionSpec names a MapEntry by the Animations keys of its start and
// target descriptors.
type TransitionSpec struct {
	Start      string `json:"start"`
	Target     string `json:"target"`
	Type       string `json:"type"` // imminent|interpolate|upon_completion|at_clean_entry
	DurationMs uint16 `json:"durationMs"`
}

// Default returns the built-in configuration used when config.json is
// absent or omits a field.
func Default() Config {
	return Config{
		GpioPin:       18,
		LedType:       "rgb",
		MaxDutyCycle:  1000,
		Brightness:    255,
		Curve:         "quadratic",
		Interpolation: "quadratic",
	}
}

// Load reads path and overlays its present, non-zero fields onto Default();
// a field present with its zero value keeps the default. A missing file is
// not an error; the defaults simply apply.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, nil
	}
	defer f.Close()

	var tmp Config
	if err := json.NewDecoder(f).Decode(&tmp); err != nil {
		return cfg, errors.Wrap(err, "config: parse")
	}

	if tmp.GpioPin != 0 {
		cfg.GpioPin = tmp.GpioPin
	}
	if tmp.LedType != "" {
		cfg.LedType = tmp.LedType
	}
	if tmp.MaxDutyCycle != 0 {
		cfg.MaxDutyCycle = tmp.MaxDutyCycle
	}
	if tmp.Brightness != 0 {
		cfg.Brightness = tmp.Brightness
	}
	if tmp.Curve != "" {
		cfg.Curve = tmp.Curve
	}
	if tmp.Interpolation != "" {
		cfg.Interpolation = tmp.Interpolation
	}
	if tmp.Animations != nil {
		cfg.Animations = tmp.Animations
	}
	if tmp.Transitions != nil {
		cfg.Transitions = tmp.Transitions
	}
	return cfg, nil
}

// ParsedLedType parses cfg.LedType into an animation.LedType, defaulting to
// LedTypeRGB for an empty or unrecognised string.
func (c Config) ParsedLedType() animation.LedType {
	switch c.LedType {
	case "single":
		return animation.LedTypeSingle
	case "dual":
		return animation.LedTypeDual
	case "rgy":
		return animation.LedTypeRGY
	case "rgbw":
		return animation.LedTypeRGBW
	default:
		return animation.LedTypeRGB
	}
}

// LinearInterpolation reports whether cfg.Interpolation selects the linear
// color-blend easing; anything else keeps the quadratic default.
func (c Config) LinearInterpolation() bool {
	return c.Interpolation == "linear"
}

// ParsedCurve builds the animation.Curve named by cfg.Curve, defaulting to
// QuadraticCurve for an empty or unrecognised string.
func (c Config) ParsedCurve() animation.Curve {
	switch c.Curve {
	case "exponential":
		return animation.ExponentialCurve{}
	case "sine":
		return animation.SineCurve{}
	case "sine_approx":
		return animation.SineApproxCurve{}
	default:
		return animation.QuadraticCurve{}
	}
}

func colorFromSlice(v []uint8) animation.Color {
	var c animation.Color
	copy(c[:], v)
	return c
}

// BuildDescriptors instantiates one animation.Descriptor pointer per named
// entry in cfg.Animations. The map's values are the exact pointers later
// installed on the engine and referenced by name from cfg.Transitions —
// identity, not structural equality, is what the transition map matches
// on, so this function must be the single place that constructs them.
func BuildDescriptors(cfg Config) (map[string]animation.Descriptor, error) {
	out := make(map[string]animation.Descriptor, len(cfg.Animations))
	for name, spec := range cfg.Animations {
		d, err := BuildDescriptor(spec)
		if err != nil {
			return nil, errors.Wrapf(err, "config: animation %q", name)
		}
		out[name] = d
	}
	return out, nil
}

// BuildDescriptor instantiates a single descriptor from its JSON spec. The
// returned pointer is fresh on every call, so descriptors built ad hoc
// (e.g. from a wire command) never match transition-map rows — only the
// named descriptors from BuildDescriptors can.
func BuildDescriptor(spec AnimationSpec) (animation.Descriptor, error) {
	color := colorFromSlice(spec.Color)
	colors := make([]animation.Color, len(spec.Colors))
	for i, c := range spec.Colors {
		colors[i] = colorFromSlice(c)
	}

	switch spec.Kind {
	case "off":
		return &animation.OffDescriptor{}, nil
	case "solid":
		return &animation.SolidDescriptor{Color: color, ExecutionMs: spec.ExecutionMs}, nil
	case "blink":
		return &animation.BlinkDescriptor{Color: color, PeriodMs: spec.PeriodMs, RepeatCount: spec.RepeatCount}, nil
	case "flash":
		return &animation.FlashDescriptor{Color: color, OnMs: spec.OnMs, OffMs: spec.OffMs, RepeatCount: spec.RepeatCount}, nil
	case "breath":
		return &animation.BreathDescriptor{Color: color, RiseMs: spec.RiseMs, FallMs: spec.FallMs, RepeatCount: spec.RepeatCount, Invert: spec.Invert}, nil
	case "fade_in":
		return &animation.FadeInDescriptor{Color: color, DurationMs: spec.DurationMs, RepeatCount: spec.RepeatCount}, nil
	case "fade_out":
		return &animation.FadeOutDescriptor{Color: color, DurationMs: spec.DurationMs, RepeatCount: spec.RepeatCount}, nil
	case "pulse":
		return &animation.PulseDescriptor{
			Color: color, RiseMs: spec.RiseMs, HoldOnMs: spec.HoldOnMs, FallMs: spec.FallMs, HoldOffMs: spec.HoldOffMs, RepeatCount: spec.RepeatCount,
		}, nil
	case "alternating_colors":
		return &animation.AlternatingColorsDescriptor{Colors: colors, DurationMs: spec.DurationMs, RepeatCount: spec.RepeatCount}, nil
	case "color_cycle":
		return &animation.ColorCycleDescriptor{
			Colors: colors, TransitionMs: spec.TransitionMs, HoldMs: spec.HoldMs, RepeatCount: spec.RepeatCount, LeaveLastColor: spec.LeaveLastColor,
		}, nil
	default:
		return nil, errors.Errorf("config: unknown animation kind %q", spec.Kind)
	}
}

func parseTransitionType(s string) (transition.Type, error) {
	switch s {
	case "imminent":
		return transition.Imminent, nil
	case "interpolate":
		return transition.Interpolate, nil
	case "upon_completion":
		return transition.UponCompletion, nil
	case "at_clean_entry":
		return transition.AtCleanEntry, nil
	default:
		return transition.TypeInvalid, errors.Errorf("config: unknown transition type %q", s)
	}
}

// ResolveTransitionMap builds the []transition.MapEntry for
// cfg.Transitions, looking up each Start/Target name in descriptors (as
// returned by BuildDescriptors) so the entries carry the same descriptor
// pointers the engine will later be started with.
func ResolveTransitionMap(cfg Config, descriptors map[string]animation.Descriptor) ([]transition.MapEntry, error) {
	entries := make([]transition.MapEntry, 0, len(cfg.Transitions))
	for _, spec := range cfg.Transitions {
		start, ok := descriptors[spec.Start]
		if !ok {
			return nil, errors.Errorf("config: transition references unknown start animation %q", spec.Start)
		}
		target, ok := descriptors[spec.Target]
		if !ok {
			return nil, errors.Errorf("config: transition references unknown target animation %q", spec.Target)
		}
		transitionType, err := parseTransitionType(spec.Type)
		if err != nil {
			return nil, err
		}
		entries = append(entries, transition.MapEntry{
			Start: start, Target: target, Type: transitionType, Duration: spec.DurationMs,
		})
	}
	return entries, nil
}
