// Command ledsim renders an animation.Engine's output to the terminal via
// a pwmsink.Simulated, so curves and transitions can be eyeballed without
// any real hardware.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bdcabreran/ledanimator/animation"
	"github.com/bdcabreran/ledanimator/pwmsink"
	"github.com/bdcabreran/ledanimator/transition"
)

func main() {
	kind := flag.String("kind", "breath", "animation kind to preview: solid|blink|flash|breath|fade_in|fade_out|pulse|alternating_colors|color_cycle")
	curveName := flag.String("curve", "quadratic", "curve: quadratic|exponential|sine|sine_approx")
	interpolation := flag.String("interpolation", "quadratic", "color-blend easing: quadratic|linear")
	tickMs := flag.Duration("tick", 20*time.Millisecond, "simulated tick interval")
	flag.Parse()

	logger := log.New(os.Stderr, "ledsim: ", log.LstdFlags)

	sink := pwmsink.NewSimulated()
	ctrl := &animation.Controller{Sink: sink, LedType: animation.LedTypeRGB, MaxDutyCycle: 1000}

	callback := func(ev animation.Event) {
		if ev.Status == animation.StatusCompleted {
			logger.Printf("%s completed", ev.Kind)
		}
	}

	engine, err := animation.NewEngine(ctrl, callback, parseCurve(*curveName))
	if err != nil {
		logger.Fatal(err)
	}
	engine.SetLinearInterpolation(*interpolation == "linear")
	manager := transition.NewManager(engine, callback)

	descriptor, err := buildDemoDescriptor(*kind)
	if err != nil {
		logger.Fatal(err)
	}

	_ = engine.SetOff()
	_ = engine.Start()

	sink.OnChange = func(duty [4]uint16) {
		fmt.Printf("\r%s", renderBar(duty))
	}

	if err := manager.Execute(descriptor, transition.Interpolate, 300); err != nil {
		logger.Fatal(err)
	}

	var tick uint32
	ticker := time.NewTicker(*tickMs)
	defer ticker.Stop()
	for range ticker.C {
		if err := manager.Update(tick); err != nil {
			logger.Fatal(err)
		}
		tick += uint32(tickMs.Milliseconds())
	}
}

func parseCurve(name string) animation.Curve {
	switch name {
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

func buildDemoDescriptor(kind string) (animation.Descriptor, error) {
	red := animation.Color{255, 0, 0}
	switch kind {
	case "solid":
		return &animation.SolidDescriptor{Color: red}, nil
	case "blink":
		return &animation.BlinkDescriptor{Color: red, PeriodMs: 500, RepeatCount: -1}, nil
	case "flash":
		return &animation.FlashDescriptor{Color: red, OnMs: 100, OffMs: 400, RepeatCount: -1}, nil
	case "breath":
		return &animation.BreathDescriptor{Color: red, RiseMs: 800, FallMs: 800, RepeatCount: -1}, nil
	case "fade_in":
		return &animation.FadeInDescriptor{Color: red, DurationMs: 1000, RepeatCount: -1}, nil
	case "fade_out":
		return &animation.FadeOutDescriptor{Color: red, DurationMs: 1000, RepeatCount: -1}, nil
	case "pulse":
		return &animation.PulseDescriptor{Color: red, RiseMs: 200, HoldOnMs: 300, FallMs: 200, HoldOffMs: 300, RepeatCount: -1}, nil
	case "alternating_colors":
		return &animation.AlternatingColorsDescriptor{
			Colors: []animation.Color{red, {0, 255, 0}, {0, 0, 255}}, DurationMs: 400, RepeatCount: -1,
		}, nil
	case "color_cycle":
		return &animation.ColorCycleDescriptor{
			Colors:       []animation.Color{red, {0, 255, 0}, {0, 0, 255}},
			TransitionMs: 600, HoldMs: 400, RepeatCount: -1,
		}, nil
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

func renderBar(duty [4]uint16) string {
	var b strings.Builder
	for i, d := range duty[:3] {
		width := int(d) * 40 / 1000
		b.WriteString(fmt.Sprintf("ch%d[%-40s] ", i, strings.Repeat("#", width)))
	}
	return b.String()
}
