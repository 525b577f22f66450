package animation

import "math"

// Curve maps (elapsed, duration, peak, direction) to a duty cycle for a
// fade. fadeIn selects the rising (0 -> peak) vs falling (peak -> 0)
// branch; Breath and Pulse reuse the same curve for both halves of their
// cycle by flipping fadeIn.
//
// The curve is chosen once, at Engine construction. QuadraticCurve is the
// default and the only one that is integer-only; the rest trade a few
// float operations for a different perceptual shape.
type Curve interface {
	Fade(elapsed, duration uint32, peak uint16, fadeIn bool) uint16
}

// QuadraticCurve is the realtime-safe integer default: duty = n^2/peak
// rising, (peak-n)^2/peak falling, where n = elapsed*peak/duration
// saturated to peak.
type QuadraticCurve struct{}

func (QuadraticCurve) Fade(elapsed, duration uint32, peak uint16, fadeIn bool) uint16 {
	if peak == 0 {
		return 0
	}
	if duration == 0 {
		if fadeIn {
			return peak
		}
		return 0
	}
	n := uint64(elapsed) * uint64(peak) / uint64(duration)
	if n > uint64(peak) {
		n = uint64(peak)
	}
	if fadeIn {
		return uint16(n * n / uint64(peak))
	}
	d := uint64(peak) - n
	return uint16(d * d / uint64(peak))
}

// progress returns elapsed/duration clamped to [0,1], or 1 if duration==0.
func progress(elapsed, duration uint32) float64 {
	if duration == 0 {
		return 1
	}
	t := float64(elapsed) / float64(duration)
	if t > 1 {
		t = 1
	}
	return t
}

// ExponentialCurve gives a steeper, more "torch-like" ramp than quadratic.
type ExponentialCurve struct{}

const expSteepness = 5.0

func (ExponentialCurve) Fade(elapsed, duration uint32, peak uint16, fadeIn bool) uint16 {
	if peak == 0 {
		return 0
	}
	t := progress(elapsed, duration)
	norm := 1 - math.Exp(-expSteepness)
	factor := (1 - math.Exp(-expSteepness*t)) / norm
	if !fadeIn {
		factor = 1 - factor
	}
	return scalePeak(factor, peak)
}

// SineCurve eases in/out along a quarter sine wave.
type SineCurve struct{}

func (SineCurve) Fade(elapsed, duration uint32, peak uint16, fadeIn bool) uint16 {
	if peak == 0 {
		return 0
	}
	t := progress(elapsed, duration)
	var factor float64
	if fadeIn {
		factor = math.Sin(t * math.Pi / 2)
	} else {
		factor = math.Cos(t * math.Pi / 2)
	}
	return scalePeak(factor, peak)
}

// SineApproxCurve is a cheap polynomial stand-in for SineCurve (Bhaskara I
// approximation of sin(x) for x in [0, pi]), for platforms where the real
// trig call is too slow but a float multiply/divide is affordable.
type SineApproxCurve struct{}

func bhaskaraSin(xDeg float64) float64 {
	// sin(x) ~= 4x(180-x) / (40500 - x(180-x)), x in degrees, x in [0,180].
	k := xDeg * (180 - xDeg)
	return 4 * k / (40500 - k)
}

func (SineApproxCurve) Fade(elapsed, duration uint32, peak uint16, fadeIn bool) uint16 {
	if peak == 0 {
		return 0
	}
	t := progress(elapsed, duration)
	if !fadeIn {
		// cos(t*pi/2) == sin((1-t)*pi/2), mirroring SineCurve's falling branch.
		t = 1 - t
	}
	return scalePeak(bhaskaraSin(t*90), peak)
}

func scalePeak(factor float64, peak uint16) uint16 {
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	return uint16(factor*float64(peak) + 0.5)
}

// Interpolate blends from towards to over channelCount channels using a
// monotone easing function of elapsed/duration. It is a pure function of
// its arguments, shared verbatim by the ColorCycle animation and the
// Interpolate transition strategy. Fixed-point arithmetic (scaled by 1000)
// keeps the default quadratic path float-free.
func Interpolate(elapsed, duration uint32, from, to Color, channelCount int, quadratic bool) Color {
	out := from

	if duration == 0 || elapsed >= duration {
		copy(out[:channelCount], to[:channelCount])
		return out
	}
	if elapsed == 0 {
		return out
	}

	tScaled := uint64(elapsed) * 1000 / uint64(duration)
	if tScaled > 1000 {
		tScaled = 1000
	}
	if quadratic {
		tScaled = tScaled * tScaled / 1000
	}

	for i := 0; i < channelCount; i++ {
		diff := int64(to[i]) - int64(from[i])
		out[i] = clampByte(int64(from[i]) + roundedScale(diff, tScaled))
	}
	return out
}

// roundedScale computes round(diff * tScaled / 1000) with correct rounding
// for negative diff.
func roundedScale(diff int64, tScaled uint64) int64 {
	num := diff * int64(tScaled)
	if num >= 0 {
		return (num + 500) / 1000
	}
	return -((-num + 500) / 1000)
}

func clampByte(v int64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
