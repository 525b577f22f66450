package animation

// Engine drives exactly one LED (one Controller) through exactly one
// Descriptor at a time. It owns no goroutines and no timers: the caller is
// responsible for invoking Update on every tick of its own clock. Update is
// idempotent within a tick — calling it twice with the same tick value is a
// no-op the second time.
type Engine struct {
	ctrl     *Controller
	callback Callback
	curve    Curve
	// quadraticInterp selects the fixed-point quadratic Interpolate path
	// (true, the default) over the linear one, for both ColorCycle
	// transitions and the transition manager's cross-fades. Chosen via
	// SetLinearInterpolation, like the fade curve is chosen at
	// construction.
	quadraticInterp bool

	descriptor Descriptor
	kind       Kind
	running    bool

	// needsCycleStart is set by Start and consumed by the first Update
	// call afterwards, which rebases startTick to its own tick and
	// re-reads the descriptor's repeat count, so tick 0 carries no
	// special meaning.
	needsCycleStart bool
	startTick       uint32 // tick the current cycle began

	repeatRemaining int32 // -1 = infinite

	currentColor Color

	hasLastTick bool
	lastTick    uint32
}

// NewEngine builds an Engine bound to ctrl. A nil controller or sink is a
// null-pointer error, an unknown channel layout an invalid-led-type error.
// curve defaults to QuadraticCurve when nil.
func NewEngine(ctrl *Controller, callback Callback, curve Curve) (*Engine, error) {
	if ctrl == nil || ctrl.Sink == nil {
		return nil, errFromStatus(StatusNullPointer)
	}
	if !IsValidLedType(ctrl.LedType) {
		return nil, errFromStatus(StatusInvalidLedType)
	}
	if curve == nil {
		curve = QuadraticCurve{}
	}
	return &Engine{
		ctrl:            ctrl,
		callback:        callback,
		curve:           curve,
		quadraticInterp: true,
		descriptor:      &NoneDescriptor{},
		kind:            KindNone,
	}, nil
}

func (e *Engine) emit(status Status) {
	if e.callback == nil {
		return
	}
	e.callback(Event{Kind: e.kind, Status: status, Descriptor: e.descriptor})
}

// IsRunning reports whether an animation is currently executing.
func (e *Engine) IsRunning() bool { return e.running }

// Kind returns the kind of the currently installed descriptor.
func (e *Engine) Kind() Kind { return e.kind }

// Descriptor returns the currently installed descriptor.
func (e *Engine) Descriptor() Descriptor { return e.descriptor }

// CurrentColor returns the last color actually written to the sink.
func (e *Engine) CurrentColor() Color { return e.currentColor }

// LedType reports the channel layout of the bound Controller.
func (e *Engine) LedType() LedType { return e.ctrl.LedType }

// SetLinearInterpolation switches color blending (ColorCycle boundaries
// and transition cross-fades) from the default quadratic easing to a
// straight linear ramp.
func (e *Engine) SetLinearInterpolation(linear bool) {
	e.quadraticInterp = !linear
}

// QuadraticInterpolation reports whether color blending uses the default
// quadratic easing rather than the linear one. The transition manager
// reads this so its cross-fades blend the same way the engine's own
// ColorCycle does.
func (e *Engine) QuadraticInterpolation() bool { return e.quadraticInterp }

// SetInstantColor writes c to the sink directly, bypassing the installed
// descriptor's own dispatch. The transition manager drives hardware through
// this during an Interpolate transition, while the per-kind Update path is
// suppressed for the tick.
func (e *Engine) SetInstantColor(c Color) error {
	return e.writeColor(c)
}

// SetAnimation installs d without starting it; a subsequent Start call is
// required before Update has any effect. Idempotent.
func (e *Engine) SetAnimation(d Descriptor) error {
	if d == nil {
		return errFromStatus(StatusNullPointer)
	}
	if !IsValidKind(d.Kind()) {
		return errFromStatus(StatusInvalidAnimationType)
	}
	e.descriptor = d
	e.kind = d.Kind()
	e.running = false
	return nil
}

// Per-kind convenience setters; each is a thin SetAnimation wrapper whose
// parameter type pins the descriptor/kind agreement at compile time.
func (e *Engine) SetSolid(d *SolidDescriptor) error     { return e.SetAnimation(d) }
func (e *Engine) SetBlink(d *BlinkDescriptor) error     { return e.SetAnimation(d) }
func (e *Engine) SetFlash(d *FlashDescriptor) error     { return e.SetAnimation(d) }
func (e *Engine) SetBreath(d *BreathDescriptor) error   { return e.SetAnimation(d) }
func (e *Engine) SetFadeIn(d *FadeInDescriptor) error   { return e.SetAnimation(d) }
func (e *Engine) SetFadeOut(d *FadeOutDescriptor) error { return e.SetAnimation(d) }
func (e *Engine) SetPulse(d *PulseDescriptor) error     { return e.SetAnimation(d) }
func (e *Engine) SetAlternatingColors(d *AlternatingColorsDescriptor) error {
	return e.SetAnimation(d)
}
func (e *Engine) SetColorCycle(d *ColorCycleDescriptor) error { return e.SetAnimation(d) }

// SetOff queues the Off animation without starting it, like any other
// setter.
func (e *Engine) SetOff() error {
	return e.SetAnimation(&OffDescriptor{})
}

// Start begins (or restarts) the currently installed descriptor. It does
// not itself write a color; the first Update call does that, after rebasing
// the cycle to its own tick.
func (e *Engine) Start() error {
	if e.kind == KindNone {
		return errFromStatus(StatusInvalidAnimationType)
	}
	e.running = true
	e.needsCycleStart = true
	e.hasLastTick = false
	e.emit(StatusStarted)
	return nil
}

// Stop halts the current animation and uninstalls its descriptor. If
// leaveLastColor is false the sink is driven to zero; if true, the last
// written color is left on the LED.
func (e *Engine) Stop(leaveLastColor bool) error {
	e.emit(StatusStopped)
	var err error
	if !leaveLastColor {
		err = e.clearColor()
	}
	e.running = false
	e.kind = KindNone
	e.descriptor = &NoneDescriptor{}
	return err
}

// clearColor disables the PWM peripheral and drives every channel to zero
// through the regular color-setting path (which re-enables the peripheral
// before writing). It fires no event; Stop and the completion paths own
// their own signalling.
func (e *Engine) clearColor() error {
	if err := e.ctrl.Sink.Stop(); err != nil {
		return err
	}
	return e.writeColor(Color{})
}

// writeColor pushes a brightness-domain Color to the sink, converting each
// channel to a duty cycle against ctrl.MaxDutyCycle. It aborts on the first
// sink error, leaving later channels unwritten.
func (e *Engine) writeColor(c Color) error {
	if err := e.ctrl.Sink.Start(); err != nil {
		return err
	}
	n := e.ctrl.channelCount()
	for i := 0; i < n; i++ {
		duty := BrightnessToDuty(c[i], e.ctrl.MaxDutyCycle)
		if err := e.ctrl.Sink.SetDutyCycle(i, duty); err != nil {
			return err
		}
	}
	e.currentColor = c
	return nil
}

// writeDuty pushes pre-computed duty values directly, used by the curve
// based animations (Breath/FadeIn/FadeOut/Pulse) whose Curve already
// operates in the duty domain. currentColor is back-derived via
// DutyToBrightness for read-back.
func (e *Engine) writeDuty(duties [MaxChannels]uint16) error {
	if err := e.ctrl.Sink.Start(); err != nil {
		return err
	}
	n := e.ctrl.channelCount()
	var out Color
	for i := 0; i < n; i++ {
		if err := e.ctrl.Sink.SetDutyCycle(i, duties[i]); err != nil {
			return err
		}
		out[i] = DutyToBrightness(duties[i], e.ctrl.MaxDutyCycle)
	}
	e.currentColor = out
	return nil
}

// repeatLogic advances the repeat counter at a cycle boundary, returning
// true if another cycle should run. A remaining count of 0 means the
// animation was already complete when the boundary was reached.
func (e *Engine) repeatLogic() bool {
	if e.repeatRemaining == 0 {
		return false
	}
	if e.repeatRemaining != -1 {
		e.repeatRemaining--
	}
	return e.repeatRemaining != 0
}

// complete finalises the animation: running is cleared, Completed fired,
// the output optionally driven to zero, and the descriptor uninstalled so
// later Start calls cannot silently replay a finished animation.
func (e *Engine) complete(clear bool) error {
	e.running = false
	e.emit(StatusCompleted)
	var err error
	if clear {
		err = e.clearColor()
	}
	e.kind = KindNone
	e.descriptor = &NoneDescriptor{}
	return err
}

// failUpdate halts the engine on an internal error mid-update: the callback
// is told, output stops, and the descriptor is uninstalled so the caller has
// to restart deliberately.
func (e *Engine) failUpdate(s Status) error {
	e.running = false
	e.emit(s)
	e.kind = KindNone
	e.descriptor = &NoneDescriptor{}
	return errFromStatus(s)
}

// finishCycleOrRebase is the shared cycle-boundary handler: it rebases
// startTick for another pass, or completes when repeats are exhausted.
// clearOnStop selects whether completion drives the LED to zero (FadeOut,
// non-inverted Breath, ColorCycle without leaveLastColor) or leaves the
// last output standing.
func (e *Engine) finishCycleOrRebase(tick uint32, clearOnStop bool) error {
	e.startTick = tick
	if e.repeatLogic() {
		return nil
	}
	return e.complete(clearOnStop)
}

// Update advances the engine by one tick of the caller's clock. It is the
// single entry point driving every animation kind; duplicate calls with the
// same tick value are ignored.
func (e *Engine) Update(tick uint32) error {
	if !e.running {
		return nil
	}
	if e.hasLastTick && tick == e.lastTick {
		return nil
	}
	e.hasLastTick = true
	e.lastTick = tick

	if e.needsCycleStart {
		e.needsCycleStart = false
		e.startTick = tick
		e.repeatRemaining = repeatCountOf(e.descriptor)
	}

	// A descriptor whose repeat count was already 0 is complete before its
	// first cycle even starts.
	if e.repeatRemaining == 0 {
		return e.complete(true)
	}

	var elapsed uint32
	if tick >= e.startTick {
		elapsed = tick - e.startTick
	}

	switch d := e.descriptor.(type) {
	case *OffDescriptor:
		return e.updateOff()
	case *SolidDescriptor:
		return e.updateSolid(d, elapsed)
	case *BlinkDescriptor:
		return e.updateBlink(d, tick, elapsed)
	case *FlashDescriptor:
		return e.updateFlash(d, tick, elapsed)
	case *FadeInDescriptor:
		return e.updateFade(d.Color, d.DurationMs, true, tick, elapsed)
	case *FadeOutDescriptor:
		return e.updateFade(d.Color, d.DurationMs, false, tick, elapsed)
	case *BreathDescriptor:
		return e.updateBreath(d, tick, elapsed)
	case *PulseDescriptor:
		return e.updatePulse(d, tick, elapsed)
	case *AlternatingColorsDescriptor:
		return e.updateAlternatingColors(d, elapsed)
	case *ColorCycleDescriptor:
		return e.updateColorCycle(d, tick, elapsed)
	default:
		return e.failUpdate(StatusInvalidAnimationType)
	}
}

func (e *Engine) updateOff() error {
	if e.currentColor != (Color{}) {
		return e.writeColor(Color{})
	}
	return nil
}

func (e *Engine) updateSolid(d *SolidDescriptor, elapsed uint32) error {
	if e.currentColor != d.Color {
		if err := e.writeColor(d.Color); err != nil {
			return err
		}
	}
	if d.ExecutionMs > 0 && elapsed >= d.ExecutionMs {
		return e.complete(true)
	}
	return nil
}

func (e *Engine) updateBlink(d *BlinkDescriptor, tick, elapsed uint32) error {
	// periodMs == 0 needs no special case: elapsed >= periodMs is trivially
	// true at elapsed == 0, so the cycle completes on the very first Update
	// without ever lighting the LED.
	if elapsed >= d.PeriodMs {
		return e.finishCycleOrRebase(tick, false)
	}
	var target Color
	if elapsed < d.PeriodMs/2 {
		target = d.Color
	}
	if e.currentColor != target {
		return e.writeColor(target)
	}
	return nil
}

func (e *Engine) updateFlash(d *FlashDescriptor, tick, elapsed uint32) error {
	if elapsed >= d.OnMs+d.OffMs {
		return e.finishCycleOrRebase(tick, false)
	}
	var target Color
	if elapsed < d.OnMs {
		target = d.Color
	}
	if e.currentColor != target {
		return e.writeColor(target)
	}
	return nil
}

func (e *Engine) updateFade(color Color, duration uint32, fadeIn bool, tick, elapsed uint32) error {
	var duties [MaxChannels]uint16
	n := e.ctrl.channelCount()
	for i := 0; i < n; i++ {
		peak := BrightnessToDuty(color[i], e.ctrl.MaxDutyCycle)
		duties[i] = e.curve.Fade(elapsed, duration, peak, fadeIn)
	}
	if err := e.writeDuty(duties); err != nil {
		return err
	}
	if elapsed >= duration {
		// A finished fade-in stays at peak; a finished fade-out is already
		// dark and is cleared for good measure.
		return e.finishCycleOrRebase(tick, !fadeIn)
	}
	return nil
}

func (e *Engine) updateBreath(d *BreathDescriptor, tick, elapsed uint32) error {
	cycle := d.RiseMs + d.FallMs
	if cycle == 0 {
		return e.finishCycleOrRebase(tick, !d.Invert)
	}
	t := elapsed % cycle

	var duties [MaxChannels]uint16
	n := e.ctrl.channelCount()
	for i := 0; i < n; i++ {
		peak := BrightnessToDuty(d.Color[i], e.ctrl.MaxDutyCycle)
		if t < d.RiseMs {
			duties[i] = e.curve.Fade(t, d.RiseMs, peak, !d.Invert)
		} else {
			duties[i] = e.curve.Fade(t-d.RiseMs, d.FallMs, peak, d.Invert)
		}
	}
	if err := e.writeDuty(duties); err != nil {
		return err
	}

	if elapsed >= cycle {
		// An inverted breath ends at peak brightness, so completion leaves
		// the LED lit rather than clearing it.
		return e.finishCycleOrRebase(tick, !d.Invert)
	}
	return nil
}

func (e *Engine) updatePulse(d *PulseDescriptor, tick, elapsed uint32) error {
	cycle := d.RiseMs + d.HoldOnMs + d.FallMs + d.HoldOffMs
	if cycle == 0 {
		return e.finishCycleOrRebase(tick, false)
	}
	t := elapsed % cycle

	var duties [MaxChannels]uint16
	n := e.ctrl.channelCount()
	for i := 0; i < n; i++ {
		peak := BrightnessToDuty(d.Color[i], e.ctrl.MaxDutyCycle)
		switch {
		case t < d.RiseMs:
			duties[i] = e.curve.Fade(t, d.RiseMs, peak, true)
		case t < d.RiseMs+d.HoldOnMs:
			duties[i] = peak
		case t < d.RiseMs+d.HoldOnMs+d.FallMs:
			duties[i] = e.curve.Fade(t-d.RiseMs-d.HoldOnMs, d.FallMs, peak, false)
		default:
			duties[i] = 0
		}
	}
	if err := e.writeDuty(duties); err != nil {
		return err
	}

	if elapsed >= cycle {
		return e.finishCycleOrRebase(tick, false)
	}
	return nil
}

// updateAlternatingColors is driven off the absolute elapsed time since
// Start rather than the per-cycle rebase the other repeating kinds use:
// the repeat budget is total elapsed time, repeatCount full passes over
// the color list.
func (e *Engine) updateAlternatingColors(d *AlternatingColorsDescriptor, elapsed uint32) error {
	n := len(d.Colors)
	if n == 0 || d.DurationMs == 0 {
		return e.failUpdate(StatusInvalidArgument)
	}
	cycle := d.DurationMs * uint32(n)

	target := d.Colors[(elapsed%cycle)/d.DurationMs]
	if e.currentColor != target {
		if err := e.writeColor(target); err != nil {
			return err
		}
	}

	if d.RepeatCount != -1 && elapsed >= cycle*uint32(d.RepeatCount) {
		return e.complete(true)
	}
	return nil
}

func (e *Engine) updateColorCycle(d *ColorCycleDescriptor, tick, elapsed uint32) error {
	n := len(d.Colors)
	if n == 0 {
		return e.failUpdate(StatusInvalidArgument)
	}
	cycle := d.TransitionMs + d.HoldMs
	if cycle == 0 {
		return e.failUpdate(StatusInvalidArgument)
	}

	// On the final pass the trailing transition back to colors[0] is
	// suppressed: the pass ends holding the last color.
	total := cycle * uint32(n)
	if e.repeatRemaining != -1 && e.repeatRemaining <= 1 {
		total -= d.TransitionMs
	}

	t := elapsed % cycle
	idx := int((elapsed / cycle) % uint32(n))

	var target Color
	if t < d.HoldMs {
		target = d.Colors[idx]
	} else {
		next := d.Colors[(idx+1)%n]
		target = Interpolate(t-d.HoldMs, d.TransitionMs, d.Colors[idx], next, e.ctrl.channelCount(), e.quadraticInterp)
	}
	if e.currentColor != target {
		if err := e.writeColor(target); err != nil {
			return err
		}
	}

	if elapsed >= total {
		return e.finishCycleOrRebase(tick, !d.LeaveLastColor)
	}
	return nil
}
