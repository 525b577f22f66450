// Package transition arbitrates switching an animation.Engine from
// whatever it is currently running to a newly requested Descriptor without
// a visible glitch, using one of four strategies.
package transition

import "github.com/bdcabreran/ledanimator/animation"

// Type selects how a Manager bridges from the current animation to the
// target one.
type Type int

const (
	TypeInvalid Type = iota
	// Imminent switches immediately, with no blending.
	Imminent
	// Interpolate smoothly blends color over Duration milliseconds,
	// driving the sink directly rather than through the target
	// descriptor's own Update dispatch.
	Interpolate
	// UponCompletion waits for the current animation to finish on its own
	// (or for Duration ms to elapse, whichever first) before switching.
	UponCompletion
	// AtCleanEntry waits for the current animation's output to reach zero
	// (or for Duration ms to elapse) before switching.
	AtCleanEntry
)

func (t Type) String() string {
	switch t {
	case Imminent:
		return "imminent"
	case Interpolate:
		return "interpolate"
	case UponCompletion:
		return "upon_completion"
	case AtCleanEntry:
		return "at_clean_entry"
	default:
		return "invalid"
	}
}

// IsValidType reports whether t is a real, dispatchable transition type.
func IsValidType(t Type) bool { return t > TypeInvalid && t <= AtCleanEntry }

// Default durations, used whenever a MapEntry or an explicit Execute call
// passes Duration == 0.
const (
	DefaultCleanEntryTimeoutMs     = 2000
	DefaultUponCompletionTimeoutMs = 5000
	DefaultInterpolateMs           = 200
)

// MapEntry pairs a (start, target) descriptor transition with the Type and
// Duration to use for it. Start and Target are matched by reference
// identity (Go interface equality over a pointer), not by structural
// equality: the same *BlinkDescriptor value installed earlier must be
// passed again to match. Explicit map rows win over defaults; an exact
// match is required.
type MapEntry struct {
	Start    animation.Descriptor
	Target   animation.Descriptor
	Type     Type
	Duration uint16
}

// state is the manager's own 4-state machine, independent of the engine's
// running/stopped state.
type state int

const (
	stateIdle state = iota
	stateSetup
	stateOngoing
	stateCompleted
)

// Manager arbitrates transitions for exactly one animation.Engine.
type Manager struct {
	engine   *animation.Engine
	callback animation.Callback

	transitionMap []MapEntry

	state            state
	targetDescriptor animation.Descriptor
	transitionType   Type
	duration         uint32
	lastTick         uint32

	currentColor animation.Color
	targetColor  animation.Color

	// pending* carry an in-flight Execute/ExecuteWithMap request from the
	// call that requested it through to the Setup state, which actually
	// resolves the strategy on the next Update.
	pendingUseMap   bool
	pendingType     Type
	pendingDuration uint16
}

// NewManager builds a Manager driving engine. callback receives
// TransitionStarted/TransitionCompleted events; it may be nil.
func NewManager(engine *animation.Engine, callback animation.Callback) *Manager {
	return &Manager{engine: engine, callback: callback, state: stateIdle}
}

// SetMapping installs the transition map consulted by ExecuteWithMap.
func (m *Manager) SetMapping(entries []MapEntry) error {
	if len(entries) == 0 {
		return statusErr(animation.StatusNullPointer)
	}
	m.transitionMap = entries
	return nil
}

// IsBusy reports whether a transition is in progress.
func (m *Manager) IsBusy() bool { return m.state != stateIdle }

// IsLEDOff reports whether the engine's last written color was all zero.
func (m *Manager) IsLEDOff() bool {
	return m.engine.CurrentColor() == animation.Color{}
}

// Stop forces the manager back to idle, abandoning any in-flight
// transition. It does not touch the engine's own running state.
func (m *Manager) Stop() bool {
	m.state = stateIdle
	m.targetDescriptor = nil
	m.transitionType = TypeInvalid
	return true
}

// ExecuteWithMap requests a transition to target, resolving the strategy
// and duration to use from the installed transition map (falling back to
// Interpolate/DefaultInterpolateMs when no entry matches). It fails with
// StatusBusy if a transition is already in progress.
func (m *Manager) ExecuteWithMap(target animation.Descriptor) error {
	return m.execute(target, TypeInvalid, 0, true)
}

// Execute requests a transition to target using an explicit strategy and
// duration, bypassing the transition map entirely.
func (m *Manager) Execute(target animation.Descriptor, transitionType Type, duration uint16) error {
	return m.execute(target, transitionType, duration, false)
}

func (m *Manager) execute(target animation.Descriptor, explicitType Type, explicitDuration uint16, useMap bool) error {
	if target == nil {
		return statusErr(animation.StatusNullPointer)
	}
	if m.state != stateIdle {
		return statusErr(animation.StatusBusy)
	}
	// Short-circuit: switching to Off while the LED is already off is a
	// no-op worth reporting, not a transition worth running.
	if target.Kind() == animation.KindOff && m.IsLEDOff() {
		m.targetDescriptor = target
		m.emit(animation.StatusTransitionSkipped)
		m.targetDescriptor = nil
		return nil
	}
	m.targetDescriptor = target
	m.pendingUseMap = useMap
	m.pendingType = explicitType
	m.pendingDuration = explicitDuration
	m.state = stateSetup
	return nil
}

// ToOff requests a transition to the Off animation using strategy/duration.
func (m *Manager) ToOff(strategy Type, duration uint16) error {
	return m.Execute(&animation.OffDescriptor{}, strategy, duration)
}

// ToSolid requests a transition to d using strategy/duration.
func (m *Manager) ToSolid(d *animation.SolidDescriptor, strategy Type, duration uint16) error {
	return m.Execute(d, strategy, duration)
}

// ToBlink requests a transition to d using strategy/duration.
func (m *Manager) ToBlink(d *animation.BlinkDescriptor, strategy Type, duration uint16) error {
	return m.Execute(d, strategy, duration)
}

// ToFlash requests a transition to d using strategy/duration.
func (m *Manager) ToFlash(d *animation.FlashDescriptor, strategy Type, duration uint16) error {
	return m.Execute(d, strategy, duration)
}

// ToBreath requests a transition to d using strategy/duration.
func (m *Manager) ToBreath(d *animation.BreathDescriptor, strategy Type, duration uint16) error {
	return m.Execute(d, strategy, duration)
}

// ToFadeIn requests a transition to d using strategy/duration.
func (m *Manager) ToFadeIn(d *animation.FadeInDescriptor, strategy Type, duration uint16) error {
	return m.Execute(d, strategy, duration)
}

// ToFadeOut requests a transition to d using strategy/duration.
func (m *Manager) ToFadeOut(d *animation.FadeOutDescriptor, strategy Type, duration uint16) error {
	return m.Execute(d, strategy, duration)
}

// ToPulse requests a transition to d using strategy/duration.
func (m *Manager) ToPulse(d *animation.PulseDescriptor, strategy Type, duration uint16) error {
	return m.Execute(d, strategy, duration)
}

// ToAlternatingColors requests a transition to d using strategy/duration.
func (m *Manager) ToAlternatingColors(d *animation.AlternatingColorsDescriptor, strategy Type, duration uint16) error {
	return m.Execute(d, strategy, duration)
}

// ToColorCycle requests a transition to d using strategy/duration.
func (m *Manager) ToColorCycle(d *animation.ColorCycleDescriptor, strategy Type, duration uint16) error {
	return m.Execute(d, strategy, duration)
}

// Update advances the manager by one tick, then — unless an Interpolate
// transition currently owns the PWM output — drives the underlying
// engine's own Update. That tail call is why a Manager with no transition
// pending (state Idle, transitionType Invalid) still animates normally
// every tick, and why the engine never fights the interpolator for the
// sink.
func (m *Manager) Update(tick uint32) error {
	switch m.state {
	case stateIdle:
		// nothing to do
	case stateSetup:
		m.stateSetup(tick)
	case stateOngoing:
		m.stateOngoing(tick)
	case stateCompleted:
		m.stateCompleted()
	}

	if m.transitionType != Interpolate {
		return m.engine.Update(tick)
	}
	return nil
}

func setupDuration(t Type, duration uint16) uint32 {
	switch t {
	case Imminent:
		return 0
	case Interpolate:
		if duration == 0 {
			return DefaultInterpolateMs
		}
		return uint32(duration)
	case UponCompletion:
		if duration == 0 {
			return DefaultUponCompletionTimeoutMs
		}
		return uint32(duration)
	case AtCleanEntry:
		if duration == 0 {
			return DefaultCleanEntryTimeoutMs
		}
		return uint32(duration)
	default:
		return 0
	}
}

func (m *Manager) findMapping() (Type, uint16, bool) {
	current := m.engine.Descriptor()
	for _, entry := range m.transitionMap {
		if entry.Start == current && entry.Target == m.targetDescriptor {
			return entry.Type, entry.Duration, true
		}
	}
	return TypeInvalid, 0, false
}

func (m *Manager) stateSetup(tick uint32) {
	transitionType := m.pendingType
	duration := m.pendingDuration

	if m.pendingUseMap {
		if found, d, ok := m.findMapping(); ok {
			transitionType, duration = found, d
		} else {
			transitionType, duration = Interpolate, DefaultInterpolateMs
		}
	}
	if !IsValidType(transitionType) {
		transitionType, duration = Interpolate, DefaultInterpolateMs
	}

	m.transitionType = transitionType
	m.duration = setupDuration(transitionType, duration)

	m.lastTick = tick

	if m.transitionType == Interpolate {
		m.handleInterpolateSetup()
		// Already showing the color the target starts at: there is nothing
		// to blend, so the transition collapses straight to Completed.
		if colorsEqual(m.currentColor, m.targetColor, animation.ChannelCount(m.engine.LedType())) {
			m.emit(animation.StatusTransitionStarted)
			m.state = stateCompleted
			return
		}
	}

	m.emit(animation.StatusTransitionStarted)
	m.state = stateOngoing
}

func (m *Manager) handleInterpolateSetup() {
	channelCount := animation.ChannelCount(m.engine.LedType())

	m.currentColor = m.engine.CurrentColor()
	m.targetColor = animation.TargetColor(m.targetDescriptor)

	if !animation.ShouldStartHigh(m.targetDescriptor) {
		var zero animation.Color
		copy(m.targetColor[:channelCount], zero[:channelCount])
	}
}

func colorsEqual(a, b animation.Color, channelCount int) bool {
	for i := 0; i < channelCount; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *Manager) stateOngoing(tick uint32) {
	elapsed := tick - m.lastTick

	switch m.transitionType {
	case Imminent:
		m.state = stateCompleted

	case Interpolate:
		if elapsed >= m.duration {
			// Fixed-point blending can land 1 LSB short of the target;
			// force the exact endpoint before handing over to the engine.
			_ = m.engine.SetInstantColor(m.targetColor)
			m.state = stateCompleted
			return
		}
		channelCount := animation.ChannelCount(m.engine.LedType())
		blended := animation.Interpolate(elapsed, m.duration, m.currentColor, m.targetColor, channelCount, m.engine.QuadraticInterpolation())
		_ = m.engine.SetInstantColor(blended)

	case UponCompletion:
		if elapsed > m.duration {
			m.state = stateCompleted
		} else if !m.engine.IsRunning() {
			m.state = stateCompleted
		}

	case AtCleanEntry:
		if m.engine.CurrentColor() == (animation.Color{}) {
			m.state = stateCompleted
		} else if elapsed > m.duration {
			m.state = stateCompleted
		}
	}
}

func (m *Manager) stateCompleted() {
	m.emit(animation.StatusTransitionCompleted)

	_ = m.engine.SetAnimation(m.targetDescriptor)
	_ = m.engine.Start()

	m.targetDescriptor = nil
	m.transitionType = TypeInvalid
	m.state = stateIdle
}

func (m *Manager) emit(status animation.Status) {
	if m.callback == nil {
		return
	}
	kind := animation.KindNone
	if m.targetDescriptor != nil {
		kind = m.targetDescriptor.Kind()
	}
	m.callback(animation.Event{Kind: kind, Status: status, Descriptor: m.targetDescriptor})
}

func statusErr(s animation.Status) error {
	if s == animation.StatusSuccess {
		return nil
	}
	return &animation.StatusError{Status: s}
}
