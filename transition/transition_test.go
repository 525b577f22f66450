package transition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdcabreran/ledanimator/animation"
)

type fakeSink struct {
	duty    [animation.MaxChannels]uint16
	started bool
}

func (f *fakeSink) SetDutyCycle(channel int, duty uint16) error {
	f.duty[channel] = duty
	return nil
}
func (f *fakeSink) Start() error { f.started = true; return nil }
func (f *fakeSink) Stop() error  { f.started = false; return nil }

func newHarness(t *testing.T) (*animation.Engine, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	ctrl := &animation.Controller{Sink: sink, LedType: animation.LedTypeRGB, MaxDutyCycle: 1000}
	engine, err := animation.NewEngine(ctrl, nil, nil)
	require.NoError(t, err)
	return engine, sink
}

func startOff(t *testing.T, engine *animation.Engine) {
	t.Helper()
	require.NoError(t, engine.SetOff())
	require.NoError(t, engine.Start())
	require.NoError(t, engine.Update(0))
}

func TestImminentSwitchesAfterTwoTicks(t *testing.T) {
	engine, _ := newHarness(t)
	startOff(t, engine)

	m := NewManager(engine, nil)
	solid := &animation.SolidDescriptor{Color: animation.Color{200, 0, 0}}
	require.NoError(t, m.Execute(solid, Imminent, 0))

	require.NoError(t, m.Update(1)) // Setup -> Ongoing
	assert.True(t, m.IsBusy())

	require.NoError(t, m.Update(2)) // Ongoing -> Completed
	assert.True(t, m.IsBusy())

	require.NoError(t, m.Update(3)) // Completed -> Idle, new animation installed+started
	assert.False(t, m.IsBusy())
	assert.Equal(t, animation.KindSolid, engine.Kind())
}

func TestExecuteRejectsWhenBusyAndKeepsTarget(t *testing.T) {
	engine, _ := newHarness(t)
	startOff(t, engine)

	m := NewManager(engine, nil)
	first := &animation.SolidDescriptor{Color: animation.Color{1}}
	require.NoError(t, m.Execute(first, Imminent, 0))

	err := m.Execute(&animation.BlinkDescriptor{Color: animation.Color{2}, PeriodMs: 100}, Imminent, 0)
	require.Error(t, err)
	status, ok := animation.AsStatus(err)
	require.True(t, ok)
	assert.Equal(t, animation.StatusBusy, status)
	assert.Same(t, animation.Descriptor(first), m.targetDescriptor, "a rejected execute must not disturb the queued target")
}

func TestInterpolateBlendsThenForcesExactTarget(t *testing.T) {
	engine, sink := newHarness(t)
	startOff(t, engine)

	m := NewManager(engine, nil)
	target := &animation.SolidDescriptor{Color: animation.Color{0, 0, 255}}
	require.NoError(t, m.Execute(target, Interpolate, 200))

	require.NoError(t, m.Update(0))   // Setup
	require.NoError(t, m.Update(100)) // quadratic t^2 = 0.25: a quarter of the way
	assert.Equal(t, animation.BrightnessToDuty(64, 1000), sink.duty[2])

	require.NoError(t, m.Update(200)) // duration elapsed: exact endpoint forced
	assert.Equal(t, animation.BrightnessToDuty(255, 1000), sink.duty[2])
	assert.True(t, m.IsBusy())

	require.NoError(t, m.Update(201)) // Completed -> Idle, target installed+started
	assert.False(t, m.IsBusy())
	assert.Equal(t, animation.KindSolid, engine.Kind())
	assert.True(t, engine.IsRunning())
}

func TestInterpolateFollowsEngineLinearSetting(t *testing.T) {
	engine, sink := newHarness(t)
	engine.SetLinearInterpolation(true)
	startOff(t, engine)

	m := NewManager(engine, nil)
	target := &animation.SolidDescriptor{Color: animation.Color{200, 0, 0}}
	require.NoError(t, m.Execute(target, Interpolate, 100))

	require.NoError(t, m.Update(0)) // Setup
	require.NoError(t, m.Update(50))
	// Linear blending is at 50% here; quadratic would be at 25%.
	assert.Equal(t, animation.BrightnessToDuty(100, 1000), sink.duty[0])
}

func TestInterpolateSkipsWhenColorsAlreadyMatch(t *testing.T) {
	engine, _ := newHarness(t)
	startOff(t, engine)

	var events []animation.Status
	m := NewManager(engine, func(e animation.Event) { events = append(events, e.Status) })

	// FadeIn starts dark; the LED is dark: nothing to blend.
	target := &animation.FadeInDescriptor{Color: animation.Color{255}, DurationMs: 100, RepeatCount: 1}
	require.NoError(t, m.Execute(target, Interpolate, 200))

	require.NoError(t, m.Update(0)) // Setup jumps straight to Completed
	require.NoError(t, m.Update(1)) // Completed installs
	assert.False(t, m.IsBusy())
	assert.Equal(t, animation.KindFadeIn, engine.Kind())
	assert.Contains(t, events, animation.StatusTransitionStarted)
	assert.Contains(t, events, animation.StatusTransitionCompleted)
}

func TestUponCompletionWaitsForEngine(t *testing.T) {
	engine, _ := newHarness(t)
	require.NoError(t, engine.SetFlash(&animation.FlashDescriptor{
		Color: animation.Color{255}, OnMs: 50, OffMs: 50, RepeatCount: 2,
	}))
	require.NoError(t, engine.Start())

	m := NewManager(engine, nil)
	target := &animation.SolidDescriptor{Color: animation.Color{0, 255, 0}}
	require.NoError(t, m.Execute(target, UponCompletion, 5000))

	require.NoError(t, m.Update(0)) // Setup; engine runs its first flash tick too
	for tick := uint32(10); tick <= 190; tick += 10 {
		require.NoError(t, m.Update(tick))
		assert.True(t, m.IsBusy())
	}
	require.NoError(t, m.Update(200)) // flash exhausts its two cycles here
	require.NoError(t, m.Update(201)) // Ongoing sees engine stopped -> Completed
	require.NoError(t, m.Update(202)) // Completed installs the target
	assert.False(t, m.IsBusy())
	assert.Equal(t, animation.KindSolid, engine.Kind())
}

func TestUponCompletionForceSwitchesOnTimeout(t *testing.T) {
	engine, _ := newHarness(t)
	require.NoError(t, engine.SetSolid(&animation.SolidDescriptor{Color: animation.Color{255}}))
	require.NoError(t, engine.Start())
	require.NoError(t, engine.Update(0))

	m := NewManager(engine, nil)
	target := &animation.SolidDescriptor{Color: animation.Color{0, 255, 0}}
	require.NoError(t, m.Execute(target, UponCompletion, 100))

	require.NoError(t, m.Update(0)) // Setup
	require.NoError(t, m.Update(50))
	assert.True(t, m.IsBusy())
	require.NoError(t, m.Update(101)) // past the timeout: force Completed
	require.NoError(t, m.Update(102))
	assert.False(t, m.IsBusy())
	assert.Equal(t, animation.KindSolid, engine.Kind())
	assert.Same(t, animation.Descriptor(target), engine.Descriptor())
}

func TestAtCleanEntryWaitsForDarkTick(t *testing.T) {
	engine, _ := newHarness(t)
	require.NoError(t, engine.SetBlink(&animation.BlinkDescriptor{
		Color: animation.Color{0, 255, 255}, PeriodMs: 500, RepeatCount: -1,
	}))
	require.NoError(t, engine.Start())

	m := NewManager(engine, nil)
	target := &animation.SolidDescriptor{Color: animation.Color{128, 0, 128}}
	require.NoError(t, m.Execute(target, AtCleanEntry, 2000))

	require.NoError(t, m.Update(0))   // Setup; blink lights up
	require.NoError(t, m.Update(100)) // Ongoing: still lit
	assert.True(t, m.IsBusy())

	require.NoError(t, m.Update(300)) // blink's dark half: engine writes zero
	require.NoError(t, m.Update(301)) // Ongoing sees all-zero -> Completed
	require.NoError(t, m.Update(302)) // Completed installs purple
	assert.False(t, m.IsBusy())
	assert.Same(t, animation.Descriptor(target), engine.Descriptor())
}

func TestMappingOverridesDefault(t *testing.T) {
	engine, _ := newHarness(t)
	off := &animation.OffDescriptor{}
	require.NoError(t, engine.SetAnimation(off))
	require.NoError(t, engine.Start())

	m := NewManager(engine, nil)
	target := &animation.SolidDescriptor{Color: animation.Color{1, 1, 1}}
	require.NoError(t, m.SetMapping([]MapEntry{
		{Start: off, Target: target, Type: Imminent, Duration: 0},
	}))
	require.NoError(t, m.ExecuteWithMap(target))
	require.NoError(t, m.Update(0))
	assert.Equal(t, Imminent, m.transitionType)
}

func TestMappingMatchesByIdentityNotValue(t *testing.T) {
	engine, _ := newHarness(t)
	off := &animation.OffDescriptor{}
	require.NoError(t, engine.SetAnimation(off))
	require.NoError(t, engine.Start())

	m := NewManager(engine, nil)
	mapped := &animation.SolidDescriptor{Color: animation.Color{1, 1, 1}}
	require.NoError(t, m.SetMapping([]MapEntry{
		{Start: off, Target: mapped, Type: Imminent, Duration: 0},
	}))

	// Structurally identical but a distinct allocation: no map row matches,
	// so the default interpolate strategy applies.
	twin := &animation.SolidDescriptor{Color: animation.Color{1, 1, 1}}
	require.NoError(t, m.ExecuteWithMap(twin))
	require.NoError(t, m.Update(0))
	assert.Equal(t, Interpolate, m.transitionType)
	assert.EqualValues(t, DefaultInterpolateMs, m.duration)
}

func TestSetMappingRejectsEmptyMap(t *testing.T) {
	engine, _ := newHarness(t)
	m := NewManager(engine, nil)
	require.Error(t, m.SetMapping(nil))
}

func TestToOffSkipsWhenAlreadyOff(t *testing.T) {
	engine, _ := newHarness(t)
	startOff(t, engine)
	require.Equal(t, animation.Color{}, engine.CurrentColor())

	var events []animation.Status
	m := NewManager(engine, func(e animation.Event) { events = append(events, e.Status) })

	require.NoError(t, m.ToOff(Imminent, 0))
	assert.False(t, m.IsBusy())
	require.Len(t, events, 1)
	assert.Equal(t, animation.StatusTransitionSkipped, events[0])
}

func TestStopAbandonsInFlightTransition(t *testing.T) {
	engine, _ := newHarness(t)
	startOff(t, engine)

	m := NewManager(engine, nil)
	target := &animation.SolidDescriptor{Color: animation.Color{9}}
	require.NoError(t, m.Execute(target, Imminent, 0))
	assert.True(t, m.Stop())
	assert.False(t, m.IsBusy())

	// Stop bypasses Completed, so the queued target is never installed; the
	// caller must re-issue Execute.
	require.NoError(t, m.Update(1))
	assert.NotEqual(t, animation.KindSolid, engine.Kind())
}

func TestIdleManagerStillDrivesEngine(t *testing.T) {
	engine, sink := newHarness(t)
	require.NoError(t, engine.SetSolid(&animation.SolidDescriptor{Color: animation.Color{255}}))
	require.NoError(t, engine.Start())

	m := NewManager(engine, nil)
	require.NoError(t, m.Update(1))
	assert.Equal(t, uint16(1000), sink.duty[0], "idle manager must forward Update to the engine")
}
