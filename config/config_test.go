package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysPresentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"gpioPin": 21, "curve": "sine", "interpolation": "linear"}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 21, cfg.GpioPin)
	assert.Equal(t, "sine", cfg.Curve)
	assert.True(t, cfg.LinearInterpolation())
	assert.Equal(t, Default().MaxDutyCycle, cfg.MaxDutyCycle) // untouched default
}

func TestLinearInterpolationDefaultsToQuadratic(t *testing.T) {
	assert.False(t, Default().LinearInterpolation())
	assert.False(t, Config{Interpolation: "nonsense"}.LinearInterpolation())
}

func TestBuildDescriptorsAndResolveTransitionMap(t *testing.T) {
	cfg := Config{
		Animations: map[string]AnimationSpec{
			"off":   {Kind: "off"},
			"solid": {Kind: "solid", Color: []uint8{255, 0, 0}},
		},
		Transitions: []TransitionSpec{
			{Start: "off", Target: "solid", Type: "imminent"},
		},
	}

	descriptors, err := BuildDescriptors(cfg)
	require.NoError(t, err)
	require.Contains(t, descriptors, "off")
	require.Contains(t, descriptors, "solid")

	entries, err := ResolveTransitionMap(cfg, descriptors)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Same(t, descriptors["off"], entries[0].Start)
	assert.Same(t, descriptors["solid"], entries[0].Target)
}

func TestResolveTransitionMapRejectsUnknownName(t *testing.T) {
	cfg := Config{
		Animations: map[string]AnimationSpec{"off": {Kind: "off"}},
		Transitions: []TransitionSpec{
			{Start: "off", Target: "nope", Type: "imminent"},
		},
	}
	descriptors, err := BuildDescriptors(cfg)
	require.NoError(t, err)
	_, err = ResolveTransitionMap(cfg, descriptors)
	require.Error(t, err)
}

func TestBuildDescriptorsRejectsUnknownKind(t *testing.T) {
	cfg := Config{Animations: map[string]AnimationSpec{"x": {Kind: "nonsense"}}}
	_, err := BuildDescriptors(cfg)
	require.Error(t, err)
}
