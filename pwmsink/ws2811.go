// Package pwmsink provides animation.PwmSink implementations: a real
// ws2811-backed one for Raspberry Pi hardware, and a Simulated one for
// tests and the ledsim demo.
package pwmsink

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	ws2811 "github.com/rpi-ws281x/rpi-ws281x-go"

	"github.com/bdcabreran/ledanimator/animation"
)

// WS2811Sink drives one non-addressable LED (single/dual/RGB/RGY/RGBW)
// through a ws2811 strip of length 1: each animation.Controller channel is
// packed into one byte of the strip's single pixel, and every
// SetDutyCycle call re-renders that pixel.
//
// MaxDutyCycle for a Controller bound to this sink must be 255: ws2811
// packs each channel into a single byte.
type WS2811Sink struct {
	mu      sync.Mutex
	dev     *ws2811.WS2811
	ledType animation.LedType
	started bool
}

// channelShift gives the bit offset of animation channel i within the
// packed uint32 pixel, in the order the ws2811 driver expects
// (Green, Red, Blue, White), matching its WS2811_STRIP_GRB default.
var channelShift = [animation.MaxChannels]uint{8, 16, 0, 24}

// NewWS2811Sink builds a sink bound to gpioPin, driving ledType's channel
// count through a one-pixel strip at the given global brightness (0..255,
// the driver's own scaling knob, independent of per-channel duty).
func NewWS2811Sink(gpioPin int, ledType animation.LedType, brightness int) (*WS2811Sink, error) {
	if !animation.IsValidLedType(ledType) {
		return nil, errors.New("pwmsink: invalid led type")
	}
	opt := ws2811.DefaultOptions
	opt.Channels[0].GpioPin = gpioPin
	opt.Channels[0].Brightness = brightness
	opt.Channels[0].LedCount = 1

	dev, err := ws2811.MakeWS2811(&opt)
	if err != nil {
		return nil, errors.Wrap(err, "pwmsink: make ws2811")
	}
	if err := dev.Init(); err != nil {
		return nil, errors.Wrap(err, "pwmsink: init ws2811")
	}
	return &WS2811Sink{dev: dev, ledType: ledType}, nil
}

func (s *WS2811Sink) SetDutyCycle(channel int, duty uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if channel < 0 || channel >= animation.ChannelCount(s.ledType) {
		return errors.Errorf("pwmsink: channel %d out of range for %d-channel led", channel, animation.ChannelCount(s.ledType))
	}
	if duty > 255 {
		duty = 255
	}

	leds := s.dev.Leds(0)
	if len(leds) == 0 {
		return errors.New("pwmsink: ws2811 strip has no pixels")
	}
	shift := channelShift[channel]
	mask := uint32(0xFF) << shift
	leds[0] = (leds[0] &^ mask) | (uint32(duty) << shift)

	if err := s.dev.Render(); err != nil {
		return errors.Wrap(err, "pwmsink: render")
	}
	return nil
}

func (s *WS2811Sink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *WS2811Sink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	leds := s.dev.Leds(0)
	if len(leds) > 0 {
		leds[0] = 0
	}
	return errors.Wrap(s.dev.Render(), "pwmsink: render on stop")
}

// Close releases the underlying ws2811 device. It is not part of the
// animation.PwmSink interface; callers that own construction own teardown.
func (s *WS2811Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dev.Fini()
}

func (s *WS2811Sink) String() string {
	return fmt.Sprintf("WS2811Sink(ledType=%s, started=%v)", ledTypeName(s.ledType), s.started)
}

func ledTypeName(t animation.LedType) string {
	switch t {
	case animation.LedTypeSingle:
		return "single"
	case animation.LedTypeDual:
		return "dual"
	case animation.LedTypeRGB:
		return "rgb"
	case animation.LedTypeRGY:
		return "rgy"
	case animation.LedTypeRGBW:
		return "rgbw"
	default:
		return "invalid"
	}
}
