// Package transport carries animation commands between a control-plane Hub
// and a device running an animation.Engine, over an HMAC-authenticated
// websocket connection.
package transport

import "github.com/bdcabreran/ledanimator/config"

// Command is one instruction sent from the Hub to a device. Type selects
// the verb; Name, Spec, Transition and DurationMs are only read for
// "set_animation".
type Command struct {
	Type string `json:"type"` // "set_animation" | "off"

	// Name selects one of the device's configured animations; Spec instead
	// carries a full ad hoc descriptor (the same JSON shape as a
	// config.json animations entry). For Type == "set_animation" exactly
	// one of the two should be set; Spec wins when both are.
	Name string                `json:"name,omitempty"`
	Spec *config.AnimationSpec `json:"spec,omitempty"`

	// Transition selects how the device should arbitrate the switch:
	// "imminent" | "interpolate" | "upon_completion" | "at_clean_entry" |
	// "" (use the device's installed transition map).
	Transition string `json:"transition,omitempty"`
	DurationMs uint16 `json:"durationMs,omitempty"`
}

// Ack reports the outcome of a Command. On the device it is what the
// Handler returns after applying the Command; DeviceClient logs failed Acks
// and does not send them back over the connection. The Hub's HTTP command
// endpoint replies with an Ack that reports delivery to the device's
// websocket, not the outcome of applying it.
type Ack struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Status string `json:"status,omitempty"`
}

// ConfigUpdatedNotice is the config-update message a Hub can push to a
// device. DeviceClient logs it and takes no further action; it does not
// re-fetch or reload its config.
const ConfigUpdatedNotice = `{"type":"config_updated"}`
