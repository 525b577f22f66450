// Command ledanimd is the device-side host loop: it owns one
// animation.Engine and transition.Manager pair, drives Update on a fixed
// tick, and applies transport.Command values received from a Hub (or, in
// --demo mode, a small built-in script) to them.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/bdcabreran/ledanimator/animation"
	"github.com/bdcabreran/ledanimator/config"
	"github.com/bdcabreran/ledanimator/pwmsink"
	"github.com/bdcabreran/ledanimator/transition"
	"github.com/bdcabreran/ledanimator/transport"
)

func main() {
	var (
		configPath = flag.String("config", "config.json", "path to the device config file")
		hubURL     = flag.String("hub", "", "websocket URL of the control-plane hub; empty runs --demo instead")
		deviceID   = flag.String("device-id", "", "device id issued by the hub's /register endpoint")
		secret     = flag.String("device-secret", "", "device secret issued by the hub's /register endpoint")
		demo       = flag.Bool("demo", false, "run a fixed animation script instead of connecting to a hub")
		tickMs     = flag.Duration("tick", 20*time.Millisecond, "engine tick interval")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "ledanimd: ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	sink, err := pwmsink.NewWS2811Sink(cfg.GpioPin, cfg.ParsedLedType(), cfg.Brightness)
	if err != nil {
		logger.Fatalf("init pwm sink: %v", err)
	}
	defer sink.Close()

	ctrl := &animation.Controller{Sink: sink, LedType: cfg.ParsedLedType(), MaxDutyCycle: 255}

	callback := func(ev animation.Event) {
		logger.Printf("event kind=%s status=%s", ev.Kind, ev.Status)
	}

	engine, err := animation.NewEngine(ctrl, callback, cfg.ParsedCurve())
	if err != nil {
		logger.Fatalf("init engine: %v", err)
	}
	engine.SetLinearInterpolation(cfg.LinearInterpolation())
	manager := transition.NewManager(engine, callback)

	descriptors, err := config.BuildDescriptors(cfg)
	if err != nil {
		logger.Fatalf("build descriptors: %v", err)
	}
	mapping, err := config.ResolveTransitionMap(cfg, descriptors)
	if err != nil {
		logger.Fatalf("resolve transition map: %v", err)
	}
	if len(mapping) > 0 {
		if err := manager.SetMapping(mapping); err != nil {
			logger.Fatalf("set transition map: %v", err)
		}
	}

	if off, ok := descriptors["off"]; ok {
		_ = engine.SetAnimation(off)
	} else {
		_ = engine.SetOff()
	}
	_ = engine.Start()

	// Engine and manager are single-goroutine: every command is marshalled
	// onto the render loop below and applied between ticks, so transport
	// and demo goroutines never touch them directly.
	requests := make(chan cmdRequest, 32)
	apply := func(cmd transport.Command) transport.Ack {
		req := cmdRequest{cmd: cmd, reply: make(chan transport.Ack, 1)}
		requests <- req
		return <-req.reply
	}

	stop := make(chan struct{})

	if *demo || *hubURL == "" {
		go runDemoScript(apply, descriptors, logger)
	} else {
		client := transport.NewDeviceClient(*hubURL, transport.Identity{DeviceID: *deviceID, DeviceSecret: *secret}, apply, logger)
		go func() {
			if err := client.Run(stop); err != nil {
				logger.Printf("transport run: %v", err)
			}
		}()
	}

	var tick uint32
	step := uint32((*tickMs).Milliseconds())
	ticker := time.NewTicker(*tickMs)
	defer ticker.Stop()
	for range ticker.C {
	drain:
		for {
			select {
			case req := <-requests:
				req.reply <- applyCommand(manager, descriptors, req.cmd)
			default:
				break drain
			}
		}
		if err := manager.Update(tick); err != nil {
			logger.Printf("update: %v", err)
		}
		tick += step
	}
}

type cmdRequest struct {
	cmd   transport.Command
	reply chan transport.Ack
}

func applyCommand(manager *transition.Manager, descriptors map[string]animation.Descriptor, cmd transport.Command) transport.Ack {
	switch cmd.Type {
	case "off":
		if err := manager.ToOff(transition.Imminent, 0); err != nil {
			return transport.Ack{OK: false, Error: err.Error()}
		}
		return transport.Ack{OK: true}

	case "set_animation":
		var d animation.Descriptor
		switch {
		case cmd.Spec != nil:
			// Ad hoc descriptor from the wire; never matches map rows, so
			// an explicit transition (or the interpolate default) applies.
			built, err := config.BuildDescriptor(*cmd.Spec)
			if err != nil {
				return transport.Ack{OK: false, Error: err.Error()}
			}
			d = built
		case cmd.Name != "":
			named, ok := descriptors[cmd.Name]
			if !ok {
				return transport.Ack{OK: false, Error: "unknown animation: " + cmd.Name}
			}
			d = named
		default:
			return transport.Ack{OK: false, Error: "missing animation name or spec"}
		}
		if cmd.Transition == "" {
			if err := manager.ExecuteWithMap(d); err != nil {
				return transport.Ack{OK: false, Error: err.Error()}
			}
			return transport.Ack{OK: true, Kind: d.Kind().String()}
		}
		transitionType := parseTransitionType(cmd.Transition)
		if err := manager.Execute(d, transitionType, cmd.DurationMs); err != nil {
			return transport.Ack{OK: false, Error: err.Error()}
		}
		return transport.Ack{OK: true, Kind: d.Kind().String()}

	default:
		return transport.Ack{OK: false, Error: "unknown command: " + cmd.Type}
	}
}

func parseTransitionType(s string) transition.Type {
	switch s {
	case "imminent":
		return transition.Imminent
	case "interpolate":
		return transition.Interpolate
	case "upon_completion":
		return transition.UponCompletion
	case "at_clean_entry":
		return transition.AtCleanEntry
	default:
		return transition.TypeInvalid
	}
}

// runDemoScript cycles through every configured animation every five
// seconds, the offline stand-in for a Hub issuing commands; it goes through
// the same apply path a real hub command would.
func runDemoScript(apply func(transport.Command) transport.Ack, descriptors map[string]animation.Descriptor, logger *log.Logger) {
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	if len(names) == 0 {
		return
	}
	for i := 0; ; i = (i + 1) % len(names) {
		name := names[i]
		logger.Printf("demo: switching to %s", name)
		if ack := apply(transport.Command{Type: "set_animation", Name: name}); !ack.OK {
			logger.Printf("demo: execute %s: %s", name, ack.Error)
		}
		time.Sleep(5 * time.Second)
	}
}
