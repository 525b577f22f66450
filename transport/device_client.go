package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Identity is a device's credentials, as issued by the Hub's /register
// endpoint.
type Identity struct {
	DeviceID     string
	DeviceSecret string
}

func sign(deviceID, secret, ts string) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(deviceID))
	m.Write([]byte(":"))
	m.Write([]byte(ts))
	return hex.EncodeToString(m.Sum(nil))
}

// Handler applies a received Command to the local engine/transition
// manager and reports the outcome.
type Handler func(Command) Ack

// DeviceClient maintains a reconnecting, HMAC-authenticated websocket
// connection to a Hub and serializes incoming commands through a single
// worker goroutine, so commands never run concurrently against one
// animation.Engine, which owns no internal locking of its own.
type DeviceClient struct {
	URL      string
	Identity Identity
	Logger   *log.Logger
	Handle   Handler

	jobs chan Command
}

// NewDeviceClient builds a client; Logger defaults to log.Default() if nil.
func NewDeviceClient(url string, identity Identity, handle Handler, logger *log.Logger) *DeviceClient {
	if logger == nil {
		logger = log.Default()
	}
	return &DeviceClient{URL: url, Identity: identity, Logger: logger, Handle: handle, jobs: make(chan Command, 32)}
}

// Run connects, reconnecting with a fixed backoff on failure, until the
// stop channel (closed by the caller) fires. It blocks.
func (c *DeviceClient) Run(stop <-chan struct{}) error {
	go c.worker(stop)

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		conn, err := c.dial()
		if err != nil {
			c.Logger.Printf("ledanim transport: dial failed: %v", err)
			select {
			case <-time.After(5 * time.Second):
			case <-stop:
				return nil
			}
			continue
		}

		c.Logger.Printf("ledanim transport: connected as %s", c.Identity.DeviceID)
		c.readLoop(conn, stop)
	}
}

func (c *DeviceClient) dial() (*websocket.Conn, error) {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	hdr := http.Header{
		"X-Device-ID": []string{c.Identity.DeviceID},
		"X-Auth-Ts":   []string{ts},
		"X-Auth-Sig":  []string{sign(c.Identity.DeviceID, c.Identity.DeviceSecret, ts)},
	}

	conn, resp, err := websocket.DefaultDialer.Dial(c.URL, hdr)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, errors.Errorf("ws dial: HTTP %d %s: %s", resp.StatusCode, resp.Status, string(body))
		}
		return nil, errors.Wrap(err, "ws dial")
	}
	return conn, nil
}

func (c *DeviceClient) readLoop(conn *websocket.Conn, stop <-chan struct{}) {
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) })

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			case <-pingDone:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.Logger.Printf("ledanim transport: connection lost, reconnecting: %v", err)
			return
		}

		if strings.Contains(string(raw), `"config_updated"`) {
			c.Logger.Printf("ledanim transport: config update notice received")
			continue
		}

		var cmd Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			c.Logger.Printf("ledanim transport: bad command: %v", err)
			continue
		}

		select {
		case c.jobs <- cmd:
		case <-stop:
			return
		}
	}
}

func (c *DeviceClient) worker(stop <-chan struct{}) {
	for {
		select {
		case cmd := <-c.jobs:
			if c.Handle == nil {
				continue
			}
			ack := c.Handle(cmd)
			if !ack.OK {
				c.Logger.Printf("ledanim transport: command %s failed: %s", cmd.Type, ack.Error)
			}
		case <-stop:
			return
		}
	}
}
