package transport

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// DeviceRecord is one registered device's identity.
type DeviceRecord struct {
	ID     string `json:"deviceId"`
	Secret string `json:"deviceSecret"`
	Label  string `json:"label"`
}

// Hub is the control-plane server: device registry plus a chi router
// exposing registration and a per-device websocket command channel.
type Hub struct {
	devMu   sync.RWMutex
	devices map[string]DeviceRecord

	wsMu       sync.Mutex
	wsByDevice map[string]*websocket.Conn

	upgrader websocket.Upgrader

	// AuthWindow bounds how old an X-Auth-Ts timestamp may be; defaults to
	// 60s if zero.
	AuthWindow time.Duration
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{
		devices:    map[string]DeviceRecord{},
		wsByDevice: map[string]*websocket.Conn{},
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		AuthWindow: 60 * time.Second,
	}
}

// Router builds the chi.Router exposing /register, /devices/{id}/command,
// and /ws.
func (h *Hub) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/register", h.handleRegister)
	r.Route("/devices/{id}", func(r chi.Router) {
		r.Post("/command", h.handleSendCommand)
	})
	r.Get("/ws", h.handleWS)
	return r
}

type registerRequest struct {
	Label string `json:"label"`
}
type registerResponse struct {
	DeviceID     string `json:"deviceId"`
	DeviceSecret string `json:"deviceSecret"`
}

func (h *Hub) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	id := uuid.NewString()
	secret := randomSecret()

	h.devMu.Lock()
	h.devices[id] = DeviceRecord{ID: id, Secret: secret, Label: req.Label}
	h.devMu.Unlock()

	writeJSON(w, http.StatusOK, registerResponse{DeviceID: id, DeviceSecret: secret})
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (h *Hub) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, Ack{OK: false, Error: err.Error()})
		return
	}

	h.wsMu.Lock()
	conn, ok := h.wsByDevice[id]
	h.wsMu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, Ack{OK: false, Error: "device not connected"})
		return
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Ack{OK: false, Error: err.Error()})
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		writeJSON(w, http.StatusBadGateway, Ack{OK: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Ack{OK: true})
}

// authenticate validates the X-Device-ID/X-Auth-Ts/X-Auth-Sig header trio
// against the registered device secret, the server-side half of sign().
func (h *Hub) authenticate(r *http.Request) (DeviceRecord, error) {
	id := r.Header.Get("X-Device-ID")
	ts := r.Header.Get("X-Auth-Ts")
	sig := r.Header.Get("X-Auth-Sig")
	if id == "" || ts == "" || sig == "" {
		return DeviceRecord{}, errors.New("missing auth headers")
	}

	h.devMu.RLock()
	dev, ok := h.devices[id]
	h.devMu.RUnlock()
	if !ok {
		return DeviceRecord{}, errors.New("unknown device")
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return DeviceRecord{}, errors.Wrap(err, "bad timestamp")
	}
	age := time.Since(time.Unix(sec, 0))
	if age < 0 {
		age = -age
	}
	window := h.AuthWindow
	if window == 0 {
		window = 60 * time.Second
	}
	if age > window {
		return DeviceRecord{}, errors.New("stale timestamp")
	}

	want := sign(dev.ID, dev.Secret, ts)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return DeviceRecord{}, errors.New("bad signature")
	}
	return dev, nil
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	dev, err := h.authenticate(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.wsMu.Lock()
	h.wsByDevice[dev.ID] = conn
	h.wsMu.Unlock()

	defer func() {
		h.wsMu.Lock()
		delete(h.wsByDevice, dev.ID)
		h.wsMu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends cmd to every currently connected device.
func (h *Hub) Broadcast(cmd Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	h.wsMu.Lock()
	defer h.wsMu.Unlock()
	for id, conn := range h.wsByDevice {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return errors.Wrapf(err, "broadcast to %s", id)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
