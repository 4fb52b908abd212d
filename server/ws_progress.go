package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"AutoMixFM/logger"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MixProgressWSHandler pushes mix state updates over a websocket. The
// current state is sent immediately, then every change until the client
// disconnects or the connection breaks.
func (h *APIHandler) MixProgressWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.runner.Subscribe()
	defer cancel()

	if err := conn.WriteJSON(h.runner.State()); err != nil {
		return
	}

	// Reader goroutine: the client sends nothing meaningful, but reading
	// is how close frames and dead connections surface.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(state); err != nil {
				return
			}
		}
	}
}
