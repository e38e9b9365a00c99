package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/slices"

	"chess-worker/bridge"
)

const (
	wsIdlePingInterval = 30 * time.Second
	wsWriteWait        = 10 * time.Second
	wsSendBuffer       = 64
)

func (h *handler) upgrader() websocket.Upgrader {
	allowed := h.store.Get().Server.AllowedOrigins
	return websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
		return len(allowed) == 0 || slices.Contains(allowed, r.Header.Get("Origin"))
	}}
}

// serveWS gives each connection its own Stream over the shared bridge. Requests
// from all connections still run one at a time.
func (h *handler) serveWS(w http.ResponseWriter, r *http.Request) {
	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("upgrade failed")
		return
	}
	log := h.log.With().Str("remote", r.RemoteAddr).Logger()
	log.Info().Msg("websocket connected")

	send := make(chan []byte, wsSendBuffer)
	done := make(chan struct{})
	stream := bridge.NewStream(h.b, func(resp bridge.Response) error {
		data, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		select {
		case send <- data:
		case <-done:
		}
		return nil
	}, log)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := writeWithHeartbeat(conn, send, done); err != nil {
			log.Debug().Err(err).Msg("websocket write")
			conn.Close()
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var req bridge.Request
		if err := json.Unmarshal(msg, &req); err != nil {
			stream.Reject(err)
			continue
		}
		stream.Submit(req)
	}

	stream.CancelAll()
	close(done)
	stream.Wait()
	<-writerDone
	conn.Close()
	log.Info().Msg("websocket closed")
}

// writeWithHeartbeat owns all writes to conn. A ping goes out when the
// connection has been idle for wsIdlePingInterval.
func writeWithHeartbeat(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) error {
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()

	for {
		select {
		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-done:
			return nil
		}
	}
}
