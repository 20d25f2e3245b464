// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package transport

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket is a browser/IDE-friendly transport: one upgraded connection
// carries one JSON text frame per debugger message. It is served from an
// http.Handler so it can share a listener with the debugger's health
// endpoint (see dbgserver/httpendpoint.go).
type WebSocket struct {
	upgrader  websocket.Upgrader
	onMessage OnMessage

	mu      sync.Mutex
	conn    *websocket.Conn
	pending chan struct{} // signalled once per accepted connection
}

// NewWebSocket creates a WebSocket transport. Register its Handler on an
// http.ServeMux at the desired path.
func NewWebSocket(onMessage OnMessage) *WebSocket {
	return &WebSocket{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		onMessage: onMessage,
		pending:   make(chan struct{}, 1),
	}
}

// Handler upgrades an incoming HTTP request to a websocket connection,
// replacing any previous connection (the debugger only serves one client
// at a time).
func (w *WebSocket) Handler(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "err", err)
		return
	}
	w.mu.Lock()
	if w.conn != nil {
		w.conn.Close()
	}
	w.conn = conn
	w.mu.Unlock()

	select {
	case w.pending <- struct{}{}:
	default:
	}
	logger.Info("debugger client connected", "transport", "websocket", "remote", r.RemoteAddr)
}

func (w *WebSocket) WaitForConnection() error {
	<-w.pending
	return nil
}

func (w *WebSocket) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

func (w *WebSocket) Poll() (bool, error) {
	if !w.IsOpen() {
		return false, nil
	}
	w.conn.SetReadDeadline(time.Now().Add(1 * time.Millisecond))
	_, data, err := w.conn.ReadMessage()
	w.conn.SetReadDeadline(time.Time{})
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			w.mu.Lock()
			w.conn = nil
			w.mu.Unlock()
			return false, nil
		}
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return false, nil
		}
		return false, fmt.Errorf("transport: websocket read: %w", err)
	}
	w.onMessage(data)
	return true, nil
}

func (w *WebSocket) RunOne() error {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("transport: websocket read: %w", err)
	}
	w.onMessage(data)
	return nil
}

func (w *WebSocket) Send(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return fmt.Errorf("transport: no connected client")
	}
	return w.conn.WriteMessage(websocket.TextMessage, frame)
}

func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}
