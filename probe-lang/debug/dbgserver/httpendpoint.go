// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package dbgserver

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/probechain/go-probe/probe-lang/debug/transport"
)

// HTTPEndpoint serves a health check and, optionally, the websocket
// upgrade path on a single listener — useful when a browser-based client
// needs both in one process, grounded on the same httprouter+rs/cors
// pairing probe/'s own RPC HTTP server uses.
type HTTPEndpoint struct {
	router *httprouter.Router
	server *http.Server
}

// NewHTTPEndpoint builds the endpoint. If ws is non-nil its Handler is
// registered at /debug/ws.
func NewHTTPEndpoint(addr string, ws *transport.WebSocket, srv *Server) *HTTPEndpoint {
	r := httprouter.New()
	r.GET("/healthz", func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"source": srv.VM.SourceName(),
		})
	})
	if ws != nil {
		r.GET("/debug/ws", func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
			ws.Handler(w, req)
		})
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}).Handler(r)

	return &HTTPEndpoint{
		router: r,
		server: &http.Server{Addr: addr, Handler: handler},
	}
}

// ListenAndServe blocks serving HTTP until the server is closed.
func (h *HTTPEndpoint) ListenAndServe() error {
	return h.server.ListenAndServe()
}

// Close shuts the HTTP endpoint down.
func (h *HTTPEndpoint) Close() error {
	return h.server.Close()
}
