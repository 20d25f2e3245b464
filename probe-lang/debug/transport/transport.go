// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package transport implements the debugger's pluggable wire transports
// (spec component's TCP/Stdio/WebSocket/NamedPipe listeners), each
// satisfying the same contract the server loop drives: accept a single
// client connection, deliver received frames to OnMessage, and send frames
// on demand.
package transport

import "github.com/probechain/go-probe/log"

// Transport is the contract probe-lang/debug/dbgserver consumes. Every
// transport delivers whole protocol frames (one JSON object's bytes) to
// OnMessage and accepts whole frames to Send; framing quirks (the stdio
// "lrdb_stream_message:" prefix, websocket message boundaries) are each
// transport's own concern.
type Transport interface {
	// WaitForConnection blocks until a client has connected, or ctx-like
	// cancellation occurs via Close.
	WaitForConnection() error

	// Poll processes at most one pending inbound frame without blocking,
	// returning false if none was available. Used by the server loop's
	// non-blocking tick pump.
	Poll() (bool, error)

	// RunOne blocks until exactly one inbound frame is processed or the
	// transport is closed. Used by the pause pump while execution is
	// stopped and the server has nothing else useful to do.
	RunOne() error

	// Send delivers one complete frame to the connected client.
	Send(frame []byte) error

	// IsOpen reports whether a client connection is currently live.
	IsOpen() bool

	// Close tears down the listener/connection.
	Close() error
}

// OnMessage is the server loop's callback for one inbound frame.
type OnMessage func(frame []byte)

var logger = log.New("module", "probedbg/transport")
