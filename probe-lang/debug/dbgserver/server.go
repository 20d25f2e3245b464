// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package dbgserver is the debugger's Server Loop (spec component G): it
// owns the transport, the dispatch.Session, and the two pumps that
// interleave debugger I/O with VM execution — a non-blocking tick pump
// while running, and a blocking pause pump once the execution controller
// has stopped the VM.
package dbgserver

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/probechain/go-probe/log"
	"github.com/probechain/go-probe/probe-lang/debug/breakpoint"
	"github.com/probechain/go-probe/probe-lang/debug/control"
	"github.com/probechain/go-probe/probe-lang/debug/dispatch"
	"github.com/probechain/go-probe/probe-lang/debug/protocol"
	"github.com/probechain/go-probe/probe-lang/debug/transport"
	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

var logger = log.New("module", "probedbg/server")

// Server wires a VM, its breakpoint table and execution controller, and a
// Transport together, and drives the run/pause pumps.
type Server struct {
	VM   *vm.VM
	tr   transport.Transport
	bps  *breakpoint.Table
	ctrl *control.Controller

	mu     sync.Mutex
	paused bool

	shutdown chan struct{}
}

// New builds a Server around v, pausing on the first executed line if
// stopOnEntry is set. workingDir is applied to the breakpoint table (spec
// §4.3) so relative file paths a client registers resolve against it. The
// transport is supplied by the caller (cmd/probedbg picks one based on CLI
// flags) with its OnMessage callback forwarding to the server's
// HandleFrame. The transport must exist before the server, but the server
// must exist before the first frame can be handled, so callers construct
// the transport with a closure that calls HandleFrame on a Server variable
// assigned once New returns.
func New(v *vm.VM, tr transport.Transport, stopOnEntry bool, workingDir string) *Server {
	bps := breakpoint.NewTable()
	bps.WorkingDir = workingDir
	s := &Server{
		VM:       v,
		tr:       tr,
		bps:      bps,
		shutdown: make(chan struct{}),
	}
	s.ctrl = control.New(s.bps, stopOnEntry, s.onTick, s.onPause)
	s.ctrl.Attach(v)
	return s
}

// session returns the dispatch.Session view of the server's state.
func (s *Server) session() *dispatch.Session {
	return &dispatch.Session{VM: s.VM, BPs: s.bps, Ctrl: s.ctrl}
}

// HandleFrame decodes one inbound protocol frame, dispatches it, and sends
// back the response — the OnMessage callback every Transport invokes.
func (s *Server) HandleFrame(frame []byte) {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		if eo, ok := err.(*protocol.ErrorObject); ok {
			s.sendError(nil, eo.Code, eo.Message)
		} else {
			s.sendError(nil, protocol.ErrParseError, err.Error())
		}
		return
	}

	result, derr := dispatch.Dispatch(s.session(), req)
	if derr != nil {
		eo, ok := derr.(*protocol.ErrorObject)
		if !ok {
			eo = &protocol.ErrorObject{Code: protocol.ErrInternalError, Message: derr.Error()}
		}
		s.sendError(req.ID, eo.Code, eo.Message)
		return
	}
	s.sendResult(req.ID, result)

	if isResumeMethod(req.Method) {
		s.Resume()
	}
}

// isResumeMethod reports whether method should end the pause pump's wait —
// every command that rearms the controller to let the VM's Step loop
// advance again.
func isResumeMethod(method string) bool {
	switch method {
	case "step", "step_in", "step_out", "continue":
		return true
	default:
		return false
	}
}

func (s *Server) sendResult(id interface{}, result interface{}) {
	data, err := protocol.EncodeResponse(id, result)
	if err != nil {
		logger.Error("failed to encode response", "err", err)
		return
	}
	if err := s.tr.Send(data); err != nil {
		logger.Warn("failed to send response", "err", err)
	}
}

func (s *Server) sendError(id interface{}, code int, message string) {
	data, err := protocol.EncodeError(id, code, message)
	if err != nil {
		logger.Error("failed to encode error response", "err", err)
		return
	}
	if err := s.tr.Send(data); err != nil {
		logger.Warn("failed to send error response", "err", err)
	}
}

func (s *Server) notify(method string, params interface{}) {
	data, err := protocol.EncodeNotification(method, params)
	if err != nil {
		logger.Error("failed to encode notification", "method", method, "err", err)
		return
	}
	if err := s.tr.Send(data); err != nil {
		logger.Warn("failed to send notification", "method", method, "err", err)
	}
}

// onTick is the controller's TickFunc: process at most one pending inbound
// frame without blocking the VM's forward progress.
func (s *Server) onTick() {
	if _, err := s.tr.Poll(); err != nil {
		logger.Warn("transport poll error", "err", err)
	}
}

// onPause is the controller's PauseFunc: announce the pause and block the
// calling goroutine (the VM's own execution goroutine) processing frames
// until a command resumes it.
func (s *Server) onPause(reason control.PauseReason, bp *breakpoint.Descriptor) {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()

	params := map[string]interface{}{"reason": string(reason)}
	if bp != nil {
		params["breakpoint_id"] = bp.ID
	}
	s.notify("paused", params)

	for {
		s.mu.Lock()
		stillPaused := s.paused
		s.mu.Unlock()
		if !stillPaused {
			break
		}
		if err := s.tr.RunOne(); err != nil {
			logger.Warn("transport pause-pump error", "err", err)
			return
		}
	}

	s.notify("running", nil)
}

// Resume marks the server as no longer paused, letting the pause pump in
// onPause return control to the VM. HandleFrame calls it after a
// successful "continue"/"step*" command; it is exported so a
// transport-level "resume" out-of-band signal could also drive it.
func (s *Server) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// Connected announces a fresh client connection, per LRDB's handshake
// (spec §4.7's "connected" notification): protocol_version plus a vm
// sub-object identifying this VM build, alongside the source file name.
func (s *Server) Connected() {
	s.notify("connected", map[string]interface{}{
		"protocol_version": protocol.ProtocolVersion,
		"source":           s.VM.SourceName(),
		"vm": map[string]interface{}{
			"version":   vm.Version,
			"release":   vm.Release,
			"copyright": vm.Copyright,
		},
	})
}

// Exited announces VM termination and that no further commands will be
// serviced. The notification method is "exit", matching spec.md's
// Teardown/Data-Model sections (and LRDB's basic_server::exit).
func (s *Server) Exited(result uint64, runErr error) {
	params := map[string]interface{}{"result": result}
	if runErr != nil {
		params["error"] = runErr.Error()
	}
	s.notify("exit", params)
	close(s.shutdown)
}

// Run blocks serving one debug session end to end: waits for the client,
// announces the connection, then runs the VM to completion while the
// controller's hooks interleave tick/pause pumping.
func (s *Server) Run() error {
	if err := s.tr.WaitForConnection(); err != nil {
		return fmt.Errorf("dbgserver: %w", err)
	}
	s.Connected()

	result, err := s.VM.Run()
	s.Exited(result, err)
	return err
}

// RunDispatch lets a caller feed a raw frame through the dispatcher without
// a Transport at all, returning the encoded response frame.
func RunDispatch(s *Server, frame json.RawMessage) ([]byte, error) {
	req, err := protocol.DecodeRequest(frame)
	if err != nil {
		return nil, err
	}
	result, derr := dispatch.Dispatch(s.session(), req)
	if derr != nil {
		return nil, derr
	}
	return protocol.EncodeResponse(req.ID, result)
}
