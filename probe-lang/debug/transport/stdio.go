// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package transport

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/probechain/go-probe/probe-lang/debug/protocol"
)

// Stdio is the embedded-debugger transport: the debuggee process itself is
// the debugger server, and the client (an IDE extension or probedbg-client)
// talks to it over the process's own stdin/stdout, each debugger frame
// wrapped in the "lrdb_stream_message:" line prefix so it can be
// distinguished from the debuggee's ordinary stdout — the behavior LRDB's
// original stdio transport was built for (original_source/'s stdio
// transport).
type Stdio struct {
	in        *bufio.Reader
	out       io.Writer
	onMessage OnMessage
	mu        sync.Mutex
	connected bool
}

// NewStdio wraps the given reader/writer (ordinarily os.Stdin/os.Stdout).
func NewStdio(in io.Reader, out io.Writer, onMessage OnMessage) *Stdio {
	return &Stdio{in: bufio.NewReader(in), out: out, onMessage: onMessage}
}

// WaitForConnection is a no-op: stdio is "connected" as soon as the process
// starts, there being no separate accept step.
func (s *Stdio) WaitForConnection() error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *Stdio) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Stdio) Poll() (bool, error) {
	// Stdio has no non-blocking read primitive on a bufio.Reader without an
	// OS-level select, so Poll always reports no frame: the server's tick
	// pump receives nothing over this transport, and inbound frames are read
	// only by RunOne in the pause pump.
	return false, nil
}

func (s *Stdio) RunOne() error {
	line, err := s.readFrame()
	if err != nil {
		return err
	}
	s.onMessage(line)
	return nil
}

func (s *Stdio) readFrame() ([]byte, error) {
	for {
		line, err := s.in.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("transport: stdio read: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, protocol.StdioLinePrefix) {
			// Not a debugger frame — presumably the debuggee's own output
			// interleaved on the same stream; ignore it.
			continue
		}
		return []byte(strings.TrimPrefix(line, protocol.StdioLinePrefix)), nil
	}
}

func (s *Stdio) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.out.Write(protocol.WrapStdioLine(frame))
	return err
}

func (s *Stdio) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}
