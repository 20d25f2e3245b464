// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Named pipe transport for Windows hosts, where a local TCP port may be
// blocked by policy but a named pipe is not. Grounded on
// gopkg.in/natefinch/npipe.v2, which wraps the Win32 named pipe API behind
// the standard net.Conn/net.Listener interfaces.
package transport

import (
	"bufio"
	"fmt"
	"sync"

	npipe "gopkg.in/natefinch/npipe.v2"
)

// NamedPipe is a single-client named-pipe transport, line-delimited like
// TCP.
type NamedPipe struct {
	ln        *npipe.PipeListener
	onMessage OnMessage

	mu   sync.Mutex
	conn *npipe.PipeConn
	r    *bufio.Reader
}

// NewNamedPipe listens on a pipe path, e.g. `\\.\pipe\probedbg`.
func NewNamedPipe(path string, onMessage OnMessage) (*NamedPipe, error) {
	ln, err := npipe.Listen(path)
	if err != nil {
		return nil, fmt.Errorf("transport: npipe listen %s: %w", path, err)
	}
	logger.Info("debugger listening", "transport", "namedpipe", "path", path)
	return &NamedPipe{ln: ln, onMessage: onMessage}, nil
}

func (n *NamedPipe) WaitForConnection() error {
	conn, err := n.ln.Accept()
	if err != nil {
		return fmt.Errorf("transport: npipe accept: %w", err)
	}
	n.mu.Lock()
	n.conn = conn
	n.r = bufio.NewReader(conn)
	n.mu.Unlock()
	logger.Info("debugger client connected", "transport", "namedpipe")
	return nil
}

func (n *NamedPipe) IsOpen() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.conn != nil
}

// Poll is unsupported on named pipes without OS-specific non-blocking
// reads and always reports no frame, same as Stdio: inbound frames are
// read only by RunOne in the server's pause pump.
func (n *NamedPipe) Poll() (bool, error) { return false, nil }

func (n *NamedPipe) RunOne() error {
	line, err := n.r.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("transport: npipe read: %w", err)
	}
	n.onMessage(line)
	return nil
}

func (n *NamedPipe) Send(frame []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return fmt.Errorf("transport: no connected client")
	}
	frame = append(append([]byte{}, frame...), '\n')
	_, err := n.conn.Write(frame)
	return err
}

func (n *NamedPipe) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		n.conn.Close()
	}
	return n.ln.Close()
}
