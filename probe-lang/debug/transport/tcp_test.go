// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package transport

import (
	"bufio"
	"net"
	"testing"
	"time"
)

func TestTCPRoundTrip(t *testing.T) {
	received := make(chan []byte, 1)
	tr, err := NewTCP("127.0.0.1:0", func(frame []byte) {
		received <- frame
	})
	if err != nil {
		t.Fatalf("NewTCP: %v", err)
	}
	defer tr.Close()

	addr := tr.ln.Addr().String()
	clientDone := make(chan net.Conn, 1)
	go func() {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			t.Errorf("dial: %v", err)
			return
		}
		clientDone <- conn
	}()

	if err := tr.WaitForConnection(); err != nil {
		t.Fatalf("WaitForConnection: %v", err)
	}
	client := <-clientDone
	defer client.Close()

	if !tr.IsOpen() {
		t.Fatalf("expected transport to be open after connection")
	}

	if _, err := client.Write([]byte(`{"method":"continue"}` + "\n")); err != nil {
		t.Fatalf("client write: %v", err)
	}

	if err := tr.RunOne(); err != nil {
		t.Fatalf("RunOne: %v", err)
	}

	select {
	case frame := <-received:
		if string(frame) != "{\"method\":\"continue\"}\n" {
			t.Fatalf("unexpected frame: %q", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}

	if err := tr.Send([]byte(`{"result":true}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	r := bufio.NewReader(client)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if line != "{\"result\":true}\n" {
		t.Fatalf("unexpected response line: %q", line)
	}
}

func TestTCPPollWithoutDataReturnsFalse(t *testing.T) {
	tr, err := NewTCP("127.0.0.1:0", func(frame []byte) {})
	if err != nil {
		t.Fatalf("NewTCP: %v", err)
	}
	defer tr.Close()

	addr := tr.ln.Addr().String()
	go net.Dial("tcp", addr)

	if err := tr.WaitForConnection(); err != nil {
		t.Fatalf("WaitForConnection: %v", err)
	}

	got, err := tr.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got {
		t.Fatalf("expected Poll to report no frame available")
	}
}
