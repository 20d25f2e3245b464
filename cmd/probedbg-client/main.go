// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Command probedbg-client is a minimal interactive front-end for probedbg,
// in the spirit of LRDB's command-line sample client: a line-editing REPL
// that sends one debugger command per line and prints the response.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/peterh/liner"
)

var (
	errColor  = color.New(color.FgRed)
	okColor   = color.New(color.FgGreen)
	noteColor = color.New(color.FgCyan)
)

func main() {
	addr := flag.String("addr", "127.0.0.1:21110", "probedbg TCP address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		errColor.Fprintf(os.Stderr, "connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()
	okColor.Printf("connected to %s\n", *addr)

	reader := bufio.NewReader(conn)
	go readLoop(reader)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("probedbg> ")
		if err != nil {
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		req, err := buildRequest(input)
		if err != nil {
			errColor.Println(err)
			continue
		}
		if _, err := conn.Write(append(req, '\n')); err != nil {
			errColor.Println("write:", err)
			return
		}
	}
}

// buildRequest turns a REPL line like "step" or "eval x+1" into a JSON-RPC
// frame, correlating it with a fresh client-side id — probedbg itself
// never requires the id to be any particular shape, but a uuid makes it
// easy to tell concurrent in-flight commands apart when skimming a log.
func buildRequest(input string) ([]byte, error) {
	parts := strings.SplitN(input, " ", 2)
	method := parts[0]

	var params interface{}
	switch method {
	case "step", "step_in", "step_out", "continue", "pause", "get_breakpoints", "get_stacktrace":
		// no params
	case "add_breakpoint":
		if len(parts) < 2 {
			return nil, fmt.Errorf("usage: add_breakpoint <file> <line>")
		}
		fields := strings.Fields(parts[1])
		if len(fields) < 2 {
			return nil, fmt.Errorf("usage: add_breakpoint <file> <line>")
		}
		lineNo, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("usage: add_breakpoint <file> <line>")
		}
		params = map[string]interface{}{"file": fields[0], "line": lineNo}
	case "eval":
		if len(parts) < 2 {
			return nil, fmt.Errorf("usage: eval <expression>")
		}
		params = map[string]interface{}{"stack_no": 0, "chunk": parts[1]}
	case "get_local_variable":
		params = map[string]interface{}{"stack_no": 0}
	default:
		if len(parts) == 2 {
			var raw map[string]interface{}
			if err := json.Unmarshal([]byte(parts[1]), &raw); err == nil {
				params = raw
			}
		}
	}

	req := map[string]interface{}{
		"id":     uuid.New().String(),
		"method": method,
	}
	if params != nil {
		req["params"] = params
	}
	return json.Marshal(req)
}

func readLoop(r *bufio.Reader) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			errColor.Println("connection closed:", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var pretty map[string]interface{}
		if err := json.Unmarshal([]byte(line), &pretty); err != nil {
			noteColor.Println(line)
			continue
		}
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
	}
}
