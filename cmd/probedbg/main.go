// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Command probedbg hosts a single PROBE VM and exposes it over the
// debugger protocol, mirroring LRDB's standalone "lrdb_debugger" host
// process. Load a .pbc bytecode file (as produced by probec) and attach
// a debugger client over TCP, stdio, websocket, or (on Windows) a named
// pipe.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/urfave/cli.v1"

	"github.com/naoina/toml"

	"github.com/probechain/go-probe/log"
	"github.com/probechain/go-probe/probe-lang/debug/dbgserver"
	"github.com/probechain/go-probe/probe-lang/debug/transport"
	"github.com/probechain/go-probe/probe-lang/lang/codegen"
	"github.com/probechain/go-probe/probe-lang/lang/vm"
)

// config holds everything settable from a -config TOML file, overridden by
// the matching CLI flag when given.
type config struct {
	Port        int    `toml:"port"`
	Transport   string `toml:"transport"`
	Pipe        string `toml:"pipe"`
	GasLimit    uint64 `toml:"gas_limit"`
	StopOnEntry bool   `toml:"stop_on_entry"`
	WorkingDir  string `toml:"working_dir"`
}

var defaultConfig = config{
	Port:        21110,
	Transport:   "tcp",
	Pipe:        `\\.\pipe\probedbg`,
	GasLimit:    10_000_000,
	StopOnEntry: false,
}

func main() {
	app := cli.NewApp()
	app.Name = "probedbg"
	app.Usage = "debug a PROBE bytecode program"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "TOML config file"},
		cli.IntFlag{Name: "p, port", Value: 0, Usage: "TCP port (0 keeps the config/default value)"},
		cli.StringFlag{Name: "transport", Value: "", Usage: "tcp, stdio, websocket, or namedpipe"},
		cli.StringFlag{Name: "pipe", Value: "", Usage: "named pipe path (namedpipe transport only)"},
		cli.BoolFlag{Name: "stop-on-entry", Usage: "pause before the first line executes"},
		cli.Uint64Flag{Name: "gas-limit", Value: 0, Usage: "VM gas limit (0 keeps the config/default value)"},
		cli.StringFlag{Name: "working-dir", Value: "", Usage: "base directory relative breakpoint paths resolve against"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "probedbg: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := defaultConfig
	if path := c.String("config"); path != "" {
		if err := loadConfig(path, &cfg); err != nil {
			return err
		}
	}
	if p := c.Int("port"); p != 0 {
		cfg.Port = p
	}
	if t := c.String("transport"); t != "" {
		cfg.Transport = t
	}
	if p := c.String("pipe"); p != "" {
		cfg.Pipe = p
	}
	if c.Bool("stop-on-entry") {
		cfg.StopOnEntry = true
	}
	if g := c.Uint64("gas-limit"); g != 0 {
		cfg.GasLimit = g
	}
	if wd := c.String("working-dir"); wd != "" {
		cfg.WorkingDir = wd
	}

	if c.NArg() < 1 {
		return fmt.Errorf("usage: probedbg [flags] <program.pbc>")
	}

	bc, err := loadBytecode(c.Args().Get(0))
	if err != nil {
		return err
	}
	if errs := codegen.Verify(&codegen.Bytecode{
		Code:      bc.Code,
		Constants: bc.Constants,
		Functions: bc.Functions,
		Debug:     bc.Debug,
	}); len(errs) > 0 {
		return fmt.Errorf("probedbg: %s failed verification: %v", c.Args().Get(0), errs[0])
	}

	v := vm.New(bc.Code, bc.Constants, cfg.GasLimit)
	v.SetDebugInfo(bc.Functions, &bc.Debug)
	v.SetSourceName(c.Args().Get(0))

	srv, endpoint, err := newServer(v, cfg)
	if err != nil {
		return err
	}

	log.Info("starting debug session", "transport", cfg.Transport, "stopOnEntry", cfg.StopOnEntry)

	var g errgroup.Group
	if endpoint != nil {
		g.Go(endpoint.ListenAndServe)
	}
	g.Go(srv.Run)
	return g.Wait()
}

// bytecodeFile is the on-disk shape written by probec's (future) -emit
// bytecode mode: codegen.Bytecode serialized as JSON, since every other
// debugger wire format in this module is already JSON.
type bytecodeFile struct {
	Code      []byte              `json:"code"`
	Constants []uint64            `json:"constants"`
	Functions []codegen.FuncEntry `json:"functions"`
	Debug     codegen.DebugInfo   `json:"debug"`
}

func loadBytecode(path string) (*bytecodeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("probedbg: read %s: %w", path, err)
	}
	var bc bytecodeFile
	if err := json.Unmarshal(data, &bc); err != nil {
		return nil, fmt.Errorf("probedbg: parse %s: %w", path, err)
	}
	return &bc, nil
}

func loadConfig(path string, cfg *config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("probedbg: read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("probedbg: parse config %s: %w", path, err)
	}
	return nil
}

// newServer builds the Server for the configured transport. The returned
// *dbgserver.HTTPEndpoint is non-nil only for the websocket transport, where
// the debugger is reached through an HTTP upgrade rather than a raw
// listener the Server owns directly.
func newServer(v *vm.VM, cfg config) (*dbgserver.Server, *dbgserver.HTTPEndpoint, error) {
	var srv *dbgserver.Server
	var tr transport.Transport
	var err error

	switch cfg.Transport {
	case "tcp":
		tr, err = transport.NewTCP(fmt.Sprintf(":%d", cfg.Port), func(frame []byte) { srv.HandleFrame(frame) })
	case "stdio":
		tr = transport.NewStdio(os.Stdin, os.Stdout, func(frame []byte) { srv.HandleFrame(frame) })
	case "namedpipe":
		tr, err = transport.NewNamedPipe(cfg.Pipe, func(frame []byte) { srv.HandleFrame(frame) })
	case "websocket":
		ws := transport.NewWebSocket(func(frame []byte) { srv.HandleFrame(frame) })
		srv = dbgserver.New(v, ws, cfg.StopOnEntry, cfg.WorkingDir)
		endpoint := dbgserver.NewHTTPEndpoint(fmt.Sprintf(":%d", cfg.Port), ws, srv)
		return srv, endpoint, nil
	default:
		return nil, nil, fmt.Errorf("probedbg: unknown transport %q", cfg.Transport)
	}
	if err != nil {
		return nil, nil, err
	}
	srv = dbgserver.New(v, tr, cfg.StopOnEntry, cfg.WorkingDir)
	return srv, nil, nil
}
