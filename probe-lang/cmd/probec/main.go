// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Command probec is the PROBE language compiler.
//
// Usage:
//
//	probec [flags] <source.probe>
//
// Flags:
//
//	-o <output>    Accepted but unused: output always goes to stdout
//	-emit <stage>  Emit stage: tokens or ast. ir and bytecode (the default)
//	               are not implemented and exit with an error
//	-optimize      Accepted but unused: no optimization pass runs
//	-verify        Accepted but unused: no bytecode verifier runs
//	-version       Print version and exit
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/probechain/go-probe/probe-lang/lang/lexer"
	"github.com/probechain/go-probe/probe-lang/lang/parser"
)

const version = "0.1.0"

func main() {
	var (
		output   = flag.String("o", "", "Output file (default: stdout)")
		emit     = flag.String("emit", "bytecode", "Emit stage: tokens, ast, ir, bytecode")
		optimize = flag.Bool("optimize", true, "Enable optimization passes")
		verify   = flag.Bool("verify", true, "Run bytecode verifier")
		ver      = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *ver {
		fmt.Printf("probec %s\n", version)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: probec [flags] <source.probe>")
		os.Exit(1)
	}

	filename := flag.Arg(0)
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Suppress unused variable warnings for flags we'll use in later phases.
	_ = output
	_ = optimize
	_ = verify

	switch *emit {
	case "tokens":
		emitTokens(filename, string(source))
	case "ast":
		if err := emitAST(filename, string(source)); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "ir", "bytecode":
		fmt.Fprintf(os.Stderr, "emit stage %q not yet implemented\n", *emit)
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "unknown emit stage: %s\n", *emit)
		os.Exit(1)
	}
}

func emitTokens(filename, source string) {
	l := lexer.New(filename, source)
	tokens := l.Tokenize()
	for _, tok := range tokens {
		fmt.Printf("%s\t%s\t%q\n", tok.Pos, tok.Type, tok.Literal)
	}
}

func emitAST(filename, source string) error {
	prog, errs := parser.Parse(filename, source)
	if len(errs) > 0 {
		return fmt.Errorf("parse error: %v", errs[0])
	}
	for _, decl := range prog.Declarations {
		fmt.Printf("%T %s\n", decl, decl)
	}
	return nil
}
