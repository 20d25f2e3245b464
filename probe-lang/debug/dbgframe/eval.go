// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

package dbgframe

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/probechain/go-probe/probe-lang/debug/dbgvalue"
	"github.com/probechain/go-probe/probe-lang/lang/ast"
	"github.com/probechain/go-probe/probe-lang/lang/parser"
)

// exprCache memoizes the parsed form of watch expressions. IDEs re-send the
// same handful of watch expressions on every step, and the parser has no
// reason to re-tokenize "x + y" a thousand times over a debug session.
var exprCache, _ = lru.New(256)

// Eval implements the debugger's watch-expression evaluator (spec §4.2's
// eval command).
//
// The VM this debugger attaches to has no AST->bytecode lowering pass (see
// probe-lang/lang/codegen: there is no path from a parsed ast.Expression to
// executable bytecode today), so eval cannot compile the expression and run
// it through the VM the way LRDB's Lua original does. Instead it parses the
// expression with the language's own parser and walks the resulting AST
// directly, resolving identifiers against the paused frame's Env. This
// covers read-only expressions: literals, arithmetic/comparison/logical
// operators, and array indexing. Anything requiring the full language
// runtime (calls, struct/agent construction, pattern matching) is rejected
// with a descriptive error rather than silently producing a wrong answer.
func Eval(v *Env, expr string) (dbgvalue.Value, error) {
	expr = strings.TrimSpace(expr)

	fn, err := parseExpr(expr)
	if err != nil {
		return dbgvalue.Value{}, err
	}

	body := fn.Body
	if body.Tail != nil {
		return evalExpr(v, body.Tail)
	}
	if n := len(body.Statements); n > 0 {
		if es, ok := body.Statements[n-1].(*ast.ExprStmt); ok {
			return evalExpr(v, es.Expression)
		}
	}
	return dbgvalue.Nil(), nil
}

// parseExpr parses expr wrapped as a single function body, consulting
// exprCache first.
func parseExpr(expr string) (*ast.FnDecl, error) {
	if cached, ok := exprCache.Get(expr); ok {
		return cached.(*ast.FnDecl), nil
	}

	wrapped := "fn __eval__() { " + expr + " }"
	prog, errs := parser.Parse("<eval>", wrapped)
	if len(errs) > 0 {
		return nil, fmt.Errorf("dbgframe: parse error: %v", errs[0])
	}
	if len(prog.Declarations) != 1 {
		return nil, fmt.Errorf("dbgframe: expression did not parse to a single declaration")
	}
	fn, ok := prog.Declarations[0].(*ast.FnDecl)
	if !ok {
		return nil, fmt.Errorf("dbgframe: internal: expected FnDecl wrapper")
	}

	exprCache.Add(expr, fn)
	return fn, nil
}

func evalExpr(env *Env, e ast.Expression) (dbgvalue.Value, error) {
	switch n := e.(type) {
	case *ast.IntLiteral:
		return dbgvalue.Int(uint64(n.Value)), nil
	case *ast.FloatLiteral:
		return dbgvalue.Float(n.Value), nil
	case *ast.BoolLiteral:
		return dbgvalue.Bool(n.Value), nil
	case *ast.StringLiteral:
		return dbgvalue.Str(n.Value), nil
	case *ast.NilLiteral:
		return dbgvalue.Nil(), nil
	case *ast.Ident:
		return env.Lookup(n.Value)
	case *ast.PrefixExpr:
		return evalPrefix(env, n)
	case *ast.InfixExpr:
		return evalInfix(env, n)
	case *ast.IndexExpr:
		return evalIndex(env, n)
	default:
		return dbgvalue.Value{}, fmt.Errorf("dbgframe: eval does not support %T expressions", e)
	}
}

func evalPrefix(env *Env, n *ast.PrefixExpr) (dbgvalue.Value, error) {
	right, err := evalExpr(env, n.Right)
	if err != nil {
		return dbgvalue.Value{}, err
	}
	switch n.Operator {
	case "-":
		if right.Kind == dbgvalue.KFloat {
			return dbgvalue.Float(-right.Float), nil
		}
		return dbgvalue.Int(uint64(-int64(right.Num))), nil
	case "!":
		return dbgvalue.Bool(!truthy(right)), nil
	case "~":
		return dbgvalue.Int(^right.Num), nil
	default:
		return dbgvalue.Value{}, fmt.Errorf("dbgframe: eval does not support unary operator %q", n.Operator)
	}
}

func evalInfix(env *Env, n *ast.InfixExpr) (dbgvalue.Value, error) {
	left, err := evalExpr(env, n.Left)
	if err != nil {
		return dbgvalue.Value{}, err
	}

	// Short-circuit logical operators before evaluating the right side.
	switch n.Operator {
	case "&&":
		if !truthy(left) {
			return dbgvalue.Bool(false), nil
		}
		right, err := evalExpr(env, n.Right)
		if err != nil {
			return dbgvalue.Value{}, err
		}
		return dbgvalue.Bool(truthy(right)), nil
	case "||":
		if truthy(left) {
			return dbgvalue.Bool(true), nil
		}
		right, err := evalExpr(env, n.Right)
		if err != nil {
			return dbgvalue.Value{}, err
		}
		return dbgvalue.Bool(truthy(right)), nil
	}

	right, err := evalExpr(env, n.Right)
	if err != nil {
		return dbgvalue.Value{}, err
	}

	if left.Kind == dbgvalue.KFloat || right.Kind == dbgvalue.KFloat {
		return evalFloatInfix(n.Operator, asFloat(left), asFloat(right))
	}
	return evalIntInfix(n.Operator, left.Num, right.Num)
}

func asFloat(v dbgvalue.Value) float64 {
	if v.Kind == dbgvalue.KFloat {
		return v.Float
	}
	return float64(v.Num)
}

func evalFloatInfix(op string, l, r float64) (dbgvalue.Value, error) {
	switch op {
	case "+":
		return dbgvalue.Float(l + r), nil
	case "-":
		return dbgvalue.Float(l - r), nil
	case "*":
		return dbgvalue.Float(l * r), nil
	case "/":
		return dbgvalue.Float(l / r), nil
	case "==":
		return dbgvalue.Bool(l == r), nil
	case "!=":
		return dbgvalue.Bool(l != r), nil
	case "<":
		return dbgvalue.Bool(l < r), nil
	case "<=":
		return dbgvalue.Bool(l <= r), nil
	case ">":
		return dbgvalue.Bool(l > r), nil
	case ">=":
		return dbgvalue.Bool(l >= r), nil
	default:
		return dbgvalue.Value{}, fmt.Errorf("dbgframe: eval does not support operator %q on floats", op)
	}
}

func evalIntInfix(op string, l, r uint64) (dbgvalue.Value, error) {
	li, ri := int64(l), int64(r)
	switch op {
	case "+":
		return dbgvalue.Int(uint64(li + ri)), nil
	case "-":
		return dbgvalue.Int(uint64(li - ri)), nil
	case "*":
		return dbgvalue.Int(uint64(li * ri)), nil
	case "/":
		if ri == 0 {
			return dbgvalue.Value{}, fmt.Errorf("dbgframe: division by zero")
		}
		return dbgvalue.Int(uint64(li / ri)), nil
	case "%":
		if ri == 0 {
			return dbgvalue.Value{}, fmt.Errorf("dbgframe: division by zero")
		}
		return dbgvalue.Int(uint64(li % ri)), nil
	case "&":
		return dbgvalue.Int(l & r), nil
	case "|":
		return dbgvalue.Int(l | r), nil
	case "^":
		return dbgvalue.Int(l ^ r), nil
	case "<<":
		return dbgvalue.Int(l << r), nil
	case ">>":
		return dbgvalue.Int(l >> r), nil
	case "==":
		return dbgvalue.Bool(l == r), nil
	case "!=":
		return dbgvalue.Bool(l != r), nil
	case "<":
		return dbgvalue.Bool(li < ri), nil
	case "<=":
		return dbgvalue.Bool(li <= ri), nil
	case ">":
		return dbgvalue.Bool(li > ri), nil
	case ">=":
		return dbgvalue.Bool(li >= ri), nil
	default:
		return dbgvalue.Value{}, fmt.Errorf("dbgframe: eval does not support operator %q", op)
	}
}

func evalIndex(env *Env, n *ast.IndexExpr) (dbgvalue.Value, error) {
	base, err := evalExpr(env, n.Left)
	if err != nil {
		return dbgvalue.Value{}, err
	}
	idx, err := evalExpr(env, n.Index)
	if err != nil {
		return dbgvalue.Value{}, err
	}
	if base.Kind != dbgvalue.KArray {
		return dbgvalue.Value{}, fmt.Errorf("dbgframe: cannot index a non-array value")
	}
	i := int(idx.Num)
	if i < 0 || i >= len(base.Array) {
		return dbgvalue.Value{}, fmt.Errorf("dbgframe: index %d out of range (length %d)", i, len(base.Array))
	}
	return base.Array[i], nil
}

func truthy(v dbgvalue.Value) bool { return Truthy(v) }

// Truthy reports whether v counts as true for eval's short-circuit
// operators and for a breakpoint's Condition expression (spec §4.4 step
// 4): nil is false, booleans and numbers are their own truth value, and
// everything else (strings, arrays, opaques) is true.
func Truthy(v dbgvalue.Value) bool {
	switch v.Kind {
	case dbgvalue.KNil:
		return false
	case dbgvalue.KBool:
		return v.Bool
	case dbgvalue.KNumber:
		return v.Num != 0
	case dbgvalue.KFloat:
		return v.Float != 0
	default:
		return true
	}
}
