// Package script provides a Lisp front-end for describing magnet
// geometries. It wraps zygomys in a sandboxed environment; evaluating a
// source string produces geom.Node trees ready for compilation.
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/magnettools/magnetmesh/pkg/geom"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use;
// each call to Evaluate creates a fresh sandboxed environment for
// determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate takes Lisp source code and produces the geometry trees defined
// at top level, in definition order. Nodes consumed as children of other
// nodes are not reported as roots.
//
// Return semantics:
//   - On success: roots + nil errors + nil error
//   - On parse/eval failure: nil + eval errors + nil error
//   - On fatal failure (timeout, panic): nil + nil + error
func (e *Engine) Evaluate(source string) ([]*geom.Node, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		roots, evalErrs, err := e.evaluate(source)
		ch <- evalResult{roots: roots, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) ([]*geom.Node, []EvalError, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or
	// syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	b := &builder{owned: make(map[*geom.Node]bool)}
	registerBuiltins(env, b)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return b.roots(), nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError
// values, extracting line numbers from the message where possible.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	if m := linePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}
	if m := linePatternShort.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
