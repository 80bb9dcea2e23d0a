// Package engine composes the compilation pipeline and owns the state
// that persists between executions: the global scope, the global slot
// values, and the function table.
package engine

import (
	"io"

	"github.com/tliron/commonlog"

	"github.com/corvid-lang/corvid/bytecode"
	"github.com/corvid-lang/corvid/compiler"
)

var log = commonlog.GetLogger("corvid.engine")

// Engine runs source text through lex, parse, lowering and interpretation.
// Top-level declarations accumulate across Execute calls; a failed call
// leaves all persistent state untouched.
type Engine struct {
	vm          *bytecode.VM
	globalScope *bytecode.Scope
	globals     []bytecode.Value
	funcs       map[bytecode.FunctionID]*bytecode.Chunk
	nextFuncID  bytecode.FunctionID
}

// New creates a fresh engine with an empty global scope.
func New() *Engine {
	return &Engine{
		vm:          bytecode.NewVM(),
		globalScope: bytecode.NewGlobalScope(),
		funcs:       make(map[bytecode.FunctionID]*bytecode.Chunk),
		nextFuncID:  1,
	}
}

// SetOutput redirects the print builtin.
func (e *Engine) SetOutput(w io.Writer) {
	e.vm.SetOutput(w)
}

// SetMaxCallDepth bounds the interpreter's call stack.
func (e *Engine) SetMaxCallDepth(depth int) {
	e.vm.SetMaxCallDepth(depth)
}

// SetTrace toggles instruction tracing on the interpreter.
func (e *Engine) SetTrace(on bool) {
	e.vm.Trace = on
}

// Execute runs one source text and returns its result value. New top-level
// declarations, slot values and compiled functions are committed only when
// the whole pipeline succeeds.
func (e *Engine) Execute(source string) (bytecode.Value, error) {
	chunk, comp, err := e.compile(source)
	if err != nil {
		return bytecode.Undefined, err
	}

	// Working copies: the persistent state commits only on success.
	globals := e.growGlobals(chunk.LocalCount)
	funcs := e.mergedFunctions(comp.Functions())

	result, err := e.vm.Run(chunk, funcs, globals)
	if err != nil {
		log.Debugf("execution failed, rolling back: %s", err.Error())
		return bytecode.Undefined, err
	}

	e.globalScope = comp.Scope()
	e.globals = globals
	e.funcs = funcs
	e.nextFuncID += bytecode.FunctionID(len(comp.Functions()))
	return result, nil
}

// Compile lowers source text without executing or committing anything.
// It returns the entry chunk and the function table the chunk needs,
// including functions compiled in earlier successful executions.
func (e *Engine) Compile(source string) (*bytecode.Chunk, map[bytecode.FunctionID]*bytecode.Chunk, error) {
	chunk, comp, err := e.compile(source)
	if err != nil {
		return nil, nil, err
	}
	return chunk, e.mergedFunctions(comp.Functions()), nil
}

// RunChunk executes a previously compiled chunk against a throwaway global
// frame. Nothing is committed to the engine's persistent state.
func (e *Engine) RunChunk(chunk *bytecode.Chunk, funcs map[bytecode.FunctionID]*bytecode.Chunk) (bytecode.Value, error) {
	globals := make([]bytecode.Value, chunk.LocalCount)
	return e.vm.Run(chunk, funcs, globals)
}

// compile runs lex, parse and lowering against a clone of the global
// scope, so a failure cannot disturb the persistent one.
func (e *Engine) compile(source string) (*bytecode.Chunk, *bytecode.Compiler, error) {
	prog, err := compiler.NewParser(source).Parse()
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("parsed %d top-level statements", len(prog.Statements))

	comp := bytecode.NewCompiler(e.globalScope.Clone(), e.nextFuncID)
	chunk, err := comp.Compile(prog)
	if err != nil {
		return nil, nil, err
	}
	log.Debugf("lowered to %d code bytes, %d constants, %d locals, %d functions",
		len(chunk.Code), len(chunk.Constants), chunk.LocalCount, len(comp.Functions()))

	return chunk, comp, nil
}

// growGlobals copies the persistent global slots into a slice sized for
// the new chunk, filling new slots with undefined.
func (e *Engine) growGlobals(localCount int) []bytecode.Value {
	size := localCount
	if size < len(e.globals) {
		size = len(e.globals)
	}
	globals := make([]bytecode.Value, size)
	copy(globals, e.globals)
	return globals
}

// mergedFunctions builds the function table for one run: the persistent
// table plus the chunks compiled this time, ids continuing from
// nextFuncID.
func (e *Engine) mergedFunctions(fresh []*bytecode.Chunk) map[bytecode.FunctionID]*bytecode.Chunk {
	funcs := make(map[bytecode.FunctionID]*bytecode.Chunk, len(e.funcs)+len(fresh))
	for id, chunk := range e.funcs {
		funcs[id] = chunk
	}
	for i, chunk := range fresh {
		funcs[e.nextFuncID+bytecode.FunctionID(i)] = chunk
	}
	return funcs
}
