package bytecode

import (
	"fmt"

	"github.com/corvid-lang/corvid/compiler"
)

// ---------------------------------------------------------------------------
// Compiler: lower the AST to bytecode
// ---------------------------------------------------------------------------

const (
	maxConstants = 1 << 16
	maxLocals    = 1 << 16
	maxArguments = 255
	maxJumpDelta = 1<<15 - 1
	minJumpDelta = -(1 << 15)
)

// functionSet collects the function chunks produced during one compilation.
// It is shared between the top-level compiler and the nested compilers for
// function bodies so that ids stay globally unique.
type functionSet struct {
	base   FunctionID
	chunks []*Chunk
}

// reserve allocates the next function id and a table index for it. The
// chunk is filled in once the body has compiled.
func (f *functionSet) reserve() (FunctionID, int) {
	id := f.base + FunctionID(len(f.chunks))
	f.chunks = append(f.chunks, nil)
	return id, len(f.chunks) - 1
}

// Compiler lowers a parsed program to a chunk. Each function body gets its
// own nested Compiler with a fresh chunk and a fresh function scope.
type Compiler struct {
	chunk       *Chunk
	scope       *Scope
	constantMap map[Value]int // dedup constants
	funcs       *functionSet
	pending     map[int]bool // unresolved jump placeholder offsets
}

// NewCompiler creates a compiler rooted at the given scope. Function ids
// assigned during this compilation start at nextID.
func NewCompiler(scope *Scope, nextID FunctionID) *Compiler {
	return &Compiler{
		chunk:       NewChunk(),
		scope:       scope,
		constantMap: make(map[Value]int),
		funcs:       &functionSet{base: nextID},
		pending:     make(map[int]bool),
	}
}

// newNested creates a compiler for a function body, sharing the function
// set with its parent.
func (c *Compiler) newNested() *Compiler {
	return &Compiler{
		chunk:       NewChunk(),
		scope:       c.scope.Function(),
		constantMap: make(map[Value]int),
		funcs:       c.funcs,
		pending:     make(map[int]bool),
	}
}

// Compile lowers the program and returns the entry chunk.
func (c *Compiler) Compile(prog *compiler.Program) (*Chunk, error) {
	for _, stmt := range prog.Statements {
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	return c.finish()
}

// finish seals the chunk: record the local count and verify that every
// jump placeholder was patched.
func (c *Compiler) finish() (*Chunk, error) {
	c.chunk.LocalCount = c.scope.LocalCount()
	if len(c.pending) > 0 {
		return nil, &OptimizationFailedError{
			Reason: fmt.Sprintf("%d unresolved jump placeholders", len(c.pending)),
		}
	}
	return c.chunk, nil
}

// Functions returns the function chunks compiled during Compile, in id
// order starting at the compiler's base id.
func (c *Compiler) Functions() []*Chunk {
	return c.funcs.chunks
}

// Scope returns the compiler's scope. After Compile it is the root scope
// again, carrying every top-level declaration made during lowering.
func (c *Compiler) Scope() *Scope {
	return c.scope
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) compileStmt(stmt compiler.Stmt) error {
	switch n := stmt.(type) {
	case *compiler.LetDecl:
		return c.compileLetDecl(n)
	case *compiler.FunctionDecl:
		return c.compileFunctionDecl(n)
	case *compiler.IfStmt:
		return c.compileIf(n)
	case *compiler.ForStmt:
		return c.compileFor(n)
	case *compiler.ReturnStmt:
		return c.compileReturn(n)
	case *compiler.BlockStmt:
		return c.compileBlock(n)
	case compiler.Expr:
		return c.compileExpr(n)
	default:
		return &UnsupportedFeatureError{Feature: fmt.Sprintf("statement %T", stmt)}
	}
}

func (c *Compiler) compileLetDecl(n *compiler.LetDecl) error {
	if err := c.compileExpr(n.Init); err != nil {
		return err
	}
	return c.emitStoreLocal(c.scope.Declare(n.Name))
}

func (c *Compiler) compileFunctionDecl(n *compiler.FunctionDecl) error {
	id, idx := c.funcs.reserve()

	fc := c.newNested()
	for _, param := range n.Params {
		fc.scope.Declare(param)
	}
	for _, stmt := range n.Body.Statements {
		if err := fc.compileStmt(stmt); err != nil {
			return err
		}
	}
	chunk, err := fc.finish()
	if err != nil {
		return err
	}
	c.funcs.chunks[idx] = chunk

	// Bind the name to the function value in the enclosing scope.
	if err := c.emitConstant(FunctionValue(id)); err != nil {
		return err
	}
	return c.emitStoreLocal(c.scope.Declare(n.Name))
}

func (c *Compiler) compileIf(n *compiler.IfStmt) error {
	if err := c.compileExpr(n.Cond); err != nil {
		return err
	}

	falseJump := c.emitJump(OpJumpFalse)
	if err := c.compileBlock(n.Then); err != nil {
		return err
	}

	if n.Else == nil {
		return c.patchJump(falseJump)
	}

	endJump := c.emitJump(OpJump)
	if err := c.patchJump(falseJump); err != nil {
		return err
	}
	if err := c.compileBlock(n.Else); err != nil {
		return err
	}
	return c.patchJump(endJump)
}

func (c *Compiler) compileFor(n *compiler.ForStmt) error {
	if err := c.compileStmt(n.Init); err != nil {
		return err
	}

	loopStart := len(c.chunk.Code)
	if err := c.compileExpr(n.Cond); err != nil {
		return err
	}

	exitJump := c.emitJump(OpJumpFalse)
	if err := c.compileBlock(n.Body); err != nil {
		return err
	}
	if err := c.compileExpr(n.Update); err != nil {
		return err
	}
	if err := c.emitLoop(loopStart); err != nil {
		return err
	}
	return c.patchJump(exitJump)
}

func (c *Compiler) compileReturn(n *compiler.ReturnStmt) error {
	if err := c.compileExpr(n.Value); err != nil {
		return err
	}
	c.emit(OpReturn)
	return nil
}

func (c *Compiler) compileBlock(n *compiler.BlockStmt) error {
	c.scope = c.scope.Block()
	for _, stmt := range n.Statements {
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	c.scope = c.scope.Parent()
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Compiler) compileExpr(expr compiler.Expr) error {
	switch n := expr.(type) {
	case *compiler.NumberLiteral:
		return c.emitConstant(NumberValue(n.Value))
	case *compiler.Identifier:
		return c.compileIdentifier(n)
	case *compiler.BinaryExpr:
		return c.compileBinary(n)
	case *compiler.CallExpr:
		return c.compileCall(n)
	default:
		return &UnsupportedFeatureError{Feature: fmt.Sprintf("expression %T", expr)}
	}
}

func (c *Compiler) compileIdentifier(n *compiler.Identifier) error {
	slot, crossed, ok := c.scope.Resolve(n.Name)
	if !ok {
		return &UndefinedNameError{Name: n.Name, Span: n.SpanVal}
	}
	if crossed {
		return &UnsupportedFeatureError{Feature: "closures"}
	}
	c.emit(OpLoadLocal)
	c.emitUint16(uint16(slot))
	return nil
}

func (c *Compiler) compileBinary(n *compiler.BinaryExpr) error {
	if err := c.compileExpr(n.Left); err != nil {
		return err
	}
	if err := c.compileExpr(n.Right); err != nil {
		return err
	}

	switch n.Op {
	case compiler.BinAdd:
		c.emit(OpAdd)
	case compiler.BinSub:
		c.emit(OpSub)
	case compiler.BinMul:
		c.emit(OpMul)
	case compiler.BinDiv:
		c.emit(OpDiv)
	default:
		return &UnsupportedFeatureError{Feature: fmt.Sprintf("operator %s", n.Op)}
	}
	return nil
}

func (c *Compiler) compileCall(n *compiler.CallExpr) error {
	if len(n.Args) > maxArguments {
		return &UnsupportedFeatureError{
			Feature: fmt.Sprintf("calls with more than %d arguments", maxArguments),
		}
	}

	// A call whose callee is the literal identifier `print`, with no user
	// declaration shadowing it, lowers to the dedicated print opcode.
	if callee, ok := n.Callee.(*compiler.Identifier); ok && callee.Name == "print" {
		if _, bound := c.scope.Lookup("print"); !bound {
			for _, arg := range n.Args {
				if err := c.compileExpr(arg); err != nil {
					return err
				}
			}
			c.emit(OpPrint)
			c.emitByte(byte(len(n.Args)))
			return nil
		}
	}

	if err := c.compileExpr(n.Callee); err != nil {
		return err
	}
	for _, arg := range n.Args {
		if err := c.compileExpr(arg); err != nil {
			return err
		}
	}
	c.emit(OpCall)
	c.emitByte(byte(len(n.Args)))
	return nil
}

// ---------------------------------------------------------------------------
// Emit helpers
// ---------------------------------------------------------------------------

func (c *Compiler) emit(op Opcode) int {
	offset := len(c.chunk.Code)
	c.chunk.Code = append(c.chunk.Code, byte(op))
	return offset
}

func (c *Compiler) emitByte(b byte) {
	c.chunk.Code = append(c.chunk.Code, b)
}

func (c *Compiler) emitUint16(v uint16) {
	c.chunk.Code = append(c.chunk.Code, byte(v>>8), byte(v))
}

func (c *Compiler) emitStoreLocal(slot int) error {
	if slot >= maxLocals {
		return &UnsupportedFeatureError{
			Feature: fmt.Sprintf("more than %d locals in one chunk", maxLocals),
		}
	}
	c.emit(OpStoreLocal)
	c.emitUint16(uint16(slot))
	return nil
}

// addConstant interns a value in the constant pool.
func (c *Compiler) addConstant(v Value) int {
	if idx, ok := c.constantMap[v]; ok {
		return idx
	}
	idx := len(c.chunk.Constants)
	c.chunk.Constants = append(c.chunk.Constants, v)
	c.constantMap[v] = idx
	return idx
}

func (c *Compiler) emitConstant(v Value) error {
	idx := c.addConstant(v)
	if idx >= maxConstants {
		return &UnsupportedFeatureError{
			Feature: fmt.Sprintf("more than %d constants in one chunk", maxConstants),
		}
	}
	c.emit(OpConst)
	c.emitUint16(uint16(idx))
	return nil
}

// emitJump emits a jump with a placeholder delta and returns the offset of
// the placeholder for later patching.
func (c *Compiler) emitJump(op Opcode) int {
	c.emit(op)
	offset := len(c.chunk.Code)
	c.chunk.Code = append(c.chunk.Code, 0xFF, 0xFF)
	c.pending[offset] = true
	return offset
}

// patchJump resolves a placeholder to jump to the current end of the code.
// The delta is measured from after the operand, so the interpreter can
// consume the operand before applying it.
func (c *Compiler) patchJump(placeholder int) error {
	delta := len(c.chunk.Code) - (placeholder + 2)
	if delta > maxJumpDelta {
		return &UnsupportedFeatureError{Feature: "jump distance beyond 32767 bytes"}
	}
	c.chunk.Code[placeholder] = byte(uint16(delta) >> 8)
	c.chunk.Code[placeholder+1] = byte(uint16(delta))
	delete(c.pending, placeholder)
	return nil
}

// emitLoop emits a backward jump to loopStart.
func (c *Compiler) emitLoop(loopStart int) error {
	delta := loopStart - (len(c.chunk.Code) + 3)
	if delta < minJumpDelta {
		return &UnsupportedFeatureError{Feature: "loop body beyond 32768 bytes"}
	}
	c.emit(OpJump)
	c.emitUint16(uint16(int16(delta)))
	return nil
}
