package bytecode

import (
	"errors"
	"testing"

	"github.com/corvid-lang/corvid/compiler"
)

// compileSource lowers source text against a fresh global scope.
func compileSource(t *testing.T, source string) (*Chunk, *Compiler) {
	t.Helper()
	prog, err := compiler.NewParser(source).Parse()
	if err != nil {
		t.Fatalf("parse %q: %v", source, err)
	}
	c := NewCompiler(NewGlobalScope(), 1)
	chunk, err := c.Compile(prog)
	if err != nil {
		t.Fatalf("compile %q: %v", source, err)
	}
	if err := chunk.Validate(); err != nil {
		t.Fatalf("compile %q produced malformed chunk: %v", source, err)
	}
	return chunk, c
}

// compileError lowers source text expecting a failure.
func compileError(t *testing.T, source string) error {
	t.Helper()
	prog, err := compiler.NewParser(source).Parse()
	if err != nil {
		t.Fatalf("parse %q: %v", source, err)
	}
	_, err = NewCompiler(NewGlobalScope(), 1).Compile(prog)
	if err == nil {
		t.Fatalf("compile %q: expected error", source)
	}
	return err
}

func TestCompileNumber(t *testing.T) {
	chunk, _ := compileSource(t, "42")

	want := []byte{byte(OpConst), 0, 0}
	if string(chunk.Code) != string(want) {
		t.Errorf("code = %v, want %v", chunk.Code, want)
	}
	if len(chunk.Constants) != 1 || chunk.Constants[0] != NumberValue(42) {
		t.Errorf("constants = %v, want [42]", chunk.Constants)
	}
	if chunk.LocalCount != 0 {
		t.Errorf("local count = %d, want 0", chunk.LocalCount)
	}
}

func TestCompileBinaryExpr(t *testing.T) {
	chunk, _ := compileSource(t, "1 + 2")

	want := []byte{
		byte(OpConst), 0, 0,
		byte(OpConst), 0, 1,
		byte(OpAdd),
	}
	if string(chunk.Code) != string(want) {
		t.Errorf("code = %v, want %v", chunk.Code, want)
	}
}

func TestCompileLetDecl(t *testing.T) {
	chunk, _ := compileSource(t, "let x = 10;")

	want := []byte{
		byte(OpConst), 0, 0,
		byte(OpStoreLocal), 0, 0,
	}
	if string(chunk.Code) != string(want) {
		t.Errorf("code = %v, want %v", chunk.Code, want)
	}
	if chunk.LocalCount != 1 {
		t.Errorf("local count = %d, want 1", chunk.LocalCount)
	}
}

func TestCompileIdentifierLoad(t *testing.T) {
	chunk, _ := compileSource(t, "let x = 1; x")

	want := []byte{
		byte(OpConst), 0, 0,
		byte(OpStoreLocal), 0, 0,
		byte(OpLoadLocal), 0, 0,
	}
	if string(chunk.Code) != string(want) {
		t.Errorf("code = %v, want %v", chunk.Code, want)
	}
}

func TestCompileConstantDeduplication(t *testing.T) {
	chunk, _ := compileSource(t, "1 + 1 + 1")
	if len(chunk.Constants) != 1 {
		t.Errorf("constants = %v, want a single interned 1", chunk.Constants)
	}
}

func TestCompileIfWithoutElse(t *testing.T) {
	chunk, _ := compileSource(t, "let x = 1; if (x) { 2 }")

	want := []byte{
		byte(OpConst), 0, 0, // 1
		byte(OpStoreLocal), 0, 0,
		byte(OpLoadLocal), 0, 0,
		byte(OpJumpFalse), 0, 3, // over the then block
		byte(OpConst), 0, 1, // 2
	}
	if string(chunk.Code) != string(want) {
		t.Errorf("code = %v, want %v", chunk.Code, want)
	}
}

func TestCompileIfElse(t *testing.T) {
	chunk, _ := compileSource(t, "if (1) { 2 } else { 3 }")

	want := []byte{
		byte(OpConst), 0, 0, // cond 1
		byte(OpJumpFalse), 0, 6, // to the else block
		byte(OpConst), 0, 1, // then: 2
		byte(OpJump), 0, 3, // over the else block
		byte(OpConst), 0, 2, // else: 3
	}
	if string(chunk.Code) != string(want) {
		t.Errorf("code = %v, want %v", chunk.Code, want)
	}
}

func TestCompileForLoop(t *testing.T) {
	chunk, _ := compileSource(t, "for (let i = 1; 0; i) { }")

	want := []byte{
		byte(OpConst), 0, 0, // 1
		byte(OpStoreLocal), 0, 0, // i
		byte(OpConst), 0, 1, // cond 0, loop start = offset 6
		byte(OpJumpFalse), 0, 6, // exit to offset 18
		byte(OpLoadLocal), 0, 0, // update: i
		byte(OpJump), 0xFF, 0xF4, // back -12 to offset 6
	}
	if string(chunk.Code) != string(want) {
		t.Errorf("code = %v, want %v", chunk.Code, want)
	}
}

func TestCompilePrintBuiltin(t *testing.T) {
	chunk, _ := compileSource(t, "print(42)")

	want := []byte{
		byte(OpConst), 0, 0,
		byte(OpPrint), 1,
	}
	if string(chunk.Code) != string(want) {
		t.Errorf("code = %v, want %v", chunk.Code, want)
	}
}

func TestCompileShadowedPrintIsPlainCall(t *testing.T) {
	chunk, _ := compileSource(t, "let print = 5; print(1)")

	want := []byte{
		byte(OpConst), 0, 0, // 5
		byte(OpStoreLocal), 0, 0,
		byte(OpLoadLocal), 0, 0, // callee
		byte(OpConst), 0, 1, // 1
		byte(OpCall), 1,
	}
	if string(chunk.Code) != string(want) {
		t.Errorf("code = %v, want %v", chunk.Code, want)
	}
}

func TestCompileFunctionDecl(t *testing.T) {
	chunk, c := compileSource(t, "function add(a, b) { return a + b; }")

	funcs := c.Functions()
	if len(funcs) != 1 {
		t.Fatalf("functions = %d, want 1", len(funcs))
	}

	body := funcs[0]
	if body.LocalCount != 2 {
		t.Errorf("body local count = %d, want 2", body.LocalCount)
	}
	wantBody := []byte{
		byte(OpLoadLocal), 0, 0,
		byte(OpLoadLocal), 0, 1,
		byte(OpAdd),
		byte(OpReturn),
	}
	if string(body.Code) != string(wantBody) {
		t.Errorf("body code = %v, want %v", body.Code, wantBody)
	}

	// The declaration binds the name to Function(1) in the outer chunk.
	wantMain := []byte{
		byte(OpConst), 0, 0,
		byte(OpStoreLocal), 0, 0,
	}
	if string(chunk.Code) != string(wantMain) {
		t.Errorf("main code = %v, want %v", chunk.Code, wantMain)
	}
	if chunk.Constants[0] != FunctionValue(1) {
		t.Errorf("constant = %v, want Function(1)", chunk.Constants[0])
	}
}

func TestCompileNestedFunctionIDs(t *testing.T) {
	_, c := compileSource(t, `
		function f() { function g() { return 7; } return g(); }
		function h() { return 1; }
	`)

	funcs := c.Functions()
	if len(funcs) != 3 {
		t.Fatalf("functions = %d, want 3", len(funcs))
	}
	for i, fn := range funcs {
		if fn == nil {
			t.Errorf("function %d never filled in", i)
		}
	}
}

func TestCompileBlockScoping(t *testing.T) {
	// Block-local declarations burn chain slots; the chunk reserves all of
	// them, and names fall out of scope at the closing brace.
	chunk, _ := compileSource(t, "let a = 1; { let b = 2; } let c = 3;")
	if chunk.LocalCount != 3 {
		t.Errorf("local count = %d, want 3", chunk.LocalCount)
	}

	err := compileError(t, "{ let b = 2; } b")
	var undef *UndefinedNameError
	if !errors.As(err, &undef) {
		t.Fatalf("error = %T (%v), want *UndefinedNameError", err, err)
	}
	if undef.Name != "b" {
		t.Errorf("name = %q, want %q", undef.Name, "b")
	}
}

func TestCompileUndefinedVariable(t *testing.T) {
	err := compileError(t, "x + 1")

	var undef *UndefinedNameError
	if !errors.As(err, &undef) {
		t.Fatalf("error = %T (%v), want *UndefinedNameError", err, err)
	}
	if undef.Name != "x" {
		t.Errorf("name = %q, want %q", undef.Name, "x")
	}
	want := "Compile error: Undefined variable 'x' at 0:1"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestCompileClosureIsUnsupported(t *testing.T) {
	sources := []string{
		"let x = 1; function f() { return x; }",
		"function f() { return f(); }", // the name binds after the body
	}

	err := compileError(t, sources[0])
	var unsupported *UnsupportedFeatureError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %T (%v), want *UnsupportedFeatureError", err, err)
	}
	if unsupported.Feature != "closures" {
		t.Errorf("feature = %q, want %q", unsupported.Feature, "closures")
	}

	err = compileError(t, sources[1])
	var undef *UndefinedNameError
	if !errors.As(err, &undef) {
		t.Fatalf("error = %T (%v), want *UndefinedNameError", err, err)
	}
}

func TestCompileScopeAccumulates(t *testing.T) {
	_, c := compileSource(t, "let x = 1; let y = 2;")

	scope := c.Scope()
	if scope.Kind() != ScopeGlobal {
		t.Errorf("final scope kind = %v, want global", scope.Kind())
	}
	if _, ok := scope.Lookup("x"); !ok {
		t.Error("x missing from final scope")
	}
	if _, ok := scope.Lookup("y"); !ok {
		t.Error("y missing from final scope")
	}
}
