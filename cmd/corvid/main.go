// corvid - a bytecode-interpreted JavaScript subset engine
//
// Usage:
//   corvid                       # interactive REPL
//   corvid program.js            # execute a source file
//   corvid -e 'print(1 + 2)'     # evaluate an argument string
//   corvid -S program.js         # print a disassembly listing
//   corvid -emit-bytecode out.cvb program.js
//   corvid -load-bytecode out.cvb
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/corvid-lang/corvid/bytecode"
	"github.com/corvid-lang/corvid/config"
	"github.com/corvid-lang/corvid/dist"
	"github.com/corvid-lang/corvid/engine"

	_ "github.com/tliron/commonlog/simple"
)

var (
	evalSource  = flag.String("e", "", "Evaluate the given source text and exit")
	disassemble = flag.Bool("S", false, "Print a disassembly listing instead of executing")
	emitPath    = flag.String("emit-bytecode", "", "Compile to a bytecode snapshot at the given path")
	loadPath    = flag.String("load-bytecode", "", "Execute a bytecode snapshot instead of source")
	configPath  = flag.String("config", "", "Path to corvid.toml (default: nearest one above the working directory)")
	verbosity   = flag.Int("v", -1, "Log verbosity, 0-2 (overrides corvid.toml)")
	trace       = flag.Bool("trace", false, "Trace executed instructions to stderr")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	level := cfg.Log.Verbosity
	if *verbosity >= 0 {
		level = *verbosity
	}
	commonlog.Configure(level, nil)

	eng := engine.New()
	eng.SetMaxCallDepth(cfg.Engine.MaxCallDepth)
	eng.SetTrace(*trace)

	switch {
	case *loadPath != "":
		return runSnapshot(eng, *loadPath)
	case *evalSource != "":
		return runSource(eng, *evalSource)
	case flag.NArg() == 0:
		return repl(eng, cfg)
	case flag.NArg() == 1:
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return runSource(eng, string(data))
	default:
		fmt.Fprintln(os.Stderr, "usage: corvid [flags] [file.js]")
		return 1
	}
}

// loadConfig resolves the configuration from -config or the nearest
// corvid.toml, falling back to defaults.
func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.Load(*configPath)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return config.Default(), nil
	}
	cfg, err := config.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

// runSource handles file-mode semantics: nothing is printed on success
// unless the program itself printed.
func runSource(eng *engine.Engine, source string) int {
	if *disassemble || *emitPath != "" {
		return compileOnly(eng, source)
	}

	if _, err := eng.Execute(source); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// compileOnly compiles without executing, for -S and -emit-bytecode.
func compileOnly(eng *engine.Engine, source string) int {
	chunk, funcs, err := eng.Compile(source)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *disassemble {
		fmt.Print(bytecode.Disassemble(chunk))

		ids := make([]int, 0, len(funcs))
		for id := range funcs {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)
		for _, id := range ids {
			fmt.Printf("\n; function %d\n", id)
			fmt.Print(bytecode.Disassemble(funcs[bytecode.FunctionID(id)]))
		}
	}

	if *emitPath != "" {
		data, err := dist.MarshalProgram(dist.NewProgram(chunk, funcs))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := os.WriteFile(*emitPath, data, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	return 0
}

// runSnapshot executes a bytecode snapshot produced by -emit-bytecode.
func runSnapshot(eng *engine.Engine, path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	prog, err := dist.UnmarshalProgram(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if _, err := eng.RunChunk(prog.Main, prog.Functions); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// repl reads lines, executes each and displays non-undefined results.
// Errors are reported and the loop continues.
func repl(eng *engine.Engine, cfg *config.Config) int {
	fmt.Println(cfg.REPL.Banner)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(cfg.REPL.Prompt)
		if !scanner.Scan() {
			return 0
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return 0
		}

		result, err := eng.Execute(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}

		// Suppress undefined so print calls do not leave a trailing
		// "undefined" line.
		if result.Kind != bytecode.KindUndefined {
			fmt.Println(result.String())
		}
	}
}
