// Shrike CLI - compiles ECMAScript source to bytecode images.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/shrikejs/shrike/bytecode"
	"github.com/shrikejs/shrike/compiler"
	"github.com/shrikejs/shrike/engine"
)

func main() {
	verbose := flag.Int("v", 0, "Log verbosity (0-2)")
	showInstrs := flag.Bool("show-instrs", false, "Dump instructions while compiling")
	disasm := flag.Bool("d", false, "Print the disassembled image")
	snapshotOut := flag.String("snapshot", "", "Write a snapshot of the compiled image to this file")
	evalMode := flag.Bool("eval", false, "Compile as eval code")
	strictEval := flag.Bool("strict-eval", false, "Eval inherits strict mode (with --eval)")
	configDir := flag.String("config", "", "Directory containing shrike.toml (default: walk up from the source file's directory)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: shrike [options] file.js\n\n")
		fmt.Fprintf(os.Stderr, "Compiles an ECMAScript 5.1 source file to a bytecode image.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  shrike -d script.js              # Compile and disassemble\n")
		fmt.Fprintf(os.Stderr, "  shrike -snapshot out.sbc app.js  # Compile and save a snapshot\n")
		fmt.Fprintf(os.Stderr, "  shrike --eval 'x + 1'            # Not supported; pass a file\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	commonlog.Configure(*verbose, nil)

	path := flag.Arg(0)
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		os.Exit(1)
	}

	dir := *configDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	cfg, err := engine.FindAndLoadConfig(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *showInstrs {
		cfg.Debug.ShowInstructions = true
	}

	ctx := engine.Init(cfg)
	defer func() {
		if err := ctx.Finalize(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}()

	var result compiler.Result
	if *evalMode {
		result = ctx.CompileEval(source, *strictEval)
	} else {
		result = ctx.CompileScript(source)
	}

	if result.Status != compiler.StatusOK {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, result.Err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d instructions, %d literals\n", path, len(result.Image.Instrs), ctx.Literals.Count())
	if *evalMode {
		fmt.Printf("contains functions: %v\n", result.ContainsFunctions)
	}

	if *disasm {
		fmt.Print(bytecode.Disassemble(result.Image, ctx.Literals))
	}

	if *snapshotOut != "" {
		data, err := result.Image.Snapshot(ctx.Literals)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building snapshot: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*snapshotOut, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *snapshotOut, err)
			os.Exit(1)
		}
		fmt.Printf("snapshot: %s (%d bytes)\n", *snapshotOut, len(data))
	}
}
