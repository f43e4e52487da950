package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	chocopy "github.com/ckitagawa/chocopyc"
	"github.com/ckitagawa/chocopyc/ascii"
	"github.com/ckitagawa/chocopyc/check"
	"github.com/ckitagawa/chocopyc/codegen"
	"github.com/ckitagawa/chocopyc/objwriter"
	"github.com/ckitagawa/chocopyc/runtime"
)

const defaultWritePermission = 0644

type args struct {
	sourcePath *string
	outputPath *string
	astOnly    *bool
}

func readArgs() *args {
	a := &args{
		sourcePath: flag.String("input", "", "Path to the ChocoPy source file (also accepted as the first positional argument)"),
		outputPath: flag.String("output", "", "Path to the output object file (defaults to <source>.o)"),
		astOnly:    flag.Bool("ast-only", false, "Print the type-checked AST as JSON instead of emitting an object file"),
	}
	flag.Parse()
	if *a.sourcePath == "" {
		if rest := flag.Args(); len(rest) > 0 {
			*a.sourcePath = rest[0]
		}
	}
	if *a.outputPath == "" && len(flag.Args()) > 1 {
		*a.outputPath = flag.Args()[1]
	}
	return a
}

func main() {
	a := readArgs()
	if *a.sourcePath == "" {
		log.Fatal("source file not informed")
	}
	outputPath := *a.outputPath
	if outputPath == "" {
		outputPath = strings.TrimSuffix(*a.sourcePath, ".py") + ".o"
	}

	src, err := os.ReadFile(*a.sourcePath)
	if err != nil {
		log.Fatalf("can't read source file: %s", err.Error())
	}

	p := chocopy.NewParser(string(src))
	prog := p.Parse()

	if errs := check.Analyze(prog); len(errs) > 0 {
		prog.Errors = append(prog.Errors, errs...)
	}

	if len(prog.Errors) > 0 {
		printErrors(os.Stderr, *a.sourcePath, string(src), prog.Errors)
		os.Exit(1)
	}

	if *a.astOnly {
		data, err := prog.MarshalJSON()
		if err != nil {
			log.Fatalf("can't marshal AST: %s", err.Error())
		}
		os.Stdout.Write(data)
		fmt.Fprintln(os.Stdout)
		return
	}

	set := codegen.Generate(prog)
	set.Chunks = append(set.Chunks, runtime.Chunks()...)

	obj, err := objwriter.WriteELF(set)
	if err != nil {
		log.Fatalf("can't assemble object file: %s", err.Error())
	}
	if err := os.WriteFile(outputPath, obj, defaultWritePermission); err != nil {
		log.Fatalf("can't write output: %s", err.Error())
	}

	fmt.Fprintf(os.Stderr, "wrote %s; link with: cc -o %s %s\n",
		outputPath, strings.TrimSuffix(outputPath, ".o"), outputPath)
}

// printErrors renders each compiler error with a caret pointing at its
// column, in the style of a one-line source excerpt followed by a
// colored marker — the terminal diagnostic format spec.md's CLI
// section calls for, built on the kept ascii color package.
func printErrors(w *os.File, path, src string, errs []chocopy.CompilerError) {
	lines := strings.Split(src, "\n")
	for _, e := range errs {
		row := e.Loc.Start.Row
		col := e.Loc.Start.Col
		fmt.Fprintf(w, "%d, %d: %s\n", row, col, ascii.Color(ascii.DefaultTheme.Error, "%s", e.Message))
		if row-1 >= 0 && row-1 < len(lines) {
			line := lines[row-1]
			fmt.Fprintln(w, line)
			pad := strings.Repeat(" ", max(col-1, 0))
			fmt.Fprintln(w, ascii.Color(ascii.DefaultTheme.Accent, "%s^", pad))
		}
	}
}
