package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/fallen/migen/internal/ast"
	"github.com/fallen/migen/internal/compiler"
	"github.com/fallen/migen/internal/config"
	"github.com/fallen/migen/internal/hdl"
	"github.com/fallen/migen/internal/ioseq"
	"github.com/fallen/migen/internal/verilog"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "build":
		if err := cmdBuild(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "dump":
		if err := cmdDump(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "sim":
		if err := cmdSim(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "repl":
		if err := cmdRepl(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		usage()
	case "version", "--version":
		fmt.Println("fsmc", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`fsmc compiles a restricted Python function into an FSM in Verilog

Usage:
  fsmc build [-o out.v] [-config fsmc.yaml] [-force] [-v] <file.py>
  fsmc dump [-config fsmc.yaml] <file.py>
  fsmc sim [-config fsmc.yaml] [-cycles N] [-input rx=1,2,3] <file.py>
  fsmc repl [-config fsmc.yaml]

Commands:
  build    Compile a source file into a Verilog module
  dump     Print the syntax tree, abstract states and registers
  sim      Run the compiled machine against always-ready I/O
  repl     Compile functions interactively
  version  Print the fsmc version

Flags (build):
  -o       Output file (default: project output, else <input>.v)
  -config  YAML project file with scope constants and I/O resources
  -force   Rewrite the output even if its source digest is unchanged
  -v       Trace compilation to stderr`)
}

// -------------- BUILD --------------

func cmdBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var out, cfgPath string
	var force, verbose bool

	fs.StringVar(&out, "o", "", "output file (default: <input>.v)")
	fs.StringVar(&cfgPath, "config", "", "project file")
	fs.BoolVar(&force, "force", false, "rewrite unchanged output")
	fs.BoolVar(&verbose, "v", false, "trace compilation")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("build: missing input file")
	}
	input := fs.Arg(0)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if out == "" {
		out = cfg.Output
	}
	if out == "" {
		out = input[:len(input)-len(filepath.Ext(input))] + ".v"
	}

	var logger *log.Logger
	if verbose {
		logger = log.New(os.Stderr, "fsmc: ", 0)
	}

	src, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	settings, err := cfg.Fingerprint()
	if err != nil {
		return err
	}
	digest := verilog.Digest(src, settings)
	if !force && upToDate(out, digest) {
		if logger != nil {
			logger.Printf("%s is up to date", out)
		}
		return nil
	}

	opts := cfg.Options()
	opts.Logger = logger
	res, err := compiler.Compile(string(src), opts)
	if err != nil {
		return reportCompileError(input, err)
	}

	var buf bytes.Buffer
	if err := verilog.Write(&buf, designOf(res, cfg, digest)); err != nil {
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if logger != nil {
		logger.Printf("wrote %s (%d states, %d registers)", out, len(res.States), len(res.Registers))
	}
	return nil
}

func upToDate(path, digest string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	d, err := verilog.ReadDigest(f)
	return err == nil && d == digest
}

func designOf(res *compiler.Result, cfg *config.Config, digest string) *verilog.Module {
	name := res.Name
	if cfg.Module != "" {
		name = cfg.Module
	}
	var ports []ioseq.Port
	for _, r := range res.IO {
		ports = append(ports, r.Ports()...)
	}
	return &verilog.Module{
		Name:     name,
		Ports:    ports,
		Fragment: res.Fragment,
		Digest:   digest,
	}
}

// -------------- DUMP --------------

func cmdDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "project file")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("dump: missing input file")
	}
	input := fs.Arg(0)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	mod, err := compiler.Parse(string(src))
	if err != nil {
		return reportCompileError(input, err)
	}
	fmt.Print(ast.Dump(mod))

	res, err := compiler.CompileModule(mod, cfg.Options())
	if err != nil {
		return reportCompileError(input, err)
	}
	fmt.Println()
	printResult(os.Stdout, res)
	return nil
}

func printResult(w io.Writer, res *compiler.Result) {
	fmt.Fprintf(w, "function %s: %d states\n", res.Name, len(res.States))
	for i, st := range res.States {
		fmt.Fprintf(w, "S%d:\n", i)
		hdl.Fprint(w, st.Body, 1, res.Machine.Describe)
	}
	for _, r := range res.Registers {
		fmt.Fprintf(w, "register %s: %d bits, selector %s (%d bits)\n",
			r.Name(), r.Storage().Bits, r.Selector().Name, r.Selector().Bits)
		for i, s := range r.Sources() {
			fmt.Fprintf(w, "  %d: %s\n", i+1, hdl.FormatValue(s))
		}
	}
}

// -------------- shared --------------

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// reportCompileError prints every diagnostic prefixed with the file name.
func reportCompileError(path string, err error) error {
	var syntax *compiler.SyntaxError
	if errors.As(err, &syntax) {
		for _, e := range syntax.Errors {
			fmt.Fprintf(os.Stderr, "%s:%s\n", path, e)
		}
		return fmt.Errorf("parsing failed with %d errors", len(syntax.Errors))
	}
	fmt.Fprintf(os.Stderr, "%s:%s\n", path, err)
	return fmt.Errorf("compilation failed")
}
