package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fallen/migen/internal/compiler"
	"github.com/fallen/migen/internal/sim"
)

// inputFlag collects repeated -input name=v1,v2,... flags.
type inputFlag map[string][]uint64

func (f inputFlag) String() string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		vals := make([]string, len(f[name]))
		for j, v := range f[name] {
			vals[j] = strconv.FormatUint(v, 10)
		}
		parts[i] = name + "=" + strings.Join(vals, ",")
	}
	return strings.Join(parts, " ")
}

func (f inputFlag) Set(s string) error {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=v1,v2,..., got %q", s)
	}
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseUint(field, 0, 64)
		if err != nil {
			return fmt.Errorf("input %s: %w", name, err)
		}
		f[name] = append(f[name], v)
	}
	return nil
}

func cmdSim(args []string) error {
	fs := flag.NewFlagSet("sim", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var cfgPath string
	var cycles int
	inputs := inputFlag{}

	fs.StringVar(&cfgPath, "config", "", "project file")
	fs.IntVar(&cycles, "cycles", 1000, "maximum number of clock cycles")
	fs.Var(inputs, "input", "values delivered by a source, as name=v1,v2,... (repeatable)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("sim: missing input file")
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
	res, err := compiler.Compile(string(src), cfg.Options())
	if err != nil {
		return reportCompileError(input, err)
	}

	s, err := sim.New(res.Fragment)
	if err != nil {
		return err
	}
	bench, err := sim.NewBench(s, res.IO, inputs)
	if err != nil {
		return err
	}
	transfers, n, err := bench.Run(cycles)
	for _, tr := range transfers {
		fmt.Println(tr)
	}
	if err != nil {
		return err
	}

	state := s.Get(res.Machine.State)
	if n < cycles {
		fmt.Printf("idle after %d cycles in state S%d\n", n, state)
	} else {
		fmt.Printf("stopped after %d cycles in state S%d\n", n, state)
	}
	for _, r := range res.Registers {
		fmt.Printf("  %s = %d\n", r.Name(), s.Get(r.Storage()))
	}
	return nil
}
