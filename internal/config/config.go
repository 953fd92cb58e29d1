// Package config loads fsmc project files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/fallen/migen/internal/compiler"
	"github.com/fallen/migen/internal/ioseq"
	"github.com/fallen/migen/internal/token"
)

const (
	KindSink   = "sink"
	KindSource = "source"
)

// Resource declares an I/O endpoint bound into the compiled function's
// scope.
type Resource struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"`
	Width int    `yaml:"width"`
}

// Config is a project file.
//
//	module: blinker
//	output: blinker.v
//	scope:
//	  LIMIT: 10
//	resources:
//	  - name: tx
//	    kind: sink
//	    width: 8
type Config struct {
	// Module overrides the Verilog module name, which defaults to the
	// function name.
	Module    string           `yaml:"module"`
	Output    string           `yaml:"output"`
	Scope     map[string]int64 `yaml:"scope"`
	Resources []Resource       `yaml:"resources"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a project file. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem with the file at once.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]string)
	claim := func(name, what string) {
		if err := checkName(name); err != nil {
			errs = append(errs, fmt.Errorf("%s %q: %w", what, name, err))
			return
		}
		if prev, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("%s %q: already declared as %s", what, name, prev))
			return
		}
		seen[name] = what
	}

	names := make([]string, 0, len(c.Scope))
	for name := range c.Scope {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		claim(name, "scope constant")
	}

	for _, r := range c.Resources {
		claim(r.Name, "resource")
		if r.Kind != KindSink && r.Kind != KindSource {
			errs = append(errs, fmt.Errorf("resource %q: unknown kind %q (want %s or %s)", r.Name, r.Kind, KindSink, KindSource))
		}
		if r.Width < 1 || r.Width > 64 {
			errs = append(errs, fmt.Errorf("resource %q: width %d out of range 1..64", r.Name, r.Width))
		}
	}
	return errors.Join(errs...)
}

func checkName(name string) error {
	if name == "" {
		return errors.New("empty name")
	}
	for i, r := range name {
		letter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !letter && !(i > 0 && r >= '0' && r <= '9') {
			return errors.New("not an identifier")
		}
	}
	if token.LookupIdent(name) != token.Ident {
		return errors.New("is a keyword")
	}
	if _, ok := compiler.Intrinsics[name]; ok {
		return errors.New("shadows an intrinsic")
	}
	return nil
}

// Fingerprint is a canonical encoding of the settings that affect compiled
// output. Map keys are sorted, so files that differ only in layout or key
// order share a fingerprint.
func (c *Config) Fingerprint() ([]byte, error) {
	return yaml.Marshal(c)
}

// BuildResources instantiates the declared resources in file order.
func (c *Config) BuildResources() []ioseq.Resource {
	out := make([]ioseq.Resource, 0, len(c.Resources))
	for _, r := range c.Resources {
		switch r.Kind {
		case KindSink:
			out = append(out, ioseq.NewSink(r.Name, r.Width))
		case KindSource:
			out = append(out, ioseq.NewSource(r.Name, r.Width))
		}
	}
	return out
}

// Options returns the compiler scope described by the file.
func (c *Config) Options() compiler.Options {
	return compiler.Options{
		Scope:     c.Scope,
		Resources: c.BuildResources(),
	}
}
