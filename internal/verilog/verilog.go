// Package verilog writes a compiled design as a synthesizable Verilog
// module with a single clock domain.
package verilog

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/fallen/migen/internal/hdl"
	"github.com/fallen/migen/internal/ioseq"
)

const (
	clockName = "sys_clk"
	resetName = "sys_rst"

	digestPrefix = "// source-sha3: "
)

var (
	ErrMultipleDrivers = errors.New("verilog: signal driven from both comb and sync logic")
	ErrDrivenInput     = errors.New("verilog: input port is driven by the design")
)

var keywords = map[string]bool{
	"always": true, "and": true, "assign": true, "begin": true, "case": true,
	"casex": true, "casez": true, "default": true, "else": true, "end": true,
	"endcase": true, "endfunction": true, "endmodule": true, "for": true,
	"function": true, "generate": true, "if": true, "initial": true,
	"inout": true, "input": true, "integer": true, "localparam": true,
	"module": true, "negedge": true, "not": true, "or": true, "output": true,
	"parameter": true, "posedge": true, "reg": true, "signed": true,
	"task": true, "while": true, "wire": true, "xor": true,
}

// Module is a design ready for output.
type Module struct {
	Name     string
	Ports    []ioseq.Port
	Fragment *hdl.Fragment
	// Digest, when set, is stamped in the header so that unchanged sources
	// can be detected with ReadDigest.
	Digest string
}

// Digest returns the hex SHA3-256 of everything an output depends on,
// typically the source text followed by the project settings. Each part is
// length-prefixed, so moving bytes from one part to the next changes the
// digest.
func Digest(parts ...[]byte) string {
	h := sha3.New256()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ReadDigest returns the source digest stamped in the header of previously
// generated output, or "" if there is none.
func ReadDigest(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	for i := 0; i < 4 && sc.Scan(); i++ {
		if d, ok := strings.CutPrefix(sc.Text(), digestPrefix); ok {
			return strings.TrimSpace(d), nil
		}
	}
	return "", sc.Err()
}

type signalInfo struct {
	sig  *hdl.Signal
	name string
	comb bool
	sync bool
	port bool
	dir  ioseq.Direction
}

// wire is a sized intermediate. Arithmetic results go through one so that
// Verilog evaluates them at their own width rather than the width of the
// surrounding assignment, and slices of non-signals need one to index.
type wire struct {
	name  string
	width int
	value string
}

type emitter struct {
	w      *bufio.Writer
	indent int
	err    error

	signals  []*signalInfo
	bySignal map[*hdl.Signal]*signalInfo
	used     map[string]bool

	wires     map[hdl.Value]*wire
	wireOrder []*wire
}

// Write emits m to w. Every placeholder must have been resolved.
func Write(w io.Writer, m *Module) error {
	frag := m.Fragment
	if frag == nil {
		frag = &hdl.Fragment{}
	}
	if err := frag.CheckResolved(); err != nil {
		return fmt.Errorf("verilog: %w", err)
	}

	e := &emitter{
		w:        bufio.NewWriter(w),
		bySignal: make(map[*hdl.Signal]*signalInfo),
		used:     map[string]bool{clockName: true, resetName: true},
		wires:    make(map[hdl.Value]*wire),
	}
	for _, p := range m.Ports {
		info := e.declare(p.Signal)
		info.port = true
		info.dir = p.Dir
	}
	e.collect(frag.Comb, false)
	e.collect(frag.Sync, true)
	if err := e.check(); err != nil {
		return err
	}

	name := "top"
	if m.Name != "" && !keywords[m.Name] {
		name = sanitize(m.Name)
	}
	e.emitHeader(name, m.Digest)
	e.emitDeclarations()
	e.emitComb(frag.Comb)
	e.emitSync(frag.Sync)
	e.println("endmodule")

	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

// declare names sig on first sight.
func (e *emitter) declare(sig *hdl.Signal) *signalInfo {
	if info, ok := e.bySignal[sig]; ok {
		return info
	}
	info := &signalInfo{sig: sig, name: e.unique(sanitize(sig.Name))}
	e.bySignal[sig] = info
	e.signals = append(e.signals, info)
	return info
}

func (e *emitter) unique(base string) string {
	name := base
	for i := 1; e.used[name] || keywords[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	e.used[name] = true
	return name
}

func (e *emitter) collect(stmts []hdl.Stmt, sync bool) {
	_ = hdl.Walk(stmts, func(s hdl.Stmt) error {
		switch s := s.(type) {
		case *hdl.Assign:
			info := e.declare(s.Target)
			if sync {
				info.sync = true
			} else {
				info.comb = true
			}
			e.collectValue(s.Value)
		case *hdl.If:
			e.collectValue(s.Cond)
		case *hdl.Case:
			if len(s.Arms) > 0 || len(s.Default) > 0 {
				e.collectValue(s.Test)
			}
		}
		return nil
	})
}

func (e *emitter) collectValue(v hdl.Value) {
	hdl.WalkValue(v, func(v hdl.Value) {
		switch v := v.(type) {
		case *hdl.Signal:
			e.declare(v)
		case *hdl.BinOp:
			if !v.Op.IsComparison() {
				e.addWire(v, "expr_tmp", v.Width())
			}
		case *hdl.Slice:
			if !e.indexable(v.X) {
				e.addWire(v, "slice_tmp", v.X.Width())
			}
		}
	})
}

// indexable reports whether x can be sliced in place: a signal, or an
// expression that already has its own wire.
func (e *emitter) indexable(x hdl.Value) bool {
	switch x := x.(type) {
	case *hdl.Signal:
		return true
	case *hdl.BinOp:
		return !x.Op.IsComparison()
	}
	return false
}

// addWire registers a wire for v. The value text is rendered when
// declarations are written, after every wire has its name.
func (e *emitter) addWire(v hdl.Value, base string, width int) {
	if _, seen := e.wires[v]; seen {
		return
	}
	w := &wire{name: e.unique(base), width: width}
	e.wires[v] = w
	e.wireOrder = append(e.wireOrder, w)
}

func (e *emitter) check() error {
	for _, info := range e.signals {
		if info.comb && info.sync {
			return fmt.Errorf("%w: %s", ErrMultipleDrivers, info.name)
		}
		if info.port && info.dir == ioseq.In && (info.comb || info.sync) {
			return fmt.Errorf("%w: %s", ErrDrivenInput, info.name)
		}
	}
	return nil
}

// isInput reports whether info is read from outside: an input port, or a
// signal nothing in the design drives.
func (info *signalInfo) isInput() bool {
	if info.port {
		return info.dir == ioseq.In
	}
	return !info.comb && !info.sync
}

func (e *emitter) emitHeader(name, digest string) {
	e.println("// Generated by fsmc. Do not edit.")
	if digest != "" {
		e.println(digestPrefix + digest)
	}
	e.printf("module %s(\n", name)
	e.indent++

	decls := []string{"input " + clockName, "input " + resetName}
	for _, info := range e.signals {
		switch {
		case info.isInput():
			decls = append(decls, "input "+rangeOf(info.sig.Bits)+info.name)
		case info.port && (info.comb || info.sync):
			decls = append(decls, "output reg "+rangeOf(info.sig.Bits)+info.name)
		case info.port:
			decls = append(decls, "output "+rangeOf(info.sig.Bits)+info.name)
		}
	}
	for i, d := range decls {
		sep := ","
		if i == len(decls)-1 {
			sep = ""
		}
		e.println(d + sep)
	}

	e.indent--
	e.println(");")
	e.println("")
}

func (e *emitter) emitDeclarations() {
	wrote := false
	for _, info := range e.signals {
		switch {
		case info.port && !info.isInput() && !info.comb && !info.sync:
			e.printf("assign %s = %s;\n", info.name, literal(info.sig.Reset, info.sig.Bits))
			wrote = true
		case !info.port && (info.comb || info.sync):
			e.printf("reg %s%s = %s;\n", rangeOf(info.sig.Bits), info.name, literal(info.sig.Reset, info.sig.Bits))
			wrote = true
		}
	}
	for v, w := range e.wires {
		switch v := v.(type) {
		case *hdl.BinOp:
			w.value = e.inline(v)
		case *hdl.Slice:
			w.value = e.expr(v.X)
		}
	}
	// Wires are collected parents first; declare operands before their uses.
	for i := len(e.wireOrder) - 1; i >= 0; i-- {
		w := e.wireOrder[i]
		e.printf("wire %s%s = %s;\n", rangeOf(w.width), w.name, w.value)
		wrote = true
	}
	if wrote {
		e.println("")
	}
}

// emitComb writes the combinational block. Every comb-driven signal first
// takes its reset value, so signals not assigned in a cycle do not latch.
func (e *emitter) emitComb(stmts []hdl.Stmt) {
	if len(stmts) == 0 {
		return
	}
	e.println("always @(*) begin")
	e.indent++
	for _, info := range e.signals {
		if info.comb {
			e.printf("%s = %s;\n", info.name, literal(info.sig.Reset, info.sig.Bits))
		}
	}
	e.stmts(stmts, "=")
	e.indent--
	e.println("end")
	e.println("")
}

func (e *emitter) emitSync(stmts []hdl.Stmt) {
	if len(stmts) == 0 {
		return
	}
	e.printf("always @(posedge %s) begin\n", clockName)
	e.indent++
	e.printf("if (%s) begin\n", resetName)
	e.indent++
	for _, info := range e.signals {
		if info.sync {
			e.printf("%s <= %s;\n", info.name, literal(info.sig.Reset, info.sig.Bits))
		}
	}
	e.indent--
	e.println("end else begin")
	e.indent++
	e.stmts(stmts, "<=")
	e.indent--
	e.println("end")
	e.indent--
	e.println("end")
	e.println("")
}

func (e *emitter) stmts(stmts []hdl.Stmt, op string) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *hdl.Assign:
			e.printf("%s %s %s;\n", e.bySignal[s.Target].name, op, e.expr(s.Value))
		case *hdl.If:
			e.printf("if (%s) begin\n", e.expr(s.Cond))
			e.block(s.Then, op)
			if len(s.Else) > 0 {
				e.println("end else begin")
				e.block(s.Else, op)
			}
			e.println("end")
		case *hdl.Case:
			if len(s.Arms) == 0 && len(s.Default) == 0 {
				continue
			}
			e.printf("case (%s)\n", e.expr(s.Test))
			e.indent++
			for _, arm := range s.Arms {
				e.printf("%s: begin\n", literal(arm.Match.Value, s.Test.Width()))
				e.block(arm.Body, op)
				e.println("end")
			}
			if len(s.Default) > 0 {
				e.println("default: begin")
				e.block(s.Default, op)
				e.println("end")
			}
			e.indent--
			e.println("endcase")
		default:
			e.fail(fmt.Errorf("verilog: cannot emit statement %T", s))
		}
	}
}

func (e *emitter) block(stmts []hdl.Stmt, op string) {
	e.indent++
	e.stmts(stmts, op)
	e.indent--
}

func (e *emitter) expr(v hdl.Value) string {
	switch v := v.(type) {
	case *hdl.Signal:
		return e.bySignal[v].name
	case *hdl.Const:
		return literal(v.Value, v.Bits)
	case *hdl.BinOp:
		if w, ok := e.wires[v]; ok {
			return w.name
		}
		return e.inline(v)
	case *hdl.Slice:
		var base string
		if e.indexable(v.X) {
			base = e.expr(v.X)
		} else {
			base = e.wires[v].name
		}
		if v.X.Width() == 1 {
			return base
		}
		if v.Hi-v.Lo == 1 {
			return fmt.Sprintf("%s[%d]", base, v.Lo)
		}
		return fmt.Sprintf("%s[%d:%d]", base, v.Hi-1, v.Lo)
	default:
		e.fail(fmt.Errorf("verilog: cannot emit value %T", v))
		return ""
	}
}

func (e *emitter) inline(v *hdl.BinOp) string {
	return "(" + e.expr(v.Left) + " " + v.Op.String() + " " + e.expr(v.Right) + ")"
}

func (e *emitter) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *emitter) printIndent() {
	for i := 0; i < e.indent; i++ {
		e.w.WriteByte('\t')
	}
}

func (e *emitter) printf(format string, args ...interface{}) {
	e.printIndent()
	fmt.Fprintf(e.w, format, args...)
}

func (e *emitter) println(line string) {
	if line != "" {
		e.printIndent()
	}
	e.w.WriteString(line)
	e.w.WriteByte('\n')
}

func rangeOf(width int) string {
	if width <= 1 {
		return ""
	}
	return fmt.Sprintf("[%d:0] ", width-1)
}

// literal renders v as an unsigned sized constant; negative values are
// written in two's complement.
func literal(v int64, width int) string {
	u := uint64(v)
	if width < 64 {
		u &= 1<<uint(width) - 1
	}
	return fmt.Sprintf("%d'd%d", width, u)
}

func sanitize(name string) string {
	if name == "" {
		return "unnamed"
	}
	var b strings.Builder
	for i, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || (r >= '0' && r <= '9' && i > 0) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
