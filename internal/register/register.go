// Package register implements registers that are loaded from several
// sources. Loads are recorded while code is being compiled; once every load
// is known the register is finalized, which fixes the width of its source
// selector and the code of each source.
package register

import (
	"errors"
	"fmt"

	"github.com/fallen/migen/internal/hdl"
)

// ErrFinalize reports an out-of-order use of the two phases: loading or
// finalizing after finalize, or resolving a load before it.
var ErrFinalize = errors.New("register: finalize contract violated")

// SourceID identifies one interned source value.
type SourceID int

// Pool interns source values by node identity, handing out IDs in order of
// first sight. One pool is shared by all registers of a compilation.
type Pool struct {
	ids    map[hdl.Value]SourceID
	values []hdl.Value
}

func NewPool() *Pool {
	return &Pool{ids: make(map[hdl.Value]SourceID)}
}

func (p *Pool) Intern(v hdl.Value) SourceID {
	if id, ok := p.ids[v]; ok {
		return id
	}
	id := SourceID(len(p.values))
	p.ids[v] = id
	p.values = append(p.values, v)
	return id
}

// Lookup returns the ID of v without interning it.
func (p *Pool) Lookup(v hdl.Value) (SourceID, bool) {
	id, ok := p.ids[v]
	return id, ok
}

func (p *Pool) Value(id SourceID) hdl.Value {
	return p.values[id]
}

func (p *Pool) Len() int {
	return len(p.values)
}

// Open is a register still accepting loads. Code 0 of its selector means
// "hold"; sources get codes 1, 2, 3... in order of first load.
type Open struct {
	name    string
	storage *hdl.Signal
	pool    *Pool
	codes   map[SourceID]int
	order   []SourceID
	final   *Finalized
}

// New creates a register of the given width. A nil pool gets a private one.
func New(name string, width int, pool *Pool) *Open {
	if pool == nil {
		pool = NewPool()
	}
	return &Open{
		name:    name,
		storage: hdl.NewSignal(name, width),
		pool:    pool,
		codes:   make(map[SourceID]int),
	}
}

func (r *Open) Name() string { return r.name }

// Storage is the signal holding the register's value.
func (r *Open) Storage() *hdl.Signal { return r.storage }

// Sources returns how many distinct sources have been loaded so far.
func (r *Open) Sources() int { return len(r.order) }

// Finalized returns the finalized form once Finalize has run.
func (r *Open) Finalized() (*Finalized, bool) {
	return r.final, r.final != nil
}

// Load records source as a value this register can take and returns the
// deferred selector assignment. Loading the same value again reuses its
// code. Panics once the register is finalized.
func (r *Open) Load(source hdl.Value) *Load {
	if r.final != nil {
		panic(fmt.Errorf("%w: load into %q after finalize", ErrFinalize, r.name))
	}
	id := r.pool.Intern(source)
	if _, ok := r.codes[id]; !ok {
		r.codes[id] = len(r.order) + 1
		r.order = append(r.order, id)
	}
	return &Load{Target: r, Source: id}
}

// Finalize freezes the source table. The selector is just wide enough for
// codes 0..Sources(). Panics when called twice.
func (r *Open) Finalize() *Finalized {
	if r.final != nil {
		panic(fmt.Errorf("%w: %q finalized twice", ErrFinalize, r.name))
	}
	sel := hdl.NewSignal("regsel_"+r.name, hdl.BitsFor(int64(len(r.order))))
	r.final = &Finalized{
		name:    r.name,
		storage: r.storage,
		sel:     sel,
		pool:    r.pool,
		codes:   r.codes,
		order:   r.order,
	}
	return r.final
}

// Finalized is a register whose encoding is fixed.
type Finalized struct {
	name    string
	storage *hdl.Signal
	sel     *hdl.Signal
	pool    *Pool
	codes   map[SourceID]int
	order   []SourceID
}

func (f *Finalized) Name() string          { return f.name }
func (f *Finalized) Storage() *hdl.Signal  { return f.storage }
func (f *Finalized) Selector() *hdl.Signal { return f.sel }

// Code returns the selector code assigned to source.
func (f *Finalized) Code(source hdl.Value) (int, bool) {
	id, ok := f.pool.Lookup(source)
	if !ok {
		return 0, false
	}
	code, ok := f.codes[id]
	return code, ok
}

// Sources returns the source values ordered by code.
func (f *Finalized) Sources() []hdl.Value {
	out := make([]hdl.Value, len(f.order))
	for i, id := range f.order {
		out[i] = f.pool.Value(id)
	}
	return out
}

// Lower returns the synchronous load logic: one case arm per source, none
// for code 0 so the register holds.
func (f *Finalized) Lower() *hdl.Fragment {
	arms := make([]hdl.CaseArm, len(f.order))
	for i, id := range f.order {
		arms[i] = hdl.CaseArm{
			Match: hdl.ConstOf(int64(i+1), f.sel.Bits),
			Body:  []hdl.Stmt{hdl.Eq(f.storage, f.pool.Value(id))},
		}
	}
	return &hdl.Fragment{
		Sync: []hdl.Stmt{&hdl.Case{Test: f.sel, Arms: arms}},
	}
}

// Load is the deferred assignment "drive Target's selector to the code of
// Source". It resolves only after Target is finalized.
type Load struct {
	hdl.Placeholder
	Target *Open
	Source SourceID
}

func (l *Load) Resolve() (hdl.Stmt, error) {
	f := l.Target.final
	if f == nil {
		return nil, fmt.Errorf("%w: %q resolved before finalize", ErrFinalize, l.Target.name)
	}
	code, ok := f.codes[l.Source]
	if !ok {
		return nil, fmt.Errorf("register %q: source %d was never loaded", f.name, l.Source)
	}
	return hdl.Eq(f.sel, hdl.ConstOf(int64(code), f.sel.Bits)), nil
}

// ResolveLoads is an hdl.Rewrite callback that resolves every Load and
// keeps other statements.
func ResolveLoads(s hdl.Stmt) (hdl.Stmt, error) {
	if l, ok := s.(*Load); ok {
		return l.Resolve()
	}
	return s, nil
}
