package sim

import (
	"fmt"

	"github.com/fallen/migen/internal/hdl"
	"github.com/fallen/migen/internal/ioseq"
)

// Transfer is one completed handshake on an I/O resource.
type Transfer struct {
	Cycle    int
	Resource string
	Dir      ioseq.Direction
	Value    uint64
}

func (t Transfer) String() string {
	arrow := "->"
	if t.Dir == ioseq.In {
		arrow = "<-"
	}
	return fmt.Sprintf("cycle %d: %s %s %d", t.Cycle, t.Resource, arrow, t.Value)
}

// Bench drives the far side of every I/O resource: sinks are always ready
// and sources present queued values until the queue runs dry.
type Bench struct {
	sim     *Simulator
	sinks   []*ioseq.Sink
	sources []*ioseq.Source
	queues  map[*ioseq.Source][]uint64
}

// NewBench wraps a simulator. inputs maps source names to the values they
// deliver, in order. Resources other than Sink and Source are rejected.
func NewBench(s *Simulator, resources []ioseq.Resource, inputs map[string][]uint64) (*Bench, error) {
	b := &Bench{sim: s, queues: make(map[*ioseq.Source][]uint64)}
	known := make(map[string]bool)
	for _, r := range resources {
		switch r := r.(type) {
		case *ioseq.Sink:
			b.sinks = append(b.sinks, r)
		case *ioseq.Source:
			b.sources = append(b.sources, r)
			b.queues[r] = append([]uint64(nil), inputs[r.Name()]...)
		default:
			return nil, fmt.Errorf("sim: no bench model for resource %s (%T)", r.Name(), r)
		}
		known[r.Name()] = true
	}
	for name := range inputs {
		if !known[name] {
			return nil, fmt.Errorf("sim: input for unknown resource %q", name)
		}
	}
	return b, b.drive()
}

func (b *Bench) drive() error {
	for _, snk := range b.sinks {
		if err := b.sim.Set(snk.Ack, 1); err != nil {
			return err
		}
	}
	for _, src := range b.sources {
		q := b.queues[src]
		if len(q) == 0 {
			if err := b.sim.Set(src.Stb, 0); err != nil {
				return err
			}
			continue
		}
		if err := b.sim.Set(src.Data, q[0]); err != nil {
			return err
		}
		if err := b.sim.Set(src.Stb, 1); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bench) strobed(stb, ack *hdl.Signal) bool {
	return b.sim.Get(stb) == 1 && b.sim.Get(ack) == 1
}

// Run clocks the design until it goes idle or limit cycles have passed. A
// cycle is idle when no register changes and no transfer completes. The
// returned count is the number of clock edges taken.
func (b *Bench) Run(limit int) ([]Transfer, int, error) {
	var out []Transfer
	for b.sim.Cycle() < limit {
		var moved []Transfer
		for _, snk := range b.sinks {
			if b.strobed(snk.Stb, snk.Ack) {
				moved = append(moved, Transfer{
					Cycle:    b.sim.Cycle(),
					Resource: snk.Name(),
					Dir:      ioseq.Out,
					Value:    b.sim.Get(snk.Data),
				})
			}
		}
		for _, src := range b.sources {
			if b.strobed(src.Stb, src.Ack) {
				moved = append(moved, Transfer{
					Cycle:    b.sim.Cycle(),
					Resource: src.Name(),
					Dir:      ioseq.In,
					Value:    b.sim.Get(src.Data),
				})
				b.queues[src] = b.queues[src][1:]
			}
		}

		changed, err := b.sim.Step()
		if err != nil {
			return out, b.sim.Cycle(), err
		}
		out = append(out, moved...)
		if err := b.drive(); err != nil {
			return out, b.sim.Cycle(), err
		}
		if !changed && len(moved) == 0 {
			break
		}
	}
	return out, b.sim.Cycle(), nil
}
