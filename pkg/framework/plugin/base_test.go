package plugin

import (
	"errors"
	"testing"

	"github.com/justyntemme/consul/pkg/framework/process"
	"github.com/justyntemme/consul/pkg/framework/state"
	"github.com/justyntemme/consul/pkg/midi"
)

func newTestBase() *Base {
	b := NewBase(Info{Name: "Test", Version: "0.0.1"}, 0,
		state.Decl{Key: "config", Default: "{}", Visibility: state.Shared},
		state.Decl{Key: "cc", Visibility: state.EngineEvents},
	)
	Init(b)
	return b
}

func TestBaseInitState(t *testing.T) {
	b := newTestBase()

	if b.StateCount() != 2 {
		t.Fatalf("Expected 2 state keys, got %d", b.StateCount())
	}
	if b.GetState("config") != "{}" {
		t.Errorf("Expected config default, got %q", b.GetState("config"))
	}
	if b.Store().Len() != 2 {
		t.Errorf("Expected 2 declared keys, got %d", b.Store().Len())
	}

	if d := b.InitState(5); d.Key != "" {
		t.Errorf("Out of range index returned %+v", d)
	}
}

func TestBaseProcessBlockDrainsQueue(t *testing.T) {
	b := newTestBase()
	ctx := process.NewContext(0)

	sent := []midi.Event{
		midi.ControlChange(0, 0, 10),
		midi.ControlChange(0, 1, 20),
		midi.NoteOn(0, 60, 100),
	}
	for _, e := range sent {
		e.Frame = 99
		if err := b.SetState("cc", midi.Encode(e)); err != nil {
			t.Fatalf("SetState failed: %v", err)
		}
	}

	b.ProcessBlock(ctx)

	out := ctx.OutputEvents()
	if len(out) != len(sent) {
		t.Fatalf("Expected %d output events, got %d", len(sent), len(out))
	}
	for i, e := range out {
		if e.Frame != 0 {
			t.Errorf("Event %d at frame %d, want 0", i, e.Frame)
		}
		if e.Data != sent[i].Data || e.Size != sent[i].Size {
			t.Errorf("Event %d = %v, want %v", i, e, sent[i])
		}
	}
	if !b.Queue().IsEmpty() {
		t.Error("Queue should be drained")
	}

	// Next block starts empty.
	b.ProcessBlock(ctx)
	if len(ctx.OutputEvents()) != 0 {
		t.Errorf("Expected no events in the next block, got %d", len(ctx.OutputEvents()))
	}
}

func TestBaseProcessBlockKeepsOverflowQueued(t *testing.T) {
	b := newTestBase()
	ctx := process.NewContext(2)

	for i := 0; i < 5; i++ {
		b.SetState("cc", midi.Encode(midi.ControlChange(0, uint8(i), 0)))
	}

	expect := uint8(0)
	for block := 0; block < 3; block++ {
		b.ProcessBlock(ctx)
		for _, e := range ctx.OutputEvents() {
			if e.Data1() != expect {
				t.Fatalf("Block %d: expected controller %d, got %d", block, expect, e.Data1())
			}
			expect++
		}
	}
	if expect != 5 {
		t.Errorf("Expected 5 events over 3 blocks, got %d", expect)
	}
}

func TestBaseMalformedStateLeavesQueue(t *testing.T) {
	b := newTestBase()

	err := b.SetState("cc", "AAAA")
	if !errors.Is(err, midi.ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
	if !b.Queue().IsEmpty() {
		t.Error("Malformed value should not reach the queue")
	}
}

func TestBaseOnProcess(t *testing.T) {
	b := newTestBase()
	ctx := process.NewContext(0)
	ctx.Input = [][]float32{{1, 1}}
	ctx.Output = [][]float32{{0, 0}}

	called := 0
	b.OnProcess(func(ctx *process.Context) {
		called++
		ctx.Clear()
	})
	b.ProcessBlock(ctx)

	if called != 1 {
		t.Errorf("Expected audio callback once, got %d", called)
	}
	if ctx.Output[0][0] != 0 {
		t.Error("Callback output was overwritten")
	}
}

func TestBaseProcessBlockNoAllocations(t *testing.T) {
	b := newTestBase()
	ctx := process.NewContext(0)
	ctx.Input = [][]float32{make([]float32, 64)}
	ctx.Output = [][]float32{make([]float32, 64)}
	e := midi.ControlChange(0, 1, 1)

	allocs := testing.AllocsPerRun(100, func() {
		b.Queue().Put(e)
		b.ProcessBlock(ctx)
	})
	if allocs != 0 {
		t.Errorf("ProcessBlock allocated %.1f times per run", allocs)
	}
}
