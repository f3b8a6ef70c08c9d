package debug

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// BlockProfiler records how long each processing block took against the
// block deadline. Record uses only atomics so the audio thread can call it.
type BlockProfiler struct {
	deadline time.Duration

	count     atomic.Uint64
	totalNs   atomic.Int64
	maxNs     atomic.Int64
	lastNs    atomic.Int64
	overruns  atomic.Uint64
	processed atomic.Uint64
}

// NewBlockProfiler creates a profiler for blocks of blockSize samples.
func NewBlockProfiler(sampleRate float64, blockSize int) *BlockProfiler {
	var deadline time.Duration
	if sampleRate > 0 {
		deadline = time.Duration(float64(blockSize) * float64(time.Second) / sampleRate)
	}
	return &BlockProfiler{deadline: deadline}
}

// Deadline returns the duration of one block.
func (p *BlockProfiler) Deadline() time.Duration {
	return p.deadline
}

// Record stores the time one block took and how many events it emitted.
func (p *BlockProfiler) Record(elapsed time.Duration, events int) {
	ns := int64(elapsed)

	p.count.Add(1)
	p.totalNs.Add(ns)
	p.lastNs.Store(ns)
	p.processed.Add(uint64(events))

	for {
		max := p.maxNs.Load()
		if ns <= max || p.maxNs.CompareAndSwap(max, ns) {
			break
		}
	}

	if p.deadline > 0 && elapsed > p.deadline {
		p.overruns.Add(1)
	}
}

// Stats is a snapshot of the profiler counters.
type Stats struct {
	Blocks   uint64
	Events   uint64
	Overruns uint64
	Average  time.Duration
	Max      time.Duration
	Last     time.Duration
	Load     float64 // average block time as a percentage of the deadline
}

// Snapshot returns the current counters.
func (p *BlockProfiler) Snapshot() Stats {
	s := Stats{
		Blocks:   p.count.Load(),
		Events:   p.processed.Load(),
		Overruns: p.overruns.Load(),
		Max:      time.Duration(p.maxNs.Load()),
		Last:     time.Duration(p.lastNs.Load()),
	}
	if s.Blocks > 0 {
		s.Average = time.Duration(p.totalNs.Load() / int64(s.Blocks))
	}
	if p.deadline > 0 {
		s.Load = float64(s.Average) / float64(p.deadline) * 100.0
	}
	return s
}

// Reset clears all counters.
func (p *BlockProfiler) Reset() {
	p.count.Store(0)
	p.totalNs.Store(0)
	p.maxNs.Store(0)
	p.lastNs.Store(0)
	p.overruns.Store(0)
	p.processed.Store(0)
}

// Report formats the counters for the console.
func (p *BlockProfiler) Report() string {
	s := p.Snapshot()
	if s.Blocks == 0 {
		return "No blocks recorded"
	}

	var sb strings.Builder
	sb.WriteString("Block Processing Report:\n")
	fmt.Fprintf(&sb, "  Blocks:    %d\n", s.Blocks)
	fmt.Fprintf(&sb, "  Events:    %d\n", s.Events)
	fmt.Fprintf(&sb, "  Average:   %v\n", s.Average)
	fmt.Fprintf(&sb, "  Max:       %v\n", s.Max)
	fmt.Fprintf(&sb, "  Deadline:  %v\n", p.deadline)
	fmt.Fprintf(&sb, "  Overruns:  %d\n", s.Overruns)
	fmt.Fprintf(&sb, "  Load:      %.2f%%\n", s.Load)
	return sb.String()
}
