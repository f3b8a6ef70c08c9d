// Package process provides the per-block processing context handed to the audio thread.
package process

import (
	"github.com/justyntemme/consul/pkg/midi"
)

// DefaultMaxEvents is the output event capacity used when none is given.
const DefaultMaxEvents = midi.MinRingCapacity

// Context provides a clean API for audio processing with zero allocations
type Context struct {
	Input      [][]float32
	Output     [][]float32
	SampleRate float64

	// Pre-allocated output event buffer
	events    []midi.Event
	numEvents int
	dropped   uint64
}

// NewContext creates a new process context that can emit up to maxEvents
// events per block.
func NewContext(maxEvents int) *Context {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Context{
		events: make([]midi.Event, maxEvents),
	}
}

// NumSamples returns the number of samples to process
func (c *Context) NumSamples() int {
	if len(c.Input) > 0 && len(c.Input[0]) > 0 {
		return len(c.Input[0])
	}
	if len(c.Output) > 0 && len(c.Output[0]) > 0 {
		return len(c.Output[0])
	}
	return 0
}

// NumInputChannels returns the number of input channels
func (c *Context) NumInputChannels() int {
	return len(c.Input)
}

// NumOutputChannels returns the number of output channels
func (c *Context) NumOutputChannels() int {
	return len(c.Output)
}

// PassThrough copies input to output (for bypass)
func (c *Context) PassThrough() {
	numChannels := c.NumInputChannels()
	if c.NumOutputChannels() < numChannels {
		numChannels = c.NumOutputChannels()
	}

	for ch := 0; ch < numChannels; ch++ {
		copy(c.Output[ch], c.Input[ch])
	}
}

// Clear zeros the output buffers
func (c *Context) Clear() {
	for ch := range c.Output {
		for i := range c.Output[ch] {
			c.Output[ch][i] = 0
		}
	}
}

// EmitEvent appends e to this block's output events. It returns false when
// the block already holds the maximum number of events.
func (c *Context) EmitEvent(e midi.Event) bool {
	if c.numEvents >= len(c.events) {
		c.dropped++
		return false
	}
	c.events[c.numEvents] = e
	c.numEvents++
	return true
}

// OutputEvents returns the events emitted in this block, in emission order.
// The slice is reused by the next block.
func (c *Context) OutputEvents() []midi.Event {
	return c.events[:c.numEvents]
}

// ResetEvents empties the output event buffer. Called at block start.
func (c *Context) ResetEvents() {
	c.numEvents = 0
}

// MaxEvents returns the output event capacity.
func (c *Context) MaxEvents() int {
	return len(c.events)
}

// DroppedEvents returns how many events did not fit since creation.
func (c *Context) DroppedEvents() uint64 {
	return c.dropped
}
