package midi

import (
	"sync/atomic"
)

// MinRingCapacity is the smallest number of events a Ring holds.
const MinRingCapacity = 128

// Ring is a fixed capacity single-producer/single-consumer event queue.
//
// Put is called only from the non-realtime side and Get only from the
// audio thread. Neither blocks, locks or allocates. When the ring is full
// Put rejects the new event and older events stay queued in order.
type Ring struct {
	slots []Event
	mask  uint64

	// readPos is written by the consumer, writePos by the producer.
	readPos  atomic.Uint64
	writePos atomic.Uint64

	dropped atomic.Uint64
}

// NewRing creates a ring holding at least capacity events, rounded up to a
// power of 2 and never below MinRingCapacity.
func NewRing(capacity int) *Ring {
	if capacity < MinRingCapacity {
		capacity = MinRingCapacity
	}
	size := nextPowerOf2(uint64(capacity))
	return &Ring{
		slots: make([]Event, size),
		mask:  size - 1,
	}
}

// Put enqueues e. It returns false, dropping e, when the ring is full.
func (r *Ring) Put(e Event) bool {
	writePos := r.writePos.Load()
	readPos := r.readPos.Load()

	if writePos-readPos >= uint64(len(r.slots)) {
		r.dropped.Add(1)
		return false
	}

	r.slots[writePos&r.mask] = e

	// Publish the slot after it is written.
	r.writePos.Store(writePos + 1)
	return true
}

// Get dequeues the oldest event. ok is false when the ring is empty.
func (r *Ring) Get() (e Event, ok bool) {
	readPos := r.readPos.Load()
	writePos := r.writePos.Load()

	if readPos == writePos {
		return Event{}, false
	}

	e = r.slots[readPos&r.mask]
	r.readPos.Store(readPos + 1)
	return e, true
}

// Len returns the number of queued events. The value is a snapshot when
// the other side is running.
func (r *Ring) Len() int {
	return int(r.writePos.Load() - r.readPos.Load())
}

// Cap returns the number of events the ring holds.
func (r *Ring) Cap() int {
	return len(r.slots)
}

// IsEmpty reports whether no events are queued.
func (r *Ring) IsEmpty() bool {
	return r.Len() == 0
}

// Dropped returns how many Put calls were rejected since creation.
func (r *Ring) Dropped() uint64 {
	return r.dropped.Load()
}

func nextPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
