// Package state holds the key/value state of a plugin instance.
package state

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/justyntemme/consul/pkg/framework/debug"
	"github.com/justyntemme/consul/pkg/midi"
)

var (
	// ErrUnknownKey is returned when writing a key that was never declared.
	ErrUnknownKey = errors.New("state: unknown key")
	// ErrQueueFull is returned when an event could not be queued for the
	// audio thread. The event is dropped; callers treat this as backpressure.
	ErrQueueFull = errors.New("state: realtime queue full")
)

// Visibility tells the host who an entry is meaningful to.
type Visibility uint8

const (
	VisibleToUI Visibility = 1 << iota
	VisibleToEngine
	// CarriesEvent marks an entry whose value is an encoded event record.
	// Such values are forwarded to the audio thread and never retained.
	CarriesEvent
)

const (
	UIOnly       = VisibleToUI
	Shared       = VisibleToUI | VisibleToEngine
	EngineEvents = VisibleToEngine | CarriesEvent
)

func (v Visibility) UI() bool           { return v&VisibleToUI != 0 }
func (v Visibility) Engine() bool       { return v&VisibleToEngine != 0 }
func (v Visibility) CarriesEvent() bool { return v&CarriesEvent != 0 }

func (v Visibility) String() string {
	var parts []string
	if v.UI() {
		parts = append(parts, "ui")
	}
	if v.Engine() {
		parts = append(parts, "engine")
	}
	if v.CarriesEvent() {
		parts = append(parts, "event")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Decl declares a recognized key with its default value.
type Decl struct {
	Key        string
	Default    string
	Visibility Visibility
}

// Entry is the current value of a recognized key.
type Entry struct {
	Key        string
	Value      string
	Visibility Visibility
}

// EventSink receives events decoded from event-carrying entries.
// midi.Ring satisfies it.
type EventSink interface {
	Put(e midi.Event) bool
}

// ChangeFunc is called after a retained entry is written.
type ChangeFunc func(key, value string)

// Store maps recognized keys to their values. It belongs to the
// non-realtime side and is not safe for concurrent use; the only data it
// hands to the audio thread goes through the EventSink.
type Store struct {
	entries   map[string]*Entry
	sink      EventSink
	listeners []ChangeFunc
	log       *debug.Logger
}

// NewStore creates an empty store forwarding events to sink.
func NewStore(sink EventSink) *Store {
	return &Store{
		entries: make(map[string]*Entry),
		sink:    sink,
		log:     debug.Default().WithPrefix("state"),
	}
}

// SetLogger replaces the store's logger.
func (s *Store) SetLogger(l *debug.Logger) {
	s.log = l
}

// Init registers key with its default value. Declaring a key twice resets
// it to the new default.
func (s *Store) Init(key, defaultValue string, visibility Visibility) {
	if _, exists := s.entries[key]; exists {
		s.log.Warn("key %q declared twice, resetting to default", key)
	}
	if visibility.CarriesEvent() {
		// Event values are transient; there is nothing to default to.
		defaultValue = ""
	}
	s.entries[key] = &Entry{Key: key, Value: defaultValue, Visibility: visibility}
}

// Declare registers d.
func (s *Store) Declare(d Decl) {
	s.Init(d.Key, d.Default, d.Visibility)
}

// Set writes value to key.
//
// For event-carrying keys a non-empty value is decoded and queued for the
// audio thread; the text itself is not kept. A malformed value returns an
// error matching midi.ErrMalformed and nothing is queued.
func (s *Store) Set(key, value string) error {
	e, ok := s.entries[key]
	if !ok {
		s.log.Debug("ignoring write to undeclared key %q", key)
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	if e.Visibility.CarriesEvent() {
		return s.forward(key, value)
	}

	e.Value = value
	for _, fn := range s.listeners {
		fn(key, value)
	}
	return nil
}

func (s *Store) forward(key, value string) error {
	if value == "" {
		return nil
	}

	ev, err := midi.Decode(value)
	if err != nil {
		s.log.Warn("discarding %q value: %v", key, err)
		return fmt.Errorf("state %q: %w", key, err)
	}
	if !ev.Valid() {
		s.log.Warn("discarding %q value: event size %d", key, ev.Size)
		return fmt.Errorf("state %q: %w: event size %d", key, midi.ErrMalformed, ev.Size)
	}

	if s.sink == nil || !s.sink.Put(ev) {
		s.log.Warn("realtime queue full, dropping %v", ev)
		return fmt.Errorf("state %q: %w", key, ErrQueueFull)
	}
	return nil
}

// Get returns the value of key, or "" if key was never declared.
func (s *Store) Get(key string) string {
	if e, ok := s.entries[key]; ok {
		return e.Value
	}
	return ""
}

// Entry returns a copy of the entry for key.
func (s *Store) Entry(key string) (Entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Keys returns the declared keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of declared keys.
func (s *Store) Len() int {
	return len(s.entries)
}

// OnChange registers fn to be called after every retained write.
func (s *Store) OnChange(fn ChangeFunc) {
	s.listeners = append(s.listeners, fn)
}
