// Package plugin defines the lifecycle a host drives and a base that
// implements it over a state store and a realtime event queue.
package plugin

import (
	"github.com/justyntemme/consul/pkg/framework/debug"
	"github.com/justyntemme/consul/pkg/framework/process"
	"github.com/justyntemme/consul/pkg/framework/state"
	"github.com/justyntemme/consul/pkg/midi"
)

// Plugin is the set of callbacks a host calls. The host owns all threads:
// ProcessBlock runs on the audio thread, everything else on the
// non-realtime thread.
type Plugin interface {
	// GetInfo returns plugin metadata
	GetInfo() Info

	// StateCount returns how many state keys the plugin declares.
	StateCount() int

	// InitState declares state key index. Called once per index at startup.
	InitState(index int) state.Decl

	// SetState writes a state value from the host or a UI.
	SetState(key, value string) error

	// GetState returns the current value of key.
	GetState(key string) string

	// ProcessBlock processes one block - ZERO ALLOCATIONS!
	ProcessBlock(ctx *process.Context)
}

// Init runs the declaration pass: InitState for every index.
func Init(p Plugin) {
	for i := 0; i < p.StateCount(); i++ {
		p.InitState(i)
	}
}

// Base provides core functionality for all plugins
type Base struct {
	Info  Info
	decls []state.Decl
	store *state.Store
	queue *midi.Ring
	log   *debug.Logger

	processFunc func(ctx *process.Context)
}

// NewBase creates a plugin base with a realtime queue of at least
// queueCapacity events and the given state declarations.
func NewBase(info Info, queueCapacity int, decls ...state.Decl) *Base {
	queue := midi.NewRing(queueCapacity)
	log := debug.Default().WithPrefix(info.Name)

	store := state.NewStore(queue)
	store.SetLogger(log.WithField("area", "state"))

	return &Base{
		Info:  info,
		decls: decls,
		store: store,
		queue: queue,
		log:   log,
	}
}

// GetInfo implements Plugin.
func (b *Base) GetInfo() Info {
	return b.Info
}

// StateCount implements Plugin.
func (b *Base) StateCount() int {
	return len(b.decls)
}

// InitState implements Plugin. The declared key is registered in the
// store with its default value.
func (b *Base) InitState(index int) state.Decl {
	if index < 0 || index >= len(b.decls) {
		b.log.Error("InitState index %d out of range", index)
		return state.Decl{}
	}
	d := b.decls[index]
	b.store.Declare(d)
	return d
}

// SetState implements Plugin.
func (b *Base) SetState(key, value string) error {
	return b.store.Set(key, value)
}

// GetState implements Plugin.
func (b *Base) GetState(key string) string {
	return b.store.Get(key)
}

// Store returns the plugin's state store.
func (b *Base) Store() *state.Store {
	return b.store
}

// Queue returns the realtime inbound queue.
func (b *Base) Queue() *midi.Ring {
	return b.queue
}

// Logger returns the plugin's logger.
func (b *Base) Logger() *debug.Logger {
	return b.log
}
