package ui

import (
	"errors"
	"fmt"

	"github.com/justyntemme/consul/pkg/framework/debug"
	"github.com/justyntemme/consul/pkg/midi"
)

// StateAccess is the part of a plugin the router writes through.
type StateAccess interface {
	SetState(key, value string) error
	GetState(key string) string
}

// Keys names the state entries the router uses.
type Keys struct {
	Config string // instrument configuration
	UI     string // UIState blob
	Event  string // event-carrying key
}

// DefaultKeys matches the keys declared by the consul plugin.
var DefaultKeys = Keys{Config: "config", UI: "ui", Event: "cc"}

// Router turns client actions into state writes and echoes them to the
// other clients. Like Hub, it is driven from a single goroutine.
type Router struct {
	state  StateAccess
	hub    *Hub
	keys   Keys
	config Config
	ui     *UIState
	log    *debug.Logger

	// set while the router itself writes to state so StateChanged
	// does not announce the write a second time
	inWrite bool
}

// NewRouter creates a router and loads config and UI state from st.
func NewRouter(st StateAccess, hub *Hub, keys Keys) *Router {
	r := &Router{
		state: st,
		hub:   hub,
		keys:  keys,
		log:   debug.Default().WithPrefix("router"),
	}
	r.reloadConfig(st.GetState(keys.Config))
	r.reloadUI(st.GetState(keys.UI))
	return r
}

// SetLogger replaces the router's logger.
func (r *Router) SetLogger(l *debug.Logger) {
	r.log = l
}

// Config returns the active configuration.
func (r *Router) Config() Config {
	return r.config
}

// UIState returns the cached UI state.
func (r *Router) UIState() *UIState {
	return r.ui
}

// HandleRaw decodes a JSON message from a client and handles it.
func (r *Router) HandleRaw(from ClientID, data []byte) error {
	msg, err := DecodeMessage(data)
	if err != nil {
		r.log.Debug("client %d: %v", from, err)
		return err
	}
	return r.Handle(from, msg)
}

// Handle processes one message from client from.
//
// Malformed messages return an error matching ErrUnrecognizedMessage and
// change nothing. A full realtime queue returns an error matching
// state.ErrQueueFull; the UI state is still saved and echoed.
func (r *Router) Handle(from ClientID, msg Message) error {
	a, err := Parse(msg)
	if err != nil {
		r.log.Debug("client %d: %v", from, err)
		return err
	}

	if a.Kind == ActionState {
		return r.handleState(from, a)
	}

	ev, err := r.eventFor(a)
	if err != nil {
		r.log.Debug("client %d: %v", from, err)
		return fmt.Errorf("%w: %v", ErrUnrecognizedMessage, err)
	}

	r.ui.Set(a.ControlID, a.Value)
	if err := r.write(r.keys.UI, r.ui.Marshal()); err != nil {
		r.log.Warn("saving ui state: %v", err)
	}

	fwdErr := r.write(r.keys.Event, midi.Encode(ev))
	if fwdErr != nil {
		r.log.Warn("forwarding %v: %v", ev, fwdErr)
	}

	r.hub.Broadcast(a.Echo(), from)
	return fwdErr
}

// eventFor builds the event for a widget or generic control action.
// Events always land at frame 0 of the next block.
func (r *Router) eventFor(a Action) (midi.Event, error) {
	if a.Kind == ActionControl {
		if a.HasData2 {
			return midi.Raw(a.Status, a.Data1, a.Data2), nil
		}
		return midi.Raw(a.Status, a.Data1), nil
	}
	return r.config.Map(a.ControlID, a.Value)
}

func (r *Router) handleState(from ClientID, a Action) error {
	switch a.Key {
	case r.keys.Config:
		c, err := ParseConfig(a.StateVal)
		if err != nil {
			r.log.Warn("client %d: %v", from, err)
			return fmt.Errorf("%w: %v", ErrUnrecognizedMessage, err)
		}
		if err := r.write(a.Key, a.StateVal); err != nil {
			return err
		}
		r.config = c

	case r.keys.UI:
		s, err := ParseUIState(a.StateVal)
		if err != nil {
			r.log.Warn("client %d: %v", from, err)
			return fmt.Errorf("%w: %v", ErrUnrecognizedMessage, err)
		}
		if err := r.write(a.Key, a.StateVal); err != nil {
			return err
		}
		r.ui = s

	case r.keys.Event:
		// Raw encoded events go straight to the engine and are not echoed.
		return r.write(a.Key, a.StateVal)

	default:
		if err := r.write(a.Key, a.StateVal); err != nil {
			r.log.Debug("client %d: %v", from, err)
			return err
		}
	}

	r.hub.Broadcast(a.Echo(), from)
	return nil
}

func (r *Router) write(key, value string) error {
	r.inWrite = true
	defer func() { r.inWrite = false }()
	return r.state.SetState(key, value)
}

// StateChanged is a state listener for writes that did not come from a
// client, such as a host restoring a session. It refreshes the router's
// caches and announces the new value to every client.
func (r *Router) StateChanged(key, value string) {
	if r.inWrite || key == r.keys.Event {
		return
	}
	switch key {
	case r.keys.Config:
		r.reloadConfig(value)
	case r.keys.UI:
		r.reloadUI(value)
	}
	r.hub.Broadcast(StateMessage(key, value), NoClient)
}

// Attach sends the current config and UI state to a newly connected
// client so it can draw itself.
func (r *Router) Attach(c *Client) {
	for _, key := range []string{r.keys.Config, r.keys.UI} {
		if key == "" {
			continue
		}
		r.hub.Send(c.ID, StateMessage(key, r.state.GetState(key)))
	}
}

func (r *Router) reloadConfig(text string) {
	c, err := ParseConfig(text)
	if err != nil {
		r.log.Warn("%v, using defaults", err)
	}
	r.config = c
}

func (r *Router) reloadUI(text string) {
	s, err := ParseUIState(text)
	if err != nil {
		r.log.Warn("%v, starting empty", err)
	}
	r.ui = s
}

// IsUnrecognized reports whether err came from a message the router
// dropped as malformed.
func IsUnrecognized(err error) bool {
	return errors.Is(err, ErrUnrecognizedMessage)
}
