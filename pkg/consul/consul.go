// Package consul is the control-surface instrument: a plugin with no
// parameters whose UI clients drive its MIDI output through state writes.
package consul

import (
	"github.com/justyntemme/consul/pkg/framework/plugin"
	"github.com/justyntemme/consul/pkg/framework/process"
	"github.com/justyntemme/consul/pkg/framework/state"
	"github.com/justyntemme/consul/pkg/framework/ui"
)

// State keys.
const (
	KeyConfig = "config"  // instrument configuration, JSON
	KeyUI     = "ui"      // last value of every control, JSON
	KeyUISize = "ui_size" // window size chosen by the user
	KeyEvent  = "cc"      // pending event, base64 record
)

// Info describes the instrument to hosts.
var Info = plugin.Info{
	ID:      "com.consul.controlsurface",
	Name:    "Consul",
	Version: "1.0.0",
	Vendor:  "Consul",
	License: "GPLv3",
	Code:    [4]byte{'C', 'n', 's', 'l'},
}

// Options configures a plugin instance.
type Options struct {
	// QueueCapacity is the minimum number of events the realtime queue
	// holds. Values below midi.MinRingCapacity are raised to it.
	QueueCapacity int
}

// Plugin is the consul instrument.
type Plugin struct {
	*plugin.Base
}

// New creates and initializes a plugin instance.
func New(opts Options) *Plugin {
	p := &Plugin{
		Base: plugin.NewBase(Info, opts.QueueCapacity,
			state.Decl{Key: KeyConfig, Visibility: state.Shared},
			state.Decl{Key: KeyUI, Visibility: state.UIOnly},
			state.Decl{Key: KeyUISize, Visibility: state.UIOnly},
			state.Decl{Key: KeyEvent, Visibility: state.EngineEvents},
		),
	}
	// MIDI only; the audio outputs stay silent.
	p.OnProcess(func(ctx *process.Context) {
		ctx.Clear()
	})
	plugin.Init(p)
	return p
}

// Keys returns the router keys matching the plugin's declarations.
func Keys() ui.Keys {
	return ui.Keys{Config: KeyConfig, UI: KeyUI, Event: KeyEvent}
}

// NewUI binds a router to the plugin's state and hub. Host-side state
// changes are announced to every client from then on.
func NewUI(p *Plugin, hub *ui.Hub) *ui.Router {
	r := ui.NewRouter(p, hub, Keys())
	r.SetLogger(p.Logger().WithPrefix("router"))
	p.Store().OnChange(r.StateChanged)
	return r
}
