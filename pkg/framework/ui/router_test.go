package ui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/justyntemme/consul/pkg/framework/debug"
	"github.com/justyntemme/consul/pkg/framework/state"
	"github.com/justyntemme/consul/pkg/midi"
)

// storeAccess exposes a state.Store through the plugin-style accessors.
type storeAccess struct {
	*state.Store
}

func (s storeAccess) SetState(key, value string) error { return s.Set(key, value) }
func (s storeAccess) GetState(key string) string        { return s.Get(key) }

type routerFixture struct {
	store  *state.Store
	queue  *midi.Ring
	hub    *Hub
	router *Router
}

func newRouterFixture(t *testing.T, queueCapacity int) *routerFixture {
	t.Helper()
	quiet := debug.New(&bytes.Buffer{}, "test")

	queue := midi.NewRing(queueCapacity)
	store := state.NewStore(queue)
	store.SetLogger(quiet)
	store.Init("config", "", state.Shared)
	store.Init("ui", "", state.UIOnly)
	store.Init("cc", "", state.EngineEvents)
	store.Init("theme", "dark", state.UIOnly)

	hub := NewHub(0)
	hub.SetLogger(quiet)

	r := NewRouter(storeAccess{store}, hub, DefaultKeys)
	r.SetLogger(quiet)
	store.OnChange(r.StateChanged)

	return &routerFixture{store: store, queue: queue, hub: hub, router: r}
}

func drain(q *midi.Ring) []midi.Event {
	var out []midi.Event
	for {
		e, ok := q.Get()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func TestRouterWidgetAction(t *testing.T) {
	f := newRouterFixture(t, 0)
	sender := f.hub.Connect()
	other := f.hub.Connect()

	if err := f.router.HandleRaw(sender.ID, []byte(`["ui2host","k-01",1.0]`)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	events := drain(f.queue)
	if len(events) != 1 {
		t.Fatalf("Expected 1 queued event, got %d", len(events))
	}
	if want := midi.ControlChange(0, 0, 127); events[0] != want {
		t.Errorf("Queued %v, want %v", events[0], want)
	}

	if got := f.store.Get("ui"); got != `{"k-01":1}` {
		t.Errorf("ui state = %q", got)
	}
	if got := f.store.Get("cc"); got != "" {
		t.Errorf("Event key should not retain a value, got %q", got)
	}

	if sender.Pending() != 0 {
		t.Errorf("Sender received %d echoes", sender.Pending())
	}
	if other.Pending() != 1 {
		t.Fatalf("Other client has %d pending, want 1", other.Pending())
	}
	if got := (<-other.Messages()).String(); got != `["host2ui","k-01",1]` {
		t.Errorf("Echo = %s", got)
	}
}

func TestRouterIdempotentUpdate(t *testing.T) {
	f := newRouterFixture(t, 0)
	c := f.hub.Connect()

	msg := Message{TagUIToHost, "f-02", 0.5}
	for i := 0; i < 2; i++ {
		if err := f.router.Handle(c.ID, msg); err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
	}

	if f.router.UIState().Len() != 1 {
		t.Errorf("Expected 1 ui entry, got %d", f.router.UIState().Len())
	}
	if v, _ := f.router.UIState().Get("f-02"); v != 0.5 {
		t.Errorf("f-02 = %v, want 0.5", v)
	}
	if got := f.store.Get("ui"); got != `{"f-02":0.5}` {
		t.Errorf("ui state = %q", got)
	}
	if n := len(drain(f.queue)); n != 2 {
		t.Errorf("Expected 2 forwarded events, got %d", n)
	}
}

func TestRouterControlAction(t *testing.T) {
	f := newRouterFixture(t, 0)
	sender := f.hub.Connect()
	other := f.hub.Connect()

	if err := f.router.Handle(sender.ID, Message{"control", "pad-1", 1.0, 144.0, 60.0, 100.0}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if err := f.router.Handle(sender.ID, Message{"control", "prog", 3.0, 192.0, 3.0}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	events := drain(f.queue)
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0] != midi.Raw(0x90, 60, 100) || events[0].Size != 3 {
		t.Errorf("First event = %v", events[0])
	}
	if events[1] != midi.Raw(0xc0, 3) || events[1].Size != 2 {
		t.Errorf("Second event = %v", events[1])
	}

	if other.Pending() != 2 || sender.Pending() != 0 {
		t.Errorf("Pending: other %d, sender %d", other.Pending(), sender.Pending())
	}
	if got := (<-other.Messages()).String(); got != `["control","pad-1",1]` {
		t.Errorf("Echo = %s", got)
	}
	if f.router.UIState().Len() != 2 {
		t.Errorf("Expected 2 ui entries, got %d", f.router.UIState().Len())
	}
}

func TestRouterIgnoresMalformed(t *testing.T) {
	f := newRouterFixture(t, 0)
	sender := f.hub.Connect()
	other := f.hub.Connect()

	inputs := []string{
		`not json`,
		`["ui2host","k-01"]`,
		`["bogus","k-01",0.5]`,
		`["ui2host","z-01",0.5]`,
		`["ui2host","k-01","half"]`,
		`["control","x",1,12,1]`,
	}
	for _, in := range inputs {
		err := f.router.HandleRaw(sender.ID, []byte(in))
		if !IsUnrecognized(err) {
			t.Errorf("HandleRaw(%s) = %v, want unrecognized", in, err)
		}
	}

	if !f.queue.IsEmpty() {
		t.Error("Malformed input reached the queue")
	}
	if other.Pending() != 0 {
		t.Errorf("Malformed input was broadcast %d times", other.Pending())
	}
	if f.store.Get("ui") != "" {
		t.Errorf("Malformed input changed ui state: %q", f.store.Get("ui"))
	}
}

func TestRouterQueueFull(t *testing.T) {
	f := newRouterFixture(t, 0)
	sender := f.hub.Connect()
	other := f.hub.Connect()

	for i := 0; i < f.queue.Cap(); i++ {
		f.queue.Put(midi.ControlChange(0, 0, 0))
	}

	err := f.router.Handle(sender.ID, Message{TagUIToHost, "k-05", 0.5})
	if !errors.Is(err, state.ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
	if f.queue.Len() != f.queue.Cap() {
		t.Errorf("Queue length changed to %d", f.queue.Len())
	}
	if v, ok := f.router.UIState().Get("k-05"); !ok || v != 0.5 {
		t.Errorf("ui state not updated: %v", v)
	}
	if other.Pending() != 1 {
		t.Errorf("Expected echo despite full queue, got %d", other.Pending())
	}
}

func TestRouterStateAction(t *testing.T) {
	f := newRouterFixture(t, 0)
	sender := f.hub.Connect()
	other := f.hub.Connect()

	cfg := `{"layout":"pads","channel":2}`
	if err := f.router.Handle(sender.ID, Message{TagState, "config", cfg}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if f.store.Get("config") != cfg {
		t.Errorf("config = %q", f.store.Get("config"))
	}
	if f.router.Config().Layout != "pads" || f.router.Config().Channel != 2 {
		t.Errorf("Router config not reloaded: %+v", f.router.Config())
	}
	if other.Pending() != 1 || sender.Pending() != 0 {
		t.Fatalf("Pending: other %d, sender %d", other.Pending(), sender.Pending())
	}
	if got := (<-other.Messages()).String(); got != `["state","config","{\"layout\":\"pads\",\"channel\":2}"]` {
		t.Errorf("Echo = %s", got)
	}

	// New channel applies to the next widget action.
	if err := f.router.Handle(sender.ID, Message{TagUIToHost, "k-01", 1.0}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	events := drain(f.queue)
	if len(events) != 1 || events[0].Channel() != 1 {
		t.Errorf("Expected event on channel index 1, got %v", events)
	}

	if err := f.router.Handle(sender.ID, Message{TagState, "theme", "light"}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if f.store.Get("theme") != "light" {
		t.Errorf("theme = %q", f.store.Get("theme"))
	}

	if err := f.router.Handle(sender.ID, Message{TagState, "config", "{broken"}); !IsUnrecognized(err) {
		t.Errorf("Expected unrecognized for bad config, got %v", err)
	}
	if f.store.Get("config") != cfg {
		t.Error("Bad config overwrote the stored value")
	}

	if err := f.router.Handle(sender.ID, Message{TagState, "nope", "x"}); !errors.Is(err, state.ErrUnknownKey) {
		t.Errorf("Expected ErrUnknownKey, got %v", err)
	}
}

func TestRouterStateEventKey(t *testing.T) {
	f := newRouterFixture(t, 0)
	sender := f.hub.Connect()
	other := f.hub.Connect()

	ev := midi.NoteOn(0, 60, 90)
	if err := f.router.Handle(sender.ID, Message{TagState, "cc", midi.Encode(ev)}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	events := drain(f.queue)
	if len(events) != 1 || events[0] != ev {
		t.Errorf("Expected %v queued, got %v", ev, events)
	}
	if other.Pending() != 0 {
		t.Error("Event key writes should not be broadcast")
	}

	err := f.router.Handle(sender.ID, Message{TagState, "cc", "AAAA"})
	if !errors.Is(err, midi.ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
	if !f.queue.IsEmpty() {
		t.Error("Malformed blob reached the queue")
	}
}

func TestRouterHostStateChange(t *testing.T) {
	f := newRouterFixture(t, 0)
	a := f.hub.Connect()
	b := f.hub.Connect()

	if err := f.store.Set("ui", `{"b-01":true}`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if v, ok := f.router.UIState().Get("b-01"); !ok || v != true {
		t.Errorf("Router did not reload ui state: %v", v)
	}
	for _, c := range []*Client{a, b} {
		if c.Pending() != 1 {
			t.Errorf("Client %d has %d pending, want 1", c.ID, c.Pending())
		}
	}

	// Writes made by the router are announced once, by the router.
	<-a.Messages()
	<-b.Messages()
	f.router.Handle(a.ID, Message{TagUIToHost, "k-01", 0.0})
	if a.Pending() != 0 || b.Pending() != 1 {
		t.Errorf("Pending after router write: a %d, b %d", a.Pending(), b.Pending())
	}
}

func TestRouterAttach(t *testing.T) {
	f := newRouterFixture(t, 0)
	f.store.Set("config", `{"layout":"pads"}`)

	c := f.hub.Connect()
	f.router.Attach(c)

	if c.Pending() != 2 {
		t.Fatalf("Expected 2 messages on attach, got %d", c.Pending())
	}
	if got := (<-c.Messages()).String(); got != `["state","config","{\"layout\":\"pads\"}"]` {
		t.Errorf("First message = %s", got)
	}
	if got := (<-c.Messages()).String(); got != `["state","ui",""]` {
		t.Errorf("Second message = %s", got)
	}
}

func TestRouterLoadsExistingState(t *testing.T) {
	quiet := debug.New(&bytes.Buffer{}, "test")
	store := state.NewStore(midi.NewRing(0))
	store.SetLogger(quiet)
	store.Init("config", `{"channel":5}`, state.Shared)
	store.Init("ui", `{"k-01":0.75}`, state.UIOnly)
	store.Init("cc", "", state.EngineEvents)

	r := NewRouter(storeAccess{store}, NewHub(0), DefaultKeys)
	if r.Config().Channel != 5 {
		t.Errorf("Expected channel 5, got %d", r.Config().Channel)
	}
	if v, _ := r.UIState().Get("k-01"); v != 0.75 {
		t.Errorf("k-01 = %v", v)
	}
}
