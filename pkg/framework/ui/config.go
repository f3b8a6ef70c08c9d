package ui

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/justyntemme/consul/pkg/midi"
)

const (
	DefaultLayout  = "mixer"
	DefaultChannel = 1
)

// ControlKind is the widget type encoded in a control id prefix.
type ControlKind int

const (
	Knob ControlKind = iota
	Button
	Fader
)

// Descriptor describes one widget type.
type Descriptor struct {
	Kind       ControlKind
	Name       string
	Prefix     byte
	Continuous bool
	BaseCC     uint8
}

// Descriptors lists the supported widget types. Ids look like "k-01".
var Descriptors = []Descriptor{
	{Kind: Knob, Name: "Knob", Prefix: 'k', Continuous: true, BaseCC: 0x00},
	{Kind: Button, Name: "Button", Prefix: 'b', Continuous: false, BaseCC: 0x10},
	{Kind: Fader, Name: "Fader", Prefix: 'f', Continuous: true, BaseCC: 0x20},
}

// ParseControlID splits an id such as "f-03" into its descriptor and
// 1-based index.
func ParseControlID(id string) (Descriptor, int, error) {
	prefix, num, ok := strings.Cut(id, "-")
	if !ok || len(prefix) != 1 {
		return Descriptor{}, 0, fmt.Errorf("ui: bad control id %q", id)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return Descriptor{}, 0, fmt.Errorf("ui: bad control index in %q", id)
	}
	for _, d := range Descriptors {
		if d.Prefix == prefix[0] {
			return d, n, nil
		}
	}
	return Descriptor{}, 0, fmt.Errorf("ui: unknown control type in %q", id)
}

// MapEntry overrides the MIDI assignment of one control. It is stored as
// [statusOn, statusOff, index] with statusOff null for CC assignments.
type MapEntry struct {
	StatusOn  uint8
	StatusOff *uint8
	Index     uint8
}

func (m MapEntry) MarshalJSON() ([]byte, error) {
	var off interface{}
	if m.StatusOff != nil {
		off = *m.StatusOff
	}
	return json.Marshal([]interface{}{m.StatusOn, off, m.Index})
}

func (m *MapEntry) UnmarshalJSON(b []byte) error {
	var raw []*int
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 || raw[0] == nil || raw[2] == nil {
		return fmt.Errorf("ui: midi map entry must be [statusOn, statusOff, index]")
	}
	if *raw[0] < 0x80 || *raw[0] > 0xef || *raw[2] < 0 || *raw[2] > 0x7f {
		return fmt.Errorf("ui: midi map entry out of range: %s", b)
	}
	m.StatusOn = uint8(*raw[0])
	m.Index = uint8(*raw[2])
	m.StatusOff = nil
	if raw[1] != nil {
		if *raw[1] < 0x80 || *raw[1] > 0xef {
			return fmt.Errorf("ui: midi map entry out of range: %s", b)
		}
		off := uint8(*raw[1])
		m.StatusOff = &off
	}
	return nil
}

// IsNote reports whether the entry sends notes instead of CCs.
func (m MapEntry) IsNote() bool {
	return m.StatusOn&0xf0 == midi.StatusNoteOn
}

// Config is the instrument configuration stored in the config state entry.
type Config struct {
	Layout  string              `json:"layout,omitempty"`
	Channel int                 `json:"channel,omitempty"` // 1-16
	MidiMap map[string]MapEntry `json:"midiMap,omitempty"`
}

// DefaultConfig returns the configuration used before any is saved.
func DefaultConfig() Config {
	return Config{Layout: DefaultLayout, Channel: DefaultChannel}
}

// ParseConfig decodes a config blob. An empty blob yields DefaultConfig.
func ParseConfig(text string) (Config, error) {
	c := DefaultConfig()
	if strings.TrimSpace(text) == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return DefaultConfig(), fmt.Errorf("ui: bad config: %w", err)
	}
	if c.Layout == "" {
		c.Layout = DefaultLayout
	}
	if c.Channel < 1 || c.Channel > 16 {
		c.Channel = DefaultChannel
	}
	return c, nil
}

// ScaleCC maps a normalized 0..1 value to 0..127, rounding half away
// from zero. Out of range input is clamped.
func ScaleCC(v float64) uint8 {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	return uint8(math.Round(127 * v))
}

// Map converts a widget value to the event it sends.
func (c Config) Map(id string, value interface{}) (midi.Event, error) {
	desc, n, err := ParseControlID(id)
	if err != nil {
		return midi.Event{}, err
	}

	channel := uint8(c.Channel-1) & 0x0f
	index := int(desc.BaseCC) + n - 1
	entry, mapped := c.MidiMap[id]
	if mapped {
		channel = entry.StatusOn & 0x0f
		index = int(entry.Index)
	}
	if index > 0x7f {
		return midi.Event{}, fmt.Errorf("ui: control %q maps past controller 127", id)
	}

	if desc.Continuous {
		v, ok := number(value)
		if !ok {
			return midi.Event{}, fmt.Errorf("ui: %s %q needs a number, got %T", desc.Name, id, value)
		}
		return midi.ControlChange(channel, uint8(index), ScaleCC(v)), nil
	}

	pressed, ok := pressedValue(value)
	if !ok {
		return midi.Event{}, fmt.Errorf("ui: %s %q needs a boolean, got %T", desc.Name, id, value)
	}

	if mapped && entry.IsNote() {
		if pressed {
			return midi.Raw(entry.StatusOn, uint8(index), 127), nil
		}
		if entry.StatusOff != nil {
			return midi.Raw(*entry.StatusOff, uint8(index), 0), nil
		}
		return midi.Raw(entry.StatusOn, uint8(index), 0), nil
	}

	var v uint8
	if pressed {
		v = 127
	}
	return midi.ControlChange(channel, uint8(index), v), nil
}

func pressedValue(v interface{}) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	if f, ok := number(v); ok {
		return f != 0, true
	}
	return false, false
}
