package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// EventType classifies the channel voice message carried by an Event.
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeNoteOff
	EventTypeNoteOn
	EventTypePolyPressure
	EventTypeControlChange
	EventTypeProgramChange
	EventTypeChannelPressure
	EventTypePitchBend
)

// String returns the name of the event type.
func (t EventType) String() string {
	switch t {
	case EventTypeNoteOff:
		return "NoteOff"
	case EventTypeNoteOn:
		return "NoteOn"
	case EventTypePolyPressure:
		return "PolyPressure"
	case EventTypeControlChange:
		return "CC"
	case EventTypeProgramChange:
		return "ProgramChange"
	case EventTypeChannelPressure:
		return "ChannelPressure"
	case EventTypePitchBend:
		return "PitchBend"
	default:
		return "Unknown"
	}
}

// Status bytes for channel 0. OR the channel into the low nibble.
const (
	StatusNoteOff       uint8 = 0x80
	StatusNoteOn        uint8 = 0x90
	StatusControlChange uint8 = 0xb0
)

const (
	CCModWheel    uint8 = 1
	CCVolume      uint8 = 7
	CCPan         uint8 = 10
	CCExpression  uint8 = 11
	CCSustain     uint8 = 64
	CCAllNotesOff uint8 = 123
)

// DataSize is the number of inline data bytes an Event can hold.
const DataSize = 4

// Event is a short MIDI message positioned within a processing block.
// Data[0] is the status byte; Size counts the meaningful bytes including it.
type Event struct {
	Frame uint32
	Size  uint32
	Data  [DataSize]byte
}

// Raw builds an event from a status byte and one or two payload bytes.
// Size is 2 when only data1 is given, 3 when data2 is present too.
func Raw(status, data1 uint8, data2 ...uint8) Event {
	e := Event{Size: 2}
	e.Data[0] = status
	e.Data[1] = data1
	if len(data2) > 0 {
		e.Size = 3
		e.Data[2] = data2[0]
	}
	return e
}

// ControlChange builds a CC event on a zero-based channel.
func ControlChange(channel, controller, value uint8) Event {
	e, _ := FromMessage(gomidi.ControlChange(channel&0x0f, controller&0x7f, value&0x7f))
	return e
}

// NoteOn builds a note on event on a zero-based channel.
func NoteOn(channel, key, velocity uint8) Event {
	e, _ := FromMessage(gomidi.NoteOn(channel&0x0f, key&0x7f, velocity&0x7f))
	return e
}

// NoteOff builds a note off event on a zero-based channel.
func NoteOff(channel, key uint8) Event {
	e, _ := FromMessage(gomidi.NoteOff(channel&0x0f, key&0x7f))
	return e
}

// FromMessage copies a two or three byte message into an Event at frame 0.
func FromMessage(msg gomidi.Message) (Event, error) {
	b := msg.Bytes()
	if len(b) < 2 || len(b) > 3 {
		return Event{}, fmt.Errorf("midi: message of %d bytes does not fit an event", len(b))
	}
	var e Event
	e.Size = uint32(len(b))
	copy(e.Data[:], b)
	return e, nil
}

// Valid reports whether the event carries a status byte and 2 or 3 bytes.
func (e Event) Valid() bool {
	return (e.Size == 2 || e.Size == 3) && e.Data[0]&0x80 != 0
}

func (e Event) Status() uint8 { return e.Data[0] }
func (e Event) Data1() uint8  { return e.Data[1] }

// Data2 returns the second payload byte, or 0 for two byte events.
func (e Event) Data2() uint8 {
	if e.Size < 3 {
		return 0
	}
	return e.Data[2]
}

// Channel returns the zero-based channel from the status byte.
func (e Event) Channel() uint8 {
	return e.Data[0] & 0x0f
}

// Message returns the meaningful bytes as a gomidi message.
func (e Event) Message() gomidi.Message {
	n := e.Size
	if n > DataSize {
		n = DataSize
	}
	return gomidi.Message(e.Data[:n])
}

// Type classifies the event by its status byte.
func (e Event) Type() EventType {
	switch e.Message().Type() {
	case gomidi.NoteOnMsg:
		return EventTypeNoteOn
	case gomidi.NoteOffMsg:
		return EventTypeNoteOff
	case gomidi.PolyAfterTouchMsg:
		return EventTypePolyPressure
	case gomidi.ControlChangeMsg:
		return EventTypeControlChange
	case gomidi.ProgramChangeMsg:
		return EventTypeProgramChange
	case gomidi.AfterTouchMsg:
		return EventTypeChannelPressure
	case gomidi.PitchBendMsg:
		return EventTypePitchBend
	}
	return EventTypeUnknown
}

func (e Event) String() string {
	var ch, ctrl, val uint8
	if e.Message().GetControlChange(&ch, &ctrl, &val) {
		return fmt.Sprintf("CC{ch:%d, ctrl:%d, val:%d, frame:%d}", ch, ctrl, val, e.Frame)
	}
	return fmt.Sprintf("%s{status:0x%02x, data1:%d, data2:%d, size:%d, frame:%d}",
		e.Type(), e.Status(), e.Data1(), e.Data2(), e.Size, e.Frame)
}
