// Package ui routes control actions from connected UI clients to the
// plugin state and keeps every client in sync.
package ui

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Message tags.
const (
	TagUIToHost = "ui2host"
	TagHostToUI = "host2ui"
	TagControl  = "control"
	TagState    = "state"
)

// ErrUnrecognizedMessage is returned for messages with an unknown tag or
// the wrong shape. Callers drop them.
var ErrUnrecognizedMessage = errors.New("ui: unrecognized message")

// Message is a tagged array exchanged with UI clients, e.g.
// ["ui2host", "k-01", 0.5]. Delivered messages are shared between
// clients and must not be modified.
type Message []interface{}

// DecodeMessage parses a JSON array.
func DecodeMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedMessage, err)
	}
	return msg, nil
}

// Tag returns the first element if it is a string.
func (m Message) Tag() string {
	if len(m) == 0 {
		return ""
	}
	tag, _ := m[0].(string)
	return tag
}

// String renders the message as JSON.
func (m Message) String() string {
	b, err := json.Marshal([]interface{}(m))
	if err != nil {
		return fmt.Sprintf("%v", []interface{}(m))
	}
	return string(b)
}

// ActionKind tells which inbound shape an Action came from.
type ActionKind int

const (
	// ActionWidget is ["ui2host", controlId, value].
	ActionWidget ActionKind = iota
	// ActionControl is ["control", controlId, value, status, data1, data2?].
	ActionControl
	// ActionState is ["state", key, value].
	ActionState
)

// Action is a validated inbound message.
type Action struct {
	Kind      ActionKind
	ControlID string
	Value     interface{}

	// Generic control payload.
	Status   uint8
	Data1    uint8
	Data2    uint8
	HasData2 bool

	// State write.
	Key      string
	StateVal string
}

// Parse validates msg and extracts its fields.
func Parse(msg Message) (Action, error) {
	switch msg.Tag() {
	case TagUIToHost:
		if len(msg) != 3 {
			break
		}
		id, ok := msg[1].(string)
		if !ok || id == "" || !isWidgetValue(msg[2]) {
			break
		}
		return Action{Kind: ActionWidget, ControlID: id, Value: msg[2]}, nil

	case TagControl:
		if len(msg) != 5 && len(msg) != 6 {
			break
		}
		id, ok := msg[1].(string)
		if !ok || id == "" || !isWidgetValue(msg[2]) {
			break
		}
		status, ok := byteField(msg[3], 0x80, 0xef)
		if !ok {
			break
		}
		data1, ok := byteField(msg[4], 0, 0x7f)
		if !ok {
			break
		}
		a := Action{Kind: ActionControl, ControlID: id, Value: msg[2], Status: status, Data1: data1}
		if len(msg) == 6 {
			if a.Data2, ok = byteField(msg[5], 0, 0x7f); !ok {
				break
			}
			a.HasData2 = true
		}
		return a, nil

	case TagState:
		if len(msg) != 3 {
			break
		}
		key, ok := msg[1].(string)
		if !ok || key == "" {
			break
		}
		value, ok := msg[2].(string)
		if !ok {
			break
		}
		return Action{Kind: ActionState, Key: key, StateVal: value}, nil
	}

	return Action{}, fmt.Errorf("%w: %s", ErrUnrecognizedMessage, msg)
}

// Echo returns the message other clients receive for a control action.
func (a Action) Echo() Message {
	switch a.Kind {
	case ActionWidget:
		return Message{TagHostToUI, a.ControlID, a.Value}
	case ActionControl:
		return Message{TagControl, a.ControlID, a.Value}
	default:
		return Message{TagState, a.Key, a.StateVal}
	}
}

// StateMessage builds the message announcing a state value.
func StateMessage(key, value string) Message {
	return Message{TagState, key, value}
}

func isWidgetValue(v interface{}) bool {
	if _, ok := v.(bool); ok {
		return true
	}
	f, ok := number(v)
	return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
}

func byteField(v interface{}, min, max uint8) (uint8, bool) {
	f, ok := number(v)
	if !ok || f != math.Trunc(f) || f < float64(min) || f > float64(max) {
		return 0, false
	}
	return uint8(f), true
}

// number accepts JSON numbers and the integer types Go callers use.
func number(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	}
	return 0, false
}
