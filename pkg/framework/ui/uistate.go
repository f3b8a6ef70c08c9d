package ui

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UIState holds the last value sent for each control, keyed by control id.
type UIState struct {
	values map[string]interface{}
}

// NewUIState returns an empty state.
func NewUIState() *UIState {
	return &UIState{values: make(map[string]interface{})}
}

// ParseUIState decodes a ui blob. An empty blob yields an empty state.
func ParseUIState(text string) (*UIState, error) {
	s := NewUIState()
	if strings.TrimSpace(text) == "" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(text), &s.values); err != nil {
		return NewUIState(), fmt.Errorf("ui: bad ui state: %w", err)
	}
	if s.values == nil {
		s.values = make(map[string]interface{})
	}
	return s, nil
}

// Set records value for id.
func (s *UIState) Set(id string, value interface{}) {
	s.values[id] = value
}

// Get returns the value recorded for id.
func (s *UIState) Get(id string) (interface{}, bool) {
	v, ok := s.values[id]
	return v, ok
}

// Len returns the number of controls recorded.
func (s *UIState) Len() int {
	return len(s.values)
}

// Marshal encodes the state as a JSON object with sorted keys.
func (s *UIState) Marshal() string {
	b, err := json.Marshal(s.values)
	if err != nil {
		// Values come from Parse, which only admits JSON scalars.
		return "{}"
	}
	return string(b)
}
