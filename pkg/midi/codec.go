package midi

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// RecordSize is the length of one binary event record:
// frame (u32), size (u32), data[4], extension pointer (u64).
// The extension field is always written as zero and ignored on decode.
const RecordSize = 24

// ErrMalformed is matched by every decode failure.
var ErrMalformed = errors.New("midi: malformed event record")

// DecodeError reports a blob whose decoded length is not RecordSize.
type DecodeError struct {
	Length int
	Want   int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("midi: malformed event record: %v", e.Err)
	}
	return fmt.Sprintf("midi: malformed event record: got %d bytes, want %d", e.Length, e.Want)
}

func (e *DecodeError) Is(target error) bool { return target == ErrMalformed }

func (e *DecodeError) Unwrap() error { return e.Err }

// MarshalBinary writes the fixed size record for e.
func (e Event) MarshalBinary() ([]byte, error) {
	var rec [RecordSize]byte
	e.putRecord(rec[:])
	return rec[:], nil
}

// UnmarshalBinary reads a fixed size record into e.
func (e *Event) UnmarshalBinary(b []byte) error {
	if len(b) != RecordSize {
		return &DecodeError{Length: len(b), Want: RecordSize}
	}
	e.Frame = binary.LittleEndian.Uint32(b[0:4])
	e.Size = binary.LittleEndian.Uint32(b[4:8])
	copy(e.Data[:], b[8:8+DataSize])
	return nil
}

func (e Event) putRecord(rec []byte) {
	binary.LittleEndian.PutUint32(rec[0:4], e.Frame)
	binary.LittleEndian.PutUint32(rec[4:8], e.Size)
	copy(rec[8:8+DataSize], e.Data[:])
	// rec[12:24] stays zero: no extension data.
}

// Encode returns the base64 text of the event record.
func Encode(e Event) string {
	var rec [RecordSize]byte
	e.putRecord(rec[:])
	return base64.StdEncoding.EncodeToString(rec[:])
}

// Decode parses text produced by Encode.
func Decode(text string) (Event, error) {
	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return Event{}, &DecodeError{Want: RecordSize, Err: err}
	}
	var e Event
	if err := e.UnmarshalBinary(b); err != nil {
		return Event{}, err
	}
	return e, nil
}
