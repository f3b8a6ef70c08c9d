package state

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	persistMagic   = "CONSUL"
	persistVersion = uint32(1)

	// maxValueLen bounds a single key or value when loading.
	maxValueLen = 16 << 20
)

// Save writes every retained entry to w. Event-carrying entries are
// transient and never saved.
func (s *Store) Save(w io.Writer) error {
	// Write magic header
	if _, err := io.WriteString(w, persistMagic); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, persistVersion); err != nil {
		return err
	}

	keys := s.persistentKeys()
	if err := binary.Write(w, binary.LittleEndian, uint32(len(keys))); err != nil {
		return err
	}

	for _, key := range keys {
		if err := writeString(w, key); err != nil {
			return err
		}
		if err := writeString(w, s.entries[key].Value); err != nil {
			return err
		}
	}
	return nil
}

// Load restores entries saved by Save. Values go through Set, so change
// listeners fire. Keys that are not declared are skipped.
func (s *Store) Load(r io.Reader) error {
	header := make([]byte, len(persistMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return err
	}
	if string(header) != persistMagic {
		return fmt.Errorf("invalid state format")
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version > persistVersion {
		return fmt.Errorf("state version %d is newer than supported version %d", version, persistVersion)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		key, err := readString(r)
		if err != nil {
			return err
		}
		value, err := readString(r)
		if err != nil {
			return err
		}

		e, ok := s.entries[key]
		if !ok || e.Visibility.CarriesEvent() {
			// Ignore unknown keys for forward compatibility
			s.log.Debug("skipping saved key %q", key)
			continue
		}
		if err := s.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) persistentKeys() []string {
	var keys []string
	for _, k := range s.Keys() {
		if !s.entries[k].Visibility.CarriesEvent() {
			keys = append(keys, k)
		}
	}
	return keys
}

func writeString(w io.Writer, v string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(v))); err != nil {
		return err
	}
	_, err := io.WriteString(w, v)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxValueLen {
		return "", fmt.Errorf("state value of %d bytes exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
