package plugin

import (
	"encoding/binary"
	"fmt"
)

// Info contains plugin metadata
type Info struct {
	ID      string  // Unique plugin identifier (e.g., "com.example.myplugin")
	Name    string  // Display name
	Version string  // Semantic version (e.g., "1.0.0")
	Vendor  string  // Company/developer name
	License string  // License name shown by hosts
	Code    [4]byte // Four character code used by hosts that key plugins by integer
}

// UniqueID packs Code into a big-endian integer, the way hosts build
// ids from four character constants.
func (i Info) UniqueID() uint32 {
	return binary.BigEndian.Uint32(i.Code[:])
}

func (i Info) String() string {
	if i.Vendor == "" {
		return fmt.Sprintf("%s %s", i.Name, i.Version)
	}
	return fmt.Sprintf("%s %s (%s)", i.Name, i.Version, i.Vendor)
}
