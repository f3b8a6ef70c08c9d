package plugin

import (
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info{
		ID:      "com.example.surface",
		Name:    "Surface",
		Version: "1.0.0",
		Vendor:  "Example",
		Code:    [4]byte{'L', 'I', 'c', 's'},
	}

	if got := info.UniqueID(); got != 0x4c496373 {
		t.Errorf("UniqueID() = 0x%08x, want 0x4c496373", got)
	}
	if got := info.String(); got != "Surface 1.0.0 (Example)" {
		t.Errorf("String() = %q", got)
	}

	info.Vendor = ""
	if got := info.String(); got != "Surface 1.0.0" {
		t.Errorf("String() without vendor = %q", got)
	}
}
