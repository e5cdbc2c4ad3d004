package device

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
)

func TestLoadDescriptions(t *testing.T) {
	reg := NewRegistry()
	reg.Lookup(addrA)
	reg.Lookup(addrB)

	input := strings.Join([]string{
		"location\taddress\tnotes",
		"Front porch\t0A.00.01\tmotion",
		"\t0b.00.02\tno location",
		"Garage\t0c.00.03\tnot linked",
		"Cellar\tzz.00.01\tbad address",
		"Short row",
	}, "\n") + "\n"

	n, err := LoadDescriptions(strings.NewReader(input), reg)
	if err != nil {
		t.Fatalf("LoadDescriptions() error = %v", err)
	}
	if n != 1 {
		t.Errorf("annotated = %d, want 1", n)
	}

	tests := []struct {
		name     string
		addr     codec.Address
		location string
		exists   bool
	}{
		{"annotated", addrA, "Front porch", true},
		{"empty location", addrB, "", true},
		{"unknown device", addrC, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := reg.Device(tt.addr)
			if ok != tt.exists {
				t.Fatalf("exists = %v, want %v", ok, tt.exists)
			}
			if d.Location != tt.location {
				t.Errorf("Location = %q, want %q", d.Location, tt.location)
			}
		})
	}
}

func TestLoadDescriptionsBadHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing location", "address\tname\n0a.00.01\tx\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDescriptions(strings.NewReader(tt.input), NewRegistry())
			if !errors.Is(err, ErrInvalidDescriptions) {
				t.Errorf("error = %v, want ErrInvalidDescriptions", err)
			}
		})
	}
}

func TestLoadDescriptionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.tsv")
	if err := os.WriteFile(path, []byte("address\tlocation\n0a.00.01\tStudy\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry()
	reg.Lookup(addrA)

	n, err := LoadDescriptionsFile(path, reg)
	if err != nil || n != 1 {
		t.Fatalf("LoadDescriptionsFile() = %d, %v", n, err)
	}
	if _, err := LoadDescriptionsFile(filepath.Join(t.TempDir(), "missing"), reg); err == nil {
		t.Error("expected error for missing file")
	}
}
