package device

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
)

// Description file column names.
const (
	columnAddress  = "address"
	columnLocation = "location"
)

// LoadDescriptionsFile reads a tab-delimited description file and assigns
// locations to known devices. See LoadDescriptions.
func LoadDescriptionsFile(path string, reg *Registry) (int, error) {
	f, err := os.Open(path) //nolint:gosec // Path comes from operator config
	if err != nil {
		return 0, fmt.Errorf("opening device descriptions: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	return LoadDescriptions(f, reg)
}

// LoadDescriptions reads tab-delimited records with a header containing
// "address" (xx.xx.xx) and "location" columns and sets the location of each
// device already present in reg. Rows with an empty address or location, an
// unparsable address, or an address not in the registry are skipped.
//
// It returns the number of devices annotated.
func LoadDescriptions(r io.Reader, reg *Registry) (int, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%w: empty file", ErrInvalidDescriptions)
		}
		return 0, fmt.Errorf("reading description header: %w", err)
	}

	addrCol, locCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case columnAddress:
			addrCol = i
		case columnLocation:
			locCol = i
		}
	}
	if addrCol < 0 || locCol < 0 {
		return 0, fmt.Errorf("%w: header needs %q and %q columns", ErrInvalidDescriptions, columnAddress, columnLocation)
	}

	annotated := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return annotated, fmt.Errorf("reading device descriptions: %w", err)
		}
		if addrCol >= len(record) || locCol >= len(record) {
			continue
		}
		rawAddr := strings.TrimSpace(record[addrCol])
		location := strings.TrimSpace(record[locCol])
		if rawAddr == "" || location == "" {
			continue
		}
		addr, err := codec.ParseAddress(rawAddr)
		if err != nil {
			reg.log().Warn("skipping device description", "address", rawAddr, "error", err)
			continue
		}
		if _, ok := reg.Device(addr); !ok {
			continue
		}
		reg.UpdateDevice(addr, func(d *Device) { d.Location = location })
		annotated++
	}
	return annotated, nil
}
