package insteon

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-insteon/internal/insteon/codec"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{in: "aa.bb.cc", want: Target{Kind: TargetDevice, Address: codec.Address{0xaa, 0xbb, 0xcc}}},
		{in: "group-0", want: Target{Kind: TargetGroup}},
		{in: "group-255", want: Target{Kind: TargetGroup, Group: 255}},
		{in: "modem", want: Target{Kind: TargetModem}},
		{in: "group-256", wantErr: true},
		{in: "group-", wantErr: true},
		{in: "aa.bb", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTarget) {
					t.Errorf("ParseTarget(%q) error = %v, want ErrInvalidTarget", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTarget(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseTarget(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}
