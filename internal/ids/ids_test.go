package ids

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

func TestForFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
		check   func(string) error
	}{
		{"", false, func(s string) error { _, err := uuid.Parse(s); return err }},
		{"uuid", false, func(s string) error { _, err := uuid.Parse(s); return err }},
		{" XID ", false, func(s string) error { _, err := xid.FromString(s); return err }},
		{"snowflake", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			gen, err := ForFormat(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ForFormat(%q) expected error, got nil", tt.format)
				}
				if !strings.Contains(err.Error(), "unknown id format") {
					t.Errorf("error = %v, want 'unknown id format'", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ForFormat(%q) error = %v", tt.format, err)
			}
			if err := tt.check(gen.NewID()); err != nil {
				t.Errorf("generated id does not parse: %v", err)
			}
		})
	}
}

func TestGenerators_Unique(t *testing.T) {
	for _, gen := range []Generator{UUID{}, XID{}} {
		seen := make(map[string]struct{}, 1000)
		for i := 0; i < 1000; i++ {
			id := gen.NewID()
			if _, dup := seen[id]; dup {
				t.Fatalf("%T produced duplicate id %q", gen, id)
			}
			seen[id] = struct{}{}
		}
	}
}

func TestGeneratorFunc(t *testing.T) {
	gen := GeneratorFunc(func() string { return "fixed" })
	if got := gen.NewID(); got != "fixed" {
		t.Errorf("NewID() = %q, want fixed", got)
	}
}
