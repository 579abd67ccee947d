package main

import (
	"testing"

	"github.com/firewx/climo/internal/types"
)

func TestElementByName(t *testing.T) {
	tests := []struct {
		name    string
		want    types.Element
		wantErr bool
	}{
		{"hdw", types.HDW, false},
		{"blow_up_dt", types.BlowUpDt, false},
		{"blow_up_height", types.BlowUpHeight, false},
		{"dcape", types.DCAPE, false},
		{"temperature", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := elementByName(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("elementByName(%q): expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("elementByName(%q) failed: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("elementByName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRun_Validation(t *testing.T) {
	if err := run("", "GFS", "hdw", "2019-01-01T00:00:00Z", "2019-02-01T00:00:00Z"); err == nil {
		t.Error("Expected error without site")
	}
	if err := run("ABC", "GFS", "bogus", "2019-01-01T00:00:00Z", "2019-02-01T00:00:00Z"); err == nil {
		t.Error("Expected error for unknown element")
	}
	if err := run("ABC", "GFS", "hdw", "not-a-time", "2019-02-01T00:00:00Z"); err == nil {
		t.Error("Expected error for bad start time")
	}
	if err := run("ABC", "GFS", "hdw", "2019-01-01T00:00:00Z", "whenever"); err == nil {
		t.Error("Expected error for bad end time")
	}
}
