package main

import (
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	// WHY: --expiry accepts day counts that time.ParseDuration rejects.
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"0d", 0, false},
		{"720h", 720 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"xd", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := parseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDuration(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseDuration(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
