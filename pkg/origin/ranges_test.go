package origin

import (
	"errors"
	"testing"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		size       int64
		wantStart  int64
		wantLength int64
		wantOK     bool
		wantErr    error
	}{
		{"closed range", "bytes=0-99", 1000, 0, 100, true, nil},
		{"open range", "bytes=500-", 1000, 500, 500, true, nil},
		{"suffix range", "bytes=-100", 1000, 900, 100, true, nil},
		{"suffix larger than object", "bytes=-5000", 1000, 0, 1000, true, nil},
		{"end past size clamps", "bytes=900-5000", 1000, 900, 100, true, nil},
		{"single byte", "bytes=10-10", 1000, 10, 1, true, nil},
		{"spaces", " bytes= 0 - 9 ", 1000, 0, 10, true, nil},
		{"start past size", "bytes=1000-", 1000, 0, 0, false, errUnsatisfiable},
		{"empty suffix", "bytes=-0", 1000, 0, 0, false, errUnsatisfiable},
		{"multiple ranges ignored", "bytes=0-1,5-6", 1000, 0, 0, false, nil},
		{"other unit ignored", "items=0-1", 1000, 0, 0, false, nil},
		{"reversed ignored", "bytes=50-10", 1000, 0, 0, false, nil},
		{"garbage ignored", "bytes=abc-def", 1000, 0, 0, false, nil},
		{"no dash ignored", "bytes=100", 1000, 0, 0, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok, err := parseRange(tt.header, tt.size)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if r.start != tt.wantStart || r.length != tt.wantLength {
				t.Errorf("range = {%d, %d}, want {%d, %d}", r.start, r.length, tt.wantStart, tt.wantLength)
			}
		})
	}
}
