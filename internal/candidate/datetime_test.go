package candidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHHMM(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"3pm", "15:00", true},
		{"3 PM", "15:00", true},
		{"3:30pm", "15:30", true},
		{"330pm", "15:30", true},
		{"12am", "00:00", true},
		{"12pm", "12:00", true},
		{"12:15 am", "00:15", true},
		{"15:00", "15:00", true},
		{"9:05", "09:05", true},
		{"15:00:59", "15:00", true},
		{"1500", "15:00", true},
		{"930", "09:30", true},
		{"13pm", "", false},
		{"24:00", "", false},
		{"12:60", "", false},
		{"2400", "", false},
		{"noon", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ToHHMM(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractDateAndTime(t *testing.T) {
	tests := []struct {
		in       string
		wantDate string
		wantTime string
		ok       bool
	}{
		{"2025-11-01T15:00:00-04:00", "2025-11-01", "15:00", true},
		{"2025-11-01T15:00:00Z", "2025-11-01", "15:00", true},
		{"2025-11-01T15:00:00.000+0100", "2025-11-01", "15:00", true},
		{"2025-11-01 09:30", "2025-11-01", "09:30", true},
		{"2025-11-01", "2025-11-01", "", true},
		{"Saturday 2025-11-01 at 7pm", "2025-11-01", "19:00", true},
		{"2025-11-01, 7:30 PM", "2025-11-01", "19:30", true},
		{"November 1st", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			date, hhmm, ok := ExtractDateAndTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.wantDate, date)
			assert.Equal(t, tt.wantTime, hhmm)
		})
	}
}
