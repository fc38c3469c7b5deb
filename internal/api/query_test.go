package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"RFC3339 UTC", "2025-01-15T10:30:00Z", time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC), false},
		{"RFC3339 offset", "2025-01-15T12:30:00+02:00", time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC), false},
		{"fractional seconds", "2025-01-15T10:30:00.250Z", time.Date(2025, 1, 15, 10, 30, 0, 250000000, time.UTC), false},
		{"naive treated as UTC", "2025-01-15T10:30:00", time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC), false},
		{"date only", "2025-01-15", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"garbage", "yesterday", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTime(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !tt.wantErr && got.Location() != time.UTC {
				t.Errorf("ParseTime(%q) location = %v, want UTC", tt.input, got.Location())
			}
		})
	}
}

func TestQueryTime(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/test?start=2025-01-15T10:30:00Z&end=nope", nil)

	start, err := QueryTime(r, "start")
	if err != nil || start == nil {
		t.Fatalf("QueryTime(start) = %v, %v", start, err)
	}

	if _, err := QueryTime(r, "end"); err == nil {
		t.Error("QueryTime(end) expected error for invalid value")
	}

	missing, err := QueryTime(r, "missing")
	if err != nil || missing != nil {
		t.Errorf("QueryTime(missing) = %v, %v; want nil, nil", missing, err)
	}
}
