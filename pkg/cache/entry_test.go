package cache

import (
	"net/http"
	"testing"
	"time"
)

func TestEntry_Timestamp(t *testing.T) {
	stored := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	date := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		entry Entry
		want  time.Time
	}{
		{
			name:  "explicit stored at",
			entry: Entry{StoredAt: stored, Headers: http.Header{"Date": []string{date.Format(http.TimeFormat)}}},
			want:  stored,
		},
		{
			name:  "falls back to date header",
			entry: Entry{Headers: http.Header{"Date": []string{date.Format(http.TimeFormat)}}},
			want:  date,
		},
		{
			name:  "unparseable date header",
			entry: Entry{Headers: http.Header{"Date": []string{"yesterday"}}},
			want:  time.Time{},
		},
		{
			name:  "no timestamp at all",
			entry: Entry{},
			want:  time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Timestamp(); !got.Equal(tt.want) {
				t.Errorf("Timestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_IsStale(t *testing.T) {
	now := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	maxAge := 30 * 24 * time.Hour

	tests := []struct {
		name     string
		storedAt time.Time
		want     bool
	}{
		{
			name:     "fresh entry",
			storedAt: now.Add(-24 * time.Hour),
			want:     false,
		},
		{
			name:     "exactly max age",
			storedAt: now.Add(-maxAge),
			want:     true,
		},
		{
			name:     "past max age",
			storedAt: now.Add(-maxAge - time.Second),
			want:     true,
		},
		{
			name:     "missing timestamp",
			storedAt: time.Time{},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{StoredAt: tt.storedAt}
			if got := entry.IsStale(maxAge, now); got != tt.want {
				t.Errorf("IsStale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Age(t *testing.T) {
	now := time.Now()
	entry := &Entry{StoredAt: now.Add(-90 * time.Minute)}

	if got := entry.Age(now); got != 90*time.Minute {
		t.Errorf("Age() = %v, want %v", got, 90*time.Minute)
	}
}
