package origin

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordingTransport struct {
	name  string
	calls *[]string
}

func (r recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	*r.calls = append(*r.calls, r.name)
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestSplit(t *testing.T) {
	var calls []string
	s := Split{
		Prefix:  "/videos/",
		Media:   recordingTransport{name: "media", calls: &calls},
		Default: recordingTransport{name: "default", calls: &calls},
	}

	tests := []struct {
		path string
		want string
	}{
		{"/videos/demo.mp4", "media"},
		{"/videos/demo-poster.webp", "media"},
		{"/images/videos/x.png", "default"},
		{"/", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			calls = nil
			req := httptest.NewRequest(http.MethodGet, "https://portfolio.example"+tt.path, nil)
			if _, err := s.RoundTrip(req); err != nil {
				t.Fatalf("RoundTrip() error: %v", err)
			}
			if len(calls) != 1 || calls[0] != tt.want {
				t.Errorf("routed to %v, want %s", calls, tt.want)
			}
		})
	}
}

func TestNewTransport(t *testing.T) {
	cfg := DefaultConfig()
	tr := NewTransport(cfg)

	if tr.ResponseHeaderTimeout != cfg.ResponseHeaderTimeout {
		t.Errorf("ResponseHeaderTimeout = %v, want %v", tr.ResponseHeaderTimeout, cfg.ResponseHeaderTimeout)
	}
	if tr.MaxIdleConnsPerHost != cfg.MaxIdleConnsPerHost {
		t.Errorf("MaxIdleConnsPerHost = %d, want %d", tr.MaxIdleConnsPerHost, cfg.MaxIdleConnsPerHost)
	}
	if tr.DialContext == nil {
		t.Error("DialContext not set")
	}
}
