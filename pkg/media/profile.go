// Package media selects the physical video variant and poster image for a
// canonical video path from device and network signals.
package media

import (
	"net/http"
	"strconv"
	"strings"
)

// Client Hint request headers read by ProfileFromRequest.
const (
	HeaderViewportWidth    = "Viewport-Width"
	HeaderSecViewportWidth = "Sec-CH-Viewport-Width"
	HeaderECT              = "ECT"
	HeaderSaveData         = "Save-Data"
	HeaderDeviceMemory     = "Device-Memory"
	HeaderSecDeviceMemory  = "Sec-CH-Device-Memory"
	HeaderSecUAMobile      = "Sec-CH-UA-Mobile"
	HeaderUserAgent        = "User-Agent"
)

// AcceptCH lists the hints the proxy asks browsers to send.
var AcceptCH = strings.Join([]string{
	HeaderSecViewportWidth,
	HeaderViewportWidth,
	HeaderECT,
	HeaderSaveData,
	HeaderSecDeviceMemory,
	HeaderDeviceMemory,
	HeaderSecUAMobile,
}, ", ")

// DeviceProfile is a snapshot of the signals that drive variant selection.
// Zero values mean the signal is unavailable.
type DeviceProfile struct {
	UserAgent      string
	MobileHint     bool
	ViewportWidth  int
	EffectiveType  string
	SaveData       bool
	DeviceMemoryGB float64
}

// ProfileFromRequest derives a profile from Client Hints. Malformed hints
// are ignored.
func ProfileFromRequest(r *http.Request) DeviceProfile {
	h := r.Header

	p := DeviceProfile{
		UserAgent:     h.Get(HeaderUserAgent),
		MobileHint:    h.Get(HeaderSecUAMobile) == "?1",
		EffectiveType: strings.ToLower(strings.TrimSpace(h.Get(HeaderECT))),
		SaveData:      strings.EqualFold(strings.TrimSpace(h.Get(HeaderSaveData)), "on"),
	}

	if w := firstHeader(h, HeaderSecViewportWidth, HeaderViewportWidth); w != "" {
		if n, err := strconv.Atoi(w); err == nil && n > 0 {
			p.ViewportWidth = n
		}
	}
	if m := firstHeader(h, HeaderSecDeviceMemory, HeaderDeviceMemory); m != "" {
		if f, err := strconv.ParseFloat(m, 64); err == nil && f > 0 {
			p.DeviceMemoryGB = f
		}
	}
	return p
}

func firstHeader(h http.Header, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v
		}
	}
	return ""
}
