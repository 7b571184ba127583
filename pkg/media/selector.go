package media

import (
	"math"
	"path"
	"regexp"
	"strings"
	"time"
)

// Selection defaults.
const (
	DefaultBreakpoint   = 768
	DefaultExtension    = ".mp4"
	DefaultMobileSuffix = "-mobile"
	DefaultPosterSuffix = "-poster.webp"

	// DefaultDuration is assumed by Estimate when no duration is given.
	DefaultDuration = 30 * time.Second

	// LowMemoryGB is the device memory at or below which video buffers are
	// released aggressively.
	LowMemoryGB = 4
)

var (
	defaultMobileUA = regexp.MustCompile(`(?i)iPhone|iPad|iPod|Android`)

	// Connection types that select the mobile variant.
	defaultSlowTypes = []string{"slow-2g", "2g", "3g"}
)

// Quality describes one encoded tier.
type Quality struct {
	Name        string
	BitrateMbps float64
}

var (
	// QualityMobile is the reduced-resolution tier.
	QualityMobile = Quality{Name: "480p", BitrateMbps: 1}

	// QualityDesktop is the full-quality tier.
	QualityDesktop = Quality{Name: "720p", BitrateMbps: 2.5}
)

// Selector picks video variants. The zero value is not usable; use NewSelector.
type Selector struct {
	Breakpoint   int
	MobileUA     *regexp.Regexp
	SlowTypes    []string
	Extension    string
	MobileSuffix string
	PosterSuffix string
}

// NewSelector returns a selector with the default rules.
func NewSelector() *Selector {
	return &Selector{
		Breakpoint:   DefaultBreakpoint,
		MobileUA:     defaultMobileUA,
		SlowTypes:    append([]string(nil), defaultSlowTypes...),
		Extension:    DefaultExtension,
		MobileSuffix: DefaultMobileSuffix,
		PosterSuffix: DefaultPosterSuffix,
	}
}

// IsMobileDevice reports whether the user agent or the mobile hint names a
// mobile device.
func (s *Selector) IsMobileDevice(p DeviceProfile) bool {
	return p.MobileHint || (p.UserAgent != "" && s.MobileUA.MatchString(p.UserAgent))
}

// Constrained reports whether any signal asks for the mobile variant.
// Unknown signals never count as constrained.
func (s *Selector) Constrained(p DeviceProfile) bool {
	if s.IsMobileDevice(p) {
		return true
	}
	if p.ViewportWidth > 0 && p.ViewportWidth < s.Breakpoint {
		return true
	}
	if contains(s.SlowTypes, p.EffectiveType) {
		return true
	}
	return p.SaveData
}

// Source returns the variant path to request for a canonical video path.
// Paths already naming the mobile variant and non-video paths are returned
// unchanged.
func (s *Selector) Source(videoPath string, p DeviceProfile) string {
	if !s.Constrained(p) {
		return videoPath
	}
	return s.mobilePath(videoPath)
}

func (s *Selector) mobilePath(videoPath string) string {
	if !strings.HasSuffix(videoPath, s.Extension) || s.IsMobilePath(videoPath) {
		return videoPath
	}
	return strings.TrimSuffix(videoPath, s.Extension) + s.MobileSuffix + s.Extension
}

// IsMobilePath reports whether videoPath names the mobile variant.
func (s *Selector) IsMobilePath(videoPath string) bool {
	return strings.HasSuffix(videoPath, s.MobileSuffix+s.Extension)
}

// base returns the canonical path without the mobile suffix.
func (s *Selector) base(videoPath string) string {
	if s.IsMobilePath(videoPath) {
		return strings.TrimSuffix(videoPath, s.MobileSuffix+s.Extension) + s.Extension
	}
	return videoPath
}

// Poster returns the poster image for a video. It does not depend on the
// quality tier.
func (s *Selector) Poster(videoPath string) string {
	b := s.base(videoPath)
	return strings.TrimSuffix(b, path.Ext(b)) + s.PosterSuffix
}

// Variants lists the physical assets of one logical video.
type Variants struct {
	Desktop string `json:"desktop"`
	Mobile  string `json:"mobile"`
	Poster  string `json:"poster"`
}

// Variants returns every physical asset of the video at videoPath.
func (s *Selector) Variants(videoPath string) Variants {
	b := s.base(videoPath)
	return Variants{
		Desktop: b,
		Mobile:  s.mobilePath(b),
		Poster:  s.Poster(b),
	}
}

// Estimate is the expected download of a video for a profile.
type Estimate struct {
	Quality         string  `json:"quality"`
	BitrateMbps     float64 `json:"bitrate_mbps"`
	EstimatedSizeMB float64 `json:"estimated_size_mb"`
}

// Estimate approximates the download size from the tier bitrate, rounded
// to one decimal. A non-positive duration means DefaultDuration.
func (s *Selector) Estimate(p DeviceProfile, duration time.Duration) Estimate {
	if duration <= 0 {
		duration = DefaultDuration
	}
	q := QualityDesktop
	if s.Constrained(p) {
		q = QualityMobile
	}
	sizeMB := q.BitrateMbps * duration.Seconds() / 8
	return Estimate{
		Quality:         q.Name,
		BitrateMbps:     q.BitrateMbps,
		EstimatedSizeMB: math.Round(sizeMB*10) / 10,
	}
}

// AggressiveMemoryMode reports whether clients should drop video buffers
// when videos leave view rather than only pausing them. Mobile devices and
// devices reporting at most LowMemoryGB qualify.
func (s *Selector) AggressiveMemoryMode(p DeviceProfile) bool {
	lowMemory := p.DeviceMemoryGB > 0 && p.DeviceMemoryGB <= LowMemoryGB
	return s.IsMobileDevice(p) || lowMemory
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
