package dispatch

import "fmt"

// Store name prefixes. Every store name is "<prefix>-v<version>".
const (
	AppShellPrefix     = "app-shell"
	RuntimePrefix      = "runtime-cache"
	ImagesPrefix       = "images-cache"
	VideosPrefix       = "videos-cache"
	MobileVideosPrefix = "videos-mobile-cache"
)

// StoreSet holds the store names expected for one cache version.
type StoreSet struct {
	AppShell     string
	Runtime      string
	Images       string
	Videos       string
	MobileVideos string
}

// StoreNames returns the store set for version.
func StoreNames(version string) StoreSet {
	name := func(prefix string) string {
		return fmt.Sprintf("%s-v%s", prefix, version)
	}
	return StoreSet{
		AppShell:     name(AppShellPrefix),
		Runtime:      name(RuntimePrefix),
		Images:       name(ImagesPrefix),
		Videos:       name(VideosPrefix),
		MobileVideos: name(MobileVideosPrefix),
	}
}

// All returns every store name of the set.
func (s StoreSet) All() []string {
	return []string{s.AppShell, s.Runtime, s.Images, s.Videos, s.MobileVideos}
}

// Contains reports whether name belongs to the set.
func (s StoreSet) Contains(name string) bool {
	for _, n := range s.All() {
		if n == name {
			return true
		}
	}
	return false
}
