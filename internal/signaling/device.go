package signaling

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown"

// deviceFromUserAgent reduces a User-Agent header to the OS family clients
// show next to a peer's name.
func deviceFromUserAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return unknownDevice
	}

	ua := useragent.New(raw)
	name := ua.OSInfo().Name
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ios"):
		return "iOS"
	case strings.Contains(lower, "android"):
		return "Android"
	case strings.Contains(lower, "mac"):
		return "macOS"
	case strings.Contains(lower, "windows"):
		return "Windows"
	case strings.Contains(lower, "chrome os"), strings.Contains(lower, "cros"):
		return "ChromeOS"
	case strings.Contains(lower, "linux"):
		return "Linux"
	case name != "":
		return name
	}
	if ua.Mobile() {
		return "Mobile"
	}
	return unknownDevice
}
