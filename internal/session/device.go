package session

import "strings"

const (
	unknownBrowser = "Unknown Browser"
	unknownOS      = "Unknown OS"
)

// DeviceLabel turns a raw User-Agent into "<browser> on <os>". Markers are
// checked in order and the first match wins.
func DeviceLabel(userAgent string) string {
	ua := strings.ToLower(userAgent)

	browser := unknownBrowser
	switch {
	case strings.Contains(ua, "chrome") && !strings.Contains(ua, "edg"):
		browser = "Chrome"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "safari") && !strings.Contains(ua, "chrome"):
		browser = "Safari"
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	}

	os := unknownOS
	switch {
	case strings.Contains(ua, "windows"):
		os = "Windows"
	case strings.Contains(ua, "mac os"), strings.Contains(ua, "macos"):
		os = "macOS"
	case strings.Contains(ua, "linux"):
		os = "Linux"
	case strings.Contains(ua, "android"):
		os = "Android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		os = "iOS"
	}

	return browser + " on " + os
}
