// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

// Package useragent classifies raw User-Agent strings into the coarse
// device / browser / OS buckets the dimensional reports group by.
// Matching is ordered substring search: Edge must be tested before
// Chrome (Edge UAs contain "Chrome"), Chrome before Safari (Chrome UAs
// contain "Safari"), and iPhone/iPad before Macintosh.
package useragent

import "strings"

// Device types.
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
)

// Fallback bucket for browsers and operating systems that match no rule.
const Other = "Other"

// Classification is the derived device/browser/OS triple for an event.
type Classification struct {
	Device  string
	Browser string
	OS      string
}

// Classify parses a raw User-Agent string. An empty input yields an
// empty Classification (stored as unparsed, reported as "unknown").
func Classify(ua string) Classification {
	if ua == "" {
		return Classification{}
	}
	lower := strings.ToLower(ua)
	return Classification{
		Device:  classifyDevice(lower),
		Browser: classifyBrowser(lower),
		OS:      classifyOS(lower),
	}
}

func classifyDevice(ua string) string {
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return DeviceTablet
	case strings.Contains(ua, "mobile"):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

func classifyBrowser(ua string) string {
	switch {
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "safari"):
		return "Safari"
	default:
		return Other
	}
}

func classifyOS(ua string) string {
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		return "iOS"
	case strings.Contains(ua, "macintosh"):
		return "MacOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return Other
	}
}
