// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package pipeline

import "strings"

// Device labels.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// Browser labels.
const (
	BrowserEdge    = "Edge"
	BrowserChrome  = "Chrome"
	BrowserFirefox = "Firefox"
	BrowserSafari  = "Safari"
	BrowserOther   = "Other"
)

// OS labels.
const (
	OSWindows = "Windows"
	OSMacOS   = "macOS"
	OSAndroid = "Android"
	OSIOS     = "iOS"
	OSLinux   = "Linux"
	OSOther   = "Other"
)

// Classification holds coarse device, browser, and OS labels derived from
// a user-agent string. Nil fields mean no user agent was supplied.
type Classification struct {
	Device  *string
	Browser *string
	OS      *string
}

// uaRule pairs a predicate with the label it yields. Rules are evaluated
// in slice order and the first match wins, which makes the tie-breaks
// explicit: Edge UAs also contain "chrome", so Edge must be checked first;
// Safari only matches when "chrome" is absent; Android UAs contain
// "linux", so Android precedes Linux.
type uaRule struct {
	label string
	match func(ua string) bool
}

func hasKeyword(keywords ...string) func(string) bool {
	return func(ua string) bool {
		for _, kw := range keywords {
			if strings.Contains(ua, kw) {
				return true
			}
		}
		return false
	}
}

var deviceRules = []uaRule{
	{DeviceMobile, hasKeyword("mobile")},
	{DeviceTablet, hasKeyword("tablet", "ipad")},
}

var browserRules = []uaRule{
	{BrowserEdge, hasKeyword("edg")},
	{BrowserChrome, hasKeyword("chrome")},
	{BrowserFirefox, hasKeyword("firefox")},
	{BrowserSafari, func(ua string) bool {
		return strings.Contains(ua, "safari") && !strings.Contains(ua, "chrome")
	}},
}

// iPhone UAs contain "like Mac OS X", so macOS matches on "macintosh"
// only; the Windows > macOS > Android > iOS > Linux priority order stays
// intact without misclassifying phones.
var osRules = []uaRule{
	{OSWindows, hasKeyword("windows")},
	{OSMacOS, hasKeyword("macintosh")},
	{OSAndroid, hasKeyword("android")},
	{OSIOS, hasKeyword("iphone", "ipad")},
	{OSLinux, hasKeyword("linux")},
}

// ClassifyUserAgent derives coarse device/browser/OS labels from a raw
// user-agent string using case-insensitive substring heuristics. An empty
// user agent yields an all-nil classification.
func ClassifyUserAgent(userAgent string) Classification {
	if userAgent == "" {
		return Classification{}
	}

	ua := strings.ToLower(userAgent)
	device := matchRules(deviceRules, ua, DeviceDesktop)
	browser := matchRules(browserRules, ua, BrowserOther)
	os := matchRules(osRules, ua, OSOther)

	return Classification{Device: &device, Browser: &browser, OS: &os}
}

func matchRules(rules []uaRule, ua, fallback string) string {
	for _, rule := range rules {
		if rule.match(ua) {
			return rule.label
		}
	}
	return fallback
}
