// Clickforge - Clickstream Ingestion and Session Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickforge

package pipeline

import "testing"

func TestClassifyUserAgent(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		device  string
		browser string
		os      string
	}{
		{
			name:    "chrome on windows desktop",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			device:  DeviceDesktop,
			browser: BrowserChrome,
			os:      OSWindows,
		},
		{
			name:    "edge on windows",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
			device:  DeviceDesktop,
			browser: BrowserEdge,
			os:      OSWindows,
		},
		{
			name:    "safari on iphone",
			ua:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
			device:  DeviceMobile,
			browser: BrowserSafari,
			os:      OSIOS,
		},
		{
			name:    "safari on macos",
			ua:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
			device:  DeviceDesktop,
			browser: BrowserSafari,
			os:      OSMacOS,
		},
		{
			name:    "chrome on android phone",
			ua:      "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			device:  DeviceMobile,
			browser: BrowserChrome,
			os:      OSAndroid,
		},
		{
			name:    "firefox on linux",
			ua:      "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			device:  DeviceDesktop,
			browser: BrowserFirefox,
			os:      OSLinux,
		},
		{
			name:    "safari on ipad",
			ua:      "Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1",
			device:  DeviceMobile, // "Mobile" token outranks the tablet check
			browser: BrowserSafari,
			os:      OSIOS,
		},
		{
			name:    "unrecognized agent",
			ua:      "curl/8.4.0",
			device:  DeviceDesktop,
			browser: BrowserOther,
			os:      OSOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyUserAgent(tt.ua)
			if got.Device == nil || got.Browser == nil || got.OS == nil {
				t.Fatal("expected non-nil classification for non-empty user agent")
			}
			if *got.Device != tt.device {
				t.Errorf("device = %q, want %q", *got.Device, tt.device)
			}
			if *got.Browser != tt.browser {
				t.Errorf("browser = %q, want %q", *got.Browser, tt.browser)
			}
			if *got.OS != tt.os {
				t.Errorf("os = %q, want %q", *got.OS, tt.os)
			}
		})
	}
}

func TestClassifyUserAgentEmpty(t *testing.T) {
	got := ClassifyUserAgent("")
	if got.Device != nil || got.Browser != nil || got.OS != nil {
		t.Error("expected all-nil classification for empty user agent")
	}
}
