package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		ua      string
		device  string
		browser string
	}{
		{
			name:    "desktop chrome",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			device:  DeviceDesktop,
			browser: BrowserChrome,
		},
		{
			name:    "edge is not reported as chrome",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 Edg/124.0",
			device:  DeviceDesktop,
			browser: BrowserEdge,
		},
		{
			name:    "iphone safari",
			ua:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			device:  DeviceMobile,
			browser: BrowserSafari,
		},
		{
			name:    "firefox",
			ua:      "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
			device:  DeviceDesktop,
			browser: BrowserFirefox,
		},
		{
			name:    "android tablet",
			ua:      "Mozilla/5.0 (Linux; Android 13; Tablet) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			device:  DeviceTablet,
			browser: BrowserChrome,
		},
		{name: "empty", ua: "", device: DeviceDesktop, browser: BrowserUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			device, browser := Classify(tc.ua)
			assert.Equal(t, tc.device, device)
			assert.Equal(t, tc.browser, browser)
		})
	}
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "203.0.113.7", ClientIP("203.0.113.7, 10.0.0.1", "10.0.0.2"))
	assert.Equal(t, "10.0.0.2", ClientIP("", "10.0.0.2"))
	assert.Equal(t, "unknown", ClientIP(" ", ""))
}

func TestTrackVisitDefaultsAndPassthrough(t *testing.T) {
	now := time.Date(2024, 5, 13, 12, 0, 0, 0, time.UTC)
	res := TrackVisit(VisitInput{
		CurrentPage: "/kinetic",
		UTM:         UTM{Source: "vk", Medium: "cpc", Campaign: "spring"},
	}, "Firefox/125.0", "198.51.100.1", now)

	assert.True(t, res.Success)
	assert.Equal(t, "unknown-visitor", res.VisitorID)
	assert.Contains(t, res.SessionID, "session-")
	assert.Equal(t, "/kinetic", res.Data.Page)
	assert.Equal(t, "/", res.Data.LandingPage)
	assert.Equal(t, "vk", res.Data.UTMSource)
	assert.Equal(t, "cpc", res.Data.UTMMedium)
	assert.Equal(t, "spring", res.Data.UTMCampaign)
	assert.Equal(t, BrowserFirefox, res.Data.Browser)
	assert.Equal(t, now, res.Data.Timestamp)
}
