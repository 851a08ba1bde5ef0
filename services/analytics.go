package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Device and browser labels reported by Classify.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"

	BrowserEdge    = "Edge"
	BrowserChrome  = "Chrome"
	BrowserFirefox = "Firefox"
	BrowserSafari  = "Safari"
	BrowserUnknown = "unknown"
)

// Classify derives coarse device and browser labels from a User-Agent.
// Edge is matched before Chrome because Edge user agents also contain "Chrome",
// and Chrome before Safari for the same reason.
func Classify(userAgent string) (device, browser string) {
	ua := strings.ToLower(userAgent)

	device = DeviceDesktop
	switch {
	case strings.Contains(ua, "mobile"):
		device = DeviceMobile
	case strings.Contains(ua, "tablet"):
		device = DeviceTablet
	}

	switch {
	case strings.Contains(ua, "edg"):
		browser = BrowserEdge
	case strings.Contains(ua, "chrome"):
		browser = BrowserChrome
	case strings.Contains(ua, "firefox"):
		browser = BrowserFirefox
	case strings.Contains(ua, "safari"):
		browser = BrowserSafari
	default:
		browser = BrowserUnknown
	}
	return device, browser
}

type UTM struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
}

// VisitInput is the beacon body sent by the site.
type VisitInput struct {
	VisitorID   string `json:"visitorId"`
	Referrer    string `json:"referrer"`
	LandingPage string `json:"landingPage"`
	CurrentPage string `json:"currentPage"`
	UTM         UTM    `json:"utm"`
}

type VisitData struct {
	VisitorID   string    `json:"visitor_id"`
	Page        string    `json:"page"`
	LandingPage string    `json:"landing_page"`
	Timestamp   time.Time `json:"timestamp"`
	UserAgent   string    `json:"user_agent"`
	IP          string    `json:"ip"`
	Device      string    `json:"device"`
	Browser     string    `json:"browser"`
	Referrer    string    `json:"referrer"`
	UTMSource   string    `json:"utm_source"`
	UTMMedium   string    `json:"utm_medium"`
	UTMCampaign string    `json:"utm_campaign"`
}

// VisitResult is echoed back to the beacon; nothing is persisted.
type VisitResult struct {
	Success      bool      `json:"success"`
	VisitorID    string    `json:"visitorId"`
	SessionID    string    `json:"sessionId"`
	IsNewVisitor bool      `json:"isNewVisitor"`
	Message      string    `json:"message"`
	Data         VisitData `json:"data"`
}

// ClientIP picks the first X-Forwarded-For hop, then X-Real-IP.
func ClientIP(forwardedFor, realIP string) string {
	if first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0]); first != "" {
		return first
	}
	if realIP = strings.TrimSpace(realIP); realIP != "" {
		return realIP
	}
	return "unknown"
}

// TrackVisit classifies one page view.
func TrackVisit(in VisitInput, userAgent, ip string, now time.Time) VisitResult {
	device, browser := Classify(userAgent)
	analyticsVisits.WithLabelValues(device, browser).Inc()

	visitor := in.VisitorID
	if visitor == "" {
		visitor = "unknown-visitor"
	}
	page := in.CurrentPage
	if page == "" {
		page = "/"
	}
	landing := in.LandingPage
	if landing == "" {
		landing = "/"
	}
	return VisitResult{
		Success:      true,
		VisitorID:    visitor,
		SessionID:    "session-" + uuid.NewString(),
		IsNewVisitor: true,
		Message:      "Analytics data recorded successfully",
		Data: VisitData{
			VisitorID:   visitor,
			Page:        page,
			LandingPage: landing,
			Timestamp:   now,
			UserAgent:   userAgent,
			IP:          ip,
			Device:      device,
			Browser:     browser,
			Referrer:    in.Referrer,
			UTMSource:   in.UTM.Source,
			UTMMedium:   in.UTM.Medium,
			UTMCampaign: in.UTM.Campaign,
		},
	}
}
