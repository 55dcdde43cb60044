// Package fingerprint derives a best-effort kiosk fingerprint and display
// label from the User-Agent header. Fingerprints feed audit metadata and help
// administrators recognise a kiosk; they are never a trust anchor.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

// Service computes fingerprints. A disabled service returns empty fingerprints.
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ComputeFingerprint hashes the browser name, browser major version, OS and
// platform. Minor browser updates keep the same fingerprint.
func (s *Service) ComputeFingerprint(userAgent string) string {
	if s == nil || !s.enabled {
		return ""
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	parts := []string{
		name,
		majorVersion(version),
		ua.OS(),
		ua.Platform(),
		fmt.Sprintf("mobile=%t", ua.Mobile()),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether the stored and current fingerprints
// match. Drift is reported only when both are present and differ.
func CompareFingerprints(stored, current string) (matched bool, drift bool) {
	if stored == current {
		return true, false
	}
	return false, stored != "" && current != ""
}

// ParseUserAgent returns a display label such as "Chrome on Intel Mac OS X 10_15_7".
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	if platform := ua.Platform(); platform != "" && !strings.Contains(os, platform) {
		os = platform + " " + os
	}
	return strings.TrimSpace(fmt.Sprintf("%s on %s", strings.TrimSpace(browser), strings.TrimSpace(os)))
}

// DeviceType classifies the agent as "mobile" or "desktop".
func DeviceType(userAgent string) string {
	if userAgent == "" {
		return "unknown"
	}
	if useragent.New(userAgent).Mobile() {
		return "mobile"
	}
	return "desktop"
}

func majorVersion(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}
