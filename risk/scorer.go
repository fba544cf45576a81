// Package risk scores recent login activity for an account. The scorer
// is a pure function over sessions created in a trailing window; it
// holds no state and touches no store.
package risk

import (
	"strings"
	"time"

	"github.com/harborgate/authcore/session"
)

type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Flag names as they appear in alerts and audit events.
const (
	FlagRapidSessionCreation = "rapidSessionCreation"
	FlagMultipleIPs          = "multipleIPs"
	FlagMixedDeviceTypes     = "mixedDeviceTypes"
)

const (
	// Window is the trailing period the scorer looks at.
	Window = 24 * time.Hour

	rapidSessionThreshold = 5
	multipleIPThreshold   = 3
)

// Report is the scorer's output for one account.
type Report struct {
	Level             Level
	Flags             []string
	Sessions          int
	DistinctIPs       int
	DistinctPlatforms int
}

// Flagged reports whether any signal fired.
func (r Report) Flagged() bool {
	return len(r.Flags) > 0
}

// Assess scores the sessions created within Window before now. Revoked
// sessions still count: a burst of logins is suspicious even if the
// sessions were since evicted.
func Assess(sessions []*session.Session, now time.Time) Report {
	cutoff := now.Add(-Window)

	ips := make(map[string]struct{})
	platforms := make(map[string]struct{})
	recent := 0
	mobile, web := false, false

	for _, s := range sessions {
		if s.CreatedAt.Before(cutoff) || s.CreatedAt.After(now) {
			continue
		}
		recent++
		if s.IP != "" {
			ips[s.IP] = struct{}{}
		}
		platform := strings.ToLower(strings.TrimSpace(s.Platform))
		if platform != "" {
			platforms[platform] = struct{}{}
		}
		switch platform {
		case "ios", "android", "mobile":
			mobile = true
		case "web", "desktop":
			web = true
		}
	}

	report := Report{
		Level:             LevelLow,
		Sessions:          recent,
		DistinctIPs:       len(ips),
		DistinctPlatforms: len(platforms),
	}

	if recent > rapidSessionThreshold {
		report.Flags = append(report.Flags, FlagRapidSessionCreation)
	}
	if len(ips) > multipleIPThreshold {
		report.Flags = append(report.Flags, FlagMultipleIPs)
	}
	if mobile && web {
		report.Flags = append(report.Flags, FlagMixedDeviceTypes)
	}

	switch {
	case len(report.Flags) >= 3:
		report.Level = LevelHigh
	case len(report.Flags) == 2:
		report.Level = LevelMedium
	}
	return report
}
