package monitor

import "fmt"

// Account is one monitored Last.fm account, supplied by configuration.
// Disabled accounts are skipped entirely: they are excluded from state
// tracking and from alert batches.
type Account struct {
	Username   string `json:"username"`
	ProfileURL string `json:"profile_url"`
	Enabled    bool   `json:"enabled"`
}

// Status is the classification of an account.
type Status int

const (
	// StatusUnknown means the last fetch attempt failed, or the account has
	// never been classified.
	StatusUnknown Status = iota
	StatusActive
	StatusInactive
)

// String returns the status display name.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	default:
		return "unknown-error"
	}
}

// Cause says why an account entered the alert batch.
type Cause int

const (
	// CauseInactive is ordinary threshold-crossing inactivity.
	CauseInactive Cause = iota

	// CauseAPIError means activity data could not be fetched. Sorts above
	// any inactivity duration.
	CauseAPIError
)

// Entry is one alert-worthy account in a cycle's batch. Entries are rebuilt
// from current truth every cycle and never carried over.
type Entry struct {
	Username   string
	ProfileURL string
	Cause      Cause

	// MinutesInactive is the elapsed inactivity for CauseInactive, or the
	// age of the fetch-error streak for CauseAPIError.
	MinutesInactive int
}

// Elapsed returns the entry duration rendered for humans.
func (e Entry) Elapsed() string {
	return FormatElapsed(e.MinutesInactive)
}

// FormatElapsed renders a minute count as "{d}d {h}h", "{h}h {m}m" or "{m}m".
func FormatElapsed(minutes int) string {
	hours := minutes / 60
	days := hours / 24
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours%24)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
