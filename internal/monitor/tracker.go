package monitor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goodtune/lastwatch/internal/lastfm"
	"github.com/rs/zerolog"
)

// DefaultThreshold is the inactivity threshold used when none is configured.
const DefaultThreshold = 30 * time.Minute

// AlertPolicy controls when an inactive account re-enters the alert batch.
type AlertPolicy int

const (
	// AlertEveryCycle includes an account in every cycle's batch for as long
	// as it stays inactive. This is the default.
	AlertEveryCycle AlertPolicy = iota

	// AlertOnEdge includes an account only on the active-to-inactive
	// transition (and on first-run inactivity).
	AlertOnEdge
)

// ParseAlertPolicy parses the configuration value for the alert policy.
func ParseAlertPolicy(s string) (AlertPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "every-cycle":
		return AlertEveryCycle, nil
	case "edge":
		return AlertOnEdge, nil
	default:
		return AlertEveryCycle, fmt.Errorf("invalid alert policy: %s (must be every-cycle or edge)", s)
	}
}

// AccountState is the per-account state that persists across cycles. It is
// owned exclusively by the Tracker and lives for the process lifetime.
type AccountState struct {
	Status      Status
	Initialized bool

	// ErrorSince marks the start of the current fetch-error streak. Only
	// meaningful while Status is StatusUnknown.
	ErrorSince time.Time
}

// Tracker owns per-account activity state and decides, from each cycle's
// signal, the new state and whether the account is alert-worthy.
type Tracker struct {
	mu        sync.Mutex
	states    map[string]*AccountState
	threshold time.Duration
	policy    AlertPolicy
	clock     Clock
	logger    zerolog.Logger
}

// NewTracker creates a tracker with the given inactivity threshold.
func NewTracker(threshold time.Duration, policy AlertPolicy, logger zerolog.Logger) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{
		states:    make(map[string]*AccountState),
		threshold: threshold,
		policy:    policy,
		clock:     RealClock{}, // Use real time by default
		logger:    logger.With().Str("component", "tracker").Logger(),
	}
}

// SetClock sets the clock used for elapsed-time computation (for testing).
func (t *Tracker) SetClock(clock Clock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clock = clock
}

// Classify records the outcome of one fetch attempt for an account and
// returns the new status plus, when the account is alert-worthy this cycle,
// a batch entry. ok is false when fetch or normalization failed.
func (t *Tracker) Classify(acct Account, sig lastfm.Signal, ok bool) (Status, *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.states[acct.Username]
	if state == nil {
		state = &AccountState{}
		t.states[acct.Username] = state
	}

	now := t.clock.Now()

	if !ok {
		return t.classifyError(acct, state, now)
	}

	if sig.Kind == lastfm.KindLive {
		state.Status = StatusActive
		state.Initialized = true
		t.logger.Debug().
			Str("user", acct.Username).
			Str("track", sig.Track).
			Str("artist", sig.Artist).
			Msg("Now playing, account active")
		return StatusActive, nil
	}

	// An unreliable timestamp floors elapsed to zero, the same as clock skew
	// putting the scrobble in the future. Never guess "very old".
	var elapsed time.Duration
	if sig.Kind == lastfm.KindTimestamped {
		elapsed = now.Sub(time.Unix(sig.UTS, 0))
		if elapsed < 0 {
			elapsed = 0
		}
	}

	wasInactive := state.Initialized && state.Status == StatusInactive
	state.Initialized = true

	if elapsed <= t.threshold {
		state.Status = StatusActive
		return StatusActive, nil
	}

	state.Status = StatusInactive

	// First-run inactivity is alert-worthy, not suppressed as a baseline.
	if t.policy == AlertOnEdge && wasInactive {
		return StatusInactive, nil
	}

	minutes := int(elapsed.Minutes())
	t.logger.Debug().
		Str("user", acct.Username).
		Int("minutes_inactive", minutes).
		Msg("Account past inactivity threshold")

	return StatusInactive, &Entry{
		Username:        acct.Username,
		ProfileURL:      acct.ProfileURL,
		Cause:           CauseInactive,
		MinutesInactive: minutes,
	}
}

// classifyError handles an absent signal. The error-streak age is tracked
// relative to the time the streak began, not the poll time.
func (t *Tracker) classifyError(acct Account, state *AccountState, now time.Time) (Status, *Entry) {
	streakStart := !state.Initialized || state.Status != StatusUnknown
	if streakStart {
		state.ErrorSince = now
	}
	state.Status = StatusUnknown
	state.Initialized = true

	if !streakStart && t.policy == AlertOnEdge {
		// Prior error state carried forward silently.
		return StatusUnknown, nil
	}

	minutes := int(now.Sub(state.ErrorSince).Minutes())
	t.logger.Debug().
		Str("user", acct.Username).
		Int("error_minutes", minutes).
		Msg("No usable activity data for account")

	return StatusUnknown, &Entry{
		Username:        acct.Username,
		ProfileURL:      acct.ProfileURL,
		Cause:           CauseAPIError,
		MinutesInactive: minutes,
	}
}

// Snapshot returns a copy of the current per-account statuses.
func (t *Tracker) Snapshot() map[string]Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Status, len(t.states))
	for name, state := range t.states {
		out[name] = state.Status
	}
	return out
}
