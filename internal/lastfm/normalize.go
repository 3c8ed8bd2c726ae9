package lastfm

import (
	"strconv"
	"strings"
)

// SignalKind distinguishes the three usable shapes of an activity signal.
type SignalKind int

const (
	// KindLive means the account is playing a track right now. No timestamp
	// comparison is needed; the account is active by definition.
	KindLive SignalKind = iota

	// KindTimestamped carries a trusted epoch-seconds scrobble time.
	KindTimestamped

	// KindUnreliable means the record had a timestamp field but its value
	// cannot be trusted. Callers must treat elapsed time as zero rather
	// than fabricate a "now" value.
	KindUnreliable
)

// Signal is the canonical activity signal derived from a raw track. Track and
// artist are diagnostic only and never influence classification.
type Signal struct {
	Kind   SignalKind
	UTS    int64 // epoch seconds; only meaningful for KindTimestamped
	Track  string
	Artist string
}

const (
	// minPlausibleUTS is the oldest scrobble timestamp we trust (2001-09-09).
	// Last.fm has been observed to return garbage values below this.
	minPlausibleUTS = 1_000_000_000

	// msMagnitudeUTS marks values that can only be millisecond timestamps.
	msMagnitudeUTS = 10_000_000_000
)

const (
	placeholderTrack  = "(unknown track)"
	placeholderArtist = "(unknown artist)"
)

// Normalize converts a raw track into a Signal. ok is false when the record is
// unusable: it is neither now-playing nor carries any timestamp field at all.
func Normalize(raw *RawTrack) (Signal, bool) {
	if raw == nil {
		return Signal{}, false
	}

	sig := Signal{
		Track:  raw.Name,
		Artist: raw.ArtistName(),
	}
	if sig.Track == "" {
		sig.Track = placeholderTrack
	}
	if sig.Artist == "" {
		sig.Artist = placeholderArtist
	}

	if raw.NowPlaying() {
		sig.Kind = KindLive
		return sig, true
	}

	if raw.Date == nil || strings.TrimSpace(raw.Date.UTS) == "" {
		// No timestamp to reason about. Do not fabricate "now".
		return Signal{}, false
	}

	uts, err := strconv.ParseInt(strings.TrimSpace(raw.Date.UTS), 10, 64)
	if err != nil {
		sig.Kind = KindUnreliable
		return sig, true
	}

	if uts > msMagnitudeUTS {
		uts /= 1000
	}
	if uts < minPlausibleUTS {
		sig.Kind = KindUnreliable
		return sig, true
	}

	sig.Kind = KindTimestamped
	sig.UTS = uts
	return sig, true
}
