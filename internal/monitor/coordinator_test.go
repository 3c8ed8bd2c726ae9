package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goodtune/lastwatch/internal/lastfm"
	"github.com/rs/zerolog"
)

// fakeFetcher serves canned responses keyed by handle. A nil value means the
// fetch fails.
type fakeFetcher struct {
	tracks map[string]*lastfm.RawTrack
	calls  []string
}

func (f *fakeFetcher) RecentTrack(ctx context.Context, user string) (*lastfm.RawTrack, error) {
	f.calls = append(f.calls, user)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, ok := f.tracks[user]
	if !ok || raw == nil {
		return nil, errors.New("upstream unavailable")
	}
	return raw, nil
}

type fakeSink struct {
	alerts    [][]Entry
	allClears int
	fail      bool
}

func (s *fakeSink) Alert(ctx context.Context, entries []Entry) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.alerts = append(s.alerts, entries)
	return nil
}

func (s *fakeSink) AllClear(ctx context.Context) error {
	s.allClears++
	return nil
}

// rawTrackAt builds a track record with the given scrobble timestamp.
func rawTrackAt(t *testing.T, uts int64) *lastfm.RawTrack {
	t.Helper()

	payload := fmt.Sprintf(`{"name":"Song","artist":{"#text":"Artist"},"date":{"uts":"%d"}}`, uts)
	var raw lastfm.RawTrack
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return &raw
}

func rawTrackNowPlaying(t *testing.T) *lastfm.RawTrack {
	t.Helper()

	var raw lastfm.RawTrack
	if err := json.Unmarshal([]byte(`{"name":"Song","artist":{"#text":"Artist"},"@attr":{"nowplaying":"true"}}`), &raw); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return &raw
}

func newTestCoordinator(t *testing.T, fetcher *fakeFetcher, sink *fakeSink, accounts ...Account) (*Coordinator, *TestClock) {
	t.Helper()

	tracker, clock := newTestTracker(t, 10*time.Minute, AlertEveryCycle)
	source := AccountSourceFunc(func() []Account { return accounts })
	coord := NewCoordinator(Config{RequestSpacing: 0}, fetcher, tracker, sink, source, zerolog.Nop())
	return coord, clock
}

func TestRunCycle_BuildsBatch(t *testing.T) {
	fetcher := &fakeFetcher{tracks: map[string]*lastfm.RawTrack{
		"alice": rawTrackNowPlaying(t),
		"bob":   rawTrackAt(t, testNow-3600),
		"carol": nil,
	}}
	sink := &fakeSink{}
	coord, _ := newTestCoordinator(t, fetcher, sink,
		account("alice"), account("bob"), account("carol"))

	batch, err := coord.RunCycle(context.Background(), "scheduled")
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("batch has %d entries, want 2: %+v", len(batch), batch)
	}

	byName := map[string]Entry{}
	for _, e := range batch {
		byName[e.Username] = e
	}
	if e, ok := byName["bob"]; !ok || e.Cause != CauseInactive || e.MinutesInactive != 60 {
		t.Errorf("bob entry = %+v, want inactive 60m", e)
	}
	if e, ok := byName["carol"]; !ok || e.Cause != CauseAPIError {
		t.Errorf("carol entry = %+v, want api error", e)
	}
	if _, ok := byName["alice"]; ok {
		t.Error("now-playing account must not be in the batch")
	}
}

func TestRunCycle_SkipsDisabledAccounts(t *testing.T) {
	fetcher := &fakeFetcher{tracks: map[string]*lastfm.RawTrack{
		"alice": rawTrackAt(t, testNow-3600),
	}}
	disabled := account("bob")
	disabled.Enabled = false
	coord, _ := newTestCoordinator(t, fetcher, &fakeSink{}, account("alice"), disabled)

	batch, err := coord.RunCycle(context.Background(), "scheduled")
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(fetcher.calls) != 1 || fetcher.calls[0] != "alice" {
		t.Errorf("fetched %v, want only alice", fetcher.calls)
	}
	if len(batch) != 1 {
		t.Errorf("batch = %+v, want only alice", batch)
	}
}

func TestRunCycle_ResolvesHandleFromProfile(t *testing.T) {
	fetcher := &fakeFetcher{tracks: map[string]*lastfm.RawTrack{
		"alice": rawTrackNowPlaying(t),
	}}
	acct := Account{
		Username:   "Alice Display",
		ProfileURL: "https://www.last.fm/user/alice",
		Enabled:    true,
	}
	coord, _ := newTestCoordinator(t, fetcher, &fakeSink{}, acct)

	if _, err := coord.RunCycle(context.Background(), "manual"); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(fetcher.calls) != 1 || fetcher.calls[0] != "alice" {
		t.Errorf("fetched %v, want handle from profile URL", fetcher.calls)
	}
}

func TestRunCycle_RebuildsBatchEachCycle(t *testing.T) {
	fetcher := &fakeFetcher{tracks: map[string]*lastfm.RawTrack{
		"alice": rawTrackAt(t, testNow-3600),
	}}
	coord, _ := newTestCoordinator(t, fetcher, &fakeSink{}, account("alice"))
	ctx := context.Background()

	if batch, _ := coord.RunCycle(ctx, "scheduled"); len(batch) != 1 {
		t.Fatalf("cycle 1 batch = %+v", batch)
	}

	// Account recovers: the next batch must be empty, not carried over.
	fetcher.tracks["alice"] = rawTrackNowPlaying(t)
	if batch, _ := coord.RunCycle(ctx, "scheduled"); len(batch) != 0 {
		t.Errorf("cycle 2 batch = %+v, want empty", batch)
	}
}

func TestRunCycle_Cancellation(t *testing.T) {
	fetcher := &fakeFetcher{tracks: map[string]*lastfm.RawTrack{}}
	coord, _ := newTestCoordinator(t, fetcher, &fakeSink{}, account("alice"), account("bob"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := coord.RunCycle(ctx, "scheduled"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRunScheduled_SilentOnEmptyBatch(t *testing.T) {
	fetcher := &fakeFetcher{tracks: map[string]*lastfm.RawTrack{
		"alice": rawTrackNowPlaying(t),
	}}
	sink := &fakeSink{}
	coord, _ := newTestCoordinator(t, fetcher, sink, account("alice"))

	coord.RunScheduled(context.Background())
	if len(sink.alerts) != 0 || sink.allClears != 0 {
		t.Errorf("empty scheduled cycle must stay silent, got alerts=%d allClears=%d",
			len(sink.alerts), sink.allClears)
	}
}

func TestRunScheduled_DispatchesBatch(t *testing.T) {
	fetcher := &fakeFetcher{tracks: map[string]*lastfm.RawTrack{
		"alice": rawTrackAt(t, testNow-3600),
	}}
	sink := &fakeSink{}
	coord, _ := newTestCoordinator(t, fetcher, sink, account("alice"))

	coord.RunScheduled(context.Background())
	if len(sink.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(sink.alerts))
	}
	if len(sink.alerts[0]) != 1 || sink.alerts[0][0].Username != "alice" {
		t.Errorf("dispatched batch = %+v", sink.alerts[0])
	}
}

func TestRunManual_AllClearOnEmptyBatch(t *testing.T) {
	fetcher := &fakeFetcher{tracks: map[string]*lastfm.RawTrack{
		"alice": rawTrackNowPlaying(t),
	}}
	sink := &fakeSink{}
	coord, _ := newTestCoordinator(t, fetcher, sink, account("alice"))

	batch, err := coord.RunManual(context.Background())
	if err != nil {
		t.Fatalf("RunManual: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("batch = %+v, want empty", batch)
	}
	if sink.allClears != 1 {
		t.Errorf("allClears = %d, want 1", sink.allClears)
	}
	if len(sink.alerts) != 0 {
		t.Errorf("alerts = %d, want 0", len(sink.alerts))
	}
}

func TestRunScheduled_SinkFailureDoesNotAbort(t *testing.T) {
	fetcher := &fakeFetcher{tracks: map[string]*lastfm.RawTrack{
		"alice": rawTrackAt(t, testNow-3600),
	}}
	sink := &fakeSink{fail: true}
	coord, _ := newTestCoordinator(t, fetcher, sink, account("alice"))

	// Must not panic or block; the failure is logged and swallowed.
	coord.RunScheduled(context.Background())

	sink.fail = false
	coord.RunScheduled(context.Background())
	if len(sink.alerts) != 1 {
		t.Errorf("alerts after recovery = %d, want 1", len(sink.alerts))
	}
}
