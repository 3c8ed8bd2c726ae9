package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/goodtune/lastwatch/internal/lastfm"
	"github.com/goodtune/lastwatch/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultRequestSpacing is the minimum pause between requests to the
// external service within one cycle.
const DefaultRequestSpacing = time.Second

// Fetcher retrieves the most recent raw track for a Last.fm account handle.
type Fetcher interface {
	RecentTrack(ctx context.Context, user string) (*lastfm.RawTrack, error)
}

// Sink receives the rendered outcome of a cycle. Implementations must not
// block indefinitely; dispatch failures are logged and swallowed here.
type Sink interface {
	Alert(ctx context.Context, entries []Entry) error
	AllClear(ctx context.Context) error
}

// AccountSource yields the current account list at the start of each cycle.
type AccountSource interface {
	Accounts() []Account
}

// AccountSourceFunc adapts a function to the AccountSource interface.
type AccountSourceFunc func() []Account

// Accounts implements AccountSource.
func (f AccountSourceFunc) Accounts() []Account { return f() }

// Config holds coordinator settings.
type Config struct {
	// RequestSpacing is the minimum interval between account fetches within
	// a cycle. Not applied after the last account.
	RequestSpacing time.Duration
}

// Coordinator runs one polling cycle at a time: it sequences fetches over all
// enabled accounts, classifies each through the tracker, and hands the
// aggregated batch to the sink. Scheduled and manual triggers may race; the
// run mutex serializes them so cycles never interleave tracker writes.
type Coordinator struct {
	fetcher Fetcher
	tracker *Tracker
	sink    Sink
	source  AccountSource
	spacing time.Duration
	runMu   sync.Mutex
	logger  zerolog.Logger
}

// NewCoordinator creates a cycle coordinator.
func NewCoordinator(cfg Config, fetcher Fetcher, tracker *Tracker, sink Sink, source AccountSource, logger zerolog.Logger) *Coordinator {
	spacing := cfg.RequestSpacing
	if spacing < 0 {
		spacing = DefaultRequestSpacing
	}
	return &Coordinator{
		fetcher: fetcher,
		tracker: tracker,
		sink:    sink,
		source:  source,
		spacing: spacing,
		logger:  logger.With().Str("component", "coordinator").Logger(),
	}
}

// RunCycle polls every enabled account once and returns the alert batch,
// rebuilt from scratch. It returns early with the context error when
// cancelled; already-classified accounts keep their new state.
func (c *Coordinator) RunCycle(ctx context.Context, trigger string) ([]Entry, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	metrics.CyclesTotal.WithLabelValues(trigger).Inc()
	start := time.Now()

	var enabled []Account
	for _, acct := range c.source.Accounts() {
		if acct.Enabled {
			enabled = append(enabled, acct)
		}
	}

	var batch []Entry
	for i, acct := range enabled {
		if i > 0 && c.spacing > 0 {
			if err := sleepCtx(ctx, c.spacing); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry := c.pollAccount(ctx, acct)
		if err := ctx.Err(); err != nil {
			// Shutdown mid-fetch; do not count the aborted request as an
			// API error for the account.
			return nil, err
		}
		if entry != nil {
			batch = append(batch, *entry)
		}
	}

	inactive := 0
	for _, e := range batch {
		if e.Cause == CauseInactive {
			inactive++
		}
	}
	metrics.InactiveAccounts.Set(float64(inactive))

	c.logger.Info().
		Str("trigger", trigger).
		Int("accounts", len(enabled)).
		Int("alerts", len(batch)).
		Dur("elapsed", time.Since(start)).
		Msg("Cycle complete")

	return batch, nil
}

// pollAccount runs fetch, normalize and classify for one account.
func (c *Coordinator) pollAccount(ctx context.Context, acct Account) *Entry {
	handle := acct.ProfileURL
	if handle == "" {
		handle = acct.Username
	}
	handle = lastfm.HandleFromProfile(handle)

	fetchStart := time.Now()
	raw, err := c.fetcher.RecentTrack(ctx, handle)
	metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())

	var sig lastfm.Signal
	ok := false
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Str("user", acct.Username).Msg("Fetch failed")
	} else {
		metrics.FetchesTotal.WithLabelValues("ok").Inc()
		sig, ok = lastfm.Normalize(raw)
		if !ok {
			c.logger.Warn().Str("user", acct.Username).Msg("Track record has no usable timestamp")
		}
	}

	status, entry := c.tracker.Classify(acct, sig, ok)
	c.logger.Debug().
		Str("user", acct.Username).
		Str("status", status.String()).
		Bool("alert", entry != nil).
		Msg("Account classified")

	return entry
}

// RunScheduled runs a timer-triggered cycle. An empty batch stays silent.
func (c *Coordinator) RunScheduled(ctx context.Context) {
	batch, err := c.RunCycle(ctx, "scheduled")
	if err != nil {
		c.logger.Warn().Err(err).Msg("Scheduled cycle aborted")
		return
	}
	if len(batch) == 0 {
		return
	}
	c.dispatch(ctx, batch)
}

// RunManual runs an operator-triggered cycle. Classification is identical to
// the scheduled path, but an empty batch is acknowledged with an explicit
// all-clear.
func (c *Coordinator) RunManual(ctx context.Context) ([]Entry, error) {
	batch, err := c.RunCycle(ctx, "manual")
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		if err := c.sink.AllClear(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("All-clear dispatch failed")
		}
		return batch, nil
	}
	c.dispatch(ctx, batch)
	return batch, nil
}

// dispatch hands the batch to the sink. Failures never block later cycles.
func (c *Coordinator) dispatch(ctx context.Context, batch []Entry) {
	if err := c.sink.Alert(ctx, batch); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		c.logger.Warn().Err(err).Int("entries", len(batch)).Msg("Alert dispatch failed")
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
