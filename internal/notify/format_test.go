package notify

import (
	"strings"
	"testing"

	"github.com/goodtune/lastwatch/internal/monitor"
)

func TestFormatBatch_Empty(t *testing.T) {
	msg, ok := FormatBatch(nil)
	if ok {
		t.Fatal("empty batch must not produce a message")
	}
	if msg != "" {
		t.Errorf("msg = %q, want empty", msg)
	}
}

func TestFormatBatch_Ordering(t *testing.T) {
	entries := []monitor.Entry{
		{Username: "carol", Cause: monitor.CauseInactive, MinutesInactive: 45},
		{Username: "bob", Cause: monitor.CauseInactive, MinutesInactive: 90},
		{Username: "erin", Cause: monitor.CauseAPIError, MinutesInactive: 5},
		{Username: "dave", Cause: monitor.CauseInactive, MinutesInactive: 90},
		{Username: "alice", Cause: monitor.CauseAPIError, MinutesInactive: 0},
	}

	msg, ok := FormatBatch(entries)
	if !ok {
		t.Fatal("expected a message")
	}

	// API errors first (by streak age), then inactivity by duration, with the
	// username breaking ties.
	wantOrder := []string{"erin", "alice", "bob", "dave", "carol"}
	last := -1
	for _, name := range wantOrder {
		idx := strings.Index(msg, "<b>"+name+"</b>")
		if idx < 0 {
			t.Fatalf("message is missing %s:\n%s", name, msg)
		}
		if idx < last {
			t.Errorf("%s appears out of order:\n%s", name, msg)
		}
		last = idx
	}
}

func TestFormatBatch_Lines(t *testing.T) {
	entries := []monitor.Entry{
		{
			Username:        "alice",
			ProfileURL:      "https://www.last.fm/user/alice",
			Cause:           monitor.CauseInactive,
			MinutesInactive: 90,
		},
		{
			Username: "bob",
			Cause:    monitor.CauseAPIError,
		},
	}

	msg, ok := FormatBatch(entries)
	if !ok {
		t.Fatal("expected a message")
	}

	if !strings.HasPrefix(msg, "⚠️ Inactive Last.fm profiles\n") {
		t.Errorf("missing header:\n%s", msg)
	}
	if !strings.Contains(msg, "⚠️ <b>alice</b> — inactive for 1h 30m — ") {
		t.Errorf("missing inactivity line:\n%s", msg)
	}
	if !strings.Contains(msg, `<a href="https://www.last.fm/user/alice">profile</a>`) {
		t.Errorf("missing profile link:\n%s", msg)
	}
	if !strings.Contains(msg, "⏰ <b>bob</b> — no data (API error for 0m) — ") {
		t.Errorf("missing api error line:\n%s", msg)
	}
	// No profile URL configured: link to the canonical profile page.
	if !strings.Contains(msg, `<a href="https://www.last.fm/user/bob">profile</a>`) {
		t.Errorf("missing fallback link:\n%s", msg)
	}
}

func TestFormatBatch_EscapesHTML(t *testing.T) {
	entries := []monitor.Entry{
		{Username: "<script>alert(1)</script>", Cause: monitor.CauseInactive, MinutesInactive: 45},
	}

	msg, _ := FormatBatch(entries)
	if strings.Contains(msg, "<script>") {
		t.Errorf("username not escaped:\n%s", msg)
	}
	if !strings.Contains(msg, "&lt;script&gt;") {
		t.Errorf("expected escaped username:\n%s", msg)
	}
}
