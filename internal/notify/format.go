package notify

import (
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"

	"github.com/goodtune/lastwatch/internal/monitor"
)

// AllClearMessage acknowledges a manual check that found nothing to report.
const AllClearMessage = "✅ All monitored Last.fm accounts are active."

// FormatBatch renders an alert batch as one Telegram-flavoured HTML message,
// one line per account, most severe first. API-error entries outrank any
// inactivity duration. ok is false when there is nothing to report; callers
// must not dispatch in that case.
func FormatBatch(entries []monitor.Entry) (string, bool) {
	if len(entries) == 0 {
		return "", false
	}

	sorted := make([]monitor.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Cause != b.Cause {
			return a.Cause == monitor.CauseAPIError
		}
		if a.MinutesInactive != b.MinutesInactive {
			return a.MinutesInactive > b.MinutesInactive
		}
		return a.Username < b.Username
	})

	var sb strings.Builder
	sb.WriteString("⚠️ Inactive Last.fm profiles\n")
	for _, e := range sorted {
		sb.WriteString("\n")
		sb.WriteString(formatEntry(e))
	}
	return sb.String(), true
}

func formatEntry(e monitor.Entry) string {
	name := html.EscapeString(e.Username)
	link := profileLink(e)
	if e.Cause == monitor.CauseAPIError {
		return fmt.Sprintf("⏰ <b>%s</b> — no data (API error for %s) — %s", name, e.Elapsed(), link)
	}
	return fmt.Sprintf("⚠️ <b>%s</b> — inactive for %s — %s", name, e.Elapsed(), link)
}

func profileLink(e monitor.Entry) string {
	ref := e.ProfileURL
	if ref == "" {
		ref = "https://www.last.fm/user/" + url.PathEscape(e.Username)
	}
	return fmt.Sprintf(`<a href="%s">profile</a>`, html.EscapeString(ref))
}
