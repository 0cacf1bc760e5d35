package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/wxledgerhq/wxledger/internal/wechat"
)

// Baseline is the set of fingerprints visible in a conversation at the
// moment it was added to the watch list. Records of every kind are included:
// a self reply or system notice present at startup must never resurface as
// anything. The set is captured once and never refreshed during the
// conversation's monitored lifetime.
type Baseline struct {
	member map[string]struct{}
}

// Contains reports whether fp was present at capture time.
func (b *Baseline) Contains(fp string) bool {
	_, ok := b.member[fp]
	return ok
}

// Size returns the number of baselined fingerprints.
func (b *Baseline) Size() int { return len(b.member) }

// CaptureBaseline snapshots the conversation's currently visible records.
// The chat window renders lazily, so a single fetch can miss rows; the
// capture refetches (up to attempts times, interval apart) until a fetch
// contributes no new fingerprints. Fetch errors cost an attempt but do not
// abort the capture.
//
// If the window is still populating at the exact instant of capture, records
// it has not rendered yet will be treated as new later. The stabilising loop
// narrows that window; it cannot close it.
func CaptureBaseline(ctx context.Context, driver wechat.Driver, conversation string, attempts int, interval time.Duration) (*Baseline, error) {
	if attempts <= 0 {
		attempts = 3
	}
	b := &Baseline{member: make(map[string]struct{})}

	for attempt := 1; attempt <= attempts; attempt++ {
		records, err := driver.ListMessages(ctx, conversation)
		if err != nil {
			slog.Warn("baseline fetch failed", "conversation", conversation, "attempt", attempt, "error", err)
		} else {
			added := 0
			for _, rec := range records {
				kind, sender, text := wechat.Classify(rec)
				fp := Fingerprint(kind, sender, text)
				if _, ok := b.member[fp]; !ok {
					b.member[fp] = struct{}{}
					added++
				}
			}
			slog.Debug("baseline fetch", "conversation", conversation, "attempt", attempt, "records", len(records), "new", added)
			if added == 0 && attempt > 1 {
				break
			}
		}

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	slog.Info("baseline captured", "conversation", conversation, "fingerprints", len(b.member))
	return b, nil
}
