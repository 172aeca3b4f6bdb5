// Package report reduces timer snapshots into summary statistics for
// dashboards. Everything here is a pure function of a snapshot slice and one
// instant; nothing is mutated, so callers may aggregate concurrently with any
// number of in-flight transitions.
package report

import (
	"time"

	"timekeep/internal/timer/models"
)

// CategorySummary accumulates one category's share of the collection.
type CategorySummary struct {
	Count   int   `json:"count"`
	Seconds int64 `json:"seconds"`
}

// Summary is the reduction of a timer collection at one instant.
type Summary struct {
	Count        int                        `json:"count"`
	TotalSeconds int64                      `json:"total_seconds"`
	ByStatus     map[models.Status]int      `json:"by_status"`
	ByCategory   map[string]CategorySummary `json:"by_category"`
	GeneratedAt  time.Time                  `json:"generated_at"`

	// ClampedCount reports how many per-timer elapsed computations had to be
	// clamped to zero. The engine stays pure; the caller logs and counts.
	ClampedCount int `json:"-"`
}

// Summarize reduces the snapshots, evaluating every timer's elapsed time at
// the same now. Malformed records (no start instant) contribute zero seconds
// but still count toward Count and ByStatus: dropping them would make "3
// activities" disagree with a list showing 3 rows.
func Summarize(timers []*models.Timer, now time.Time) Summary {
	summary := Summary{
		ByStatus:    make(map[models.Status]int),
		ByCategory:  make(map[string]CategorySummary),
		GeneratedAt: now,
	}
	for _, timer := range timers {
		if timer == nil {
			continue
		}
		secs, clamped := timer.ElapsedSeconds(now)
		if clamped {
			summary.ClampedCount++
		}
		summary.Count++
		summary.TotalSeconds += secs
		summary.ByStatus[timer.Status]++

		cat := summary.ByCategory[timer.Category]
		cat.Count++
		cat.Seconds += secs
		summary.ByCategory[timer.Category] = cat
	}
	return summary
}
