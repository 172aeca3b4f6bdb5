package report

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timekeep/internal/timer/models"
	id "timekeep/pkg/domain"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func at(secs int64) time.Time { return epoch.Add(time.Duration(secs) * time.Second) }

func timer(t *testing.T, category string, startSecs int64) *models.Timer {
	t.Helper()
	tm, err := models.NewTimer(id.TimerID(uuid.New()), id.OwnerID(uuid.New()), category, at(startSecs))
	require.NoError(t, err)
	return tm
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil, at(0))
	assert.Zero(t, summary.Count)
	assert.Zero(t, summary.TotalSeconds)
	assert.Empty(t, summary.ByStatus)
	assert.Empty(t, summary.ByCategory)
}

func TestSummarizeMixedCollection(t *testing.T) {
	active := timer(t, "inspection", 0) // 100s by now

	paused := timer(t, "inspection", 0)
	require.NoError(t, paused.Pause(at(40))) // frozen at 40s

	completed := timer(t, "repair", 0)
	_, err := completed.Complete(at(25)) // frozen at 25s
	require.NoError(t, err)

	summary := Summarize([]*models.Timer{active, paused, completed}, at(100))

	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, int64(165), summary.TotalSeconds)
	assert.Equal(t, map[models.Status]int{
		models.StatusActive:    1,
		models.StatusPaused:    1,
		models.StatusCompleted: 1,
	}, summary.ByStatus)
	assert.Equal(t, CategorySummary{Count: 2, Seconds: 140}, summary.ByCategory["inspection"])
	assert.Equal(t, CategorySummary{Count: 1, Seconds: 25}, summary.ByCategory["repair"])
}

// TestAggregationInvariants checks the cross-total identities: category
// seconds sum to the grand total and status counts sum to the count.
func TestAggregationInvariants(t *testing.T) {
	timers := []*models.Timer{
		timer(t, "inspection", 0),
		timer(t, "repair", 10),
		timer(t, "repair", 20),
	}
	require.NoError(t, timers[1].Pause(at(30)))
	_, err := timers[2].Complete(at(90))
	require.NoError(t, err)

	summary := Summarize(timers, at(120))

	var catSeconds int64
	var catCount int
	for _, cat := range summary.ByCategory {
		catSeconds += cat.Seconds
		catCount += cat.Count
	}
	assert.Equal(t, summary.TotalSeconds, catSeconds)
	assert.Equal(t, summary.Count, catCount)

	var statusCount int
	for _, n := range summary.ByStatus {
		statusCount += n
	}
	assert.Equal(t, summary.Count, statusCount)
}

func TestSummarizeDegradesGracefully(t *testing.T) {
	t.Run("malformed timer counts but contributes zero seconds", func(t *testing.T) {
		broken := &models.Timer{
			ID:       id.TimerID(uuid.New()),
			Status:   models.StatusActive,
			Category: "inspection",
			// StartedAt deliberately zero
		}
		summary := Summarize([]*models.Timer{broken, timer(t, "inspection", 0)}, at(50))

		assert.Equal(t, 2, summary.Count, "malformed records are never dropped")
		assert.Equal(t, int64(50), summary.TotalSeconds)
		assert.Equal(t, 2, summary.ByStatus[models.StatusActive])
	})

	t.Run("nil entries are skipped", func(t *testing.T) {
		summary := Summarize([]*models.Timer{nil, timer(t, "repair", 0)}, at(10))
		assert.Equal(t, 1, summary.Count)
	})

	t.Run("clock skew is clamped and reported", func(t *testing.T) {
		skewed := timer(t, "inspection", 100) // started in the future
		summary := Summarize([]*models.Timer{skewed}, at(50))

		assert.Zero(t, summary.TotalSeconds, "no negative durations ever")
		assert.Equal(t, 1, summary.ClampedCount)
	})
}
