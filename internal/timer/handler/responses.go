package handler

import (
	"time"

	"timekeep/internal/report"
	"timekeep/internal/timer/models"
)

// TimerResponse is the wire shape of one timer snapshot.
type TimerResponse struct {
	ID                 string     `json:"id"`
	Category           string     `json:"category"`
	Status             string     `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	TotalPausedSeconds int64      `json:"total_paused_seconds"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
	TotalSeconds       int64      `json:"total_seconds"`
	ElapsedSeconds     int64      `json:"elapsed_seconds"`
}

// FromTimer builds a response carrying the elapsed value evaluated at the
// request instant.
func FromTimer(timer *models.Timer, elapsed int64) TimerResponse {
	return TimerResponse{
		ID:                 timer.ID.String(),
		Category:           timer.Category,
		Status:             string(timer.Status),
		StartedAt:          timer.StartedAt,
		PausedAt:           timer.PausedAt,
		TotalPausedSeconds: timer.TotalPausedSeconds,
		EndedAt:            timer.EndedAt,
		TotalSeconds:       timer.TotalSeconds,
		ElapsedSeconds:     elapsed,
	}
}

// ListResponse wraps the owner's timers.
type ListResponse struct {
	Timers []TimerResponse `json:"timers"`
}

// SummaryResponse is the wire shape of an aggregation summary.
type SummaryResponse struct {
	Count        int                               `json:"count"`
	TotalSeconds int64                             `json:"total_seconds"`
	ByStatus     map[string]int                    `json:"by_status"`
	ByCategory   map[string]report.CategorySummary `json:"by_category"`
	GeneratedAt  time.Time                         `json:"generated_at"`
}

func FromSummary(summary report.Summary) SummaryResponse {
	byStatus := make(map[string]int, len(summary.ByStatus))
	for status, n := range summary.ByStatus {
		byStatus[string(status)] = n
	}
	return SummaryResponse{
		Count:        summary.Count,
		TotalSeconds: summary.TotalSeconds,
		ByStatus:     byStatus,
		ByCategory:   summary.ByCategory,
		GeneratedAt:  summary.GeneratedAt,
	}
}
