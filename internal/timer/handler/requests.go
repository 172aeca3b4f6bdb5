package handler

import (
	"strings"

	"timekeep/internal/timer/models"
	dErrors "timekeep/pkg/domain-errors"
)

// StartTimerRequest is the payload for POST /timers.
type StartTimerRequest struct {
	Category string `json:"category"`
}

func (r StartTimerRequest) Validate() error {
	if strings.TrimSpace(r.Category) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "category is required")
	}
	return nil
}

// parseStatuses turns a comma-separated status query into model statuses.
// An empty parameter means no filter.
func parseStatuses(raw string) ([]models.Status, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]models.Status, 0, len(parts))
	for _, part := range parts {
		status := models.Status(strings.TrimSpace(part))
		if !models.ValidStatus(status) {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", part)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
