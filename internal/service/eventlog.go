package service

import (
	"context"
	"strings"
	"time"

	"printerbot/internal/models"
	"printerbot/internal/repository"
)

const maxJobsListed = 100

type EventLogService struct {
	eventRepo repository.EventRepo
	jobRepo   repository.JobRepo
}

func NewEventLogService(eventRepo repository.EventRepo, jobRepo repository.JobRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, jobRepo: jobRepo}
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	return from, to, normalizeEventType(f.Type), nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.PrinterEvent, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}

// Jobs returns the most recent print jobs, newest first. A non-positive
// limit uses the repository default.
func (s *EventLogService) Jobs(ctx context.Context, limit int) ([]models.PrintJob, error) {
	if limit > maxJobsListed {
		limit = maxJobsListed
	}
	return s.jobRepo.Recent(ctx, limit)
}
