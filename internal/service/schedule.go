package service

import (
	"strings"
	"time"

	"assessment-jobs/internal/errors"
	"assessment-jobs/internal/models"
)

const (
	// MinLeadTime is how far ahead an immediate start time must be.
	MinLeadTime = 5 * time.Minute
)

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Schedule is a resolved scheduling decision, StartTime in UTC.
type Schedule struct {
	Mode      models.SchedulingMode
	StartTime time.Time
	Timezone  string
}

// PlaceholderStart is the far-future start stored on deferred drafts.
func PlaceholderStart(now time.Time) time.Time {
	return now.UTC().AddDate(1, 0, 0)
}

// ResolveSchedule validates the scheduling fields of a create request.
func ResolveSchedule(mode models.SchedulingMode, startTime, timezone string, now time.Time) (*Schedule, error) {
	switch mode {
	case models.ScheduleImmediate:
		start, err := ResolveStartTime(startTime, timezone, now)
		if err != nil {
			return nil, err
		}
		return &Schedule{Mode: mode, StartTime: start, Timezone: timezone}, nil
	case models.ScheduleDeferred:
		return &Schedule{Mode: mode, StartTime: PlaceholderStart(now), Timezone: timezone}, nil
	case "":
		return nil, errors.Validationf("schedulingMode is required")
	default:
		return nil, errors.Validationf("unknown schedulingMode %q", mode)
	}
}

// ResolveStartTime converts a local wall time in the caller's timezone to UTC
// and checks it is at least MinLeadTime after now.
func ResolveStartTime(local, timezone string, now time.Time) (time.Time, error) {
	local = strings.TrimSpace(local)
	if local == "" {
		return time.Time{}, errors.Validationf("startTime is required for immediate scheduling")
	}
	if strings.TrimSpace(timezone) == "" {
		return time.Time{}, errors.Validationf("timezone is required for immediate scheduling")
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, errors.Validationf("unknown timezone %q", timezone)
	}

	start, err := parseLocal(local, loc)
	if err != nil {
		return time.Time{}, err
	}

	earliest := now.Add(MinLeadTime)
	if start.Before(earliest) {
		return time.Time{}, errors.Validationf(
			"start time %s (%s) must be at least %s after now (%s)",
			start.In(loc).Format("2006-01-02 15:04"), timezone, MinLeadTime, now.In(loc).Format("2006-01-02 15:04:05"))
	}
	return start.UTC(), nil
}

func parseLocal(local string, loc *time.Location) (time.Time, error) {
	// An explicit offset wins over the timezone id.
	if t, err := time.Parse(time.RFC3339, local); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, local, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Validationf("startTime %q is not a valid local date-time (expected YYYY-MM-DDTHH:MM)", local)
}
