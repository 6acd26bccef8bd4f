package tools

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// Tool name constants for time operations.
const (
	// CurrentTimeName is the tool name for reading the current wall clock.
	CurrentTimeName = "get_current_time"
	// RelativeDateName is the tool name for relative date arithmetic.
	RelativeDateName = "calculate_date_relative"
	// ConvertTimeZonesName is the tool name for timestamp zone conversion.
	ConvertTimeZonesName = "convert_time_zones"
)

// DefaultTimezone is used when the model omits a timezone argument.
const DefaultTimezone = "Asia/Kolkata"

// CurrentTimeInput defines input for the get_current_time tool.
type CurrentTimeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema_description:"IANA timezone name (e.g. 'UTC', 'America/New_York'). Defaults to 'Asia/Kolkata'."`
}

// RelativeDateInput defines input for the calculate_date_relative tool.
type RelativeDateInput struct {
	BaseDate  string `json:"base_date,omitempty" jsonschema_description:"Starting date in ISO format (YYYY-MM-DD). Defaults to today."`
	Value     int    `json:"value" jsonschema_description:"Number of units to shift by."`
	Unit      string `json:"unit" jsonschema_description:"One of: days, weeks, months, years."`
	Direction string `json:"direction,omitempty" jsonschema_description:"Either 'future' or 'past'. Defaults to 'future'."`
}

// ConvertTimeZonesInput defines input for the convert_time_zones tool.
type ConvertTimeZonesInput struct {
	Timestamp string `json:"timestamp" jsonschema_description:"Timestamp in ISO format (e.g. '2024-03-15T15:00')."`
	FromTZ    string `json:"from_tz" jsonschema_description:"Source IANA timezone name."`
	ToTZ      string `json:"to_tz" jsonschema_description:"Target IANA timezone name."`
}

// Time holds dependencies for the time operation handlers.
type Time struct {
	logger *slog.Logger

	// now is swappable so date arithmetic is testable.
	now func() time.Time
}

// NewTime creates a Time tool group.
func NewTime(logger *slog.Logger) (*Time, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Time{logger: logger, now: time.Now}, nil
}

// Tools returns the time tool descriptors.
func (t *Time) Tools() []*Tool {
	return []*Tool{
		New(CurrentTimeName,
			"Get the current date and time for an IANA timezone (e.g. 'UTC', 'America/New_York'). "+
				"Defaults to 'Asia/Kolkata'. Use for 'What time is it?' or current date queries.",
			t.CurrentTime),
		New(RelativeDateName,
			"Calculate a past or future date relative to a base date (ISO YYYY-MM-DD). "+
				"The base date defaults to today. Use for '10 days from now' or '3 weeks ago'.",
			t.RelativeDate),
		New(ConvertTimeZonesName,
			"Convert an ISO timestamp from a source timezone to a target timezone. "+
				"Use for queries like 'What time is 3 PM in New York in London?'.",
			t.ConvertTimeZones),
	}
}

// CurrentTime reports the current wall clock in the requested timezone.
func (t *Time) CurrentTime(_ *ai.ToolContext, input CurrentTimeInput) (Result, error) {
	tz := input.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		t.logger.Debug("current time rejected", "timezone", tz, "error", err)
		return Errf("Invalid timezone: %s", tz), nil
	}
	now := t.now().In(loc)
	return OKResult(map[string]any{
		"iso":      now.Format(time.RFC3339),
		"readable": now.Format("Monday, January 02, 2006 03:04 PM"),
		"timezone": tz,
		"is_dst":   isDST(now),
	}), nil
}

// RelativeDate shifts a base date by a whole number of days, weeks, months
// or years in either direction.
func (t *Time) RelativeDate(_ *ai.ToolContext, input RelativeDateInput) (Result, error) {
	start := t.now()
	if input.BaseDate != "" {
		parsed, err := time.Parse("2006-01-02", input.BaseDate)
		if err != nil {
			return Errf("Invalid base_date: %s", input.BaseDate), nil
		}
		start = parsed
	}

	direction := input.Direction
	if direction == "" {
		direction = "future"
	}
	amount := input.Value
	if amount < 0 {
		amount = -amount
	}
	if direction == "past" {
		amount = -amount
	} else if direction != "future" {
		return Errf("Invalid direction: %s", input.Direction), nil
	}

	var target time.Time
	switch input.Unit {
	case "days":
		target = start.AddDate(0, 0, amount)
	case "weeks":
		target = start.AddDate(0, 0, amount*7)
	case "months":
		target = addMonthsClamped(start, amount)
	case "years":
		target = addMonthsClamped(start, amount*12)
	default:
		return Errf("Invalid unit: %s", input.Unit), nil
	}

	return OKResult(map[string]any{
		"base_date":   start.Format("2006-01-02"),
		"target_date": target.Format("2006-01-02"),
		"day_of_week": target.Weekday().String(),
		"direction":   direction,
		"description": fmt.Sprintf("%d %s in the %s", input.Value, input.Unit, direction),
	}), nil
}

// ConvertTimeZones re-expresses a timestamp from one zone in another.
func (t *Time) ConvertTimeZones(_ *ai.ToolContext, input ConvertTimeZonesInput) (Result, error) {
	from, err := time.LoadLocation(input.FromTZ)
	if err != nil {
		return Errf("Invalid timezone: %s", input.FromTZ), nil
	}
	to, err := time.LoadLocation(input.ToTZ)
	if err != nil {
		return Errf("Invalid timezone: %s", input.ToTZ), nil
	}

	dt, err := parseISOInLocation(input.Timestamp, from)
	if err != nil {
		return Errf("Invalid timestamp: %s", input.Timestamp), nil
	}
	converted := dt.In(to)

	return OKResult(map[string]any{
		"source":          fmt.Sprintf("%s (%s)", input.Timestamp, input.FromTZ),
		"converted":       converted.Format("2006-01-02 15:04"),
		"converted_iso":   converted.Format(time.RFC3339),
		"target_timezone": input.ToTZ,
	}), nil
}

// addMonthsClamped shifts t by whole months, clamping the day to the target
// month's last day. AddDate alone would roll Jan 31 + 1 month into March.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// parseISOInLocation accepts the ISO timestamp shapes models actually emit,
// from a bare date up to seconds precision, interpreted in loc.
func parseISOInLocation(s string, loc *time.Location) (time.Time, error) {
	layouts := []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if dt, err := time.ParseInLocation(layout, s, loc); err == nil {
			return dt, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// isDST reports whether t falls in its zone's daylight saving period, by
// comparing the current UTC offset against the smaller of the January and
// July offsets (standard time is the smaller one in both hemispheres).
func isDST(t time.Time) bool {
	_, offset := t.Zone()
	jan := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	jul := time.Date(t.Year(), time.July, 1, 0, 0, 0, 0, t.Location())
	_, janOff := jan.Zone()
	_, julOff := jul.Zone()
	std := janOff
	if julOff < std {
		std = julOff
	}
	return offset > std
}
