package domain

import (
	"fmt"
	"time"
)

// ReportingZone is the fixed timezone in which operators express report
// date ranges. Record timestamps in the source are UTC; the source
// adapter translates range bounds accordingly.
var ReportingZone = time.FixedZone("IST", 5*60*60+30*60)

const dateLayout = "2006-01-02"

// ParseReportDate parses a YYYY-MM-DD date in the reporting timezone.
func ParseReportDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, value, ReportingZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: expected YYYY-MM-DD: %w", value, err)
	}
	return t, nil
}

// ValidateDateRange checks that the optional bounds parse and that
// start does not follow end. Empty bounds are unbounded.
func ValidateDateRange(startDate, endDate string) error {
	var start, end time.Time
	var err error
	if startDate != "" {
		if start, err = ParseReportDate(startDate); err != nil {
			return WrapError(ErrInvalidInput, "validate start date", err)
		}
	}
	if endDate != "" {
		if end, err = ParseReportDate(endDate); err != nil {
			return WrapError(ErrInvalidInput, "validate end date", err)
		}
	}
	if startDate != "" && endDate != "" && start.After(end) {
		return WrapError(ErrInvalidInput, "validate date range",
			fmt.Errorf("start date %s is after end date %s", startDate, endDate))
	}
	return nil
}

// DateRangeSpan returns the inclusive span in days, or 0 when either
// bound is missing or invalid.
func DateRangeSpan(startDate, endDate string) int {
	if startDate == "" || endDate == "" {
		return 0
	}
	start, err := ParseReportDate(startDate)
	if err != nil {
		return 0
	}
	end, err := ParseReportDate(endDate)
	if err != nil {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Today returns the current date in the reporting timezone.
func Today() string {
	return time.Now().In(ReportingZone).Format(dateLayout)
}
