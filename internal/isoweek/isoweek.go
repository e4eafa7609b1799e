// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package isoweek derives ISO-8601 week identities from calendar dates.
// Weeks start on Monday and week 1 is the week containing the year's
// first Thursday.
package isoweek

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/elevation-loom/internal/models"
)

// DateLayout is the "YYYY-MM-DD" layout used for daily log dates.
const DateLayout = "2006-01-02"

// Valid ISO year and week ranges accepted by the application.
const (
	MinYear = 2000
	MaxYear = 2100
	MinWeek = 1
	MaxWeek = 53
)

// ErrInvalidWeekKey is returned by ParseWeekKey for malformed input.
var ErrInvalidWeekKey = errors.New("invalid week key")

// WeekInfo identifies the ISO week containing a date.
type WeekInfo struct {
	IsoYear   int       `json:"isoYear"`
	IsoWeek   int       `json:"isoWeek"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Key returns the "{isoYear}-W{isoWeek:02}" key.
func (w WeekInfo) Key() string {
	return models.WeekKey(w.IsoYear, w.IsoWeek)
}

// Dates returns the seven "YYYY-MM-DD" dates of the week, Monday first.
func (w WeekInfo) Dates() []string {
	out := make([]string, 7)
	for i := range out {
		out[i] = w.StartDate.AddDate(0, 0, i).Format(DateLayout)
	}
	return out
}

// DeriveWeekInfo returns the ISO week containing t, evaluated in t's location.
// StartDate is Monday 00:00 and EndDate is Sunday 00:00 of that week.
func DeriveWeekInfo(t time.Time) WeekInfo {
	year, week := t.ISOWeek()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	start := day.AddDate(0, 0, -offset)
	return WeekInfo{
		IsoYear:   year,
		IsoWeek:   week,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 6),
	}
}

// WeekStart returns Monday 00:00 UTC of the given ISO week.
func WeekStart(isoYear, isoWeek int) time.Time {
	// January 4th is always in week 1.
	jan4 := time.Date(isoYear, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset+(isoWeek-1)*7)
}

// WeeksInYear returns 52 or 53.
func WeeksInYear(isoYear int) int {
	_, w := time.Date(isoYear, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// Validate checks that isoYear and isoWeek lie within the accepted ranges
// and that the week exists in that year.
func Validate(isoYear, isoWeek int) error {
	if isoYear < MinYear || isoYear > MaxYear {
		return fmt.Errorf("iso year %d out of range %d..%d", isoYear, MinYear, MaxYear)
	}
	if isoWeek < MinWeek || isoWeek > WeeksInYear(isoYear) {
		return fmt.Errorf("iso week %d out of range for %d", isoWeek, isoYear)
	}
	return nil
}

// ParseWeekKey parses "2026-W07" into its year and week.
func ParseWeekKey(key string) (isoYear, isoWeek int, err error) {
	yearPart, weekPart, ok := strings.Cut(key, "-W")
	if !ok || len(weekPart) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidWeekKey, key)
	}
	if isoYear, err = strconv.Atoi(yearPart); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidWeekKey, key)
	}
	if isoWeek, err = strconv.Atoi(weekPart); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidWeekKey, key)
	}
	if err := Validate(isoYear, isoWeek); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidWeekKey, err)
	}
	return isoYear, isoWeek, nil
}

// ParseDate parses a "YYYY-MM-DD" date in loc. A nil loc means UTC.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
