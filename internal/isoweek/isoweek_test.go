// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package isoweek

import (
	"errors"
	"testing"
	"time"
)

func TestDeriveWeekInfo(t *testing.T) {
	tests := []struct {
		date      string
		wantYear  int
		wantWeek  int
		wantStart string
		wantEnd   string
	}{
		{"2026-02-09", 2026, 7, "2026-02-09", "2026-02-15"},
		{"2026-02-12", 2026, 7, "2026-02-09", "2026-02-15"},
		{"2026-02-15", 2026, 7, "2026-02-09", "2026-02-15"},
		{"2026-01-01", 2026, 1, "2025-12-29", "2026-01-04"},
		{"2021-01-03", 2020, 53, "2020-12-28", "2021-01-03"},
		{"2024-12-30", 2025, 1, "2024-12-30", "2025-01-05"},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, err := ParseDate(tt.date, nil)
			if err != nil {
				t.Fatalf("ParseDate: %v", err)
			}
			info := DeriveWeekInfo(d)
			if info.IsoYear != tt.wantYear || info.IsoWeek != tt.wantWeek {
				t.Errorf("got %d-W%02d, want %d-W%02d", info.IsoYear, info.IsoWeek, tt.wantYear, tt.wantWeek)
			}
			if got := info.StartDate.Format(DateLayout); got != tt.wantStart {
				t.Errorf("StartDate = %s, want %s", got, tt.wantStart)
			}
			if got := info.EndDate.Format(DateLayout); got != tt.wantEnd {
				t.Errorf("EndDate = %s, want %s", got, tt.wantEnd)
			}
		})
	}
}

func TestDeriveWeekInfo_RespectsLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Sunday 2026-02-15 20:00 UTC is Monday 05:00 in Tokyo.
	utc := time.Date(2026, 2, 15, 20, 0, 0, 0, time.UTC)
	if got := DeriveWeekInfo(utc).IsoWeek; got != 7 {
		t.Errorf("UTC week = %d, want 7", got)
	}
	if got := DeriveWeekInfo(utc.In(tokyo)).IsoWeek; got != 8 {
		t.Errorf("Tokyo week = %d, want 8", got)
	}
}

func TestWeekInfoDates(t *testing.T) {
	info := DeriveWeekInfo(time.Date(2026, 2, 11, 12, 0, 0, 0, time.UTC))
	dates := info.Dates()
	if len(dates) != 7 || dates[0] != "2026-02-09" || dates[6] != "2026-02-15" {
		t.Errorf("Dates() = %v", dates)
	}
	if info.Key() != "2026-W07" {
		t.Errorf("Key() = %q", info.Key())
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		year, week int
		want       string
	}{
		{2026, 7, "2026-02-09"},
		{2026, 1, "2025-12-29"},
		{2020, 53, "2020-12-28"},
	}
	for _, tt := range tests {
		if got := WeekStart(tt.year, tt.week).Format(DateLayout); got != tt.want {
			t.Errorf("WeekStart(%d, %d) = %s, want %s", tt.year, tt.week, got, tt.want)
		}
	}
}

func TestWeeksInYear(t *testing.T) {
	if WeeksInYear(2020) != 53 {
		t.Error("2020 has 53 ISO weeks")
	}
	if WeeksInYear(2026) != 53 {
		t.Error("2026 has 53 ISO weeks")
	}
	if WeeksInYear(2025) != 52 {
		t.Error("2025 has 52 ISO weeks")
	}
}

func TestParseWeekKey(t *testing.T) {
	tests := []struct {
		key      string
		wantYear int
		wantWeek int
		wantErr  bool
	}{
		{"2026-W07", 2026, 7, false},
		{"2020-W53", 2020, 53, false},
		{"2025-W53", 0, 0, true},
		{"2026-W7", 0, 0, true},
		{"2026-07", 0, 0, true},
		{"1999-W01", 0, 0, true},
		{"abcd-W01", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			y, w, err := ParseWeekKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidWeekKey) {
					t.Errorf("expected ErrInvalidWeekKey, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if y != tt.wantYear || w != tt.wantWeek {
				t.Errorf("got %d/%d, want %d/%d", y, w, tt.wantYear, tt.wantWeek)
			}
		})
	}
}

func TestParseDateInvalid(t *testing.T) {
	for _, s := range []string{"", "2026-2-9", "2026-02-30", "not-a-date"} {
		if _, err := ParseDate(s, nil); err == nil {
			t.Errorf("ParseDate(%q) should fail", s)
		}
	}
}
