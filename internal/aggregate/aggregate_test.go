// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package aggregate

import (
	"testing"

	"github.com/tomtom215/elevation-loom/internal/models"
)

func logWithTotal(total *int) models.DailyLog {
	return models.DailyLog{ElevationTotal: total}
}

func TestComputeWeekTotal(t *testing.T) {
	tests := []struct {
		name string
		logs []models.DailyLog
		want int
	}{
		{"empty", nil, 0},
		{"single", []models.DailyLog{logWithTotal(models.IntPtr(800))}, 800},
		{"nil totals count as zero", []models.DailyLog{
			logWithTotal(models.IntPtr(500)),
			logWithTotal(nil),
			logWithTotal(models.IntPtr(1200)),
		}, 1700},
		{"negative clamps", []models.DailyLog{
			logWithTotal(models.IntPtr(-300)),
			logWithTotal(models.IntPtr(100)),
		}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeWeekTotal(tt.logs)
			if got != tt.want {
				t.Errorf("ComputeWeekTotal() = %d, want %d", got, tt.want)
			}
			if got < 0 {
				t.Error("total must never be negative")
			}
		})
	}
}

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		target   *int
		wantDiff *int
		wantPct  *int
	}{
		{"no target", 1000, nil, nil, nil},
		{"zero target", 500, models.IntPtr(0), models.IntPtr(500), models.IntPtr(100)},
		{"over target", 1500, models.IntPtr(1000), models.IntPtr(500), models.IntPtr(150)},
		{"under target", 500, models.IntPtr(1000), models.IntPtr(-500), models.IntPtr(50)},
		{"rounds half up", 1, models.IntPtr(200), models.IntPtr(-199), models.IntPtr(1)},
		{"rounds down", 1, models.IntPtr(300), models.IntPtr(-299), models.IntPtr(0)},
		{"rounds 2/3", 200, models.IntPtr(300), models.IntPtr(-100), models.IntPtr(67)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeProgress(tt.current, tt.target)
			assertIntPtr(t, "Diff", got.Diff, tt.wantDiff)
			assertIntPtr(t, "Percentage", got.Percentage, tt.wantPct)
		})
	}
}

func assertIntPtr(t *testing.T, field string, got, want *int) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		t.Errorf("%s = %v, want %v", field, got, want)
	case *got != *want:
		t.Errorf("%s = %d, want %d", field, *got, *want)
	}
}

func TestForecastTotal(t *testing.T) {
	logs := []models.DailyLog{
		{ElevationTotal: models.IntPtr(800), DailyPlanPart1: models.IntPtr(1000)},
		{DailyPlanPart1: models.IntPtr(500), DailyPlanPart2: models.IntPtr(300)},
		{DailyPlanPart2: models.IntPtr(200)},
		{},
	}
	if got := ForecastTotal(logs); got != 1800 {
		t.Errorf("ForecastTotal() = %d, want 1800", got)
	}
}

func TestSummarize(t *testing.T) {
	w := models.WeekData{
		IsoYear: 2026,
		IsoWeek: 7,
		Target:  models.Target{Value: 2000},
		DailyLogs: []models.DailyLog{
			{ElevationTotal: models.IntPtr(1000)},
			{DailyPlanPart1: models.IntPtr(600)},
		},
	}
	s := Summarize(w)
	if s.WeekKey != "2026-W07" || s.Total != 1000 || s.Forecast != 1600 || s.Target != 2000 {
		t.Errorf("unexpected summary: %+v", s)
	}
	assertIntPtr(t, "Percentage", s.Progress.Percentage, models.IntPtr(50))

	empty := Summarize(models.EmptyWeek(2026, 8))
	if empty.Progress.Diff != nil || empty.Progress.Percentage != nil {
		t.Errorf("unset target should have nil progress: %+v", empty.Progress)
	}
}
