// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package aggregate computes weekly totals and progress against a target.
// All functions are pure.
package aggregate

import (
	"math"

	"github.com/tomtom215/elevation-loom/internal/models"
)

// Progress is the comparison of a week total with its target.
// Both fields are nil when no target is configured.
type Progress struct {
	Diff       *int `json:"diff"`
	Percentage *int `json:"percentage"`
}

// Summary bundles the figures shown for one week.
type Summary struct {
	WeekKey  string   `json:"weekKey"`
	Total    int      `json:"total"`
	Forecast int      `json:"forecast"`
	Target   int      `json:"target"`
	Progress Progress `json:"progress"`
}

// ComputeWeekTotal sums ElevationTotal across logs. Nil totals count as 0
// and the result is never negative.
func ComputeWeekTotal(logs []models.DailyLog) int {
	total := 0
	for i := range logs {
		total += logs[i].Total()
	}
	return total
}

// ComputeProgress compares currentTotal with target.
//
// A zero target is reported as satisfied: diff equals currentTotal and
// percentage is 100. Percentages round half away from zero.
func ComputeProgress(currentTotal int, target *int) Progress {
	if target == nil {
		return Progress{}
	}
	if *target == 0 {
		return Progress{Diff: models.IntPtr(currentTotal), Percentage: models.IntPtr(100)}
	}
	diff := currentTotal - *target
	pct := int(math.Round(float64(currentTotal) / float64(*target) * 100))
	return Progress{Diff: &diff, Percentage: &pct}
}

// ForecastTotal projects the week total: recorded totals where a day has
// elevation data, otherwise that day's planned parts.
func ForecastTotal(logs []models.DailyLog) int {
	total := 0
	for i := range logs {
		if logs[i].ElevationTotal != nil {
			total += logs[i].Total()
			continue
		}
		total += logs[i].PlanTotal()
	}
	return total
}

// Summarize builds the Summary for w. A zero target is treated as
// "no target" for progress, matching how the target form stores a cleared value.
func Summarize(w models.WeekData) Summary {
	total := ComputeWeekTotal(w.DailyLogs)
	var target *int
	if w.Target.Value > 0 {
		target = models.IntPtr(w.Target.Value)
	}
	return Summary{
		WeekKey:  w.Key(),
		Total:    total,
		Forecast: ForecastTotal(w.DailyLogs),
		Target:   w.Target.Value,
		Progress: ComputeProgress(total, target),
	}
}
