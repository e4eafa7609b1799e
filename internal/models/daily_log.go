// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package models

import (
	"fmt"
	"time"
)

// Condition is the subjective condition tag recorded for a day.
type Condition string

const (
	ConditionGood   Condition = "good"
	ConditionNormal Condition = "normal"
	ConditionBad    Condition = "bad"
)

// Valid reports whether c is one of the known tags.
func (c Condition) Valid() bool {
	switch c {
	case ConditionGood, ConditionNormal, ConditionBad:
		return true
	}
	return false
}

// ParseCondition converts s to a Condition. An empty string yields nil.
func ParseCondition(s string) (*Condition, error) {
	if s == "" {
		return nil, nil
	}
	c := Condition(s)
	if !c.Valid() {
		return nil, fmt.Errorf("unknown condition %q", s)
	}
	return &c, nil
}

// DefaultTimezone is stamped on daily logs that do not carry one.
const DefaultTimezone = "Asia/Tokyo"

// DailyLog is one calendar day of training.
//
// ElevationTotal is derived from the two parts (nil parts count as zero)
// and is never negative. IsoYear/WeekNumber name the owning week and are
// what range queries filter on.
type DailyLog struct {
	Date                string     `json:"date" validate:"required,datetime=2006-01-02"`
	ElevationPart1      *int       `json:"elevation_part1" validate:"omitempty,min=0,max=10000,step100"`
	ElevationPart2      *int       `json:"elevation_part2" validate:"omitempty,min=0,max=10000,step100"`
	ElevationTotal      *int       `json:"elevation_total" validate:"omitempty,min=0"`
	DailyPlanPart1      *int       `json:"daily_plan_part1" validate:"omitempty,min=0,max=10000,step100"`
	DailyPlanPart2      *int       `json:"daily_plan_part2" validate:"omitempty,min=0,max=10000,step100"`
	SubjectiveCondition *Condition `json:"subjective_condition" validate:"omitempty,oneof=good normal bad"`
	IsoYear             int        `json:"iso_year"`
	WeekNumber          int        `json:"week_number"`
	Timezone            string     `json:"timezone,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Total returns ElevationTotal, or 0 when unset or negative.
func (d DailyLog) Total() int {
	if d.ElevationTotal == nil || *d.ElevationTotal < 0 {
		return 0
	}
	return *d.ElevationTotal
}

// RecomputeTotal sets ElevationTotal from the two parts.
func (d *DailyLog) RecomputeTotal() {
	total := valueOrZero(d.ElevationPart1) + valueOrZero(d.ElevationPart2)
	if total < 0 {
		total = 0
	}
	d.ElevationTotal = &total
}

// HasElevation reports whether either elevation part is recorded.
func (d DailyLog) HasElevation() bool {
	return d.ElevationPart1 != nil || d.ElevationPart2 != nil
}

// PlanTotal returns the sum of the two plan parts, nil counting as zero.
func (d DailyLog) PlanTotal() int {
	return valueOrZero(d.DailyPlanPart1) + valueOrZero(d.DailyPlanPart2)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

func valueOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
