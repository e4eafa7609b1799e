// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is built on first use, with field names
// reported by their JSON tag and two custom tags registered:
//
//	step100   value is a multiple of 100 (elevations, plans, targets)
//	weekkey   string parses as an ISO week key ("2026-W07")
//
// # Domain Ranges
//
// The model types carry their own rules:
//
//	WeekPayload.isoYear    2000..2100
//	WeekPayload.isoWeek    1..53
//	Target.value           0..10000, step 100
//	DailyLog elevations    0..10000, step 100
//	DailyLog plans         0..10000, step 100
//	subjective_condition   good | normal | bad
//
// ValidateWeekPayload adds the checks a struct tag cannot express: the week
// must exist in its ISO year (week 53 only in long years), dates must not
// repeat, and every daily log must fall inside the payload's week.
//
// # API Error Integration
//
// ToAPIError produces the VALIDATION_ERROR payload used by the HTTP layer:
//
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "elevation_part1 must be a multiple of 100",
//	    "details": {"field": "elevation_part1", "tag": "step100", "value": 150}
//	}
//
// # Thread Safety
//
// GetValidator and ValidateStruct are safe for concurrent use.
package validation
