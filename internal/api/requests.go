// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/elevation-loom/internal/validation"
)

const maxRequestBody = 64 << 10

// TargetRequest sets a week's target.
type TargetRequest struct {
	Value *int `json:"value" validate:"required,min=0,max=10000,step100"`
}

// DailyLogRequest records the elevation of one day. Both parts may be null.
type DailyLogRequest struct {
	ElevationPart1      *int   `json:"elevation_part1" validate:"omitempty,min=0,max=10000,step100"`
	ElevationPart2      *int   `json:"elevation_part2" validate:"omitempty,min=0,max=10000,step100"`
	SubjectiveCondition string `json:"subjective_condition" validate:"omitempty,oneof=good normal bad"`
	Timezone            string `json:"timezone" validate:"omitempty,timezone"`
}

// PlanRequest sets one plan part. A null value clears it.
type PlanRequest struct {
	Value *int `json:"value" validate:"omitempty,min=0,max=10000,step100"`
}

// decodeAndValidate reads a JSON body into dst and runs its struct rules.
// It writes the error response and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, rw *ResponseWriter, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		respondValidation(rw, verr)
		return false
	}
	return true
}
