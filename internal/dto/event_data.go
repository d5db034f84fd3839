// Package dto holds the JSON payloads of the operator console API.
package dto

import "lanepilot/internal/model"

// EventsData is the response payload for the journal event list.
type EventsData struct {
	RunID  string        `json:"runId"`
	Events []model.Event `json:"events"`
	Length int           `json:"length"`
	Limit  int           `json:"limit"`
}

// EventStats is the per-kind event count of a run.
type EventStats struct {
	RunID  string                  `json:"runId"`
	Counts map[model.EventKind]int `json:"counts"`
}

// OverrideResult acknowledges an operator override request.
type OverrideResult struct {
	Status    string `json:"status"`
	Direction string `json:"direction"`
}
