package model

import "time"

// EventKind names a state change recorded in the run journal.
type EventKind string

const (
	EventRunStarted      EventKind = "run_started"
	EventRunFinished     EventKind = "run_finished"
	EventTurnEntered     EventKind = "turn_entered"
	EventTurnExited      EventKind = "turn_exited"
	EventIntersection    EventKind = "intersection"
	EventBehaviorChanged EventKind = "behavior_changed"
	EventStopLatched     EventKind = "stop_latched"
	EventOverride        EventKind = "override"
)

// Event is one journal record.
type Event struct {
	ID                int64     `json:"id"`
	RunID             string    `json:"run_id"`
	Tick              int64     `json:"tick"`
	Kind              EventKind `json:"kind"`
	Behavior          string    `json:"behavior"`
	IntersectionCount int       `json:"intersection_count"`
	LeftTurnCount     int       `json:"left_turn_count"`
	Detail            string    `json:"detail,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Run describes one drive session.
type Run struct {
	ID        string     `json:"id"`
	Mode      string     `json:"mode"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Ticks     int64      `json:"ticks"`
}
