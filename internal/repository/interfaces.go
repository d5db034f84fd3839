package repository

import (
	"time"

	"lanepilot/internal/model"
)

// EventRepository defines the interface for journal event operations.
type EventRepository interface {
	// Create operations
	InsertBatch(events []model.Event) error

	// Read operations
	GetRecent(runID string, limit int) ([]model.Event, error)
	CountByKind(runID string) (map[model.EventKind]int, error)

	// Delete operations
	DeleteAll() error
}

// RunRepository defines the interface for drive session records.
type RunRepository interface {
	Insert(run *model.Run) error
	Finish(id string, endedAt time.Time, ticks int64) error
	GetByID(id string) (*model.Run, error)
	GetAll() ([]model.Run, error)
}
