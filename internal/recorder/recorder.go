package recorder

import (
	"errors"
	"time"

	"MarketFeed/internal/model"
)

// ErrNoSnapshot is returned by Load when nothing has been persisted yet.
var ErrNoSnapshot = errors.New("no persisted snapshot")

// Document is the flat persisted snapshot. It is read and written wholesale.
type Document struct {
	LastUpdated time.Time                 `json:"lastUpdated"`
	Items       []model.SnapshotItem      `json:"items"`
	History     map[string][]model.Candle `json:"history"`
}

// PassEvent summarizes one scheduler pass.
type PassEvent struct {
	StartedAt time.Time
	Duration  time.Duration
	Total     int
	Succeeded int
	Failed    int
	Fallback  bool
}

// Repository persists the last-resort snapshot document.
type Repository interface {
	Load() (*Document, error)
	Save(doc *Document) error
	Close() error
}

// Recorder persists pass history for later analysis.
type Recorder interface {
	RecordPass(evt *PassEvent) error
}
