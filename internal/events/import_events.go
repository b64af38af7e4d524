package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the import lifecycle events the service emits.
type EventType string

const (
	EventImportStarted   EventType = "import.started"
	EventImportCompleted EventType = "import.completed"
	EventImportFailed    EventType = "import.failed"
	EventImportUndone    EventType = "import.undone"
	EventCacheSwept      EventType = "mapping_cache.swept"
)

const (
	eventSource  = "roster-import-service"
	eventVersion = "1.0"
)

// ImportEvent is the envelope for all published events
type ImportEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	Source         string         `json:"source"`
	Version        string         `json:"version"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Data           any            `json:"data"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type ImportStartedEvent struct {
	SessionID      string `json:"session_id"`
	UserID         string `json:"user_id"`
	SourceFileName string `json:"source_file_name,omitempty"`
	TotalRows      int    `json:"total_rows"`
}

type ImportCompletedEvent struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Ratings     int       `json:"ratings"`
	CompletedAt time.Time `json:"completed_at"`
}

type ImportUndoneEvent struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Deleted   int       `json:"deleted"`
	Restored  int       `json:"restored"`
	Full      bool      `json:"full"`
	Reason    string    `json:"reason,omitempty"`
	UndoneAt  time.Time `json:"undone_at"`
}

type CacheSweptEvent struct {
	Backend string    `json:"backend"`
	Purged  int       `json:"purged"`
	SweptAt time.Time `json:"swept_at"`
}

func newEvent(t EventType, orgID string, data any) *ImportEvent {
	return &ImportEvent{
		ID:             GenerateEventID(),
		Type:           t,
		Timestamp:      time.Now().UTC(),
		Source:         eventSource,
		Version:        eventVersion,
		OrganizationID: orgID,
		Data:           data,
	}
}

func NewImportStartedEvent(orgID string, data ImportStartedEvent) *ImportEvent {
	return newEvent(EventImportStarted, orgID, data)
}

func NewImportCompletedEvent(orgID string, data ImportCompletedEvent) *ImportEvent {
	return newEvent(EventImportCompleted, orgID, data)
}

// NewImportFailedEvent reuses the completed payload; a failed import still reports partial counts.
func NewImportFailedEvent(orgID string, data ImportCompletedEvent) *ImportEvent {
	return newEvent(EventImportFailed, orgID, data)
}

func NewImportUndoneEvent(orgID string, data ImportUndoneEvent) *ImportEvent {
	return newEvent(EventImportUndone, orgID, data)
}

func NewCacheSweptEvent(data CacheSweptEvent) *ImportEvent {
	return newEvent(EventCacheSwept, "", data)
}

func GenerateEventID() string {
	return uuid.NewString()
}
