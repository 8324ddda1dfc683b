package events

import (
	"encoding/json"
	"time"
)

// Envelope is the shared event shape used in Meridian. Payload stays raw so
// consumers decode only the event types they handle.
type Envelope struct {
	EventID        string          `json:"event_id"`
	EventType      string          `json:"event_type"`
	SourceService  string          `json:"source_service"`
	OccurredAtUTC  time.Time       `json:"occurred_at_utc"`
	CorrelationID  string          `json:"correlation_id"`
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	PayloadVersion int             `json:"payload_version"`
	Payload        json.RawMessage `json:"payload"`
}
