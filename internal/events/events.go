// Package events fans out server-sent events to connected clients.
package events

import (
	"encoding/json"
	"time"
)

const (
	TypeScrapeStatus = "scrape_status"
	TypeJobsCleared  = "jobs_cleared"
	TypeHello        = "hello"
)

// Event is the envelope every SSE frame carries.
type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Make encodes one event. Data that fails to marshal is dropped rather than
// failing the frame.
func Make(reqID, typ string, data any) string {
	e := Event{
		Type:      typ,
		Version:   1,
		At:        time.Now().UTC(),
		RequestID: reqID,
	}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			e.Data = b
		}
	}
	b, _ := json.Marshal(e)
	return string(b)
}
