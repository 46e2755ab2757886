package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExportRequestMessage asks the export worker to render and publish one
// report. Filter uses the query-string form ("today", "week", "all",
// "last:N", "custom:YYYY-MM-DD:YYYY-MM-DD").
type ExportRequestMessage struct {
	ID          string    `json:"id"`
	Format      string    `json:"format"`
	Filter      string    `json:"filter"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewExportRequestMessage creates a message stamped with a UUID and the current time
func NewExportRequestMessage(format, filter string) *ExportRequestMessage {
	return &ExportRequestMessage{
		ID:          uuid.NewString(),
		Format:      format,
		Filter:      filter,
		RequestedAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExportRequestMessageFromJSON creates a message from JSON bytes
func ExportRequestMessageFromJSON(data []byte) (*ExportRequestMessage, error) {
	var msg ExportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Format == "" {
		return nil, fmt.Errorf("export request %q has no format", msg.ID)
	}
	return &msg, nil
}
