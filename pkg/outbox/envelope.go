package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// as the Pub/Sub message body. Data holds the versioned event payload.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// ParsedEventID returns the envelope event id as a UUID.
func (e PayloadEnvelope) ParsedEventID() (uuid.UUID, error) {
	return uuid.Parse(e.EventID)
}

// DecodeEnvelope parses a stored payload and checks the fields every
// consumer relies on.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode outbox envelope: %w", err)
	}
	if env.Version <= 0 {
		return PayloadEnvelope{}, fmt.Errorf("outbox envelope missing version")
	}
	if _, err := env.ParsedEventID(); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("outbox envelope event id: %w", err)
	}
	if len(env.Data) == 0 {
		return PayloadEnvelope{}, fmt.Errorf("outbox envelope missing data")
	}
	return env, nil
}
