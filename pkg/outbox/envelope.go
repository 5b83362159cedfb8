package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CurrentEnvelopeVersion is stamped on events that do not pick a version.
const CurrentEnvelopeVersion = 1

var ErrMalformedEnvelope = errors.New("malformed outbox envelope")

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and forwarded
// to subscribers as the message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope marshals event.Data and assigns a fresh event id.
func NewEnvelope(event DomainEvent, now time.Time) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("marshal %s payload: %w", event.EventType, err)
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	version := event.Version
	if version == 0 {
		version = CurrentEnvelopeVersion
	}
	return PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}, nil
}

// DecodeEnvelope parses a stored payload. Errors wrap ErrMalformedEnvelope.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	switch {
	case env.EventID == "":
		return env, fmt.Errorf("%w: missing event id", ErrMalformedEnvelope)
	case env.Version <= 0:
		return env, fmt.Errorf("%w: version %d", ErrMalformedEnvelope, env.Version)
	case len(env.Data) == 0:
		return env, fmt.Errorf("%w: missing data", ErrMalformedEnvelope)
	}
	return env, nil
}
