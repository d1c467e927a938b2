package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// TopicPrefix namespaces every topic this service writes.
const TopicPrefix = "omnilearn"

// Topic returns the fully qualified topic for an event name,
// e.g. Topic("lesson.generated") == "omnilearn.lesson.generated".
func Topic(name string) string {
	return TopicPrefix + "." + name
}

// envelopeVersion changes only when Event's JSON shape does.
const envelopeVersion = 1

// Aggregate names the entity an event describes. Its ID is the message key.
type Aggregate struct {
	Type string
	ID   string
}

// Event is the JSON envelope of every OmniLearn message. Consumers switch on
// EventType and decode Data into the matching payload.
type Event struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEvent encodes payload into a fresh envelope stamped with a random ID
// and the current UTC time.
func NewEvent(eventType, source string, agg Aggregate, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   agg.ID,
		AggregateType: agg.Type,
		Version:       envelopeVersion,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Data:          raw,
	}, nil
}

// WithCorrelationID ties the event to the request that caused it.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// SetMetadata records a free-form attribute outside the payload.
func (e *Event) SetMetadata(key, value string) {
	if e.Metadata == nil {
		e.Metadata = map[string]string{}
	}
	e.Metadata[key] = value
}

// Message encodes e for topic. The aggregate ID is the key so one entity's
// events keep their order; type, source and correlation ID are repeated as
// headers for consumers that route without decoding the body.
func (e *Event) Message(topic string) (kafka.Message, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s envelope: %w", e.EventType, err)
	}
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(e.EventType)},
		{Key: "source", Value: []byte(e.Source)},
	}
	if e.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: "correlation_id", Value: []byte(e.CorrelationID)})
	}
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(e.AggregateID),
		Value:   body,
		Headers: headers,
	}, nil
}
