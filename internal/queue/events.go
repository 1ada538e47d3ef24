package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the social stream
const (
	EventRelationshipChanged = "relationship_changed"
	EventViewRecorded        = "view_recorded"
)

// Stream names
const (
	StreamSocial = "stream:social"
)

// Consumer group used by `quizctl watch`
const (
	ConsumerGroupWatchers = "social_watchers"
)

// SocialEvent is published by the reference backend after a relationship
// change or a recorded view has been persisted.
type SocialEvent struct {
	Type      string `json:"type"`      // EventRelationshipChanged, EventViewRecorded
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	// Relationship events
	SourceID int64  `json:"source_id,omitempty"`
	TargetID int64  `json:"target_id,omitempty"`
	State    string `json:"state,omitempty"`

	// View events
	EntityID int64 `json:"entity_id,omitempty"`
	Count    int64 `json:"count,omitempty"`
}

func NewRelationshipChangedEvent(sourceID, targetID int64, state string) SocialEvent {
	return SocialEvent{
		Type:      EventRelationshipChanged,
		Timestamp: time.Now().Unix(),
		SourceID:  sourceID,
		TargetID:  targetID,
		State:     state,
	}
}

func NewViewRecordedEvent(entityID, count int64) SocialEvent {
	return SocialEvent{
		Type:      EventViewRecorded,
		Timestamp: time.Now().Unix(),
		EntityID:  entityID,
		Count:     count,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e SocialEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseSocialEvent parses a SocialEvent from Redis stream message values.
func ParseSocialEvent(values map[string]interface{}) (SocialEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return SocialEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event SocialEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return SocialEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}

// String renders the event as a single human readable line.
func (e SocialEvent) String() string {
	ts := time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339)
	switch e.Type {
	case EventRelationshipChanged:
		return fmt.Sprintf("%s %s source=%d target=%d state=%s", ts, e.Type, e.SourceID, e.TargetID, e.State)
	case EventViewRecorded:
		return fmt.Sprintf("%s %s entity=%d count=%d", ts, e.Type, e.EntityID, e.Count)
	default:
		return fmt.Sprintf("%s %s", ts, e.Type)
	}
}
