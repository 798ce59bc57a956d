package eventgraph

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion tags every compiled payload. Bump it whenever the
// EventSetting shape changes incompatibly.
const SchemaVersion = "1.0"

// FilterCondition is the payload of a Filter record: either a CountFilter or
// a TimeoutFilter, never both.
type FilterCondition interface {
	filterCondition()
}

// CountFilter is the Filter variant compiled from a Count node.
type CountFilter struct {
	Condition string
}

// TimeoutFilter is the Filter variant compiled from a Timeout node.
type TimeoutFilter struct {
	Seconds float64
}

func (CountFilter) filterCondition()   {}
func (TimeoutFilter) filterCondition() {}

// EventSetting is one wire record of the compositor configuration.
type EventSetting struct {
	EventType WireType
	ID        string
	Name      string
	// ParentID is empty for root records.
	ParentID  string
	Points    []Point
	Direction Direction
	// Filter is set only on Filter records.
	Filter FilterCondition
	// Target is derived from the nearest upstream Object node.
	Target *Target
	// Ext is an opaque JSON string; Alarm records carry sensor bindings here.
	Ext string
}

type eventSettingJSON struct {
	EventType WireType  `json:"eventType"`
	ID        string    `json:"eventSettingId"`
	Name      string    `json:"eventSettingName"`
	ParentID  string    `json:"parentId,omitempty"`
	Points    []Point   `json:"points,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	NCond     *string   `json:"ncond,omitempty"`
	Timeout   *float64  `json:"timeout,omitempty"`
	Target    *Target   `json:"target,omitempty"`
	Ext       string    `json:"ext,omitempty"`
}

func (s EventSetting) MarshalJSON() ([]byte, error) {
	raw := eventSettingJSON{
		EventType: s.EventType,
		ID:        s.ID,
		Name:      s.Name,
		ParentID:  s.ParentID,
		Points:    s.Points,
		Direction: s.Direction,
		Target:    s.Target,
		Ext:       s.Ext,
	}
	switch f := s.Filter.(type) {
	case CountFilter:
		raw.NCond = &f.Condition
	case TimeoutFilter:
		raw.Timeout = &f.Seconds
	}
	return json.Marshal(raw)
}

// UnmarshalJSON accepts records from older backends leniently: when both
// ncond and timeout are present, ncond wins.
func (s *EventSetting) UnmarshalJSON(data []byte) error {
	var raw eventSettingJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = EventSetting{
		EventType: raw.EventType,
		ID:        raw.ID,
		Name:      raw.Name,
		ParentID:  raw.ParentID,
		Points:    raw.Points,
		Direction: raw.Direction,
		Target:    raw.Target,
		Ext:       raw.Ext,
	}
	switch {
	case raw.NCond != nil:
		s.Filter = CountFilter{Condition: *raw.NCond}
	case raw.Timeout != nil:
		s.Filter = TimeoutFilter{Seconds: *raw.Timeout}
	}
	return nil
}

// Payload is the body of a save call and the settings of a load call.
type Payload struct {
	Version string         `json:"version"`
	Configs []EventSetting `json:"configs"`
}

// alarmExt is the compositor's shape for one sensor binding inside ext.
type alarmExt struct {
	ID         int64   `json:"id"`
	TypeID     int64   `json:"typeId"`
	AlarmType  int     `json:"alarmType"`
	AlarmValue int     `json:"alarmValue"`
	Duration   float64 `json:"duration"`
	Priority   int     `json:"priority"`
}

// EncodeSensors renders sensor bindings as the ext JSON string. Bindings
// with a non-finite duration cannot be encoded.
func EncodeSensors(sensors []SensorBinding) (string, error) {
	out := make([]alarmExt, len(sensors))
	for i, s := range sensors {
		out[i] = alarmExt{
			ID:         s.SensorID,
			TypeID:     s.SensorTypeID,
			AlarmType:  s.AlarmChannel,
			AlarmValue: s.AlarmValue,
			Duration:   s.DurationSeconds,
			Priority:   s.Priority,
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("eventgraph: encode alarm ext: %w", err)
	}
	return string(b), nil
}

// DecodeSensors parses an ext JSON string back into sensor bindings.
// An empty string or empty array yields nil.
func DecodeSensors(ext string) ([]SensorBinding, error) {
	if ext == "" {
		return nil, nil
	}
	var raw []alarmExt
	if err := json.Unmarshal([]byte(ext), &raw); err != nil {
		return nil, fmt.Errorf("eventgraph: decode alarm ext: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]SensorBinding, len(raw))
	for i, r := range raw {
		out[i] = SensorBinding{
			SensorID:        r.ID,
			SensorTypeID:    r.TypeID,
			AlarmChannel:    r.AlarmType,
			AlarmValue:      r.AlarmValue,
			DurationSeconds: r.Duration,
			Priority:        r.Priority,
		}
	}
	return out, nil
}
