package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Document is a normalized telemetry document as delivered by a device topic
type Document map[string]interface{}

// Device represents a field device known to the inventory
type Device struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	State     json.RawMessage `json:"state"`
	MQTTTopic string          `json:"mqtt_topic"`
	Accepted  bool            `json:"accepted"`
	OwnerID   *string         `json:"owner_id"`
}

// Rule is one automation definition. Groups are AND-ed.
type Rule struct {
	ID            string         `json:"id" mapstructure:"id"`
	Name          string         `json:"name" mapstructure:"name"`
	Enabled       bool           `json:"enabled" mapstructure:"enabled"`
	OwnerID       string         `json:"owner_id,omitempty" mapstructure:"owner_id"`
	TriggerGroups []TriggerGroup `json:"trigger_groups" mapstructure:"trigger_groups"`
	Actions       []Action       `json:"actions" mapstructure:"actions"`
}

// TriggerGroup combines its triggers with GroupOperator
type TriggerGroup struct {
	GroupOperator GroupOperator `json:"group_operator" mapstructure:"group_operator"`
	Triggers      []Trigger     `json:"triggers" mapstructure:"triggers"`
}

// Trigger is a single condition
type Trigger struct {
	TriggerType       TriggerType       `json:"trigger_type" mapstructure:"trigger_type"`
	DeviceTopic       string            `json:"device_topic,omitempty" mapstructure:"device_topic"`
	FieldName         string            `json:"field_name,omitempty" mapstructure:"field_name"`
	Pin               *int              `json:"pin,omitempty" mapstructure:"pin"` // legacy dry-contact input number
	ConditionOperator ConditionOperator `json:"condition_operator,omitempty" mapstructure:"condition_operator"`
	TargetValue       interface{}       `json:"target_value,omitempty" mapstructure:"target_value"`

	ScheduleType ScheduleType `json:"schedule_type,omitempty" mapstructure:"schedule_type"`
	StartTime    string       `json:"start_time,omitempty" mapstructure:"start_time"`
	EndTime      string       `json:"end_time,omitempty" mapstructure:"end_time"`
	SpecificTime string       `json:"specific_time,omitempty" mapstructure:"specific_time"`
	ActiveDays   []string     `json:"active_days,omitempty" mapstructure:"active_days"`
}

// Action is executed when the owning rule changes state
type Action struct {
	ActionType ActionType `json:"action_type" mapstructure:"action_type"`

	TargetDevice  string `json:"target_device,omitempty" mapstructure:"target_device"`
	TargetAddress int    `json:"target_address,omitempty" mapstructure:"target_address"`
	TargetBus     int    `json:"target_bus,omitempty" mapstructure:"target_bus"`
	RelayPin      int    `json:"relay_pin,omitempty" mapstructure:"relay_pin"`
	TargetValue   bool   `json:"target_value" mapstructure:"target_value"`
	Latching      bool   `json:"latching,omitempty" mapstructure:"latching"`

	DelayOn float64 `json:"delay_on,omitempty" mapstructure:"delay_on"` // seconds

	Destination string `json:"destination,omitempty" mapstructure:"destination"`
	Message     string `json:"message,omitempty" mapstructure:"message"`
}

// MaxDelayOn bounds delay_on
const MaxDelayOn = 7 * 24 * time.Hour

// DelayOnDuration returns delay_on as a duration; negative values count as zero and
// values above MaxDelayOn are clamped to it
func (a Action) DelayOnDuration() time.Duration {
	if a.DelayOn <= 0 || math.IsNaN(a.DelayOn) {
		return 0
	}
	if a.DelayOn >= MaxDelayOn.Seconds() {
		return MaxDelayOn
	}
	return time.Duration(a.DelayOn * float64(time.Second))
}

// RelayCommand is handed to the device-control collaborator
type RelayCommand struct {
	RuleID        string `json:"rule_id,omitempty"`
	TargetDevice  string `json:"target_device"`
	TargetAddress int    `json:"address"`
	TargetBus     int    `json:"bus"`
	RelayPin      int    `json:"pin"`
	Value         bool   `json:"value"`
}

// Notification is handed to the notification collaborator
type Notification struct {
	RuleID      string `json:"rule_id,omitempty"`
	Destination string `json:"destination"`
	Text        string `json:"text"`
}

// ActionLogEntry records a delivered action
type ActionLogEntry struct {
	RuleID     string          `json:"rule_id"`
	ActionType ActionType      `json:"action_type"`
	Target     string          `json:"target"`
	Payload    json.RawMessage `json:"payload"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// OutputKey identifies a physical relay output
type OutputKey struct {
	Device  string `json:"device"`
	Address int    `json:"address"`
	Bus     int    `json:"bus"`
	Pin     int    `json:"pin"`
}

// OutputKeyFor returns the physical output an action drives
func OutputKeyFor(a Action) OutputKey {
	return OutputKey{Device: a.TargetDevice, Address: a.TargetAddress, Bus: a.TargetBus, Pin: a.RelayPin}
}

// String renders the key as device/address/bus/pin
func (k OutputKey) String() string {
	return fmt.Sprintf("%s/%d/%d/%d", k.Device, k.Address, k.Bus, k.Pin)
}

// ParseOutputKey is the inverse of OutputKey.String
func ParseOutputKey(s string) (OutputKey, error) {
	i := strings.LastIndex(s, "/")
	j := strings.LastIndex(s[:max(i, 0)], "/")
	k := strings.LastIndex(s[:max(j, 0)], "/")
	if i < 0 || j < 0 || k < 0 {
		return OutputKey{}, fmt.Errorf("malformed output key %q", s)
	}
	var key OutputKey
	key.Device = s[:k]
	if _, err := fmt.Sscanf(s[k+1:], "%d/%d/%d", &key.Address, &key.Bus, &key.Pin); err != nil {
		return OutputKey{}, fmt.Errorf("malformed output key %q: %w", s, err)
	}
	return key, nil
}

// Operator is an authenticated user of the REST API
type Operator struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
