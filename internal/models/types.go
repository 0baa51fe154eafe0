package models

import (
	"errors"
	"strings"
)

// Definition errors. Evaluation treats all of them as "condition false" / "action skipped".
var (
	ErrUnknownTriggerType   = errors.New("unknown trigger type")
	ErrUnknownOperator      = errors.New("unknown condition operator")
	ErrUnknownScheduleType  = errors.New("unknown schedule type")
	ErrUnknownGroupOperator = errors.New("unknown group operator")
	ErrUnknownActionType    = errors.New("unknown action type")
	ErrMalformedTarget      = errors.New("malformed target value")
	ErrMalformedTime        = errors.New("malformed time of day")
	ErrMissingField         = errors.New("missing required field")
	ErrUnknownDay           = errors.New("unknown weekday")
)

// TriggerType selects the evaluator for a trigger
type TriggerType string

const (
	TriggerBoolean  TriggerType = "boolean"
	TriggerNumeric  TriggerType = "numeric"
	TriggerSchedule TriggerType = "schedule"
)

func (t TriggerType) Valid() bool {
	switch t {
	case TriggerBoolean, TriggerNumeric, TriggerSchedule:
		return true
	}
	return false
}

// ConditionOperator is the comparison applied by boolean and numeric triggers
type ConditionOperator string

const (
	// boolean
	OpIs  ConditionOperator = "is"
	OpAnd ConditionOperator = "and"
	OpOr  ConditionOperator = "or"

	// numeric
	OpEquals       ConditionOperator = "equals"
	OpNotEquals    ConditionOperator = "not_equals"
	OpGreaterThan  ConditionOperator = "greater_than"
	OpLessThan     ConditionOperator = "less_than"
	OpGreaterEqual ConditionOperator = "greater_equal"
	OpLessEqual    ConditionOperator = "less_equal"
	OpBetween      ConditionOperator = "between"
)

// ValidFor reports whether the operator applies to the given trigger type
func (o ConditionOperator) ValidFor(t TriggerType) bool {
	switch t {
	case TriggerBoolean:
		return o == OpIs || o == OpAnd || o == OpOr
	case TriggerNumeric:
		switch o {
		case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpGreaterEqual, OpLessEqual, OpBetween:
			return true
		}
	case TriggerSchedule:
		return true
	}
	return false
}

// ScheduleType selects the schedule window semantics
type ScheduleType string

const (
	ScheduleDaily        ScheduleType = "daily"
	ScheduleTimeRange    ScheduleType = "time_range"
	ScheduleSpecificTime ScheduleType = "specific_time"
)

func (s ScheduleType) Valid() bool {
	switch s {
	case ScheduleDaily, ScheduleTimeRange, ScheduleSpecificTime:
		return true
	}
	return false
}

// GroupOperator combines triggers inside a group
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

func (g GroupOperator) Valid() bool {
	return g == GroupAnd || g == GroupOr
}

// ActionType selects the action executor
type ActionType string

const (
	ActionControlRelay ActionType = "control_relay"
	ActionSendMessage  ActionType = "send_message"
)

func (a ActionType) Valid() bool {
	return a == ActionControlRelay || a == ActionSendMessage
}

// Weekdays in the order of time.Weekday
var Weekdays = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// NormalizeDay maps "Monday", "MON" or "mon" to "mon"; unknown names return ""
func NormalizeDay(day string) string {
	d := strings.ToLower(strings.TrimSpace(day))
	if len(d) < 3 {
		return ""
	}
	d = d[:3]
	for _, w := range Weekdays {
		if w == d {
			return w
		}
	}
	return ""
}
