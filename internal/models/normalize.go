package models

import (
	"fmt"
	"strings"
)

// DefaultNumericField is read by numeric triggers without a field_name
const DefaultNumericField = "value"

// LegacyPinField returns the field name older dry-contact rules implied by their pin number
func LegacyPinField(pin int) string {
	return fmt.Sprintf("input%d", pin)
}

// Normalize canonicalises tags and fills implicit defaults once, at load time.
// It never fails; use Validate to reject malformed definitions.
func (r *Rule) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	for gi := range r.TriggerGroups {
		g := &r.TriggerGroups[gi]
		g.GroupOperator = GroupOperator(strings.ToUpper(strings.TrimSpace(string(g.GroupOperator))))
		if g.GroupOperator == "" {
			g.GroupOperator = GroupAnd
		}
		for ti := range g.Triggers {
			g.Triggers[ti].normalize()
		}
	}
	for ai := range r.Actions {
		a := &r.Actions[ai]
		a.ActionType = ActionType(strings.ToLower(strings.TrimSpace(string(a.ActionType))))
	}
}

func (t *Trigger) normalize() {
	t.TriggerType = TriggerType(strings.ToLower(strings.TrimSpace(string(t.TriggerType))))
	t.ConditionOperator = ConditionOperator(strings.ToLower(strings.TrimSpace(string(t.ConditionOperator))))
	t.ScheduleType = ScheduleType(strings.ToLower(strings.TrimSpace(string(t.ScheduleType))))

	switch t.TriggerType {
	case TriggerNumeric:
		if t.FieldName == "" {
			t.FieldName = DefaultNumericField
		}
	case TriggerBoolean:
		if t.FieldName == "" && t.Pin != nil {
			t.FieldName = LegacyPinField(*t.Pin)
		}
		if t.ConditionOperator == "" {
			t.ConditionOperator = OpIs
		}
	case TriggerSchedule:
		t.DeviceTopic = ""
	}

	if len(t.ActiveDays) > 0 {
		days := make([]string, 0, len(t.ActiveDays))
		for _, d := range t.ActiveDays {
			// unknown names are kept so they fail validation and never match
			if nd := NormalizeDay(d); nd != "" {
				days = append(days, nd)
			} else {
				days = append(days, strings.ToLower(strings.TrimSpace(d)))
			}
		}
		t.ActiveDays = days
	}
}

// IsScheduleOnly reports whether every trigger of the rule is a schedule trigger
func (r *Rule) IsScheduleOnly() bool {
	found := false
	for _, g := range r.TriggerGroups {
		for _, t := range g.Triggers {
			if t.TriggerType != TriggerSchedule {
				return false
			}
			found = true
		}
	}
	return found
}

// Topics returns the distinct device topics referenced by the rule, in first-seen order
func (r *Rule) Topics() []string {
	seen := make(map[string]bool)
	var topics []string
	for _, g := range r.TriggerGroups {
		for _, t := range g.Triggers {
			if t.TriggerType == TriggerSchedule || t.DeviceTopic == "" || seen[t.DeviceTopic] {
				continue
			}
			seen[t.DeviceTopic] = true
			topics = append(topics, t.DeviceTopic)
		}
	}
	return topics
}

// Validate checks a normalized rule. The API rejects rules that fail it.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name: %w", ErrMissingField)
	}
	for gi, g := range r.TriggerGroups {
		if !g.GroupOperator.Valid() {
			return fmt.Errorf("trigger_groups[%d]: %w %q", gi, ErrUnknownGroupOperator, g.GroupOperator)
		}
		for ti, t := range g.Triggers {
			if err := t.Validate(); err != nil {
				return fmt.Errorf("trigger_groups[%d].triggers[%d]: %w", gi, ti, err)
			}
		}
	}
	for ai, a := range r.Actions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("actions[%d]: %w", ai, err)
		}
	}
	return nil
}

// Validate checks a single normalized trigger
func (t Trigger) Validate() error {
	if !t.TriggerType.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownTriggerType, t.TriggerType)
	}
	if t.TriggerType == TriggerSchedule {
		for _, d := range t.ActiveDays {
			if NormalizeDay(d) == "" {
				return fmt.Errorf("active_days: %w %q", ErrUnknownDay, d)
			}
		}
		if !t.ScheduleType.Valid() {
			return fmt.Errorf("%w %q", ErrUnknownScheduleType, t.ScheduleType)
		}
		switch t.ScheduleType {
		case ScheduleTimeRange:
			if _, err := ParseClock(t.StartTime); err != nil {
				return fmt.Errorf("start_time: %w", err)
			}
			if _, err := ParseClock(t.EndTime); err != nil {
				return fmt.Errorf("end_time: %w", err)
			}
		case ScheduleSpecificTime:
			if _, err := ParseClock(t.SpecificTime); err != nil {
				return fmt.Errorf("specific_time: %w", err)
			}
		}
		return nil
	}
	if t.DeviceTopic == "" {
		return fmt.Errorf("device_topic: %w", ErrMissingField)
	}
	if t.FieldName == "" {
		return fmt.Errorf("field_name: %w", ErrMissingField)
	}
	if !t.ConditionOperator.ValidFor(t.TriggerType) {
		return fmt.Errorf("%w %q for %s trigger", ErrUnknownOperator, t.ConditionOperator, t.TriggerType)
	}
	if t.ConditionOperator == OpBetween {
		if pair, ok := t.TargetValue.([]interface{}); !ok || len(pair) != 2 {
			return fmt.Errorf("between: %w", ErrMalformedTarget)
		}
	}
	return nil
}

// Validate checks a single normalized action
func (a Action) Validate() error {
	switch a.ActionType {
	case ActionControlRelay:
		if a.TargetDevice == "" {
			return fmt.Errorf("target_device: %w", ErrMissingField)
		}
	case ActionSendMessage:
		if a.Destination == "" {
			return fmt.Errorf("destination: %w", ErrMissingField)
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownActionType, a.ActionType)
	}
	if a.DelayOn < 0 {
		return fmt.Errorf("delay_on must not be negative")
	}
	if a.DelayOn > MaxDelayOn.Seconds() {
		return fmt.Errorf("delay_on must not exceed %s", MaxDelayOn)
	}
	return nil
}
