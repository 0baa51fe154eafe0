package automation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"relayengine/internal/models"
)

// EvaluateTrigger evaluates a single trigger against a telemetry document (nil for schedule
// triggers) at the given instant. The bool is false whenever input is missing or cannot be
// coerced. The error is non-nil only for malformed definitions and unknown tags.
func EvaluateTrigger(t models.Trigger, doc models.Document, now time.Time) (bool, error) {
	switch t.TriggerType {
	case models.TriggerBoolean:
		return EvaluateBoolean(t, doc)
	case models.TriggerNumeric:
		return EvaluateNumeric(t, doc)
	case models.TriggerSchedule:
		return EvaluateSchedule(t, now)
	default:
		return false, fmt.Errorf("%w %q", models.ErrUnknownTriggerType, t.TriggerType)
	}
}

// EvaluateBoolean evaluates a dry-contact trigger
func EvaluateBoolean(t models.Trigger, doc models.Document) (bool, error) {
	raw, ok := doc[t.FieldName]
	if !ok {
		return false, nil
	}
	actual, ok := ToBool(raw)
	if !ok {
		return false, nil
	}
	target, ok := ToBool(t.TargetValue)
	if !ok {
		return false, fmt.Errorf("boolean target: %w %v", models.ErrMalformedTarget, t.TargetValue)
	}

	switch t.ConditionOperator {
	case models.OpIs:
		return actual == target, nil
	case models.OpAnd:
		return actual && target, nil
	case models.OpOr:
		return actual || target, nil
	default:
		return false, fmt.Errorf("%w %q for boolean trigger", models.ErrUnknownOperator, t.ConditionOperator)
	}
}

// EvaluateNumeric evaluates a threshold trigger
func EvaluateNumeric(t models.Trigger, doc models.Document) (bool, error) {
	field := t.FieldName
	if field == "" {
		field = models.DefaultNumericField
	}
	raw, ok := doc[field]
	if !ok {
		return false, nil
	}
	actual, ok := ToFloat(raw)
	if !ok {
		return false, nil
	}

	if t.ConditionOperator == models.OpBetween {
		pair, ok := t.TargetValue.([]interface{})
		if !ok || len(pair) != 2 {
			return false, fmt.Errorf("between: %w %v", models.ErrMalformedTarget, t.TargetValue)
		}
		lo, okLo := ToFloat(pair[0])
		hi, okHi := ToFloat(pair[1])
		if !okLo || !okHi {
			return false, nil
		}
		return lo <= actual && actual <= hi, nil
	}

	target, ok := ToFloat(t.TargetValue)
	if !ok {
		return false, nil
	}

	switch t.ConditionOperator {
	case models.OpEquals:
		return actual == target, nil
	case models.OpNotEquals:
		return actual != target, nil
	case models.OpGreaterThan:
		return actual > target, nil
	case models.OpLessThan:
		return actual < target, nil
	case models.OpGreaterEqual:
		return actual >= target, nil
	case models.OpLessEqual:
		return actual <= target, nil
	default:
		return false, fmt.Errorf("%w %q for numeric trigger", models.ErrUnknownOperator, t.ConditionOperator)
	}
}

var truthyStrings = map[string]bool{"true": true, "1": true, "on": true, "high": true}

// ToBool coerces a telemetry value to a boolean.
// Numbers are true when nonzero, strings when they are one of true/1/on/high.
func ToBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		return truthyStrings[strings.ToLower(strings.TrimSpace(b))], true
	case nil:
		return false, false
	}
	if f, ok := numberToFloat(v); ok {
		return f != 0, true
	}
	return false, false
}

// ToFloat converts numbers and numeric strings to float64. NaN is rejected.
func ToFloat(v interface{}) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	f, ok := numberToFloat(v)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func numberToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
