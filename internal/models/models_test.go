package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Defaults(t *testing.T) {
	pin := 3
	r := Rule{
		Name: "  pump guard ",
		TriggerGroups: []TriggerGroup{{
			GroupOperator: "or",
			Triggers: []Trigger{
				{TriggerType: "Numeric", DeviceTopic: "plant/tank", ConditionOperator: "GREATER_THAN", TargetValue: 4.0},
				{TriggerType: "boolean", DeviceTopic: "plant/io", Pin: &pin, TargetValue: true},
				{TriggerType: "schedule", DeviceTopic: "ignored", ScheduleType: "Daily", ActiveDays: []string{"Monday", "TUE"}},
			},
		}, {}},
		Actions: []Action{{ActionType: "Control_Relay", TargetDevice: "plc1"}},
	}
	r.Normalize()

	assert.Equal(t, "pump guard", r.Name)
	g := r.TriggerGroups[0]
	assert.Equal(t, GroupOr, g.GroupOperator)
	assert.Equal(t, GroupAnd, r.TriggerGroups[1].GroupOperator)

	assert.Equal(t, TriggerNumeric, g.Triggers[0].TriggerType)
	assert.Equal(t, DefaultNumericField, g.Triggers[0].FieldName)
	assert.Equal(t, OpGreaterThan, g.Triggers[0].ConditionOperator)

	assert.Equal(t, "input3", g.Triggers[1].FieldName)
	assert.Equal(t, OpIs, g.Triggers[1].ConditionOperator)

	assert.Empty(t, g.Triggers[2].DeviceTopic)
	assert.Equal(t, ScheduleDaily, g.Triggers[2].ScheduleType)
	assert.Equal(t, []string{"mon", "tue"}, g.Triggers[2].ActiveDays)

	assert.Equal(t, ActionControlRelay, r.Actions[0].ActionType)
	require.NoError(t, r.Validate())
}

func TestNormalize_KeepsUnknownDays(t *testing.T) {
	tr := Trigger{TriggerType: "schedule", ScheduleType: "daily", ActiveDays: []string{" Funday ", "Sat"}}
	tr.normalize()
	assert.Equal(t, []string{"funday", "sat"}, tr.ActiveDays)
	assert.ErrorIs(t, tr.Validate(), ErrUnknownDay)
}

func TestAction_DelayOnBounds(t *testing.T) {
	a := Action{ActionType: ActionControlRelay, TargetDevice: "io-1", DelayOn: 1.5}
	assert.Equal(t, 1500*time.Millisecond, a.DelayOnDuration())
	require.NoError(t, a.Validate())

	a.DelayOn = -3
	assert.Zero(t, a.DelayOnDuration())
	assert.Error(t, a.Validate())

	a.DelayOn = 1e300
	assert.Equal(t, MaxDelayOn, a.DelayOnDuration())
	assert.Error(t, a.Validate())

	a.DelayOn = MaxDelayOn.Seconds()
	assert.Equal(t, MaxDelayOn, a.DelayOnDuration())
	assert.NoError(t, a.Validate())
}

func TestNormalize_ExplicitFieldWins(t *testing.T) {
	pin := 7
	tr := Trigger{TriggerType: TriggerBoolean, FieldName: "door_open", Pin: &pin}
	tr.normalize()
	assert.Equal(t, "door_open", tr.FieldName)
}

func TestRule_TopicsAndScheduleOnly(t *testing.T) {
	r := Rule{TriggerGroups: []TriggerGroup{
		{Triggers: []Trigger{
			{TriggerType: TriggerNumeric, DeviceTopic: "a"},
			{TriggerType: TriggerBoolean, DeviceTopic: "b"},
		}},
		{Triggers: []Trigger{
			{TriggerType: TriggerNumeric, DeviceTopic: "a"},
			{TriggerType: TriggerSchedule, ScheduleType: ScheduleDaily},
		}},
	}}
	assert.Equal(t, []string{"a", "b"}, r.Topics())
	assert.False(t, r.IsScheduleOnly())

	s := Rule{TriggerGroups: []TriggerGroup{{Triggers: []Trigger{{TriggerType: TriggerSchedule}}}}}
	assert.True(t, s.IsScheduleOnly())
	assert.Empty(t, s.Topics())

	assert.False(t, (&Rule{}).IsScheduleOnly())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		err  error
	}{
		{
			name: "missing name",
			rule: Rule{},
			err:  ErrMissingField,
		},
		{
			name: "unknown trigger type",
			rule: Rule{Name: "r", TriggerGroups: []TriggerGroup{{GroupOperator: GroupAnd, Triggers: []Trigger{{TriggerType: "analog"}}}}},
			err:  ErrUnknownTriggerType,
		},
		{
			name: "boolean operator on numeric trigger",
			rule: Rule{Name: "r", TriggerGroups: []TriggerGroup{{GroupOperator: GroupAnd, Triggers: []Trigger{
				{TriggerType: TriggerNumeric, DeviceTopic: "t", FieldName: "value", ConditionOperator: OpIs},
			}}}},
			err: ErrUnknownOperator,
		},
		{
			name: "between needs a pair",
			rule: Rule{Name: "r", TriggerGroups: []TriggerGroup{{GroupOperator: GroupAnd, Triggers: []Trigger{
				{TriggerType: TriggerNumeric, DeviceTopic: "t", FieldName: "value", ConditionOperator: OpBetween, TargetValue: []interface{}{1.0}},
			}}}},
			err: ErrMalformedTarget,
		},
		{
			name: "bad time range",
			rule: Rule{Name: "r", TriggerGroups: []TriggerGroup{{GroupOperator: GroupAnd, Triggers: []Trigger{
				{TriggerType: TriggerSchedule, ScheduleType: ScheduleTimeRange, StartTime: "25:00", EndTime: "06:00"},
			}}}},
			err: ErrMalformedTime,
		},
		{
			name: "unknown weekday",
			rule: Rule{Name: "r", TriggerGroups: []TriggerGroup{{GroupOperator: GroupAnd, Triggers: []Trigger{
				{TriggerType: TriggerSchedule, ScheduleType: ScheduleDaily, ActiveDays: []string{"mon", "funday"}},
			}}}},
			err: ErrUnknownDay,
		},
		{
			name: "unknown action",
			rule: Rule{Name: "r", Actions: []Action{{ActionType: "open_valve"}}},
			err:  ErrUnknownActionType,
		},
		{
			name: "relay without device",
			rule: Rule{Name: "r", Actions: []Action{{ActionType: ActionControlRelay}}},
			err:  ErrMissingField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, 7*60+5, c.Minutes())
	assert.Equal(t, "07:05", c.String())

	for _, bad := range []string{"", "7", "24:00", "12:60", "ab:cd"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrMalformedTime, bad)
	}
}

func TestRule_JSONRoundTripKeepsPairTarget(t *testing.T) {
	raw := `{"name":"band","enabled":true,"trigger_groups":[{"group_operator":"AND","triggers":[
		{"trigger_type":"numeric","device_topic":"t","condition_operator":"between","target_value":[10,20]}]}],
		"actions":[{"action_type":"control_relay","target_device":"plc","relay_pin":2,"target_value":true,"delay_on":1.5}]}`
	var r Rule
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	r.Normalize()
	require.NoError(t, r.Validate())
	assert.Equal(t, []interface{}{10.0, 20.0}, r.TriggerGroups[0].Triggers[0].TargetValue)
	assert.Equal(t, int64(1500), r.Actions[0].DelayOnDuration().Milliseconds())
}
