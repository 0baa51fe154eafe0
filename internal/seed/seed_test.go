package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayengine/internal/models"
)

const sample = `
owner_id: "1"
rules:
  - id: fan
    name: Fan on when hot
    enabled: true
    trigger_groups:
      - group_operator: and
        triggers:
          - trigger_type: numeric
            device_topic: plant/temp
            condition_operator: between
            target_value: [20, 30]
    actions:
      - action_type: control_relay
        target_device: io-1
        relay_pin: 2
        target_value: true
        delay_on: 5
  - name: Night light
    enabled: true
    owner_id: "2"
    trigger_groups:
      - triggers:
          - trigger_type: schedule
            schedule_type: time_range
            start_time: "22:00"
            end_time: "06:00"
            active_days: [Mon, tuesday]
    actions:
      - action_type: send_message
        destination: "+4912345"
        message: "lights on for {{.RuleName}}"
  - name: Door contact
    enabled: false
    trigger_groups:
      - triggers:
          - trigger_type: boolean
            device_topic: io/inputs
            pin: 3
            target_value: true
    actions: []
`

func TestDecode(t *testing.T) {
	rules, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, rules, 3)

	fan := rules[0]
	assert.Equal(t, "fan", fan.ID)
	assert.Equal(t, "1", fan.OwnerID)
	assert.Equal(t, models.GroupAnd, fan.TriggerGroups[0].GroupOperator)
	assert.Equal(t, "value", fan.TriggerGroups[0].Triggers[0].FieldName)
	assert.Len(t, fan.TriggerGroups[0].Triggers[0].TargetValue, 2)
	assert.Equal(t, 5.0, fan.Actions[0].DelayOn)
	assert.Equal(t, 2, fan.Actions[0].RelayPin)

	night := rules[1]
	assert.NotEmpty(t, night.ID)
	assert.Equal(t, "2", night.OwnerID)
	assert.True(t, night.IsScheduleOnly())
	assert.Equal(t, []string{"mon", "tue"}, night.TriggerGroups[0].Triggers[0].ActiveDays)

	door := rules[2]
	assert.False(t, door.Enabled)
	assert.Equal(t, "input3", door.TriggerGroups[0].Triggers[0].FieldName)
}

func TestDecode_StableIDs(t *testing.T) {
	a, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	b, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, a[1].ID, b[1].ID)
	assert.NotEqual(t, a[1].ID, a[2].ID)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown_key", "rules:\n  - name: x\n    colour: red\n"},
		{"invalid_rule", "rules:\n  - name: x\n    actions:\n      - action_type: explode\n"},
		{"bad_yaml", "rules: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	rules, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

type fakeUpserter struct {
	rules  []models.Rule
	failOn string
}

func (f *fakeUpserter) UpsertRule(_ context.Context, r models.Rule) error {
	if r.ID == f.failOn {
		return errors.New("db down")
	}
	f.rules = append(f.rules, r)
	return nil
}

func TestImport(t *testing.T) {
	rules, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	store := &fakeUpserter{}
	n, err := Import(context.Background(), store, rules)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, store.rules, 3)

	store = &fakeUpserter{failOn: "fan"}
	n, err = Import(context.Background(), store, rules)
	assert.Error(t, err)
	assert.Equal(t, 0, n)
}
