package engine

import (
	"context"
	"log"
	"sort"
	"time"

	"relayengine/internal/models"
)

// TimerKind distinguishes delayed activation from delayed deactivation
type TimerKind string

const (
	TimerDelayOn  TimerKind = "delay_on"
	TimerDelayOff TimerKind = "delay_off" // reserved; no action field schedules it yet
)

// ActionKey collapses re-triggers of the same action while its timer is pending
type ActionKey struct {
	RuleID string
	Type   models.ActionType
	Device string
	Pin    int
}

func actionKeyFor(ruleID string, a models.Action) ActionKey {
	return ActionKey{RuleID: ruleID, Type: a.ActionType, Device: a.TargetDevice, Pin: a.RelayPin}
}

// PendingTimer is a deferred action awaiting the sweep
type PendingTimer struct {
	Kind     TimerKind
	Start    time.Time
	Duration time.Duration
	Action   models.Action
	RuleID   string
	Topic    string
}

// Expired reports whether the timer has run its full duration at now
func (t *PendingTimer) Expired(now time.Time) bool {
	return now.Sub(t.Start) >= t.Duration
}

// startTimer registers a delay_on timer unless one is already pending for the key.
// Requires e.mu.
func (e *Engine) startTimer(ruleID, topic string, a models.Action, now time.Time) {
	key := actionKeyFor(ruleID, a)
	if existing, ok := e.timers[key]; ok && existing.Kind == TimerDelayOn {
		log.Printf("ENGINE: Rule %s %s already pending since %s, not restarted", ruleID, a.ActionType, existing.Start.Format(time.TimeOnly))
		return
	}
	e.timers[key] = &PendingTimer{
		Kind:     TimerDelayOn,
		Start:    now,
		Duration: a.DelayOnDuration(),
		Action:   a,
		RuleID:   ruleID,
		Topic:    topic,
	}
	e.metrics.timerStarted()
	log.Printf("ENGINE: Rule %s %s delayed by %s", ruleID, a.ActionType, a.DelayOnDuration())
}

// activationKeyOf returns the edge-state key the timer was started under
func (t *PendingTimer) activationKeyOf() activationKey {
	key := t.Topic
	if key == "" {
		key = ScheduleActivationKey
	}
	return activationKey{ruleID: t.RuleID, key: key}
}

// currentAction returns the action of rule that key refers to in the active rule set
func currentAction(rule *models.Rule, key ActionKey) (models.Action, bool) {
	for _, a := range rule.Actions {
		if actionKeyFor(rule.ID, a) == key {
			return a, true
		}
	}
	return models.Action{}, false
}

// SweepTimers completes every pending timer whose duration has elapsed. Elapsed time is
// measured from the recorded start, so a late sweep still fires each timer exactly once.
// A delay_on timer whose rule is no longer active when it expires is abandoned, as is a
// timer whose rule or action was removed. The action runs as currently defined.
func (e *Engine) SweepTimers(ctx context.Context) {
	now := e.now()

	e.mu.Lock()
	type due struct {
		key   ActionKey
		timer *PendingTimer
	}
	var expired []due
	for k, t := range e.timers {
		if t.Expired(now) {
			expired = append(expired, due{key: k, timer: t})
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		if expired[i].timer.Start.Equal(expired[j].timer.Start) {
			return expired[i].key.RuleID < expired[j].key.RuleID
		}
		return expired[i].timer.Start.Before(expired[j].timer.Start)
	})

	var outs []outbound
	for _, d := range expired {
		delete(e.timers, d.key)
		rule, ok := e.rules.byID[d.timer.RuleID]
		if !ok {
			log.Printf("ENGINE: Abandoning %s timer of removed rule %s", d.timer.Kind, d.timer.RuleID)
			e.metrics.timerAbandoned()
			continue
		}
		action, ok := currentAction(rule, d.key)
		if !ok {
			log.Printf("ENGINE: Abandoning %s timer of rule %s: action no longer defined", d.timer.Kind, d.timer.RuleID)
			e.metrics.timerAbandoned()
			continue
		}
		active := e.activation[d.timer.activationKeyOf()]
		if (d.timer.Kind == TimerDelayOn) != active {
			log.Printf("ENGINE: Abandoning %s timer of rule %s: rule changed state before expiry", d.timer.Kind, d.timer.RuleID)
			e.metrics.timerAbandoned()
			continue
		}
		e.metrics.timerFired()
		switch d.timer.Kind {
		case TimerDelayOn:
			outs = append(outs, e.execute(rule, d.timer.Topic, action, true, now)...)
		case TimerDelayOff:
			outs = append(outs, e.execute(rule, d.timer.Topic, action, false, now)...)
		}
	}
	e.mu.Unlock()

	e.deliver(ctx, outs)
}
