package engine

import (
	"log"
	"time"

	"relayengine/internal/automation"
	"relayengine/internal/models"
	"relayengine/internal/utils"
)

// ScheduleActivationKey is the activation key of schedule-driven passes. It cannot collide
// with an MQTT topic because '@' never starts one produced by the bus.
const ScheduleActivationKey = "@schedule"

type activationKey struct {
	ruleID string
	key    string
}

// evaluateRule composes the rule for one pass and dispatches on an edge. Requires e.mu.
func (e *Engine) evaluateRule(rule *models.Rule, topic, key string, now time.Time) []outbound {
	active := e.composeRule(rule, topic, now)
	e.metrics.evaluation(rule.ID)

	k := activationKey{ruleID: rule.ID, key: key}
	prev := e.activation[k]
	if active == prev {
		utils.Debugf("ENGINE: Rule %s (%s) unchanged: %t", rule.ID, key, active)
		return nil
	}
	e.activation[k] = active

	if active {
		log.Printf("ENGINE: Rule %s (%s) ON via %s", rule.ID, rule.Name, key)
		e.metrics.edge(rule.ID, "on")
		return e.dispatchOn(rule, topic, now)
	}
	log.Printf("ENGINE: Rule %s (%s) OFF via %s", rule.ID, rule.Name, key)
	e.metrics.edge(rule.ID, "off")
	return e.dispatchOff(rule, topic, now)
}

// composeRule ANDs all groups. A rule without groups is never active.
func (e *Engine) composeRule(rule *models.Rule, topic string, now time.Time) bool {
	if len(rule.TriggerGroups) == 0 {
		return false
	}
	for i := range rule.TriggerGroups {
		if !e.composeGroup(rule, &rule.TriggerGroups[i], topic, now) {
			return false
		}
	}
	return true
}

// composeGroup evaluates the triggers of g that belong to this pass: those on the pass
// topic plus schedule triggers. A group with no trigger on the pass topic is evaluated in
// full against the cache, so multi-topic rules see the newest document of every topic.
func (e *Engine) composeGroup(rule *models.Rule, g *models.TriggerGroup, topic string, now time.Time) bool {
	anchored := topic == "" || groupReferences(g, topic)

	results := make([]bool, 0, len(g.Triggers))
	for _, t := range g.Triggers {
		if anchored && t.TriggerType != models.TriggerSchedule && t.DeviceTopic != topic {
			continue
		}
		var doc models.Document
		if t.TriggerType != models.TriggerSchedule {
			doc = e.cache[t.DeviceTopic]
		}
		ok, err := automation.EvaluateTrigger(t, doc, now)
		if err != nil {
			log.Printf("ENGINE: Rule %s trigger on %q: %v", rule.ID, t.DeviceTopic, err)
			e.metrics.evaluationError(rule.ID)
		}
		results = append(results, ok)
	}

	if len(results) == 0 {
		return false
	}
	switch g.GroupOperator {
	case models.GroupAnd:
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	case models.GroupOr:
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	default:
		log.Printf("ENGINE: Rule %s: %v %q", rule.ID, models.ErrUnknownGroupOperator, g.GroupOperator)
		e.metrics.evaluationError(rule.ID)
		return false
	}
}

func groupReferences(g *models.TriggerGroup, topic string) bool {
	for _, t := range g.Triggers {
		if t.TriggerType != models.TriggerSchedule && t.DeviceTopic == topic {
			return true
		}
	}
	return false
}
