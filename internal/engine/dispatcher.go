package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"text/template"
	"time"

	"relayengine/internal/models"
)

type outboundKind int

const (
	outRelay outboundKind = iota
	outNotify
	outLatch
)

// outbound is collaborator I/O collected under e.mu and delivered after it is released
type outbound struct {
	kind   outboundKind
	ruleID string
	relay  models.RelayCommand
	note   models.Notification
	latch  models.OutputKey
	value  bool
}

// MessageData is what send_message templates are rendered with
type MessageData struct {
	RuleID   string
	RuleName string
	Topic    string
	Data     models.Document
	Time     time.Time
}

// dispatchOn handles an ON edge. Requires e.mu.
func (e *Engine) dispatchOn(rule *models.Rule, topic string, now time.Time) []outbound {
	var outs []outbound
	for _, a := range rule.Actions {
		if a.DelayOnDuration() > 0 {
			e.startTimer(rule.ID, topic, a, now)
			continue
		}
		outs = append(outs, e.execute(rule, topic, a, true, now)...)
	}
	return outs
}

// dispatchOff handles an OFF edge: relay actions send their complement immediately,
// whatever their delay, and messages are never sent. Requires e.mu.
func (e *Engine) dispatchOff(rule *models.Rule, topic string, now time.Time) []outbound {
	var outs []outbound
	for _, a := range rule.Actions {
		if a.ActionType != models.ActionControlRelay {
			continue
		}
		outs = append(outs, e.execute(rule, topic, a, false, now)...)
	}
	return outs
}

// execute resolves one action into outbound I/O. Requires e.mu.
func (e *Engine) execute(rule *models.Rule, topic string, a models.Action, on bool, now time.Time) []outbound {
	switch a.ActionType {
	case models.ActionControlRelay:
		if a.TargetDevice == "" {
			log.Printf("ENGINE: Rule %s relay action skipped: target_device: %v", rule.ID, models.ErrMissingField)
			return nil
		}
		value, send := e.resolveRelay(a, on)
		if !send {
			return nil
		}
		outs := []outbound{{
			kind:   outRelay,
			ruleID: rule.ID,
			relay: models.RelayCommand{
				RuleID:        rule.ID,
				TargetDevice:  a.TargetDevice,
				TargetAddress: a.TargetAddress,
				TargetBus:     a.TargetBus,
				RelayPin:      a.RelayPin,
				Value:         value,
			},
		}}
		if a.Latching && e.persistLatches {
			outs = append(outs, outbound{kind: outLatch, ruleID: rule.ID, latch: models.OutputKeyFor(a), value: value})
		}
		return outs

	case models.ActionSendMessage:
		if !on {
			return nil
		}
		text, err := e.renderMessage(a.Message, MessageData{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Topic:    topic,
			Data:     e.cache[topic],
			Time:     now,
		})
		if err != nil {
			log.Printf("ENGINE: Rule %s message skipped: %v", rule.ID, err)
			return nil
		}
		return []outbound{{
			kind:   outNotify,
			ruleID: rule.ID,
			note:   models.Notification{RuleID: rule.ID, Destination: a.Destination, Text: text},
		}}

	default:
		log.Printf("ENGINE: Rule %s: %v %q", rule.ID, models.ErrUnknownActionType, a.ActionType)
		e.metrics.evaluationError(rule.ID)
		return nil
	}
}

// renderMessage executes the message as a text/template. Plain text passes through.
// Requires e.mu.
func (e *Engine) renderMessage(text string, data MessageData) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, ok := e.templates[text]
	if !ok {
		var err error
		tmpl, err = template.New("message").Option("missingkey=zero").Parse(text)
		if err != nil {
			return "", fmt.Errorf("parse message template: %w", err)
		}
		e.templates[text] = tmpl
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render message template: %w", err)
	}
	return sb.String(), nil
}

// deliver hands collected I/O to the collaborators. A failed delivery is logged and
// counted; the remaining items are still delivered.
func (e *Engine) deliver(ctx context.Context, outs []outbound) {
	for _, o := range outs {
		switch o.kind {
		case outRelay:
			err := e.deps.Relays.SetRelay(ctx, o.relay)
			if err != nil {
				log.Printf("ENGINE: Rule %s failed to set %s pin %d=%t: %v", o.ruleID, o.relay.TargetDevice, o.relay.RelayPin, o.relay.Value, err)
			} else {
				log.Printf("ENGINE: Rule %s set %s pin %d=%t", o.ruleID, o.relay.TargetDevice, o.relay.RelayPin, o.relay.Value)
			}
			e.metrics.action(string(models.ActionControlRelay), err)
			e.recordAction(o.ruleID, models.ActionControlRelay, o.relay.TargetDevice, o.relay, err)

		case outNotify:
			var err error
			if e.deps.Notifier == nil {
				err = fmt.Errorf("no notifier configured")
			} else {
				err = e.deps.Notifier.Notify(ctx, o.note)
			}
			if err != nil {
				log.Printf("ENGINE: Rule %s failed to notify %s: %v", o.ruleID, o.note.Destination, err)
			}
			e.metrics.action(string(models.ActionSendMessage), err)
			e.recordAction(o.ruleID, models.ActionSendMessage, o.note.Destination, o.note, err)

		case outLatch:
			if e.deps.Latches == nil {
				continue
			}
			if err := e.deps.Latches.SaveLatch(ctx, o.latch, o.value); err != nil {
				log.Printf("ENGINE: Failed to persist latch %s: %v", o.latch, err)
			}
		}
	}
}

func (e *Engine) recordAction(ruleID string, t models.ActionType, target string, payload interface{}, deliveryErr error) {
	if e.deps.ActionLog == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ENGINE: Failed to encode action log payload: %v", err)
		return
	}
	entry := models.ActionLogEntry{
		RuleID:     ruleID,
		ActionType: t,
		Target:     target,
		Payload:    raw,
		CreatedAt:  e.clock(),
	}
	if deliveryErr != nil {
		entry.Error = deliveryErr.Error()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.deps.ActionLog.LogAction(ctx, entry); err != nil {
			log.Printf("ENGINE: Failed to write action log for rule %s: %v", ruleID, err)
		}
	}()
}
