package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"text/template"
	"time"

	"relayengine/internal/automation"
	"relayengine/internal/models"
	"relayengine/internal/utils"
)

// RuleSource supplies the active rule set (the configuration store)
type RuleSource interface {
	GetAllRules(ctx context.Context) ([]models.Rule, error)
}

// RelayController encodes and publishes relay commands
type RelayController interface {
	SetRelay(ctx context.Context, cmd models.RelayCommand) error
}

// Notifier delivers notification messages
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// TelemetryHandler receives decoded telemetry documents
type TelemetryHandler = func(topic string, doc models.Document)

// TelemetrySubscriber subscribes the engine to device topics
type TelemetrySubscriber interface {
	Subscribe(topic string, handler TelemetryHandler) error
}

// StateMirror publishes the latest telemetry for other readers
type StateMirror interface {
	SaveTelemetry(ctx context.Context, topic string, doc models.Document) error
}

// LatchStore persists latching output state across restarts
type LatchStore interface {
	LoadLatches(ctx context.Context) (map[models.OutputKey]bool, error)
	SaveLatch(ctx context.Context, key models.OutputKey, value bool) error
}

// ActionLogger records delivered actions
type ActionLogger interface {
	LogAction(ctx context.Context, entry models.ActionLogEntry) error
}

// BoundaryScheduler runs fn at every cron spec, replacing previously registered specs
type BoundaryScheduler interface {
	ReplaceBoundaryJobs(specs []string, fn func()) error
}

// Dependencies are the collaborators of the engine. Rules and Relays are required.
type Dependencies struct {
	Rules      RuleSource
	Relays     RelayController
	Notifier   Notifier
	Subscriber TelemetrySubscriber
	Mirror     StateMirror
	Latches    LatchStore
	ActionLog  ActionLogger
	Boundaries BoundaryScheduler
}

// Option configures an Engine
type Option func(*Engine)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock = now }
}

// WithLocation sets the time zone schedule triggers are evaluated in
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithMetrics attaches Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLatchPersistence restores and persists latch state through deps.Latches
func WithLatchPersistence(enabled bool) Option {
	return func(e *Engine) { e.persistLatches = enabled }
}

// ruleSet is an immutable snapshot of the enabled rules
type ruleSet struct {
	rules    []*models.Rule
	byID     map[string]*models.Rule
	byTopic  map[string][]*models.Rule
	schedule []*models.Rule
}

func newRuleSet(rules []models.Rule) *ruleSet {
	rs := &ruleSet{
		byID:    make(map[string]*models.Rule),
		byTopic: make(map[string][]*models.Rule),
	}
	for i := range rules {
		r := rules[i]
		if !r.Enabled {
			continue
		}
		r.Normalize()
		rp := &r
		rs.rules = append(rs.rules, rp)
		rs.byID[r.ID] = rp
		if r.IsScheduleOnly() {
			rs.schedule = append(rs.schedule, rp)
			continue
		}
		for _, topic := range r.Topics() {
			rs.byTopic[topic] = append(rs.byTopic[topic], rp)
		}
	}
	return rs
}

// Engine evaluates rules against telemetry and schedules and drives actions.
// All runtime state is guarded by mu; collaborator I/O happens after mu is released.
type Engine struct {
	deps           Dependencies
	clock          func() time.Time
	loc            *time.Location
	metrics        *Metrics
	persistLatches bool

	reloadMu sync.Mutex

	mu         sync.Mutex
	rules      *ruleSet
	cache      map[string]models.Document
	activation map[activationKey]bool
	timers     map[ActionKey]*PendingTimer
	latches    map[models.OutputKey]bool
	subscribed map[string]bool
	templates  map[string]*template.Template
}

// NewEngine creates a new engine instance
func NewEngine(deps Dependencies, opts ...Option) *Engine {
	e := &Engine{
		deps:       deps,
		clock:      time.Now,
		loc:        time.Local,
		rules:      newRuleSet(nil),
		cache:      make(map[string]models.Document),
		activation: make(map[activationKey]bool),
		timers:     make(map[ActionKey]*PendingTimer),
		latches:    make(map[models.OutputKey]bool),
		subscribed: make(map[string]bool),
		templates:  make(map[string]*template.Template),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) now() time.Time {
	return e.clock().In(e.loc)
}

// Start restores latch state (when enabled) and loads the rule set
func (e *Engine) Start(ctx context.Context) error {
	if e.persistLatches && e.deps.Latches != nil {
		latches, err := e.deps.Latches.LoadLatches(ctx)
		if err != nil {
			log.Printf("ENGINE: Failed to restore latch state: %v", err)
		} else {
			e.mu.Lock()
			for k, v := range latches {
				e.latches[k] = v
			}
			e.mu.Unlock()
			log.Printf("ENGINE: Restored %d latch states", len(latches))
		}
	}

	if err := e.ReloadRules(ctx); err != nil {
		return err
	}
	log.Println("ENGINE: Engine started")
	return nil
}

// Stop logs outstanding timers; they are abandoned with the process
func (e *Engine) Stop() {
	e.mu.Lock()
	pending := len(e.timers)
	e.mu.Unlock()
	log.Printf("ENGINE: Engine stopped (%d pending timers abandoned)", pending)
}

// ReloadRules swaps in the current rule set from the rule source, rebuilds the topic index
// and subscribes to newly referenced topics
func (e *Engine) ReloadRules(ctx context.Context) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	rules, err := e.deps.Rules.GetAllRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	rs := newRuleSet(rules)

	e.mu.Lock()
	e.rules = rs
	for k := range e.activation {
		if _, ok := rs.byID[k.ruleID]; !ok {
			delete(e.activation, k)
		}
	}
	var newTopics []string
	for topic := range rs.byTopic {
		if !e.subscribed[topic] {
			newTopics = append(newTopics, topic)
		}
	}
	e.mu.Unlock()

	sort.Strings(newTopics)
	log.Printf("ENGINE: Loaded %d enabled rules (%d schedule-only, %d topics)", len(rs.rules), len(rs.schedule), len(rs.byTopic))
	e.metrics.setRulesLoaded(len(rs.rules))

	if e.deps.Subscriber != nil {
		for _, topic := range newTopics {
			if err := e.deps.Subscriber.Subscribe(topic, e.onTelemetry); err != nil {
				log.Printf("ENGINE: Failed to subscribe to %s: %v", topic, err)
				continue
			}
			e.mu.Lock()
			e.subscribed[topic] = true
			e.mu.Unlock()
			log.Printf("ENGINE: Subscribed to telemetry topic %s", topic)
		}
	}

	if e.deps.Boundaries != nil {
		normalized := make([]models.Rule, 0, len(rs.schedule))
		for _, r := range rs.schedule {
			normalized = append(normalized, *r)
		}
		specs := automation.BoundarySpecs(normalized)
		if err := e.deps.Boundaries.ReplaceBoundaryJobs(specs, func() {
			e.EvaluateSchedules(context.Background())
		}); err != nil {
			log.Printf("ENGINE: Failed to register schedule boundaries: %v", err)
		}
	}
	return nil
}

func (e *Engine) onTelemetry(topic string, doc models.Document) {
	e.HandleTelemetry(context.Background(), topic, doc)
}

// HandleTelemetry caches the document and evaluates every rule that references topic
func (e *Engine) HandleTelemetry(ctx context.Context, topic string, doc models.Document) {
	now := e.now()
	e.metrics.telemetry(topic)
	utils.Debugf("ENGINE: Telemetry from %s on %s: %v", utils.DeviceFromTopic(topic), topic, doc)

	e.mu.Lock()
	e.cache[topic] = doc
	rules := e.rules.byTopic[topic]
	var outs []outbound
	for _, r := range rules {
		outs = append(outs, e.evaluateRule(r, topic, topic, now)...)
	}
	e.mu.Unlock()

	if e.deps.Mirror != nil {
		if err := e.deps.Mirror.SaveTelemetry(ctx, topic, doc); err != nil {
			log.Printf("ENGINE: Failed to mirror telemetry for %s: %v", topic, err)
		}
	}
	e.deliver(ctx, outs)
}

// EvaluateSchedules evaluates every schedule-only rule at the current time
func (e *Engine) EvaluateSchedules(ctx context.Context) {
	now := e.now()

	e.mu.Lock()
	var outs []outbound
	for _, r := range e.rules.schedule {
		outs = append(outs, e.evaluateRule(r, "", ScheduleActivationKey, now)...)
	}
	e.mu.Unlock()

	e.deliver(ctx, outs)
}

// TimerStatus describes a pending delayed action
type TimerStatus struct {
	RuleID    string            `json:"rule_id"`
	Kind      TimerKind         `json:"kind"`
	Action    models.ActionType `json:"action_type"`
	Device    string            `json:"target_device,omitempty"`
	Pin       int               `json:"relay_pin,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	FiresAt   time.Time         `json:"fires_at"`
}

// Status is a point-in-time view of the engine's runtime state
type Status struct {
	Rules         int             `json:"rules"`
	ScheduleRules int             `json:"schedule_rules"`
	Topics        []string        `json:"topics"`
	ActiveRules   []string        `json:"active_rules"`
	PendingTimers []TimerStatus   `json:"pending_timers"`
	Latches       map[string]bool `json:"latches"`
}

// Status returns a snapshot of the engine state
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		Rules:         len(e.rules.rules),
		ScheduleRules: len(e.rules.schedule),
		Topics:        make([]string, 0, len(e.subscribed)),
		ActiveRules:   []string{},
		PendingTimers: make([]TimerStatus, 0, len(e.timers)),
		Latches:       make(map[string]bool, len(e.latches)),
	}
	for topic := range e.subscribed {
		st.Topics = append(st.Topics, topic)
	}
	sort.Strings(st.Topics)

	seen := make(map[string]bool)
	for k, v := range e.activation {
		if v && !seen[k.ruleID] {
			seen[k.ruleID] = true
			st.ActiveRules = append(st.ActiveRules, k.ruleID)
		}
	}
	sort.Strings(st.ActiveRules)

	for k, t := range e.timers {
		st.PendingTimers = append(st.PendingTimers, TimerStatus{
			RuleID:    k.RuleID,
			Kind:      t.Kind,
			Action:    k.Type,
			Device:    k.Device,
			Pin:       k.Pin,
			StartedAt: t.Start,
			FiresAt:   t.Start.Add(t.Duration),
		})
	}
	sort.Slice(st.PendingTimers, func(i, j int) bool {
		return st.PendingTimers[i].FiresAt.Before(st.PendingTimers[j].FiresAt)
	})

	for k, v := range e.latches {
		st.Latches[k.String()] = v
	}
	return st
}
