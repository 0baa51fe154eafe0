package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"relayengine/internal/models"
)

const ruleColumns = "id, name, enabled, owner_id, trigger_groups, actions"

func scanRule(row pgx.Row) (models.Rule, error) {
	var r models.Rule
	var groups, actions []byte
	if err := row.Scan(&r.ID, &r.Name, &r.Enabled, &r.OwnerID, &groups, &actions); err != nil {
		return r, err
	}
	if err := json.Unmarshal(groups, &r.TriggerGroups); err != nil {
		return r, fmt.Errorf("rule %s trigger_groups: %w", r.ID, err)
	}
	if err := json.Unmarshal(actions, &r.Actions); err != nil {
		return r, fmt.Errorf("rule %s actions: %w", r.ID, err)
	}
	return r, nil
}

func encodeRule(r models.Rule) ([]byte, []byte, error) {
	groups := r.TriggerGroups
	if groups == nil {
		groups = []models.TriggerGroup{}
	}
	actions := r.Actions
	if actions == nil {
		actions = []models.Action{}
	}
	g, err := json.Marshal(groups)
	if err != nil {
		return nil, nil, fmt.Errorf("encode trigger_groups: %w", err)
	}
	a, err := json.Marshal(actions)
	if err != nil {
		return nil, nil, fmt.Errorf("encode actions: %w", err)
	}
	return g, a, nil
}

func (d *DB) queryRules(ctx context.Context, sql string, args ...interface{}) ([]models.Rule, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []models.Rule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// GetAllRules fetches every rule, enabled or not
func (d *DB) GetAllRules(ctx context.Context) ([]models.Rule, error) {
	return d.queryRules(ctx, "SELECT "+ruleColumns+" FROM rules ORDER BY id")
}

// GetRulesByOwner fetches the rules of one operator
func (d *DB) GetRulesByOwner(ctx context.Context, ownerID string) ([]models.Rule, error) {
	return d.queryRules(ctx, "SELECT "+ruleColumns+" FROM rules WHERE owner_id = $1 ORDER BY id", ownerID)
}

// GetRuleByID fetches a rule
func (d *DB) GetRuleByID(ctx context.Context, id string) (*models.Rule, error) {
	r, err := scanRule(d.pool.QueryRow(ctx, "SELECT "+ruleColumns+" FROM rules WHERE id = $1", id))
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// InsertRule stores a new rule; the id must already be assigned
func (d *DB) InsertRule(ctx context.Context, r models.Rule) error {
	groups, actions, err := encodeRule(r)
	if err != nil {
		return err
	}
	_, err = d.pool.Exec(ctx,
		"INSERT INTO rules (id, name, enabled, owner_id, trigger_groups, actions) VALUES ($1, $2, $3, $4, $5, $6)",
		r.ID, r.Name, r.Enabled, r.OwnerID, groups, actions)
	return err
}

// UpdateRule replaces a rule definition
func (d *DB) UpdateRule(ctx context.Context, r models.Rule) error {
	groups, actions, err := encodeRule(r)
	if err != nil {
		return err
	}
	tag, err := d.pool.Exec(ctx,
		"UPDATE rules SET name = $2, enabled = $3, trigger_groups = $4, actions = $5, updated_at = NOW() WHERE id = $1",
		r.ID, r.Name, r.Enabled, groups, actions)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertRule inserts or replaces a rule, used by the seed import
func (d *DB) UpsertRule(ctx context.Context, r models.Rule) error {
	groups, actions, err := encodeRule(r)
	if err != nil {
		return err
	}
	_, err = d.pool.Exec(ctx,
		`INSERT INTO rules (id, name, enabled, owner_id, trigger_groups, actions) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, enabled = EXCLUDED.enabled,
		 trigger_groups = EXCLUDED.trigger_groups, actions = EXCLUDED.actions, updated_at = NOW()`,
		r.ID, r.Name, r.Enabled, r.OwnerID, groups, actions)
	return err
}

// DeleteRule removes a rule
func (d *DB) DeleteRule(ctx context.Context, id string) error {
	tag, err := d.pool.Exec(ctx, "DELETE FROM rules WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDevices fetches accepted devices, optionally restricted to an owner
func (d *DB) GetDevices(ctx context.Context, ownerID string) ([]models.Device, error) {
	sql := "SELECT device_id, name, type, state, mqtt_topic, accepted, owner_id FROM devices WHERE accepted = true"
	args := []interface{}{}
	if ownerID != "" {
		sql += " AND owner_id = $1"
		args = append(args, ownerID)
	}
	rows, err := d.pool.Query(ctx, sql+" ORDER BY device_id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := []models.Device{}
	for rows.Next() {
		var device models.Device
		if err := rows.Scan(&device.ID, &device.Name, &device.Type, &device.State, &device.MQTTTopic, &device.Accepted, &device.OwnerID); err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

// GetDeviceByID fetches a device by ID
func (d *DB) GetDeviceByID(ctx context.Context, id string) (*models.Device, error) {
	var device models.Device
	err := d.pool.QueryRow(ctx, "SELECT device_id, name, type, state, mqtt_topic, accepted, owner_id FROM devices WHERE device_id = $1", id).
		Scan(&device.ID, &device.Name, &device.Type, &device.State, &device.MQTTTopic, &device.Accepted, &device.OwnerID)
	if err != nil {
		return nil, notFound(err)
	}
	return &device, nil
}

// LogAction appends a delivered action to the action log
func (d *DB) LogAction(ctx context.Context, e models.ActionLogEntry) error {
	_, err := d.pool.Exec(ctx,
		"INSERT INTO action_log (rule_id, action_type, target, payload, error, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		e.RuleID, string(e.ActionType), e.Target, []byte(e.Payload), e.Error, e.CreatedAt)
	return err
}

// GetActionLog returns the newest entries for a rule
func (d *DB) GetActionLog(ctx context.Context, ruleID string, limit int) ([]models.ActionLogEntry, error) {
	rows, err := d.pool.Query(ctx,
		"SELECT rule_id, action_type, target, payload, error, created_at FROM action_log WHERE rule_id = $1 ORDER BY created_at DESC LIMIT $2",
		ruleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.ActionLogEntry{}
	for rows.Next() {
		var e models.ActionLogEntry
		var actionType string
		var payload []byte
		if err := rows.Scan(&e.RuleID, &actionType, &e.Target, &payload, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActionType = models.ActionType(actionType)
		e.Payload = payload
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreateOperator stores a new operator and returns its id
func (d *DB) CreateOperator(ctx context.Context, username, passwordHash, email string) (int, error) {
	var exists bool
	if err := d.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM operators WHERE username = $1)", username).Scan(&exists); err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("username %q already exists", username)
	}

	var id int
	err := d.pool.QueryRow(ctx,
		"INSERT INTO operators (username, password, email) VALUES ($1, $2, $3) RETURNING id",
		username, passwordHash, email).Scan(&id)
	return id, err
}

// GetOperatorCredentials returns the id and password hash of an operator
func (d *DB) GetOperatorCredentials(ctx context.Context, username string) (int, string, error) {
	var id int
	var hash string
	err := d.pool.QueryRow(ctx, "SELECT id, password FROM operators WHERE username = $1", username).Scan(&id, &hash)
	if err != nil {
		return 0, "", notFound(err)
	}
	return id, hash, nil
}

// GetOperator returns the public profile of an operator
func (d *DB) GetOperator(ctx context.Context, id int) (*models.Operator, error) {
	var op models.Operator
	err := d.pool.QueryRow(ctx, "SELECT id, username, email FROM operators WHERE id = $1", id).Scan(&op.ID, &op.Username, &op.Email)
	if err != nil {
		return nil, notFound(err)
	}
	return &op, nil
}
