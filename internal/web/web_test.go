package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayengine/internal/db"
	"relayengine/internal/engine"
	"relayengine/internal/models"
	"relayengine/internal/redis"
)

type fakeTokens struct{}

func (fakeTokens) ValidateToken(_ context.Context, token string) (string, error) {
	switch token {
	case "Bearer alice":
		return "1", nil
	case "Bearer bob":
		return "2", nil
	}
	return "", errors.New("invalid token")
}

type fakeAuth struct{}

func (fakeAuth) Login(_ context.Context, username, password string) (string, error) {
	if username == "alice" && password == "secret-pass" {
		return "alice", nil
	}
	return "", errors.New("invalid credentials")
}

func (fakeAuth) Register(_ context.Context, username, _, _ string) (string, error) {
	return username, nil
}

func (fakeAuth) Logout(context.Context, string) error { return nil }

type fakeStore struct {
	mu    sync.Mutex
	rules map[string]models.Rule
}

func (f *fakeStore) GetRulesByOwner(_ context.Context, owner string) ([]models.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Rule{}
	for _, r := range f.rules {
		if r.OwnerID == owner {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRuleByID(_ context.Context, id string) (*models.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &r, nil
}

func (f *fakeStore) InsertRule(_ context.Context, r models.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[r.ID] = r
	return nil
}

func (f *fakeStore) UpdateRule(_ context.Context, r models.Rule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[r.ID]; !ok {
		return db.ErrNotFound
	}
	f.rules[r.ID] = r
	return nil
}

func (f *fakeStore) DeleteRule(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rules, id)
	return nil
}

func (f *fakeStore) GetActionLog(_ context.Context, ruleID string, limit int) ([]models.ActionLogEntry, error) {
	return []models.ActionLogEntry{{RuleID: ruleID, ActionType: models.ActionControlRelay, Target: "io-1"}}, nil
}

func (f *fakeStore) GetDevices(context.Context, string) ([]models.Device, error) {
	return []models.Device{{ID: "io-1", Name: "Relay board", Accepted: true}}, nil
}

func (f *fakeStore) GetDeviceByID(_ context.Context, id string) (*models.Device, error) {
	owner := "2"
	switch id {
	case "io-1":
		return &models.Device{ID: "io-1", Name: "Relay board", Accepted: true}, nil
	case "io-2":
		return &models.Device{ID: "io-2", Name: "Bob's board", Accepted: true, OwnerID: &owner}, nil
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) GetOperator(_ context.Context, id int) (*models.Operator, error) {
	return &models.Operator{ID: id, Username: "alice"}, nil
}

type fakeTelemetry map[string]models.Document

func (f fakeTelemetry) GetTelemetry(_ context.Context, topic string) (models.Document, error) {
	doc, ok := f[topic]
	if !ok {
		return nil, redis.ErrNoTelemetry
	}
	return doc, nil
}

type fakeEngine struct {
	reloads   int
	schedules int
}

func (f *fakeEngine) ReloadRules(context.Context) error {
	f.reloads++
	return nil
}

func (f *fakeEngine) EvaluateSchedules(context.Context) { f.schedules++ }

func (f *fakeEngine) Status() engine.Status {
	return engine.Status{Rules: 1, Topics: []string{"plant/temp"}}
}

type testServer struct {
	handler http.Handler
	store   *fakeStore
	engine  *fakeEngine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := &fakeStore{rules: map[string]models.Rule{}}
	eng := &fakeEngine{}
	reg := prometheus.NewRegistry()
	engine.NewMetrics(reg)
	ws := NewWebServer(Dependencies{
		Auth:      fakeAuth{},
		Tokens:    fakeTokens{},
		Rules:     store,
		Devices:   store,
		Telemetry: fakeTelemetry{"plant/temp": {"value": 21.5}},
		Operators: store,
		Engine:    eng,
		Gatherer:  reg,
		AgentID:   "agent-1",
	})
	return &testServer{handler: ws.Handler(), store: store, engine: eng}
}

func (s *testServer) do(method, path, user string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func validRule() map[string]interface{} {
	return map[string]interface{}{
		"name":    "Fan on when hot",
		"enabled": true,
		"trigger_groups": []interface{}{map[string]interface{}{
			"group_operator": "and",
			"triggers": []interface{}{map[string]interface{}{
				"trigger_type":       "numeric",
				"device_topic":       "plant/temp",
				"condition_operator": "greater_than",
				"target_value":       30,
			}},
		}},
		"actions": []interface{}{map[string]interface{}{
			"action_type":   "control_relay",
			"target_device": "io-1",
			"relay_pin":     2,
			"target_value":  true,
		}},
	}
}

func TestRequireAuth(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/automations/rules", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/devices", "mallory", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil).Code)
}

func TestRuleLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/automations/rules", "alice", validRule())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "1", created.OwnerID)
	assert.Equal(t, models.GroupAnd, created.TriggerGroups[0].GroupOperator)
	assert.Equal(t, "value", created.TriggerGroups[0].Triggers[0].FieldName)
	assert.Equal(t, 1, s.engine.reloads)

	w = s.do(http.MethodGet, "/automations/rules", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/automations/rules/"+created.ID, "bob", nil).Code)

	w = s.do(http.MethodPatch, "/automations/rules/"+created.ID, "alice", map[string]interface{}{"enabled": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, s.store.rules[created.ID].Enabled)
	assert.Equal(t, 2, s.engine.reloads)

	update := validRule()
	update["name"] = "Renamed"
	w = s.do(http.MethodPut, "/automations/rules/"+created.ID, "alice", update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Renamed", s.store.rules[created.ID].Name)
	assert.Equal(t, "1", s.store.rules[created.ID].OwnerID)

	w = s.do(http.MethodGet, "/automations/rules/"+created.ID+"/log", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/automations/rules/"+created.ID+"/log?limit=0", "alice", nil).Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/automations/rules/"+created.ID, "alice", nil).Code)
	assert.Empty(t, s.store.rules)
	assert.Equal(t, 4, s.engine.reloads)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/automations/rules/"+created.ID, "alice", nil).Code)
}

func TestCreateRule_Invalid(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"missing_name", func(r map[string]interface{}) { r["name"] = "  " }},
		{"unknown_operator", func(r map[string]interface{}) {
			r["trigger_groups"].([]interface{})[0].(map[string]interface{})["triggers"].([]interface{})[0].(map[string]interface{})["condition_operator"] = "approx"
		}},
		{"unknown_action", func(r map[string]interface{}) {
			r["actions"].([]interface{})[0].(map[string]interface{})["action_type"] = "launch"
		}},
		{"bad_group_operator", func(r map[string]interface{}) {
			r["trigger_groups"].([]interface{})[0].(map[string]interface{})["group_operator"] = "XOR"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule()
			tt.mutate(rule)
			w := s.do(http.MethodPost, "/automations/rules", "alice", rule)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Empty(t, s.store.rules)
	assert.Equal(t, 0, s.engine.reloads)
}

func TestEngineRoutes(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, "/automations/schedules/evaluate", "alice", nil).Code)
	assert.Equal(t, 1, s.engine.schedules)

	w := s.do(http.MethodGet, "/automations/engine/status", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status engine.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, []string{"plant/temp"}, status.Topics)
}

func TestDeviceAndTelemetryRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/devices", "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Relay board")

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/devices/io-1", "alice", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/devices/io-2", "alice", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/devices/io-2", "bob", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/devices/io-9", "alice", nil).Code)

	w = s.do(http.MethodGet, "/telemetry?topic=plant/temp", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"topic":"plant/temp","data":{"value":21.5}}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/telemetry?topic=plant/none", "alice", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/telemetry", "alice", nil).Code)
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "secret-pass"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"alice","agent_id":"agent-1"}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "nope"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/auth/login", "", map[string]string{}).Code)
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/auth/register", "", map[string]string{"username": "carol", "password": "long-enough"}).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/auth/logout", "alice", nil).Code)

	w = s.do(http.MethodGet, "/users/me", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1,"username":"alice","email":""}`, w.Body.String())
}

type fakeBroker bool

func (f fakeBroker) IsConnected() bool { return bool(f) }

func TestHealthz_Broker(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, connected := range []bool{true, false} {
		ws := NewWebServer(Dependencies{Tokens: fakeTokens{}, Broker: fakeBroker(connected)})
		w := httptest.NewRecorder()
		ws.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if connected {
			assert.Equal(t, http.StatusOK, w.Code)
		} else {
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "relay_engine_rules_loaded")
}
