package internet_bridge

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localAPI() http.Handler {
	r := gin.New()
	r.GET("/automations/engine/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"auth":  c.GetHeader("Authorization"),
			"limit": c.Query("limit"),
		})
	})
	r.POST("/echo", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.Data(http.StatusCreated, "application/json", body)
	})
	r.GET("/plain", func(c *gin.Context) {
		c.String(http.StatusOK, "hello")
	})
	return r
}

func startBridge(t *testing.T) (*httptest.Server, context.CancelFunc) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	relay := NewRelay(2 * time.Second)
	router := gin.New()
	relay.Register(router)
	srv := httptest.NewServer(router)

	ctx, cancel := context.WithCancel(context.Background())
	agent := NewAgent(Config{
		PublicWS:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/agent",
		ServerID:   "agent-1",
		RetryDelay: 50 * time.Millisecond,
		Handler:    localAPI(),
	})
	go agent.Run(ctx)

	require.Eventually(t, func() bool { return relay.Online("agent-1") }, 2*time.Second, 10*time.Millisecond)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, cancel
}

func call(t *testing.T, method, url, agentID, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer abc")
	if agentID != "" {
		req.Header.Set(ServerIDHeader, agentID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestBridge_ForwardsRequests(t *testing.T) {
	srv, _ := startBridge(t)

	status, body := call(t, http.MethodGet, srv.URL+"/automations/engine/status?limit=5", "agent-1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"auth":"Bearer abc","limit":"5"}`, body)

	status, body = call(t, http.MethodPost, srv.URL+"/echo", "agent-1", `{"x":1}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.JSONEq(t, `{"x":1}`, body)

	status, body = call(t, http.MethodGet, srv.URL+"/plain", "agent-1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `"hello"`, body)

	status, _ = call(t, http.MethodGet, srv.URL+"/missing", "agent-1", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestBridge_ClientErrors(t *testing.T) {
	srv, _ := startBridge(t)

	status, _ := call(t, http.MethodGet, srv.URL+"/automations/engine/status", "", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, http.MethodGet, srv.URL+"/automations/engine/status", "agent-2", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestJSONBody(t *testing.T) {
	assert.Nil(t, jsonBody(nil))
	assert.Equal(t, `{"a":1}`, string(jsonBody([]byte(`{"a":1}`))))
	assert.Equal(t, `"not json"`, string(jsonBody([]byte("not json"))))
}
