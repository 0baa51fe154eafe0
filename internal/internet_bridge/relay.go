package internet_bridge

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ServerIDHeader selects the agent a client request is forwarded to
const ServerIDHeader = "X-Server-ID"

type agentConn struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex // serializes writes
}

func (a *agentConn) send(v interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ws.WriteJSON(v)
}

// Relay is the public side of the bridge: agents dial in over WebSocket and client
// requests are forwarded to the agent named by X-Server-ID
type Relay struct {
	timeout  time.Duration
	upgrader websocket.Upgrader

	mu      sync.Mutex
	agents  map[string]*agentConn
	pending map[string]chan responseMsg
}

func NewRelay(timeout time.Duration) *Relay {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Relay{
		timeout: timeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		agents:  make(map[string]*agentConn),
		pending: make(map[string]chan responseMsg),
	}
}

// Register mounts the agent endpoint and forwards every other route
func (r *Relay) Register(router *gin.Engine) {
	router.GET("/agent", r.handleAgent)
	router.NoRoute(r.handleClient)
}

// Online reports whether an agent with id is connected
func (r *Relay) Online(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.agents[id]
	return ok
}

func (r *Relay) handleAgent(c *gin.Context) {
	ws, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("RELAY: Upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	var conn *agentConn
	defer func() {
		if conn == nil {
			return
		}
		r.mu.Lock()
		if r.agents[conn.id] == conn {
			delete(r.agents, conn.id)
		}
		r.mu.Unlock()
		log.Printf("RELAY: Agent %s disconnected", conn.id)
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}

		switch env.Type {
		case msgRegister:
			var reg registerMsg
			if err := json.Unmarshal(raw, &reg); err != nil || reg.ID == "" {
				continue
			}
			conn = &agentConn{id: reg.ID, ws: ws}
			r.mu.Lock()
			r.agents[reg.ID] = conn
			r.mu.Unlock()
			log.Printf("RELAY: Agent registered: %s", reg.ID)

		case msgResponse:
			var resp responseMsg
			if err := json.Unmarshal(raw, &resp); err != nil {
				continue
			}
			r.mu.Lock()
			ch, ok := r.pending[resp.ReqID]
			delete(r.pending, resp.ReqID)
			r.mu.Unlock()
			if ok {
				ch <- resp
			}
		}
	}
}

func (r *Relay) handleClient(c *gin.Context) {
	agentID := c.GetHeader(ServerIDHeader)
	if agentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing " + ServerIDHeader})
		return
	}

	r.mu.Lock()
	agent, ok := r.agents[agentID]
	r.mu.Unlock()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Agent offline"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}

	headers := make(map[string]string)
	for key, values := range c.Request.Header {
		if len(values) > 0 && key != ServerIDHeader {
			headers[key] = values[0]
		}
	}

	req := requestMsg{
		Type:    msgRequest,
		ReqID:   uuid.NewString(),
		Method:  c.Request.Method,
		Path:    c.Request.URL.Path,
		Query:   c.Request.URL.RawQuery,
		Headers: headers,
		Body:    jsonBody(bytes.TrimSpace(body)),
	}

	respChan := make(chan responseMsg, 1)
	r.mu.Lock()
	r.pending[req.ReqID] = respChan
	r.mu.Unlock()
	cleanup := func() {
		r.mu.Lock()
		delete(r.pending, req.ReqID)
		r.mu.Unlock()
	}

	if err := agent.send(req); err != nil {
		cleanup()
		log.Printf("RELAY: Forward to %s failed: %v", agentID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Agent unreachable"})
		return
	}

	select {
	case resp := <-respChan:
		c.Data(resp.Status, "application/json; charset=utf-8", resp.Body)
	case <-time.After(r.timeout):
		cleanup()
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Timeout"})
	case <-c.Request.Context().Done():
		cleanup()
	}
}
