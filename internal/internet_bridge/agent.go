package internet_bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

type Config struct {
	PublicWS   string // ws://host:port/agent
	ServerID   string // agent id clients address with X-Server-ID
	RetryDelay time.Duration
	Handler    http.Handler // local REST API
}

// Agent keeps an outbound WebSocket to the public relay and answers forwarded
// requests from the local API handler
type Agent struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewAgent(cfg Config) *Agent {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Agent{cfg: cfg, dialer: websocket.DefaultDialer}
}

// Run reconnects until ctx is cancelled
func (a *Agent) Run(ctx context.Context) {
	for {
		if err := a.session(ctx); err != nil && ctx.Err() == nil {
			log.Printf("BRIDGE: Session ended: %v", err)
		}
		select {
		case <-ctx.Done():
			log.Println("BRIDGE: Agent stopped")
			return
		case <-time.After(a.cfg.RetryDelay):
			log.Println("BRIDGE: Reconnecting to relay...")
		}
	}
}

func (a *Agent) session(ctx context.Context) error {
	ws, _, err := a.dialer.DialContext(ctx, a.cfg.PublicWS, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", a.cfg.PublicWS, err)
	}
	defer ws.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-done:
		}
	}()

	if err := ws.WriteJSON(registerMsg{Type: msgRegister, ID: a.cfg.ServerID}); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	log.Printf("BRIDGE: Registered as %s with %s", a.cfg.ServerID, a.cfg.PublicWS)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var req requestMsg
		if err := json.Unmarshal(raw, &req); err != nil {
			log.Printf("BRIDGE: Dropping malformed frame: %v", err)
			continue
		}
		if req.Type != msgRequest {
			continue
		}
		if err := ws.WriteJSON(a.serve(ctx, req)); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

// serve runs req against the local handler
func (a *Agent) serve(ctx context.Context, req requestMsg) responseMsg {
	resp := responseMsg{Type: msgResponse, ReqID: req.ReqID}

	target := (&url.URL{Path: req.Path, RawQuery: req.Query}).RequestURI()
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		resp.Status = http.StatusBadRequest
		resp.Body = jsonBody([]byte(`{"error":"malformed forwarded request"}`))
		return resp
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	a.cfg.Handler.ServeHTTP(rec, httpReq)
	resp.Status = rec.Code
	resp.Body = jsonBody(rec.Body.Bytes())
	return resp
}
