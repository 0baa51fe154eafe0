package internet_bridge

import (
	"encoding/json"
)

const (
	msgRegister = "register"
	msgRequest  = "request"
	msgResponse = "response"
)

// requestMsg is an API call forwarded from the public relay to an agent
type requestMsg struct {
	Type    string            `json:"type"`
	ReqID   string            `json:"reqId"`
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Query   string            `json:"query,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// responseMsg carries the local API answer back to the relay
type responseMsg struct {
	Type   string          `json:"type"`
	ReqID  string          `json:"reqId"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

type registerMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// envelope is decoded first to route a frame by type
type envelope struct {
	Type string `json:"type"`
}

// jsonBody returns raw as-is when it is valid JSON and as a JSON string otherwise
func jsonBody(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
