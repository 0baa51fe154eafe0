package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"relayengine/internal/models"
)

var (
	ErrEmptyPayload     = errors.New("empty telemetry payload")
	ErrMalformedPayload = errors.New("malformed telemetry payload")
)

// envelope is the wrapped form some gateways publish: {"device": "...", "ts": ..., "data": {...}}
type envelope struct {
	Device    string                 `mapstructure:"device"`
	DeviceID  string                 `mapstructure:"device_id"`
	Timestamp interface{}            `mapstructure:"ts"`
	Time      interface{}            `mapstructure:"timestamp"`
	Data      map[string]interface{} `mapstructure:"data"`
	Rest      map[string]interface{} `mapstructure:",remain"`
}

// Normalize decodes a raw bus payload into a document.
//
// A JSON object is used as is unless it is an envelope whose only other keys are
// metadata, in which case its data object is returned. A bare scalar becomes {"value": x}.
// Arrays, null and invalid JSON are rejected.
func Normalize(payload []byte) (models.Document, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	var raw interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch v := raw.(type) {
	case map[string]interface{}:
		return fromObject(v)
	case float64, bool, string:
		return models.Document{models.DefaultNumericField: v}, nil
	default:
		return nil, fmt.Errorf("%w: expected object or scalar, got %T", ErrMalformedPayload, raw)
	}
}

func fromObject(obj map[string]interface{}) (models.Document, error) {
	inner, ok := obj["data"]
	if !ok {
		return models.Document(obj), nil
	}
	if _, isObject := inner.(map[string]interface{}); !isObject {
		return models.Document(obj), nil
	}

	var env envelope
	if err := mapstructure.Decode(obj, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(env.Rest) > 0 {
		return models.Document(obj), nil
	}
	return models.Document(env.Data), nil
}
