package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"relayengine/internal/models"
)

// ErrNoTelemetry is returned when nothing was mirrored for a topic
var ErrNoTelemetry = errors.New("no telemetry for topic")

func telemetryKey(topic string) string {
	return "telemetry:" + topic
}

// SaveTelemetry mirrors the latest document of a topic
func (s *Store) SaveTelemetry(ctx context.Context, topic string, doc models.Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	return s.client.Set(ctx, telemetryKey(topic), b, s.telemetryTTL).Err()
}

// GetTelemetry returns the mirrored document of a topic
func (s *Store) GetTelemetry(ctx context.Context, topic string) (models.Document, error) {
	b, err := s.client.Get(ctx, telemetryKey(topic)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoTelemetry
	}
	if err != nil {
		return nil, err
	}
	var doc models.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode telemetry: %w", err)
	}
	return doc, nil
}
