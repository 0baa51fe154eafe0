package redis

import (
	"context"
	"log"

	"relayengine/internal/models"
)

const latchKey = "engine:latches"

func encodeLatch(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func decodeLatches(fields map[string]string) map[models.OutputKey]bool {
	out := make(map[models.OutputKey]bool, len(fields))
	for field, v := range fields {
		key, err := models.ParseOutputKey(field)
		if err != nil {
			log.Printf("REDIS: Ignoring latch entry: %v", err)
			continue
		}
		out[key] = v == "1"
	}
	return out
}

// LoadLatches returns every persisted latch state
func (s *Store) LoadLatches(ctx context.Context) (map[models.OutputKey]bool, error) {
	fields, err := s.client.HGetAll(ctx, latchKey).Result()
	if err != nil {
		return nil, err
	}
	return decodeLatches(fields), nil
}

// SaveLatch persists the state of one latching output
func (s *Store) SaveLatch(ctx context.Context, key models.OutputKey, value bool) error {
	return s.client.HSet(ctx, latchKey, key.String(), encodeLatch(value)).Err()
}
