package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"relayengine/internal/models"
	"relayengine/internal/utils"
)

// commandPayload is the wire form of a relay command
type commandPayload struct {
	Address int    `json:"address"`
	Bus     int    `json:"bus"`
	Pin     int    `json:"pin"`
	Value   bool   `json:"value"`
	RuleID  string `json:"rule_id,omitempty"`
}

func encodeCommand(pattern string, cmd models.RelayCommand) (string, []byte, error) {
	if cmd.TargetDevice == "" {
		return "", nil, fmt.Errorf("relay command without target device")
	}
	payload, err := json.Marshal(commandPayload{
		Address: cmd.TargetAddress,
		Bus:     cmd.TargetBus,
		Pin:     cmd.RelayPin,
		Value:   cmd.Value,
		RuleID:  cmd.RuleID,
	})
	if err != nil {
		return "", nil, fmt.Errorf("encode relay command: %w", err)
	}
	return utils.CommandTopic(pattern, cmd.TargetDevice), payload, nil
}

// SetRelay publishes a relay command. Delivery is confirmed asynchronously; failures
// after the hand-off are only logged.
func (c *Client) SetRelay(_ context.Context, cmd models.RelayCommand) error {
	topic, payload, err := encodeCommand(c.commandTopic, cmd)
	if err != nil {
		return err
	}
	return c.publish(topic, payload, false)
}

// Publish JSON-encodes payload and publishes it on topic
func (c *Client) Publish(topic string, payload interface{}, retained bool) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", topic, err)
	}
	return c.publish(topic, b, retained)
}

func (c *Client) publish(topic string, payload []byte, retained bool) error {
	if c.client == nil || !c.client.IsConnectionOpen() {
		return fmt.Errorf("publish %s: not connected", topic)
	}
	token := c.client.Publish(topic, 1, retained, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("MQTT: Error publishing to %s: %v", topic, err)
		}
	}()
	return nil
}
