package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"relayengine/internal/models"
	"relayengine/internal/telemetry"
	"relayengine/internal/utils"
)

// Handler receives normalized telemetry documents
type Handler = func(topic string, doc models.Document)

// Client wraps a paho connection. Subscriptions are remembered and restored on reconnect.
type Client struct {
	client       paho.Client
	commandTopic string

	mu   sync.RWMutex
	subs map[string]Handler
}

// NewMQTTClient connects to broker. commandTopic is a pattern such as "devices/%s/commands".
func NewMQTTClient(broker, clientID, commandTopic string) (*Client, error) {
	c := &Client{
		commandTopic: commandTopic,
		subs:         make(map[string]Handler),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("MQTT: Connection lost: %v", err)
		})

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(30*time.Second) {
		return nil, fmt.Errorf("connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	log.Printf("MQTT: Connected to %s as %s", broker, clientID)
	return c, nil
}

func (c *Client) onConnect(pc paho.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for topic := range c.subs {
		if token := pc.Subscribe(topic, 1, c.messageHandler(topic)); token.Wait() && token.Error() != nil {
			log.Printf("MQTT: Failed to restore subscription %s: %v", topic, token.Error())
		}
	}
	if len(c.subs) > 0 {
		log.Printf("MQTT: Restored %d subscriptions", len(c.subs))
	}
}

// Subscribe delivers every well-formed document published on topic to handler.
// Malformed payloads are logged and dropped.
func (c *Client) Subscribe(topic string, handler Handler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, c.messageHandler(topic))
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

func (c *Client) messageHandler(subscription string) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		c.mu.RLock()
		handler := c.subs[subscription]
		c.mu.RUnlock()
		if handler == nil {
			return
		}
		dispatch(msg, handler)
	}
}

func dispatch(msg paho.Message, handler Handler) {
	doc, err := telemetry.Normalize(msg.Payload())
	if err != nil {
		log.Printf("MQTT: Dropping payload on %s: %v", msg.Topic(), err)
		return
	}
	utils.Debugf("MQTT: %s -> %v", msg.Topic(), doc)
	handler(msg.Topic(), doc)
}

// Disconnect closes the connection after giving in-flight work 250ms
func (c *Client) Disconnect() {
	if c.client == nil {
		return
	}
	c.client.Disconnect(250)
	log.Println("MQTT: Disconnected")
}

// IsConnected reports the connection state
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnectionOpen()
}
