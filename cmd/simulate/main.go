package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"relayengine/internal/config"
	"relayengine/internal/mqtt"
	"relayengine/internal/telemetry"
)

// simulate publishes synthetic telemetry so rules can be exercised without hardware.
//
//	simulate -topic plant/temp -from 20 -to 35 -step 1 -interval 2s
//	simulate -topic io/inputs -payload '{"input3": true}'
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	broker := flag.String("broker", cfg.MQTT.Broker, "MQTT broker URL")
	topic := flag.String("topic", "", "device topic to publish on")
	payload := flag.String("payload", "", "publish this JSON document once and exit")
	field := flag.String("field", "value", "numeric field of the generated documents")
	from := flag.Float64("from", 20, "first value of the ramp")
	to := flag.Float64("to", 30, "last value of the ramp")
	step := flag.Float64("step", 1, "ramp increment")
	interval := flag.Duration("interval", time.Second, "delay between ramp messages")
	flag.Parse()

	if *topic == "" {
		log.Fatalf("-topic is required")
	}

	client, err := mqtt.NewMQTTClient(*broker, fmt.Sprintf("%s-simulator-%d", cfg.MQTT.ClientID, time.Now().Unix()), "")
	if err != nil {
		log.Fatalf("Failed to connect to MQTT: %v", err)
	}
	defer client.Disconnect()

	if *payload != "" {
		doc, err := telemetry.Normalize([]byte(*payload))
		if err != nil {
			log.Fatalf("Invalid payload: %v", err)
		}
		publish(client, *topic, doc)
		return
	}

	if *step == 0 {
		log.Fatalf("-step must not be zero")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for v := *from; (*step > 0 && v <= *to) || (*step < 0 && v >= *to); v += *step {
		publish(client, *topic, map[string]interface{}{*field: v})
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func publish(client *mqtt.Client, topic string, doc interface{}) {
	if err := client.Publish(topic, doc, false); err != nil {
		log.Fatalf("Failed to publish: %v", err)
	}
	raw, _ := json.Marshal(doc)
	log.Printf("SIMULATE: %s <- %s", topic, raw)
}
