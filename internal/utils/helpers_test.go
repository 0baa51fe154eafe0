package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceFromTopic(t *testing.T) {
	tests := map[string]string{
		"devices/pump-1/state": "pump-1",
		"/devices/io-7/":       "io-7",
		"plant/tank/level":     "level",
		"single":               "single",
		"":                     "",
	}
	for topic, want := range tests {
		assert.Equal(t, want, DeviceFromTopic(topic), topic)
	}
}

func TestCommandTopic(t *testing.T) {
	assert.Equal(t, "devices/relay-2/commands", CommandTopic("devices/%s/commands", "relay-2"))
	assert.Equal(t, "cmd/relay-2", CommandTopic("cmd/", "relay-2"))
}

func TestDebugf(t *testing.T) {
	InitLogging("DEBUG")
	assert.True(t, DebugEnabled())
	InitLogging("info")
	assert.False(t, DebugEnabled())
}
