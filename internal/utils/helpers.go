package utils

import (
	"strings"
)

// DeviceFromTopic returns the device segment of a "devices/<id>/..." topic, or the last
// non-empty segment for any other layout
func DeviceFromTopic(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) > 1 && parts[0] == "devices" {
		return parts[1]
	}
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}

// CommandTopic expands a topic pattern containing one %s with the device id
func CommandTopic(pattern, device string) string {
	if !strings.Contains(pattern, "%s") {
		return strings.TrimRight(pattern, "/") + "/" + device
	}
	return strings.Replace(pattern, "%s", device, 1)
}
