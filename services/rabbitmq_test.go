package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMQTTTopicToRoutingKey(t *testing.T) {
	assert.Equal(t, "irrigation.sensor-data", mqttTopicToRoutingKey("irrigation/sensor-data"))
	assert.Equal(t, "sensors.data", mqttTopicToRoutingKey("sensors/data"))
	assert.Equal(t, "status", mqttTopicToRoutingKey("status"))
}
