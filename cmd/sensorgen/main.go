package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var (
	interval    = flag.Duration("interval", 5*time.Second, "Delay between published readings")
	deviceID    = flag.String("device", "ESP32-IRRIG-001", "Device ID for mock data")
	anomaly     = flag.Float64("anomaly", 0.1, "Probability of an anomalous reading (0.0-1.0)")
	faultRate   = flag.Float64("fault", 0.05, "Probability of a DHT sensor fault (-999 readings)")
	mqttBroker  = flag.String("broker", "localhost:1883", "MQTT broker address (host:port)")
	mqttUser    = flag.String("user", "", "MQTT username")
	mqttPass    = flag.String("pass", "", "MQTT password")
	dataTopic   = flag.String("topic", "irrigation/sensor-data", "Sensor data topic")
	statusTopic = flag.String("status-topic", "irrigation/status", "Status topic")
)

type mockDevice struct {
	deviceID     string
	anomalyProb  float64
	faultProb    float64
	baseMoisture float64
	baseTemp     float64
	baseHumidity float64
	pumpOn       bool
}

func newMockDevice(deviceID string, anomalyProb, faultProb float64) *mockDevice {
	return &mockDevice{
		deviceID:     deviceID,
		anomalyProb:  anomalyProb,
		faultProb:    faultProb,
		baseMoisture: 45.0,
		baseTemp:     24.0,
		baseHumidity: 55.0,
	}
}

// nextReading produces a sensor payload in the primary firmware format.
func (m *mockDevice) nextReading() map[string]any {
	moisture := m.baseMoisture + rand.Float64()*10.0 - 5.0
	temperature := m.baseTemp + rand.Float64()*4.0 - 2.0
	humidity := m.baseHumidity + rand.Float64()*10.0 - 5.0

	if rand.Float64() < m.anomalyProb {
		// Drought scenario: moisture drops below the safety floor
		moisture = rand.Float64() * 18.0
		m.pumpOn = true
	} else if moisture > 55 {
		m.pumpOn = false
	}

	dhtError := false
	if rand.Float64() < m.faultProb {
		temperature = -999
		humidity = -999
		dhtError = true
	}

	return map[string]any{
		"device_id":     m.deviceID,
		"soil_moisture": math.Round(moisture*10) / 10,
		"temperature":   math.Round(temperature*10) / 10,
		"humidity":      math.Round(humidity*10) / 10,
		"pump":          m.pumpOn,
		"dht_error":     dhtError,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
}

func main() {
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync() //nolint:errcheck

	logger.Info("Irrigation sensor generator started",
		zap.String("device_id", *deviceID),
		zap.Duration("interval", *interval),
		zap.Float64("anomaly_probability", *anomaly),
		zap.Float64("fault_probability", *faultRate),
		zap.String("mqtt_broker", *mqttBroker),
		zap.String("data_topic", *dataTopic))

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", *mqttBroker))
	opts.SetClientID(fmt.Sprintf("%s-generator", *deviceID))
	opts.SetUsername(*mqttUser)
	opts.SetPassword(*mqttPass)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", *mqttBroker))
		// Announce ourselves like real firmware does on boot
		status, _ := json.Marshal(map[string]any{
			"device_id": *deviceID,
			"status":    "connected",
		})
		client.Publish(*statusTopic, 1, false, status)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Error("MQTT connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal("Failed to connect to MQTT broker", zap.Error(token.Error()))
	}
	defer client.Disconnect(250)

	device := newMockDevice(*deviceID, *anomaly, *faultRate)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			logger.Info("Shutting down generator")
			return
		case <-ticker.C:
			reading := device.nextReading()
			payload, err := json.Marshal(reading)
			if err != nil {
				logger.Error("Failed to marshal reading", zap.Error(err))
				continue
			}
			token := client.Publish(*dataTopic, 1, false, payload)
			if token.Wait() && token.Error() != nil {
				logger.Error("Failed to publish reading", zap.Error(token.Error()))
				continue
			}
			logger.Info("Published reading",
				zap.Any("soil_moisture", reading["soil_moisture"]),
				zap.Any("temperature", reading["temperature"]),
				zap.Any("pump", reading["pump"]))
		}
	}
}
