// Package mqttsink republishes accepted readings to an MQTT broker.
package mqttsink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/srg/blethermo/pipeline"
)

const (
	DefaultTopic    = "blethermo/readings"
	DefaultClientID = "blethermo"

	publishTimeout = 5 * time.Second
	connectPoll    = 200 * time.Millisecond
)

var ErrNotConnected = errors.New("mqtt client not connected")

// Options configures the broker connection.
type Options struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Topic    string
	Retain   bool
}

// Telemetry is the JSON body of a published reading.
type Telemetry struct {
	DeviceID    string    `json:"device_id"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature_c"`
	Humidity    uint8     `json:"humidity_pct"`
	RSSI        *int      `json:"rssi,omitempty"`
	Raw         string    `json:"raw,omitempty"`
}

// NewTelemetry converts an accepted reading.
func NewTelemetry(r pipeline.Reading) Telemetry {
	return Telemetry{
		DeviceID:    r.DeviceID,
		Timestamp:   r.Timestamp,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		RSSI:        r.RSSI,
		Raw:         r.RawHex(),
	}
}

// Sink publishes readings on one topic.
type Sink struct {
	client mqtt.Client
	topic  string
	retain bool
	logger *logrus.Logger
}

// ClientFactory builds the paho client.
// This is a variable so that it can be overridden in tests.
var ClientFactory = mqtt.NewClient

// New creates a sink; call Connect before Publish.
func New(opts Options, logger *logrus.Logger) *Sink {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID
	}
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	co.SetCleanSession(true)
	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(5 * time.Second)
	co.SetMaxReconnectInterval(60 * time.Second)
	co.SetKeepAlive(30 * time.Second)
	co.SetOnConnectHandler(func(mqtt.Client) {
		logger.WithField("broker", opts.Broker).Info("MQTT connected")
	})
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.WithError(err).Warn("MQTT connection lost")
	})

	return &Sink{
		client: ClientFactory(co),
		topic:  opts.Topic,
		retain: opts.Retain,
		logger: logger,
	}
}

// Connect waits for the initial broker connection or ctx. Connect retry is on,
// so an unreachable broker keeps it waiting rather than failing.
func (s *Sink) Connect(ctx context.Context) error {
	token := s.client.Connect()
	for {
		if token.WaitTimeout(connectPoll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Publish sends r as JSON with QoS 1.
func (s *Sink) Publish(r pipeline.Reading) error {
	if !s.client.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(NewTelemetry(r))
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	token := s.client.Publish(s.topic, 1, s.retain, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", s.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish reading: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"topic":       s.topic,
		"temperature": r.Temperature,
		"humidity":    r.Humidity,
	}).Debug("Reading published")
	return nil
}

// Close disconnects, letting in-flight messages drain for up to 250ms.
func (s *Sink) Close() {
	s.client.Disconnect(250)
	s.logger.Info("MQTT disconnected")
}
