package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/backkem/rfidlock/pkg/device"
	"github.com/backkem/rfidlock/pkg/identifier"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pion/logging"
)

// Event names published over MQTT.
const (
	EventEnrollmentPrompt = "enrollment_prompt"
	EventEnrolled         = "enrolled"
	EventGranted          = "granted"
	EventDenied           = "denied"
)

// DefaultTopicPrefix is the root of all published topics.
const DefaultTopicPrefix = "rfidlock"

// publishTimeout bounds how long a background publish is awaited for logging.
const publishTimeout = 5 * time.Second

// Publisher is the part of mqtt.Client used for events.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Event is the JSON payload of a published notification.
type Event struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	Device     string    `json:"device"`
	Time       time.Time `json:"time"`
	Credential string    `json:"credential,omitempty"` // fingerprint, never raw bytes
}

// MQTTConfig configures an MQTT feedback output.
type MQTTConfig struct {
	// Client publishes events. Required.
	Client Publisher

	// Device name used in the topic and payload. Required.
	Device string

	// TopicPrefix (default: "rfidlock").
	TopicPrefix string

	// QoS for published events (default: 0).
	QoS byte

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// MQTT publishes enrollment and access events. Publishing never blocks the
// control loop; failures are only logged.
type MQTT struct {
	config MQTTConfig
	topic  string
	log    logging.LeveledLogger
	now    func() time.Time
}

// NewMQTT creates an MQTT output publishing to <prefix>/<device>/events.
func NewMQTT(config MQTTConfig) (*MQTT, error) {
	if config.Client == nil {
		return nil, errors.New("feedback: mqtt client is required")
	}
	if config.Device == "" {
		return nil, errors.New("feedback: device name is required")
	}
	if config.TopicPrefix == "" {
		config.TopicPrefix = DefaultTopicPrefix
	}

	m := &MQTT{
		config: config,
		topic:  EventsTopic(config.TopicPrefix, config.Device),
		now:    time.Now,
	}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("mqtt")
	}
	return m, nil
}

// EventsTopic returns the topic events for device are published on.
func EventsTopic(prefix, device string) string {
	return fmt.Sprintf("%s/%s/events", strings.TrimSuffix(prefix, "/"), device)
}

// Topic returns the events topic.
func (m *MQTT) Topic() string {
	return m.topic
}

// OnIdle is not published.
func (m *MQTT) OnIdle() {}

// OnEnrollmentPrompt publishes EventEnrollmentPrompt.
func (m *MQTT) OnEnrollmentPrompt() { m.publish(EventEnrollmentPrompt, "") }

// OnEnrollmentCommitted publishes EventEnrolled with the credential's
// fingerprint.
func (m *MQTT) OnEnrollmentCommitted(id identifier.Identifier) {
	m.publish(EventEnrolled, id.Fingerprint())
}

// OnAccessGranted publishes EventGranted.
func (m *MQTT) OnAccessGranted() { m.publish(EventGranted, "") }

// OnAccessDenied publishes EventDenied.
func (m *MQTT) OnAccessDenied() { m.publish(EventDenied, "") }

func (m *MQTT) publish(event, credential string) {
	payload, err := json.Marshal(Event{
		ID:         uuid.NewString(),
		Event:      event,
		Device:     m.config.Device,
		Time:       m.now().UTC(),
		Credential: credential,
	})
	if err != nil {
		if m.log != nil {
			m.log.Errorf("marshal %s event: %v", event, err)
		}
		return
	}

	token := m.config.Client.Publish(m.topic, m.config.QoS, false, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			if m.log != nil {
				m.log.Warnf("publish %s to %s: timed out", event, m.topic)
			}
			return
		}
		if err := token.Error(); err != nil && m.log != nil {
			m.log.Warnf("publish %s to %s: %v", event, m.topic, err)
		}
	}()
}

// ClientConfig holds broker connection settings.
type ClientConfig struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Username string
	Password string
}

// Connect creates a paho client that reconnects on its own and waits for the
// first connection.
func Connect(config ClientConfig, loggerFactory logging.LoggerFactory) (mqtt.Client, error) {
	var log logging.LeveledLogger
	if loggerFactory != nil {
		log = loggerFactory.NewLogger("mqtt")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		if log != nil {
			log.Warnf("connection lost: %v", err)
		}
	}
	opts.OnConnect = func(mqtt.Client) {
		if log != nil {
			log.Infof("connected to %s", config.Broker)
		}
	}

	client := mqtt.NewClient(opts)
	if tk := client.Connect(); tk.WaitTimeout(10*time.Second) && tk.Error() != nil {
		return nil, tk.Error()
	}
	return client, nil
}

var _ device.Feedback = (*MQTT)(nil)
