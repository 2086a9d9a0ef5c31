package announce

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rehab-data/motion.report/internal/monitoring"
)

// MQTT topics for feedback messages.
const (
	TopicReps        = "physio/announce/reps"
	TopicInstruction = "physio/announce/instruction"
)

// MQTT publishes announcements to a broker so speech or UI frontends can
// subscribe. Publishes are QoS 0 and never block the tracking loop.
type MQTT struct {
	client mqtt.Client
}

// DialMQTT connects to the broker (e.g. "tcp://localhost:1883").
func DialMQTT(broker, clientID string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	monitoring.Logf("announce: connected to MQTT broker at %s", broker)
	return &MQTT{client: client}, nil
}

type repMessage struct {
	Repetition int       `json:"repetition"`
	Time       time.Time `json:"time"`
}

type instructionMessage struct {
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Count implements Announcer.
func (m *MQTT) Count(n int) {
	m.publish(TopicReps, repMessage{Repetition: n, Time: time.Now()})
}

// Instruction implements Announcer.
func (m *MQTT) Instruction(text string) {
	m.publish(TopicInstruction, instructionMessage{Text: text, Time: time.Now()})
}

func (m *MQTT) publish(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		monitoring.Logf("announce: marshal %s payload: %v", topic, err)
		return
	}
	m.client.Publish(topic, 0, false, payload)
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
