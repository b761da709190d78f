package hub

import (
	"encoding/json"
	"fmt"

	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/GauravPawar101/Validate-me/pkg/mqtt"
)

// MQTTTickPublisher publishes each tick as JSON to <topic>/<websiteId>.
type MQTTTickPublisher struct {
	publisher mqtt.Publisher
	topic     string
	qos       byte
}

// NewMQTTTickPublisher creates a publisher on top of an MQTT publish chain.
func NewMQTTTickPublisher(publisher mqtt.Publisher, topic string, qos int) *MQTTTickPublisher {
	return &MQTTTickPublisher{publisher: publisher, topic: topic, qos: byte(qos)}
}

func (p *MQTTTickPublisher) PublishTick(tick models.Tick) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("failed to serialize tick: %w", err)
	}
	return p.publisher.Publish(p.topic+"/"+tick.TargetID, p.qos, false, payload)
}
