package mqtt_middleware

import (
	"fmt"
	"time"

	"github.com/GauravPawar101/Validate-me/pkg/mqtt"
)

const publishTimeout = 5 * time.Second

// ChainedMQTTClient wraps an MQTT client with a middleware chain.
type ChainedMQTTClient struct {
	middlewares []MQTTMiddleware
	direct      *directMQTTClient
}

var _ mqtt.Publisher = (*ChainedMQTTClient)(nil)

// NewChainedMQTTClient creates a new chained MQTT client. Middlewares run in order.
func NewChainedMQTTClient(mqttClient mqtt.MQTTClient, middlewares []MQTTMiddleware) *ChainedMQTTClient {
	direct := &directMQTTClient{mqttClient: mqttClient, timeout: publishTimeout}
	for i := 0; i < len(middlewares)-1; i++ {
		middlewares[i].SetNext(middlewares[i+1])
	}
	if len(middlewares) > 0 {
		middlewares[len(middlewares)-1].SetNext(direct)
	}
	return &ChainedMQTTClient{
		middlewares: middlewares,
		direct:      direct,
	}
}

// Publish sends a message through the middleware chain.
func (c *ChainedMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	if len(c.middlewares) == 0 {
		return c.direct.Publish(topic, qos, retained, payload)
	}
	return c.middlewares[0].Publish(topic, qos, retained, payload)
}

// directMQTTClient is the end of the chain and delegates to the MQTT client.
type directMQTTClient struct {
	mqttClient mqtt.MQTTClient
	timeout    time.Duration
}

func (d *directMQTTClient) SetNext(_ MQTTMiddleware) {}

func (d *directMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	token := d.mqttClient.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(d.timeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}
