package mqtt_middleware

// MQTTMiddleware is one link of the publish chain.
type MQTTMiddleware interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) error
	SetNext(next MQTTMiddleware)
}
