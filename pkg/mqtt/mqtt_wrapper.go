package mqtt

// Publisher publishes a payload and waits for the broker to accept it.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) error
}
