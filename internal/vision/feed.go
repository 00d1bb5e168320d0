package vision

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Feed delivers raw detection frames produced by an external vision process.
type Feed interface {
	Subscribe(handler func(frame []byte)) error
	Unsubscribe() error
}

// MQTTFeed receives frames published on an MQTT topic.
type MQTTFeed struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

// NewMQTTFeed creates a feed on topic using an already connected client.
func NewMQTTFeed(client mqtt.Client, topic string) *MQTTFeed {
	return &MQTTFeed{client: client, topic: topic, qos: 0, timeout: 5 * time.Second}
}

func (f *MQTTFeed) Subscribe(handler func(frame []byte)) error {
	token := f.client.Subscribe(f.topic, f.qos, func(_ mqtt.Client, m mqtt.Message) {
		handler(m.Payload())
	})
	if !token.WaitTimeout(f.timeout) {
		return fmt.Errorf("subscribe to %s timed out", f.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", f.topic, err)
	}
	return nil
}

func (f *MQTTFeed) Unsubscribe() error {
	token := f.client.Unsubscribe(f.topic)
	if !token.WaitTimeout(f.timeout) {
		return fmt.Errorf("unsubscribe from %s timed out", f.topic)
	}
	return token.Error()
}

// LocalFeed is an in-process feed. Publish hands the frame to the current
// subscriber synchronously and drops it when there is none.
type LocalFeed struct {
	mu      sync.Mutex
	handler func([]byte)
}

// NewLocalFeed creates an in-process feed.
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{}
}

func (f *LocalFeed) Subscribe(handler func(frame []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handler != nil {
		return fmt.Errorf("feed already has a subscriber")
	}
	f.handler = handler
	return nil
}

func (f *LocalFeed) Unsubscribe() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = nil
	return nil
}

// Publish delivers frame and reports whether anyone received it.
func (f *LocalFeed) Publish(frame []byte) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(frame)
	return true
}
