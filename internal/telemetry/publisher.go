// Package telemetry publishes the score of a running session over MQTT.
package telemetry

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/dronegrade/harness/pkg/core"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Topic suffixes under the configured base topic.
const (
	SuffixScore  = "score"
	SuffixEvents = "events"
	SuffixResult = "result"
)

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends score snapshots, score changes and the final result as
// JSON messages with QoS 1. It satisfies grade.Recorder, so snapshots go
// out at the scoring loop's once-per-second cadence.
type Publisher struct {
	mu       sync.Mutex
	client   Client
	topic    string
	metadata map[string]interface{}
	logger   zerolog.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewPublisher creates a publisher for session s under topic.
func NewPublisher(client Client, topic string, s *core.Session, logger zerolog.Logger) *Publisher {
	host, _ := os.Hostname()
	metadata := map[string]interface{}{
		"hostname": host,
		"app":      "dronegrade",
	}
	if s != nil {
		metadata["sessionId"] = s.ID
		metadata["targetLabel"] = s.Grading.TargetLabel
	}
	return &Publisher{
		client:   client,
		topic:    topic,
		metadata: metadata,
		logger:   logger.With().Str("component", "telemetry").Logger(),
		now:      time.Now,
	}
}

// RecordTick publishes a score snapshot.
func (p *Publisher) RecordTick(s core.ScoreSnapshot) {
	p.publish(SuffixScore, s)
}

// RecordEvent publishes collisions, detections and the stop event. Decay
// is already visible in the snapshots.
func (p *Publisher) RecordEvent(e core.ScoreEvent) {
	if e.Kind == core.EventDecay {
		return
	}
	p.publish(SuffixEvents, e)
}

// PublishResult publishes the final accounting as a retained message.
func (p *Publisher) PublishResult(r core.SessionResult) {
	p.send(SuffixResult, r, true)
}

// Wait blocks until every publish issued so far has completed.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

func (p *Publisher) publish(suffix string, payload interface{}) {
	p.send(suffix, payload, false)
}

func (p *Publisher) send(suffix string, payload interface{}, retained bool) {
	if !p.client.IsConnected() {
		return
	}

	topic := p.topic + "/" + suffix
	data, err := json.Marshal(p.buildMessage(payload))
	if err != nil {
		p.logger.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := p.client.Publish(topic, 1, retained, data) // QoS 1
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		token.Wait()
		if token.Error() != nil {
			p.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the payload.
func (p *Publisher) buildMessage(payload interface{}) map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := make(map[string]interface{}, len(p.metadata)+2)
	for k, v := range p.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = p.now().UTC().Format(time.RFC3339)
	return msg
}
