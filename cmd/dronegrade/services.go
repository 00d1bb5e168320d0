package main

import (
	"context"

	"github.com/dronegrade/harness/internal/broker"
	"github.com/dronegrade/harness/internal/config"
	"github.com/dronegrade/harness/internal/telemetry"
	"github.com/dronegrade/harness/internal/vision"
	"github.com/dronegrade/harness/pkg/core"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// services are the MQTT-backed collaborators of a session. Each is optional
// and a broker that cannot be reached only disables it.
type services struct {
	detectors []vision.Detector
	publisher *telemetry.Publisher
	clients   []mqtt.Client
}

func startServices(ctx context.Context, sess *core.Session, logger zerolog.Logger) (*services, error) {
	svc := &services{}
	byBroker := map[string]mqtt.Client{}

	connect := func(cfg broker.Config) (mqtt.Client, error) {
		if c, ok := byBroker[cfg.Broker]; ok {
			return c, nil
		}
		c, err := broker.Connect(cfg, logger)
		if err != nil {
			return nil, err
		}
		byBroker[cfg.Broker] = c
		svc.clients = append(svc.clients, c)
		return c, nil
	}

	if vcfg := config.GetVisionConfig(); vcfg.Enabled {
		client, err := connect(broker.Config{Broker: vcfg.Broker})
		if err != nil {
			logger.Warn().Err(err).Str("broker", vcfg.Broker).Msg("vision feeds disabled")
		} else {
			svc.detectors = append(svc.detectors,
				vision.NewMarkerDetector(vision.NewMQTTFeed(client, vcfg.MarkerTopic), sess.Grading.TargetLabel, logger),
				vision.NewModelDetector(vision.NewMQTTFeed(client, vcfg.ModelTopic), logger),
			)
			logger.Info().Str("markers", vcfg.MarkerTopic).Str("model", vcfg.ModelTopic).Msg("vision feeds configured")
		}
	}

	if tcfg := config.GetTelemetryConfig(); tcfg.Enabled {
		client, err := connect(broker.Config{Broker: tcfg.Broker, Username: tcfg.Username, Password: tcfg.Password})
		if err != nil {
			logger.Warn().Err(err).Str("broker", tcfg.Broker).Msg("score telemetry disabled")
		} else {
			svc.publisher = telemetry.NewPublisher(client, tcfg.Topic, sess, logger)
		}
	}

	select {
	case <-ctx.Done():
		svc.close()
		return nil, ctx.Err()
	default:
	}
	return svc, nil
}

func (s *services) close() {
	for _, c := range s.clients {
		c.Disconnect(250)
	}
}
