package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/levenlabs/go-lflag"

	"github.com/mephdrac/powergroup/discovery"
	"github.com/mephdrac/powergroup/hass"
	pglog "github.com/mephdrac/powergroup/log"
	"github.com/mephdrac/powergroup/mqtt"
	adapter "github.com/mephdrac/powergroup/mqtt/adapter/autopaho"
)

type mqttOptions struct {
	broker   *url.URL
	clientID string
	username string
	password string

	discoveryPrefix string
}

func mqttConfigured() *mqttOptions {
	o := &mqttOptions{}

	broker := lflag.String("mqtt-broker", "mqtt://localhost:1883", "URL of the MQTT broker Home Assistant is connected to")
	clientID := lflag.String("mqtt-client-id", "powergroup", "MQTT client id, must be unique on the broker")
	username := lflag.String("mqtt-username", "", "MQTT username")
	password := lflag.String("mqtt-password", "", "MQTT password")
	discoveryPrefix := lflag.String("discovery-prefix", discovery.DefaultPrefix, "Home Assistant MQTT discovery prefix")

	lflag.Do(func() {
		u, err := url.Parse(*broker)
		if err != nil {
			panic(fmt.Errorf("invalid --mqtt-broker: %w", err))
		}

		o.broker = u
		o.clientID = *clientID
		o.username = *username
		o.password = *password
		o.discoveryPrefix = *discoveryPrefix
	})

	return o
}

// dial connects to the broker with a last will that marks willTopic offline and subscribes to the status of Home
// Assistant.
func (o *mqttOptions) dial(ctx context.Context, willTopic string) (*adapter.Connection, *mqtt.RemoteValue[hass.Availability], error) {
	log := pglog.ForComponent("mqtt").With(slog.String("broker", o.broker.Redacted()))

	cfg := autopaho.ClientConfig{
		ServerUrls: []*url.URL{o.broker},
		KeepAlive:  20,

		// Seconds the broker keeps the session after a disconnect so queued messages survive a short outage.
		SessionExpiryInterval: 60,

		ConnectUsername: o.username,
		ConnectPassword: []byte(o.password),

		WillMessage: &paho.WillMessage{
			Topic:   willTopic,
			Payload: []byte(hass.Unavailable),
			QoS:     byte(mqtt.QOSAtLeastOnce),
			Retain:  true,
		},

		OnConnectionUp: func(*autopaho.ConnectionManager, *paho.Connack) {
			log.Info("mqtt connected")
		},
		OnConnectError: func(err error) {
			log.With(pglog.Error(err)).Error("mqtt connection error")
		},

		ClientConfig: paho.ClientConfig{
			ClientID: o.clientID,
			OnClientError: func(err error) {
				log.With(pglog.Error(err)).Error("mqtt client error")
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				log := log.With(slog.Int("reason", int(d.ReasonCode)))
				if d.Properties != nil {
					log = log.With(slog.String("reason_string", d.Properties.ReasonString))
				}

				log.Warn("Disconnected from server")
			},
		},
	}

	log.Info("Connecting to mqtt")
	conn, err := adapter.Dial(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	hassAvailability := discovery.HomeAssistantAvailability(o.discoveryPrefix)
	if err = conn.Subscribe(ctx, hassAvailability, hassAvailability.AppendSubscribeOptions(nil, "")...); err != nil {
		_ = conn.Disconnect(context.WithoutCancel(ctx))
		return nil, nil, fmt.Errorf("subscribe to home assistant status: %w", err)
	}

	return conn, hassAvailability, nil
}
