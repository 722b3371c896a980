package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"greendrop/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 2 * time.Second

// Publisher is the subset of mqtt.Client the mirror needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// Mirror republishes hub events to an MQTT broker under <prefix>/<event name>.
type Mirror struct {
	pub    Publisher
	prefix string
	log    *logger.Logger
}

func NewMirror(pub Publisher, prefix string, log *logger.Logger) *Mirror {
	if log == nil {
		log = logger.Nop()
	}
	return &Mirror{pub: pub, prefix: strings.TrimSuffix(prefix, "/"), log: log.Named("mqtt")}
}

// DialMQTT connects to the broker and returns the live client.
func DialMQTT(opts MQTTOptions, log *logger.Logger) (mqtt.Client, error) {
	o := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(time.Second).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(10 * time.Second).
		SetCleanSession(true)
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnw("mqtt_connection_lost", "err", err)
	})

	c := mqtt.NewClient(o)
	if tok := c.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", opts.Broker, tok.Error())
	}
	return c, nil
}

// Topic returns the topic for an event name; dots become slashes.
func (m *Mirror) Topic(name string) string {
	t := strings.ReplaceAll(name, ".", "/")
	if m.prefix == "" {
		return t
	}
	return m.prefix + "/" + t
}

// Run forwards hub events until ctx is canceled.
func (m *Mirror) Run(ctx context.Context, hub *Hub) {
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			m.forward(ev)
		}
	}
}

func (m *Mirror) forward(ev Event) {
	topic := m.Topic(ev.Name)
	tok := m.pub.Publish(topic, 0, ev.Name != Navigate, []byte(ev.Data))
	if !tok.WaitTimeout(publishTimeout) {
		m.log.Warnw("mqtt_publish_timeout", "topic", topic)
		return
	}
	if err := tok.Error(); err != nil {
		m.log.Errorw("mqtt_publish", "topic", topic, "err", err)
	}
}
