package listener

import (
	"context"
	"strings"
	"sync"

	commonmqtt "github.com/Hossein925/f-maharat/internal/common/mqtt"

	"go.uber.org/zap"
)

// MQTTClient is the part of the MQTT client used here.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler commonmqtt.MessageHandler) error
	Unsubscribe(topics ...string) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

var _ MQTTClient = (*commonmqtt.Client)(nil)

// MQTTListener receives notifications on <prefix>/<table> topics.
type MQTTListener struct {
	client MQTTClient
	prefix string
	qos    byte
	logger *zap.Logger
}

// NewMQTTListener creates a listener on prefix/#.
func NewMQTTListener(client MQTTClient, prefix string, qos byte, logger *zap.Logger) *MQTTListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTListener{client: client, prefix: strings.TrimSuffix(prefix, "/"), qos: qos, logger: logger}
}

var _ Listener = (*MQTTListener)(nil)

// Subscribe registers the handler on prefix/#.
func (l *MQTTListener) Subscribe(ctx context.Context, onChange Handler) (Unsubscribe, error) {
	topic := l.prefix + "/#"
	err := l.client.Subscribe(topic, l.qos, func(t string, _ []byte) error {
		table := strings.TrimPrefix(t, l.prefix+"/")
		l.logger.Debug("Change notification", zap.String("table", table))
		onChange(table)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := l.client.Unsubscribe(topic); err != nil {
				l.logger.Warn("Failed to unsubscribe", zap.String("topic", topic), zap.Error(err))
			}
		})
	}, nil
}

// MQTTPublisher publishes on <prefix>/<table>.
type MQTTPublisher struct {
	client MQTTClient
	prefix string
	qos    byte
}

// NewMQTTPublisher creates a publisher under prefix.
func NewMQTTPublisher(client MQTTClient, prefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: strings.TrimSuffix(prefix, "/"), qos: qos}
}

var _ Publisher = (*MQTTPublisher)(nil)

// Publish sends table on prefix/table.
func (p *MQTTPublisher) Publish(_ context.Context, table string) error {
	return p.client.Publish(p.prefix+"/"+table, p.qos, false, []byte(table))
}
