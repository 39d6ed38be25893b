package ingest

import (
	"context"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	libmqtt "smartpark/backend/libs/mqtt"
)

// DefaultMQTTTopic matches every slot's status topic.
const DefaultMQTTTopic = "parking/slot/+/status"

// MQTTConfig configures the sensor topic subscription.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string
	QoS       byte
}

// MQTTListener subscribes to slot status topics and acknowledges each message only after
// it has been applied or deliberately dropped.
type MQTTListener struct {
	cfg    MQTTConfig
	proc   *Processor
	logger *zap.Logger
}

// NewMQTTListener builds listener.
func NewMQTTListener(cfg MQTTConfig, proc *Processor, logger *zap.Logger) *MQTTListener {
	if cfg.Topic == "" {
		cfg.Topic = DefaultMQTTTopic
	}
	if cfg.QoS > 2 {
		cfg.QoS = 1
	}
	return &MQTTListener{cfg: cfg, proc: proc, logger: logger.With(zap.String("component", "mqtt"))}
}

// Run connects, subscribes on every (re)connect and blocks until ctx is done.
func (l *MQTTListener) Run(ctx context.Context) error {
	handler := l.messageHandler(ctx)
	client, err := libmqtt.NewClient(libmqtt.Options{
		BrokerURL: l.cfg.BrokerURL,
		ClientID:  l.cfg.ClientID,
		Username:  l.cfg.Username,
		Password:  l.cfg.Password,
		ManualAck: true,
		OnConnect: func(c paho.Client) {
			token := c.Subscribe(l.cfg.Topic, l.cfg.QoS, handler)
			token.Wait()
			if err := token.Error(); err != nil {
				l.logger.Error("subscribe failed", zap.String("topic", l.cfg.Topic), zap.Error(err))
				return
			}
			l.logger.Info("subscribed", zap.String("topic", l.cfg.Topic), zap.Uint8("qos", l.cfg.QoS))
		},
		OnConnectionLost: func(_ paho.Client, err error) {
			l.logger.Warn("connection lost", zap.Error(err))
		},
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	client.Disconnect(250)
	l.logger.Info("mqtt listener stopped")
	return nil
}

func (l *MQTTListener) messageHandler(ctx context.Context) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		ev, err := DecodeMQTT(msg.Topic(), msg.Payload())
		if err != nil {
			l.proc.Malformed("mqtt", msg.Payload(), err)
			msg.Ack()
			return
		}
		ev.Source = "mqtt"
		if l.proc.Process(ctx, ev) == Ack {
			msg.Ack()
		}
	}
}
