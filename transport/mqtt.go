package transport

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mikabele/canoe/event"
)

// MQTTSource subscribes to one or more topics and decodes each message
// payload as an event.Update. Grounded on cmd/sio/mqtt.go's
// MQTTCouplings: a paho Client plus a DefaultPublishHandler that
// forwards onto a channel, with an InTimeout guarding against a stalled
// reader.
type MQTTSource struct {
	Client mqtt.Client
	Topics []string
	QoS    byte

	// InTimeout bounds how long a single publish handler invocation
	// will wait to hand its decoded Update to out before dropping it.
	InTimeout time.Duration
}

// NewMQTTSource builds an MQTTSource from broker options, deferring
// the actual connection to Run.
func NewMQTTSource(opts *mqtt.ClientOptions, topics []string, qos byte) *MQTTSource {
	return &MQTTSource{
		Client:    mqtt.NewClient(opts),
		Topics:    topics,
		QoS:       qos,
		InTimeout: time.Second,
	}
}

// Run connects, subscribes to s.Topics, and forwards decoded updates to
// out until ctx is done.
func (s *MQTTSource) Run(ctx context.Context, out chan<- event.Update) error {
	if token := s.Client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("transport: mqtt connect: %w", token.Error())
	}
	defer s.Client.Disconnect(250)

	handler := func(client mqtt.Client, msg mqtt.Message) {
		u, err := decodeUpdate(msg.Payload())
		if err != nil {
			logDecodeError("mqtt", msg.Payload(), err)
			return
		}
		timer := time.NewTimer(s.InTimeout)
		defer timer.Stop()
		select {
		case out <- u:
		case <-ctx.Done():
		case <-timer.C:
			logDecodeError("mqtt", msg.Payload(), fmt.Errorf("stalled delivering to out"))
		}
	}

	for _, topic := range s.Topics {
		if token := s.Client.Subscribe(topic, s.QoS, handler); token.Wait() && token.Error() != nil {
			return fmt.Errorf("transport: mqtt subscribe %s: %w", topic, token.Error())
		}
	}

	<-ctx.Done()
	return nil
}
