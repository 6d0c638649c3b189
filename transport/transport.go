// Package transport adapts external wire protocols into event.Update
// values on a shared channel, the role cmd/sio/mqtt.go's MQTTCouplings
// and cmd/mcrew/service-ws.go's WebSocketService play for a Crew.in
// channel. These are examples, not the only option: production
// deployments are expected to write their own Source for whatever
// transport they actually use; canoe only needs the Source interface
// and Messageable projection to be satisfied.
package transport

import (
	"context"
	"encoding/json"
	"log"

	"github.com/mikabele/canoe/event"
)

// Source delivers decoded updates onto out until ctx is done or the
// underlying connection fails.
type Source interface {
	Run(ctx context.Context, out chan<- event.Update) error
}

// Messageables adapts a channel of raw Updates into a channel of
// Messageables, dropping Update variants with no projection (Edited,
// InlineQuery); the filtering selector pipes assume has already
// happened by the time events reach the matcher.
func Messageables(ctx context.Context, updates <-chan event.Update) <-chan event.Messageable {
	out := make(chan event.Messageable)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				m, is := u.Messageable()
				if !is {
					continue
				}
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func decodeUpdate(payload []byte) (event.Update, error) {
	var u event.Update
	if err := json.Unmarshal(payload, &u); err != nil {
		return event.Update{}, err
	}
	return u, nil
}

func logDecodeError(transport string, payload []byte, err error) {
	log.Printf("transport: %s: couldn't decode payload as an Update: %s: %s", transport, err, payload)
}
