package transport

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mikabele/canoe/event"
)

// WSSource is an http.Handler that upgrades each connecting client to a
// WebSocket and decodes every inbound text frame as an event.Update.
// Grounded on cmd/mcrew/service-ws.go's WebSocketService: a
// websocket.Upgrader with default options, one reader goroutine per
// connection.
type WSSource struct {
	Upgrader websocket.Upgrader
	out      chan<- event.Update
}

// NewWSSource builds a WSSource that forwards decoded updates to out.
func NewWSSource(out chan<- event.Update) *WSSource {
	return &WSSource{out: out}
}

// ServeHTTP upgrades the connection and reads frames until the client
// disconnects or the request's context (r.Context) is done.
func (s *WSSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("transport: ws upgrade: %s", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			log.Printf("transport: ws read: %s", err)
			return
		}
		u, err := decodeUpdate(payload)
		if err != nil {
			logDecodeError("ws", payload, err)
			continue
		}
		select {
		case s.out <- u:
		case <-ctx.Done():
			return
		}
	}
}

// Run registers s at path on mux and serves until ctx is done.
func (s *WSSource) Run(ctx context.Context, mux *http.ServeMux, path string, addr string) error {
	mux.Handle(path, s)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
