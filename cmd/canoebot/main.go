// Command canoebot wires a WebSocket transport, the conversation
// demultiplexer, a ledger of completed runs, and one scripted scenario
// document into a running service, following cmd/mservice/main.go's
// flag-driven service assembly, generalized from sheens machines to
// scripted scenarios.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/mikabele/canoe/demux"
	"github.com/mikabele/canoe/event"
	"github.com/mikabele/canoe/ledger"
	"github.com/mikabele/canoe/scenario"
	"github.com/mikabele/canoe/script"
	"github.com/mikabele/canoe/transport"
)

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.LUTC)
}

func main() {
	var (
		addr        = flag.String("h", ":8080", "WebSocket listen address")
		path        = flag.String("p", "/ws", "WebSocket path")
		scriptFile  = flag.String("s", "", "scenario document (YAML) to run per conversation")
		ledgerFile  = flag.String("l", "canoe.ledger", "ledger file for completed scenario outcomes")
		idleTimeout = flag.Duration("idle", 10*time.Minute, "evict a conversation after this much inactivity (0 to disable)")
	)
	flag.Parse()

	if *scriptFile == "" {
		log.Fatal("canoebot: -s (scenario document) is required")
	}

	src, err := os.ReadFile(*scriptFile)
	if err != nil {
		log.Fatalf("canoebot: reading %s: %s", *scriptFile, err)
	}
	doc, err := script.Parse(src)
	if err != nil {
		log.Fatalf("canoebot: parsing %s: %s", *scriptFile, err)
	}

	led, err := ledger.Open(*ledgerFile)
	if err != nil {
		log.Fatalf("canoebot: opening ledger %s: %s", *ledgerFile, err)
	}
	defer led.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	build := func(conversationID string) scenario.Scenario[interface{}] {
		s, err := script.Compile(doc)
		if err != nil {
			log.Fatalf("canoebot: compiling %s: %s", doc.Name, err)
		}
		return s
	}

	d := demux.New(build, ledger.Recorder[interface{}](led), *idleTimeout)

	updates := make(chan event.Update, 256)
	ws := transport.NewWSSource(updates)

	mux := http.NewServeMux()
	go func() {
		if err := ws.Run(ctx, mux, *path, *addr); err != nil {
			log.Printf("canoebot: websocket source: %s", err)
		}
	}()

	go d.Run(ctx, transport.Messageables(ctx, updates))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	log.Printf("canoebot: shutting down")
	cancel()
}
