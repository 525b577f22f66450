// Command ledhub runs the control-plane server: device registration and a
// websocket fan-out for animation commands.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/bdcabreran/ledanimator/transport"
)

func main() {
	addr := flag.String("addr", envOr("PORT_ADDR", ":8080"), "listen address")
	flag.Parse()

	logger := log.New(os.Stderr, "ledhub: ", log.LstdFlags)

	hub := transport.NewHub()
	logger.Printf("listening on %s", *addr)
	logger.Fatal(http.ListenAndServe(*addr, hub.Router()))
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
