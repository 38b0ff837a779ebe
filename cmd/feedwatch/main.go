// Command feedwatch connects to the property feed and prints every event.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"propertyhub/internal/models"

	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:8375", "API host:port")
	secure := flag.Bool("tls", false, "Use wss://")
	token := flag.String("token", os.Getenv("PROPERTYHUB_TOKEN"), "Admin JWT (defaults to $PROPERTYHUB_TOKEN)")
	flag.Parse()

	if *token == "" {
		log.Fatal("An admin token is required: pass -token or set PROPERTYHUB_TOKEN")
	}

	scheme := "ws"
	if *secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: *addr, Path: "/api/ws/properties"}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+*token)

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil {
			log.Fatalf("Dial %s failed with HTTP %d: %v", u.String(), resp.StatusCode, err)
		}
		log.Fatalf("Dial %s failed: %v", u.String(), err)
	}
	defer func() { _ = conn.Close() }()
	log.Printf("📡 Watching %s", u.String())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("Read error: %v", err)
				}
				return
			}
			var msg models.PropertyEvent
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Printf("? %s", data)
				continue
			}
			printEvent(msg)
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func printEvent(msg models.PropertyEvent) {
	switch msg.Type {
	case "connected":
		log.Printf("✓ connected as admin %d", msg.AdminID)
	default:
		log.Printf("%-18s property=%d version=%d images=%d by=%d",
			msg.Type, msg.PropertyID, msg.Version, len(msg.Images), msg.AdminID)
	}
}
