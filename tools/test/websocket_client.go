package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

type serverMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	State     string `json:"state,omitempty"`
	Talking   bool   `json:"talking,omitempty"`
	Code      string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
	Data      string `json:"data,omitempty"`
}

func main() {
	host := flag.String("host", "localhost:8080", "server host")
	duration := flag.Duration("duration", 10*time.Second, "how long to keep the session open")
	flag.Parse()

	wsURL := url.URL{Scheme: "ws", Host: *host, Path: "/ws/live"}
	fmt.Printf("Connecting to: %s\n", wsURL.String())

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("WebSocket connection failed with status %d: %v", resp.StatusCode, err)
		}
		log.Fatalf("WebSocket connection failed: %v", err)
	}
	defer conn.Close()
	fmt.Println("✓ Connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg serverMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				fmt.Printf("? %s\n", data)
				continue
			}
			switch msg.Type {
			case "state":
				fmt.Printf("state: %s (%s)\n", msg.State, msg.SessionID)
			case "talking":
				fmt.Printf("talking: %v\n", msg.Talking)
			case "error":
				fmt.Printf("error: %s %s\n", msg.Code, msg.Message)
			case "pong":
				fmt.Printf("pong: %s\n", msg.Data)
			}
		}
	}()

	send := func(v map[string]string) {
		if err := conn.WriteJSON(v); err != nil {
			log.Fatalf("Failed to send %v: %v", v, err)
		}
	}

	send(map[string]string{"type": "ping", "data": "smoke"})
	send(map[string]string{"type": "start"})

	select {
	case <-time.After(*duration):
	case <-done:
		log.Fatal("Server closed the connection")
	}

	send(map[string]string{"type": "stop"})
	time.Sleep(500 * time.Millisecond)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	fmt.Println("✓ Session stopped")
}
