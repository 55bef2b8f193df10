package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// writeMu serializes writes; auto-typing runs on its own goroutine.
var writeMu sync.Mutex

// send writes one JSON envelope to the server.
func send(c *websocket.Conn, event string, data interface{}) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	return c.WriteJSON(message{Event: event, Data: data})
}

// autoType simulates racing a 200-character text at the given pace,
// streaming progress twice a second and finishing at 100%.
func autoType(c *websocket.Conn, wpm float64) {
	if wpm <= 0 {
		wpm = 60
	}
	const textChars = 200.0
	charsPerSec := wpm * 5.0 / 60.0
	totalSecs := textChars / charsPerSec

	start := time.Now()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		pct := time.Since(start).Seconds() / totalSecs * 100
		if pct >= 100 {
			break
		}
		if err := send(c, "progress", map[string]float64{
			"progress": pct,
			"wpm":      wpm,
			"accuracy": 97,
		}); err != nil {
			return
		}
	}

	send(c, "finished", map[string]float64{"wpm": wpm, "accuracy": 97})
}

func main() {
	host := flag.String("host", "localhost:8080", "server host:port")
	name := flag.String("name", "tester", "username to join with")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	playerID := uuid.New().String()
	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			var msg json.RawMessage
			if err := c.ReadJSON(&msg); err != nil {
				log.Println("Read error:", err)
				return
			}
			log.Printf("<- RECV: %s", string(msg))
		}
	}()

	// Keepalive: the server drops connections silent for too long.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := send(c, "ping", nil); err != nil {
					return
				}
			}
		}
	}()

	log.Println("Commands: join <roomID> | ready | auto <wpm> | progress <0-100> | done | vote <topic> | rematch | find <rating> | cancel | leave")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(strings.TrimSpace(text))
			if len(fields) == 0 {
				continue
			}

			var err error
			switch fields[0] {
			case "join":
				if len(fields) < 2 {
					log.Println("usage: join <roomID>")
					continue
				}
				err = send(c, "join", map[string]string{
					"roomId":   fields[1],
					"playerId": playerID,
					"username": *name,
				})
			case "ready":
				err = send(c, "set_ready", nil)
			case "auto":
				wpm := 60.0
				if len(fields) > 1 {
					wpm, _ = strconv.ParseFloat(fields[1], 64)
				}
				go autoType(c, wpm)
				continue
			case "progress":
				if len(fields) < 2 {
					log.Println("usage: progress <0-100>")
					continue
				}
				pct, _ := strconv.ParseFloat(fields[1], 64)
				err = send(c, "progress", map[string]float64{
					"progress": pct,
					"wpm":      60,
					"accuracy": 97,
				})
			case "done":
				err = send(c, "finished", nil)
			case "vote":
				if len(fields) < 2 {
					log.Println("usage: vote <topic>")
					continue
				}
				err = send(c, "vote", map[string]string{"topic": fields[1]})
			case "rematch":
				err = send(c, "rematch", nil)
			case "find":
				rating := 1000
				if len(fields) > 1 {
					rating, _ = strconv.Atoi(fields[1])
				}
				err = send(c, "find_match", map[string]interface{}{
					"playerId": playerID,
					"username": *name,
					"rating":   rating,
				})
			case "cancel":
				err = send(c, "cancel_match", nil)
			case "leave":
				err = send(c, "leave", nil)
			default:
				log.Printf("unknown command %q", fields[0])
				continue
			}

			if err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
