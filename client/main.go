package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/chessrelay/network"
)

const usage = `commands:
  name <display name>
  create
  join <roomId>
  move <roomId> <json move>
  close <roomId>`

// send encodes one event and writes it to the server.
func send(c *websocket.Conn, event string, ack *uint64, payload any) error {
	msg, err := network.NewMessage(event, payload)
	if err != nil {
		return err
	}
	msg.Ack = ack
	frame, err := msg.Encode()
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, frame)
}

// command turns one input line into an event and its payload.
func command(line string) (string, any, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, false
	}
	switch fields[0] {
	case "name":
		return network.EventUsername, map[string]string{"name": strings.TrimSpace(strings.TrimPrefix(line, "name"))}, true
	case "create":
		return network.EventCreateRoom, nil, true
	case "join":
		if len(fields) != 2 {
			return "", nil, false
		}
		return network.EventJoinRoom, map[string]string{"roomId": fields[1]}, true
	case "move":
		if len(fields) < 3 {
			return "", nil, false
		}
		move := strings.TrimSpace(strings.SplitN(line, fields[1], 2)[1])
		if !json.Valid([]byte(move)) {
			return "", nil, false
		}
		return network.EventMove, map[string]any{"room": fields[1], "move": json.RawMessage(move)}, true
	case "close":
		if len(fields) != 2 {
			return "", nil, false
		}
		return network.EventCloseRoom, map[string]string{"roomId": fields[1]}, true
	}
	return "", nil, false
}

func main() {
	addr := flag.String("addr", "localhost:8080", "relay server address")
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, frame, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			msg, err := network.Decode(frame)
			if err != nil {
				log.Printf("Received invalid frame: %v", err)
				continue
			}
			log.Printf("<- RECV %s: %s", msg.Event, string(msg.Data))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	log.Println(usage)

	var nextAck uint64
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
		case line, ok := <-lines:
			if !ok {
				return
			}
			event, payload, valid := command(line)
			if !valid {
				log.Println(usage)
				continue
			}
			nextAck++
			ack := nextAck
			if err := send(c, event, &ack, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT %s", event)
		}
	}
}
