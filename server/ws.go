package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bartossh/Federation/federation"
	"github.com/bartossh/Federation/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	hubInnerChannelsBufferSize      = 100
	socketWriteWait                 = 10 * time.Second
	socketPongWait                  = 20 * time.Second
	socketPingPeriod                = (socketPongWait * 4) / 5
	socketMaxMessageSize            = 4096
	clientMessageChannelsBufferSize = 512
	socketsCountLimit               = 100
)

const (
	CommandEcho  = "echo"
	CommandEvent = "event"
)

// Message is the message that is used to exchange information between
// the server and the client.
type Message struct {
	Command string            `json:"command"`         // Command is the command that refers to the action handler in websocket protocol.
	Error   string            `json:"error,omitempty"` // Error is the error message that is sent to the client.
	Event   *federation.Event `json:"event,omitempty"` // Event is the committed federation event.
}

type socket struct {
	address string
	hub     *hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{} // closed by the hub when the socket is removed, send is never closed
	log     logger.Logger
}

// wsWrapper authorizes the websocket client with the challenge passed in headers.
// The signature subject is empty.
func (s *server) wsWrapper(ctx context.Context, c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	a, err := authorizationFromHeaders(c)
	if err != nil {
		s.log.Error(fmt.Sprintf("websocket server, %s, from address: %s", err, c.IP()))
		return apiError(ErrUnauthorized)
	}
	caller, err := s.authorizeParticipant(a, nil)
	if err != nil {
		return apiError(err)
	}

	client := &socket{
		address: string(caller),
		hub:     s.hub,
		conn:    nil,
		send:    make(chan []byte, clientMessageChannelsBufferSize),
		done:    make(chan struct{}),
		log:     s.log,
	}

	ctxx, cancel := context.WithCancel(ctx)
	serveWs := func(conn *websocket.Conn) {
		defer cancel()
		client.conn = conn
		client.hub.register <- client
		written := make(chan struct{})
		go func() {
			defer close(written)
			client.writePump(ctxx, cancel)
		}()
		client.readPump(ctxx, cancel)
		cancel()
		// conn goes back to the pool once the handler returns
		<-written
	}
	s.log.Info(fmt.Sprintf("websocket server, new connection from address: %s accepted", caller))

	return websocket.New(serveWs)(c)
}

func authorizationFromHeaders(c *fiber.Ctx) (Authorization, error) {
	a := Authorization{Address: c.Get("Address")}
	if a.Address == "" {
		return a, fmt.Errorf("no address provided")
	}
	data, err := hex.DecodeString(c.Get("Data"))
	if err != nil || len(data) == 0 {
		return a, fmt.Errorf("data not in hex format")
	}
	signature, err := hex.DecodeString(c.Get("Signature"))
	if err != nil || len(signature) == 0 {
		return a, fmt.Errorf("signature not in hex format")
	}
	hash, err := hex.DecodeString(c.Get("Hash"))
	if err != nil || len(hash) != len(a.Hash) {
		return a, fmt.Errorf("hash not in hex format")
	}
	a.Data = data
	a.Signature = signature
	copy(a.Hash[:], hash)
	return a, nil
}

func (c *socket) readPump(ctx context.Context, cancel context.CancelFunc) {
	c.conn.SetReadLimit(socketMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(socketPongWait)); return nil })

	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			switch {
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
				c.log.Info(fmt.Sprintf("socket closing connection to the client %s due to unexpected error %s", c.address, err))
			default:
				c.log.Info(fmt.Sprintf("socket closing connection to the client %s due to error %s", c.address, err))
			}
			cancel()
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
			c.process(&msg)
		}
	}
}

func (c *socket) writePump(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(socketPingPeriod)
	defer func() {
		ticker.Stop()
		select {
		case c.hub.unregister <- c:
		case <-c.done:
		case <-c.hub.stopped:
		}
		err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "federation node stopped"))
		if err != nil {
			c.log.Error(fmt.Sprintf("federation node write closing msg error, %s", err.Error()))
		}
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			c.log.Info(fmt.Sprintf("socket closing connection to the client %s removed by the hub", c.address))
			cancel()
			return
		case raw := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.log.Error(fmt.Sprintf("socket closing connection to the client %s due to %s", c.address, err))
				cancel()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte(c.address)); err != nil {
				c.log.Error(fmt.Sprintf("socket closing connection to the client %s due to %s", c.address, err))
				cancel()
				return
			}
		}
	}
}

type hub struct {
	clients    map[*socket]struct{}
	broadcast  chan *Message
	register   chan *socket
	unregister chan *socket
	stopped    chan struct{}
	log        logger.Logger
}

func newHub(log logger.Logger) *hub {
	return &hub{
		broadcast:  make(chan *Message, hubInnerChannelsBufferSize),
		register:   make(chan *socket, hubInnerChannelsBufferSize),
		unregister: make(chan *socket, hubInnerChannelsBufferSize),
		stopped:    make(chan struct{}),
		clients:    make(map[*socket]struct{}, hubInnerChannelsBufferSize),
		log:        log,
	}
}

func (h *hub) run(ctx context.Context) {
	defer close(h.stopped)
outer:
	for {
		select {
		case client := <-h.register:
			if len(h.clients) >= socketsCountLimit {
				h.log.Warn(fmt.Sprintf("hub rejected client %s, max number of sockets reached", client.address))
				close(client.done)
				continue
			}
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			h.remove(client)
		case message := <-h.broadcast:
			raw, err := json.Marshal(message)
			if err != nil {
				h.log.Error(fmt.Sprintf("hub failed to marshal message: %s", err.Error()))
				continue outer
			}
			for client := range h.clients {
				select {
				case client.send <- raw:
				default:
					h.log.Warn(fmt.Sprintf("hub client %s is too slow, closing connection", client.address))
					h.remove(client)
				}
			}
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			break outer
		}
	}
}

func (h *hub) remove(client *socket) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.done)
}

func (c *socket) process(msg *Message) {
	switch msg.Command {
	case CommandEcho:
		c.sendCommand(msg)
	default:
		c.log.Info(fmt.Sprintf("socket received unknown command %s", msg.Command))
		c.sendCommand(setCommandError(msg, fmt.Errorf("unknown command %s", msg.Command)))
	}
}

func setCommandError(msg *Message, err error) *Message {
	msg.Error = err.Error()
	return msg
}

func (c *socket) sendCommand(msg *Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		c.log.Error(fmt.Sprintf("socket failed to marshal message: %s", err.Error()))
		return
	}
	select {
	case <-c.done:
	case c.send <- raw:
	default:
		c.log.Warn(fmt.Sprintf("socket dropped reply to the client %s, send buffer is full", c.address))
	}
}
