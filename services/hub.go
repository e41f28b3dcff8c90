package services

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub owns the WebSocket surface: it authenticates handshakes, binds
// connections to rooms, and runs the per-connection pumps. All game logic
// lives in the room; the hub only routes frames.
type Hub struct {
	registry *Registry
	verifier IdentityVerifier
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
}

func NewHub(registry *Registry, verifier IdentityVerifier, logger *zap.SugaredLogger) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		registry: registry,
		verifier: verifier,
		logger:   logger.Named("hub"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // origin policy is enforced at the HTTP layer
			},
		},
	}
}

// Serve handles GET /ws/:roomID?token=... The credential is verified and
// the room resolved before the upgrade, so a bad handshake never touches
// room state.
func (h *Hub) Serve(c *gin.Context, roomCode, token string) {
	identity, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	room, err := h.registry.Resolve(roomCode)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	socket, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("upgrade failed for room %s: %v", roomCode, err)
		return
	}

	client := &Client{
		id:       uuid.NewString(),
		hub:      h,
		room:     room,
		identity: *identity,
		socket:   socket,
		send:     make(chan []byte, 64),
		done:     make(chan struct{}),
	}
	h.logger.Infof("client %s connected to room %s as %s", client.id, roomCode, identity.ID)

	go client.writePump()
	client.readPump()
}

// Client is one player's connection session. It implements PlayerConn for
// the room. Outbound frames pass through an ordered buffered channel, so
// each member observes broadcasts in generation order and the room never
// blocks on network I/O.
type Client struct {
	id       string
	hub      *Hub
	room     *Room
	identity Identity
	socket   *websocket.Conn

	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	// attached flips once a create_room/join_room frame has been accepted.
	// Only the readPump goroutine touches it.
	attached bool
}

func (c *Client) Send(frame Outbound) {
	select {
	case c.send <- frame.Encode():
	case <-c.done:
	default:
		// Slow consumer: drop the connection rather than stall the room.
		c.hub.logger.Warnf("client %s send buffer full, closing", c.id)
		c.CloseWithReason("send buffer overflow")
	}
}

// CloseWithReason never blocks the caller: rooms invoke it while holding
// their lock (Send's overflow path), so the close handshake runs on its
// own goroutine. WriteControl is safe concurrently with the writePump.
func (c *Client) CloseWithReason(reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		go func() {
			deadline := time.Now().Add(time.Second)
			_ = c.socket.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
				deadline,
			)
			_ = c.socket.Close()
		}()
	})
}

func (c *Client) readPump() {
	defer func() {
		if c.attached {
			c.room.Disconnect(c.identity.ID, c)
		}
		c.CloseWithReason("connection closed")
	}()

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debugf("client %s read error: %v", c.id, err)
			}
			return
		}

		frame, err := DecodeInbound(data)
		if err != nil {
			c.Send(errorFrame(err))
			continue
		}
		if err := c.dispatch(frame); err != nil {
			c.Send(errorFrame(err))
		}
	}
}

// dispatch routes one inbound frame to the owning room. The frame set is
// closed; DecodeInbound already rejected unknown tags.
func (c *Client) dispatch(frame *InboundFrame) error {
	switch frame.Type {
	case InboundCreateRoom:
		if c.identity.ID != c.room.HostID() {
			return ErrNotHost
		}
		if err := c.room.Attach(c.identity, c, OutboundRoomCreated); err != nil {
			return err
		}
		c.attached = true
		return nil
	case InboundJoinRoom:
		if err := c.room.Attach(c.identity, c, OutboundRoomJoined); err != nil {
			return err
		}
		c.attached = true
		return nil
	case InboundAnswer:
		if !c.attached {
			return errors.New("join the room before answering")
		}
		return c.room.SubmitAnswer(c.identity.ID, *frame.Answer)
	}
	return ErrUnknownMessage
}

func (c *Client) writePump() {
	defer func() {
		_ = c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			w, err := c.socket.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
