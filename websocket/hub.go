// Package websocket pushes post activity to connected clients.
//
// Every client receives feed events (post created or deleted). Clients that
// subscribe to "post:<id>" also receive likes and comments on that post.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"devconnector/logger"
	"devconnector/middleware"
	"devconnector/models"
	"devconnector/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	FeedChannel = "posts"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 512
	sendBuffer = 64
)

// PostChannel names the channel carrying activity on one post.
func PostChannel(postID primitive.ObjectID) string {
	return "post:" + postID.Hex()
}

type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type PostActivity struct {
	PostID   string `json:"postId"`
	UserID   string `json:"userId"`
	Likes    int    `json:"likes"`
	Comments int    `json:"comments"`
	Time     int64  `json:"time"`
}

type delivery struct {
	channels []string
	data     []byte
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
	hub    *Hub

	mu   sync.Mutex
	subs map[string]bool
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan delivery, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run dispatches until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			// first message on every connection
			if msg, ok := encode("connected", gin.H{"userId": client.userID, "channels": []string{FeedChannel}}); ok {
				client.send <- msg
			}
			n := len(h.clients)
			h.mu.Unlock()
			logger.Log.WithField("user", client.userID).Debugf("websocket client registered, %d connected", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			logger.Log.WithField("user", client.userID).Debugf("websocket client unregistered, %d connected", n)

		case d := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.subscribedAny(d.channels) {
					continue
				}
				select {
				case client.send <- d.data:
				default:
					// slow consumer
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NotifyPost publishes committed post activity. It never blocks the caller;
// when the hub is backed up the event is dropped.
func (h *Hub) NotifyPost(event string, actor primitive.ObjectID, post *models.Post) {
	msg, err := json.Marshal(Envelope{
		Type: event,
		Payload: PostActivity{
			PostID:   post.ID.Hex(),
			UserID:   actor.Hex(),
			Likes:    len(post.Likes),
			Comments: len(post.Comments),
			Time:     time.Now().Unix(),
		},
	})
	if err != nil {
		logger.Log.WithError(err).Error("marshal post activity")
		return
	}

	channels := []string{PostChannel(post.ID)}
	if event == service.EventPostCreated || event == service.EventPostDeleted {
		channels = append(channels, FeedChannel)
	}

	select {
	case h.broadcast <- delivery{channels: channels, data: msg}:
	default:
		logger.Log.WithField("event", event).Warn("websocket hub backed up, dropping event")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades requests carrying a valid ?token= to a websocket.
func (h *Hub) Handler(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		who, err := middleware.ParseToken(secret, c.Query("token"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Log.WithError(err).Warn("websocket upgrade failed")
			return
		}

		client := &Client{
			conn:   conn,
			userID: who.UserID.Hex(),
			send:   make(chan []byte, sendBuffer),
			hub:    h,
			subs:   map[string]bool{FeedChannel: true},
		}
		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) subscribedAny(channels []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if c.subs[ch] {
			return true
		}
	}
	return false
}

func (c *Client) setSubscribed(channel string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.subs[channel] = true
	} else {
		delete(c.subs, channel)
	}
}

type inbound struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.WithError(err).WithField("user", c.userID).Warn("websocket read")
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply("error", gin.H{"message": "invalid message"})
			continue
		}

		switch msg.Type {
		case "subscribe":
			if !validChannel(msg.Channel) {
				c.reply("error", gin.H{"message": "unknown channel"})
				continue
			}
			c.setSubscribed(msg.Channel, true)
			c.reply("subscribed", gin.H{"channel": msg.Channel})
		case "unsubscribe":
			c.setSubscribed(msg.Channel, false)
			c.reply("unsubscribed", gin.H{"channel": msg.Channel})
		case "ping":
			c.reply("pong", gin.H{"time": time.Now().Unix()})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a message for this client only. Replies after the hub has
// dropped the client are discarded.
func (c *Client) reply(kind string, payload interface{}) {
	msg, ok := encode(kind, payload)
	if !ok {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, live := c.hub.clients[c]; !live {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func encode(kind string, payload interface{}) ([]byte, bool) {
	msg, err := json.Marshal(Envelope{Type: kind, Payload: payload})
	if err != nil {
		logger.Log.WithError(err).WithField("type", kind).Error("marshal websocket message")
		return nil, false
	}
	return msg, true
}

func validChannel(ch string) bool {
	if ch == FeedChannel {
		return true
	}
	if len(ch) <= len("post:") || ch[:len("post:")] != "post:" {
		return false
	}
	_, err := primitive.ObjectIDFromHex(ch[len("post:"):])
	return err == nil
}
