package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"devconnector/middleware"
	"devconnector/models"
	"devconnector/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.Handler(testSecret))
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	user := &models.User{ID: primitive.NewObjectID(), Name: "Ann"}
	token, err := middleware.NewToken(testSecret, time.Hour, user)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubRejectsMissingToken(t *testing.T) {
	_, srv := startHub(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHubDeliversFeedAndPostEvents(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)

	msg := readEnvelope(t, conn)
	assert.Equal(t, "connected", msg["type"])
	assert.Equal(t, 1, hub.ConnectedClients())

	post := models.NewPost(primitive.NewObjectID(), "hi", "Ann", "")
	actor := primitive.NewObjectID()

	hub.NotifyPost(service.EventPostCreated, actor, post)
	msg = readEnvelope(t, conn)
	assert.Equal(t, service.EventPostCreated, msg["type"])
	payload := msg["payload"].(map[string]interface{})
	assert.Equal(t, post.ID.Hex(), payload["postId"])
	assert.Equal(t, actor.Hex(), payload["userId"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "channel": PostChannel(post.ID)}))
	msg = readEnvelope(t, conn)
	assert.Equal(t, "subscribed", msg["type"])

	post.Likes = append(post.Likes, models.Like{User: actor})
	hub.NotifyPost(service.EventPostLiked, actor, post)
	msg = readEnvelope(t, conn)
	assert.Equal(t, service.EventPostLiked, msg["type"])
	assert.EqualValues(t, 1, msg["payload"].(map[string]interface{})["likes"])
}

func TestHubGreetsEveryConnection(t *testing.T) {
	hub, srv := startHub(t)

	for i := 0; i < 5; i++ {
		conn := dial(t, srv)
		msg := readEnvelope(t, conn)
		require.Equal(t, "connected", msg["type"], "connection %d", i)
		payload := msg["payload"].(map[string]interface{})
		assert.Equal(t, []interface{}{FeedChannel}, payload["channels"])
		assert.NotEmpty(t, payload["userId"])
	}
	assert.Equal(t, 5, hub.ConnectedClients())
}

func TestHubSkipsUnsubscribedPosts(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	readEnvelope(t, conn)

	other := models.NewPost(primitive.NewObjectID(), "elsewhere", "", "")
	hub.NotifyPost(service.EventCommentAdded, primitive.NewObjectID(), other)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	msg := readEnvelope(t, conn)
	assert.Equal(t, "pong", msg["type"])
}

func TestHubRejectsUnknownChannel(t *testing.T) {
	_, srv := startHub(t)
	conn := dial(t, srv)
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "channel": "chats"}))
	msg := readEnvelope(t, conn)
	assert.Equal(t, "error", msg["type"])
}

func TestValidChannel(t *testing.T) {
	assert.True(t, validChannel(FeedChannel))
	assert.True(t, validChannel(PostChannel(primitive.NewObjectID())))
	assert.False(t, validChannel("post:"))
	assert.False(t, validChannel("post:xyz"))
	assert.False(t, validChannel("chat:1"))
}
