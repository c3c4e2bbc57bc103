package service

import (
	"context"
	"sync"
	"testing"

	"devconnector/models"
	"devconnector/store"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordedEvent struct {
	event string
	actor primitive.ObjectID
	post  primitive.ObjectID
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) NotifyPost(event string, actor primitive.ObjectID, post *models.Post) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{event: event, actor: actor, post: post.ID})
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]string, 0, len(n.events))
	for _, e := range n.events {
		kinds = append(kinds, e.event)
	}
	return kinds
}

func newTestServices(t *testing.T) (*Services, *store.MemoryStore, *recordingNotifier) {
	t.Helper()
	mem := store.NewMemoryStore()
	notifier := &recordingNotifier{}
	svc := New(mem, notifier)
	svc.Users.WithHashCost(4)
	return svc, mem, notifier
}

func newIdentity(name string) Identity {
	return Identity{UserID: primitive.NewObjectID(), Name: name, Avatar: "https://avatars.test/" + name}
}

// requireKind asserts err is a service error of the given kind carrying key.
func requireKind(t *testing.T, err error, kind Kind, key string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), err.Error())
	require.Contains(t, Fields(err), key)
}

func seedUser(t *testing.T, mem *store.MemoryStore, who Identity) {
	t.Helper()
	err := mem.Users().Insert(context.Background(), &models.User{
		ID:     who.UserID,
		Name:   who.Name,
		Email:  who.Name + "@example.com",
		Avatar: who.Avatar,
	})
	require.NoError(t, err)
}
