// Package service holds the profile and post operations: the embedded
// collection engine, profile upsert, post ownership checks and the account
// cascade.
package service

import (
	"devconnector/models"
	"devconnector/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Identity is the authenticated caller. Every privileged operation takes it
// explicitly.
type Identity struct {
	UserID primitive.ObjectID
	Name   string
	Avatar string
}

// Post activity kinds published to the Notifier.
const (
	EventPostCreated    = "post_created"
	EventPostDeleted    = "post_deleted"
	EventPostLiked      = "post_liked"
	EventPostUnliked    = "post_unliked"
	EventCommentAdded   = "comment_added"
	EventCommentRemoved = "comment_removed"
)

// Notifier receives post activity after it has been committed.
type Notifier interface {
	NotifyPost(event string, actor primitive.ObjectID, post *models.Post)
}

type nopNotifier struct{}

func (nopNotifier) NotifyPost(string, primitive.ObjectID, *models.Post) {}

type Services struct {
	Users    *UserService
	Profiles *ProfileService
	Posts    *PostService
	Accounts *AccountService
}

func New(s store.Store, notifier Notifier) *Services {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Services{
		Users:    NewUserService(s.Users()),
		Profiles: NewProfileService(s.Profiles(), s.Users()),
		Posts:    NewPostService(s.Posts(), notifier),
		Accounts: NewAccountService(s),
	}
}

// parseID turns a path id into an ObjectID. Malformed ids can't name any
// document, so they fail the same way a missing one does.
func parseID(hex string, missing func() error) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, missing()
	}
	return id, nil
}
