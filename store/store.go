// Package store persists the owner documents (users, profiles and posts).
//
// Profiles and posts are committed as a whole under optimistic versioning:
// Commit replaces the stored document only if its version still matches the
// one the caller loaded, and fails with ErrVersionConflict otherwise. Callers
// reload and retry on conflict.
package store

import (
	"context"
	"fmt"

	"devconnector/models"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrVersionConflict = errors.New("document version conflict")
	ErrDuplicateKey    = errors.New("duplicate key")
)

// DuplicateKeyError reports which unique field rejected a write.
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key on %q", e.Field)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// DuplicateField returns the unique field named by err, or "" if err is not a
// duplicate key failure.
func DuplicateField(err error) string {
	var dup *DuplicateKeyError
	if errors.As(err, &dup) {
		return dup.Field
	}
	return ""
}

// Repository is the load/commit pair the collection engine works against.
type Repository[O any] interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*O, error)
	Commit(ctx context.Context, doc *O) error
}

type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindRefs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserRef, error)
	Insert(ctx context.Context, user *models.User) error
}

type ProfileStore interface {
	Repository[models.Profile]
	FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error)
	FindByHandle(ctx context.Context, handle string) (*models.Profile, error)
	List(ctx context.Context) ([]*models.Profile, error)
	Insert(ctx context.Context, profile *models.Profile) error
}

type PostStore interface {
	Repository[models.Post]
	// List returns every post, newest first.
	List(ctx context.Context) ([]*models.Post, error)
	Insert(ctx context.Context, post *models.Post) error
	// DeleteOwned removes the post only if it belongs to owner.
	DeleteOwned(ctx context.Context, id, owner primitive.ObjectID) error
}

type Store interface {
	Users() UserStore
	Profiles() ProfileStore
	Posts() PostStore
	// DeleteAccount removes a user's profile and the user in one operation.
	// A missing profile or user is not an error.
	DeleteAccount(ctx context.Context, userID primitive.ObjectID) error
	Close(ctx context.Context) error
}
