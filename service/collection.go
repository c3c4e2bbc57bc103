package service

import (
	"context"
	"slices"

	"devconnector/logger"
	"devconnector/store"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultCommitAttempts = 5

// CollectionSpec describes one embedded sequence inside owner type O.
type CollectionSpec[O any, E any] struct {
	// Name is used in logs.
	Name string
	// Entries selects the sequence inside the owner.
	Entries func(owner *O) *[]E
	// Key returns the identifying key of an entry.
	Key func(entry *E) string
	// AssignID gives a new entry its identifier. Nil for collections keyed
	// by something the caller supplies.
	AssignID func(entry *E)
	// Front inserts new entries at the head, newest first. Otherwise new
	// entries are appended.
	Front bool
	// Unique rejects an Append whose key is already present.
	Unique bool

	OwnerMissing func() error
	Duplicate    func() error
	EntryMissing func() error
}

// Guard inspects the loaded owner and the matched entry before a removal and
// may veto it.
type Guard[O any, E any] func(owner *O, entry *E) error

// Collection applies append/remove operations to one embedded sequence.
// Each operation loads the owner, mutates it in memory and commits it with
// a version check, reloading and re-applying on conflict.
type Collection[O any, E any] struct {
	repo     store.Repository[O]
	spec     CollectionSpec[O, E]
	attempts int
}

func NewCollection[O any, E any](repo store.Repository[O], spec CollectionSpec[O, E]) *Collection[O, E] {
	return &Collection[O, E]{repo: repo, spec: spec, attempts: defaultCommitAttempts}
}

// Append adds entry to the owner's sequence and returns the updated owner.
func (c *Collection[O, E]) Append(ctx context.Context, ownerID primitive.ObjectID, entry E) (*O, error) {
	if c.spec.AssignID != nil {
		c.spec.AssignID(&entry)
	}
	key := c.spec.Key(&entry)

	return c.mutate(ctx, ownerID, func(owner *O) error {
		entries := c.spec.Entries(owner)
		if c.spec.Unique && c.index(*entries, key) >= 0 {
			return c.spec.Duplicate()
		}

		if c.spec.Front {
			*entries = slices.Insert(*entries, 0, entry)
		} else {
			*entries = append(*entries, entry)
		}
		return nil
	})
}

// Remove deletes the first entry whose key equals key and returns the
// updated owner. Guards run against the matched entry before anything is
// changed.
func (c *Collection[O, E]) Remove(ctx context.Context, ownerID primitive.ObjectID, key string, guards ...Guard[O, E]) (*O, error) {
	return c.mutate(ctx, ownerID, func(owner *O) error {
		entries := c.spec.Entries(owner)
		i := c.index(*entries, key)
		if i < 0 {
			return c.spec.EntryMissing()
		}

		for _, guard := range guards {
			if err := guard(owner, &(*entries)[i]); err != nil {
				return err
			}
		}

		*entries = slices.Delete(*entries, i, i+1)
		return nil
	})
}

// Exists reports whether the owner's sequence holds an entry with key.
func (c *Collection[O, E]) Exists(ctx context.Context, ownerID primitive.ObjectID, key string) (bool, error) {
	owner, err := c.load(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return c.index(*c.spec.Entries(owner), key) >= 0, nil
}

// Find returns the entry with key.
func (c *Collection[O, E]) Find(ctx context.Context, ownerID primitive.ObjectID, key string) (*E, error) {
	owner, err := c.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	entries := *c.spec.Entries(owner)
	i := c.index(entries, key)
	if i < 0 {
		return nil, c.spec.EntryMissing()
	}
	return &entries[i], nil
}

func (c *Collection[O, E]) index(entries []E, key string) int {
	return slices.IndexFunc(entries, func(e E) bool {
		return c.spec.Key(&e) == key
	})
}

func (c *Collection[O, E]) load(ctx context.Context, ownerID primitive.ObjectID) (*O, error) {
	owner, err := c.repo.FindByID(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, c.spec.OwnerMissing()
	}
	if err != nil {
		return nil, storageError(err, "load "+c.spec.Name+" owner")
	}
	return owner, nil
}

func (c *Collection[O, E]) mutate(ctx context.Context, ownerID primitive.ObjectID, apply func(*O) error) (*O, error) {
	for attempt := 1; ; attempt++ {
		owner, err := c.load(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if err := apply(owner); err != nil {
			return nil, err
		}

		err = c.repo.Commit(ctx, owner)
		switch {
		case err == nil:
			return owner, nil
		case errors.Is(err, store.ErrNotFound):
			return nil, c.spec.OwnerMissing()
		case errors.Is(err, store.ErrVersionConflict):
			if attempt >= c.attempts {
				logger.Log.WithField("collection", c.spec.Name).Warnf("giving up after %d conflicting commits", attempt)
				return nil, conflictError(c.spec.Name)
			}
			logger.Log.WithField("collection", c.spec.Name).Debugf("version conflict on attempt %d, retrying", attempt)
		default:
			return nil, storageError(err, "commit "+c.spec.Name)
		}
	}
}
