package store

import (
	"context"
	"sort"
	"sync"

	"devconnector/models"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps documents in process. Documents are held in their BSON
// encoding so every read hands out an independent copy, the same way a round
// trip through MongoDB would.
type MemoryStore struct {
	mu       sync.RWMutex
	users    table
	profiles table
	posts    table
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		users:    newTable(),
		profiles: newTable(),
		posts:    newTable(),
	}
	return s
}

func (s *MemoryStore) Users() UserStore       { return &memoryUsers{s} }
func (s *MemoryStore) Profiles() ProfileStore { return &memoryProfiles{s} }
func (s *MemoryStore) Posts() PostStore       { return &memoryPosts{s} }

func (s *MemoryStore) Close(context.Context) error { return nil }

func (s *MemoryStore) DeleteAccount(ctx context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.profiles.order {
		var p models.Profile
		if err := s.profiles.get(id, &p); err == nil && p.User == userID {
			s.profiles.remove(id)
			break
		}
	}
	s.users.remove(userID)
	return nil
}

type table struct {
	docs  map[primitive.ObjectID][]byte
	order []primitive.ObjectID
}

func newTable() table {
	return table{docs: map[primitive.ObjectID][]byte{}}
}

func (t *table) get(id primitive.ObjectID, out interface{}) error {
	raw, ok := t.docs[id]
	if !ok {
		return ErrNotFound
	}
	return errors.Wrap(bson.Unmarshal(raw, out), "decode document")
}

func (t *table) put(id primitive.ObjectID, doc interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encode document")
	}
	if _, ok := t.docs[id]; !ok {
		t.order = append(t.order, id)
	}
	t.docs[id] = raw
	return nil
}

func (t *table) remove(id primitive.ObjectID) bool {
	if _, ok := t.docs[id]; !ok {
		return false
	}
	delete(t.docs, id)
	for i, o := range t.order {
		if o == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// scan decodes documents in insertion order until fn returns false.
func scan[T any](t *table, fn func(*T) bool) error {
	for _, id := range t.order {
		doc := new(T)
		if err := t.get(id, doc); err != nil {
			return err
		}
		if !fn(doc) {
			return nil
		}
	}
	return nil
}

func memCommit[T versioned](t *table, doc T) error {
	var stored struct {
		Version int `bson:"__v"`
	}
	if err := t.get(doc.GetID(), &stored); err != nil {
		return err
	}
	if stored.Version != doc.GetVersion() {
		return ErrVersionConflict
	}

	doc.SetVersion(stored.Version + 1)
	if err := t.put(doc.GetID(), doc); err != nil {
		doc.SetVersion(stored.Version)
		return err
	}
	return nil
}

type memoryUsers struct{ s *MemoryStore }

func (m *memoryUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var u models.User
	if err := m.s.users.get(id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *memoryUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var found *models.User
	err := scan(&m.s.users, func(u *models.User) bool {
		if u.Email == email {
			found = u
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (m *memoryUsers) FindRefs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserRef, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	refs := make(map[primitive.ObjectID]models.UserRef, len(ids))
	for _, id := range ids {
		var u models.User
		if err := m.s.users.get(id, &u); err == nil {
			refs[id] = u.Ref()
		}
	}
	return refs, nil
}

func (m *memoryUsers) Insert(ctx context.Context, user *models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	taken := false
	err := scan(&m.s.users, func(u *models.User) bool {
		taken = u.Email == user.Email
		return !taken
	})
	if err != nil {
		return err
	}
	if taken {
		return &DuplicateKeyError{Field: "email"}
	}
	return m.s.users.put(user.ID, user)
}

type memoryProfiles struct{ s *MemoryStore }

func (m *memoryProfiles) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Profile, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var p models.Profile
	if err := m.s.profiles.get(id, &p); err != nil {
		return nil, err
	}
	return normalizeProfile(&p), nil
}

func (m *memoryProfiles) findWhere(match func(*models.Profile) bool) (*models.Profile, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var found *models.Profile
	err := scan(&m.s.profiles, func(p *models.Profile) bool {
		if match(p) {
			found = p
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return normalizeProfile(found), nil
}

func (m *memoryProfiles) FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error) {
	return m.findWhere(func(p *models.Profile) bool { return p.User == userID })
}

func (m *memoryProfiles) FindByHandle(ctx context.Context, handle string) (*models.Profile, error) {
	return m.findWhere(func(p *models.Profile) bool { return p.Handle == handle })
}

func (m *memoryProfiles) List(ctx context.Context) ([]*models.Profile, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	profiles := []*models.Profile{}
	err := scan(&m.s.profiles, func(p *models.Profile) bool {
		profiles = append(profiles, normalizeProfile(p))
		return true
	})
	return profiles, err
}

func (m *memoryProfiles) Insert(ctx context.Context, profile *models.Profile) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if err := m.checkUnique(profile); err != nil {
		return err
	}
	return m.s.profiles.put(profile.ID, profile)
}

func (m *memoryProfiles) Commit(ctx context.Context, profile *models.Profile) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if err := m.checkUnique(profile); err != nil {
		return err
	}
	return memCommit(&m.s.profiles, profile)
}

// checkUnique mirrors the unique indexes on user and handle.
func (m *memoryProfiles) checkUnique(profile *models.Profile) error {
	var dup string
	err := scan(&m.s.profiles, func(p *models.Profile) bool {
		if p.ID == profile.ID {
			return true
		}
		switch {
		case p.User == profile.User:
			dup = "user"
		case p.Handle == profile.Handle:
			dup = "handle"
		}
		return dup == ""
	})
	if err != nil {
		return err
	}
	if dup != "" {
		return &DuplicateKeyError{Field: dup}
	}
	return nil
}

type memoryPosts struct{ s *MemoryStore }

func (m *memoryPosts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var p models.Post
	if err := m.s.posts.get(id, &p); err != nil {
		return nil, err
	}
	return normalizePost(&p), nil
}

func (m *memoryPosts) List(ctx context.Context) ([]*models.Post, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	posts := []*models.Post{}
	err := scan(&m.s.posts, func(p *models.Post) bool {
		posts = append(posts, normalizePost(p))
		return true
	})
	if err != nil {
		return nil, err
	}

	// insertion order breaks ties, newest insert first
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Date.After(posts[j].Date)
	})
	return posts, nil
}

func (m *memoryPosts) Insert(ctx context.Context, post *models.Post) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.posts.docs[post.ID]; ok {
		return &DuplicateKeyError{Field: "_id"}
	}
	return m.s.posts.put(post.ID, post)
}

func (m *memoryPosts) Commit(ctx context.Context, post *models.Post) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	return memCommit(&m.s.posts, post)
}

func (m *memoryPosts) DeleteOwned(ctx context.Context, id, owner primitive.ObjectID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var p models.Post
	if err := m.s.posts.get(id, &p); err != nil {
		return err
	}
	if p.User != owner {
		return ErrNotFound
	}
	m.s.posts.remove(id)
	return nil
}
