package service

import (
	"context"
	"testing"

	"devconnector/models"
	"devconnector/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// conflictingRepo fails the first n commits with a version conflict.
type conflictingRepo struct {
	store.Repository[models.Post]
	n       int
	commits int
}

func (r *conflictingRepo) Commit(ctx context.Context, p *models.Post) error {
	r.commits++
	if r.commits <= r.n {
		return store.ErrVersionConflict
	}
	return r.Repository.Commit(ctx, p)
}

func tagSpec() CollectionSpec[models.Post, models.Comment] {
	return CollectionSpec[models.Post, models.Comment]{
		Name:         "comments",
		Entries:      func(p *models.Post) *[]models.Comment { return &p.Comments },
		Key:          func(c *models.Comment) string { return c.ID.Hex() },
		AssignID:     func(c *models.Comment) { c.ID = primitive.NewObjectID() },
		Front:        true,
		OwnerMissing: errPostGone,
		EntryMissing: func() error { return NotFound("commentnotexists", "Comment does not exist") },
	}
}

func seedPost(t *testing.T, posts store.PostStore) *models.Post {
	t.Helper()
	post := models.NewPost(primitive.NewObjectID(), "hello", "Ann", "")
	require.NoError(t, posts.Insert(context.Background(), post))
	return post
}

func TestCollectionAppendFrontAndRemove(t *testing.T) {
	ctx := context.Background()
	posts := store.NewMemoryStore().Posts()
	post := seedPost(t, posts)
	c := NewCollection(store.Repository[models.Post](posts), tagSpec())

	var ids []primitive.ObjectID
	for _, text := range []string{"first", "second", "third"} {
		p, err := c.Append(ctx, post.ID, models.Comment{Text: text})
		require.NoError(t, err)
		ids = append(ids, p.Comments[0].ID)
	}

	p, err := posts.FindByID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, p.Comments, 3)
	assert.Equal(t, "third", p.Comments[0].Text)
	assert.Equal(t, "second", p.Comments[1].Text)
	assert.Equal(t, "first", p.Comments[2].Text)
	assert.Equal(t, 3, p.Version)

	ok, err := c.Exists(ctx, post.ID, ids[1].Hex())
	require.NoError(t, err)
	assert.True(t, ok)

	p, err = c.Remove(ctx, post.ID, ids[1].Hex())
	require.NoError(t, err)
	require.Len(t, p.Comments, 2)
	assert.Equal(t, "third", p.Comments[0].Text)
	assert.Equal(t, "first", p.Comments[1].Text)

	ok, err = c.Exists(ctx, post.ID, ids[1].Hex())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Remove(ctx, post.ID, ids[1].Hex())
	requireKind(t, err, KindNotFound, "commentnotexists")

	_, err = c.Find(ctx, post.ID, ids[1].Hex())
	requireKind(t, err, KindNotFound, "commentnotexists")

	found, err := c.Find(ctx, post.ID, ids[0].Hex())
	require.NoError(t, err)
	assert.Equal(t, "first", found.Text)
}

func TestCollectionMissingOwner(t *testing.T) {
	ctx := context.Background()
	posts := store.NewMemoryStore().Posts()
	c := NewCollection(store.Repository[models.Post](posts), tagSpec())

	_, err := c.Append(ctx, primitive.NewObjectID(), models.Comment{Text: "x"})
	requireKind(t, err, KindNotFound, "postnotfound")

	_, err = c.Remove(ctx, primitive.NewObjectID(), "abc")
	requireKind(t, err, KindNotFound, "postnotfound")

	_, err = c.Exists(ctx, primitive.NewObjectID(), "abc")
	requireKind(t, err, KindNotFound, "postnotfound")
}

func TestCollectionRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	posts := store.NewMemoryStore().Posts()
	post := seedPost(t, posts)

	repo := &conflictingRepo{Repository: posts, n: 2}
	c := NewCollection(store.Repository[models.Post](repo), tagSpec())

	p, err := c.Append(ctx, post.ID, models.Comment{Text: "eventually"})
	require.NoError(t, err)
	assert.Equal(t, 3, repo.commits)
	require.Len(t, p.Comments, 1)

	stored, err := posts.FindByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Comments, 1)
}

func TestCollectionGivesUpAfterRepeatedConflicts(t *testing.T) {
	ctx := context.Background()
	posts := store.NewMemoryStore().Posts()
	post := seedPost(t, posts)

	repo := &conflictingRepo{Repository: posts, n: 100}
	c := NewCollection(store.Repository[models.Post](repo), tagSpec())

	_, err := c.Append(ctx, post.ID, models.Comment{Text: "never"})
	requireKind(t, err, KindConflict, "conflict")
	assert.Equal(t, defaultCommitAttempts, repo.commits)

	stored, err := posts.FindByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Comments)
}

func TestCollectionStaleWriterLosesNothing(t *testing.T) {
	ctx := context.Background()
	posts := store.NewMemoryStore().Posts()
	post := seedPost(t, posts)
	c := NewCollection(store.Repository[models.Post](posts), tagSpec())

	// a writer holding an old copy must not overwrite newer entries
	stale, err := posts.FindByID(ctx, post.ID)
	require.NoError(t, err)

	_, err = c.Append(ctx, post.ID, models.Comment{Text: "fresh"})
	require.NoError(t, err)

	stale.Comments = append(stale.Comments, models.Comment{ID: primitive.NewObjectID(), Text: "stale"})
	assert.ErrorIs(t, posts.Commit(ctx, stale), store.ErrVersionConflict)

	stored, err := posts.FindByID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, stored.Comments, 1)
	assert.Equal(t, "fresh", stored.Comments[0].Text)
}

func TestCollectionGuardVetoesRemoval(t *testing.T) {
	ctx := context.Background()
	posts := store.NewMemoryStore().Posts()
	post := seedPost(t, posts)
	c := NewCollection(store.Repository[models.Post](posts), tagSpec())

	p, err := c.Append(ctx, post.ID, models.Comment{Text: "keep me"})
	require.NoError(t, err)
	id := p.Comments[0].ID.Hex()

	veto := func(*models.Post, *models.Comment) error {
		return NotAuthorized("notauthorized", "User not authorized")
	}
	_, err = c.Remove(ctx, post.ID, id, veto)
	requireKind(t, err, KindNotAuthorized, "notauthorized")

	stored, err := posts.FindByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Comments, 1)
}
