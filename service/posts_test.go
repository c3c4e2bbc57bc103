package service

import (
	"context"
	"sync"
	"testing"

	"devconnector/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPostCreateUsesCallerSnapshot(t *testing.T) {
	svc, _, notifier := newTestServices(t)
	ann := newIdentity("ann")

	post, err := svc.Posts.Create(context.Background(), ann, validation.PostInput{Text: "  hello world  "})
	require.NoError(t, err)
	assert.Equal(t, "hello world", post.Text)
	assert.Equal(t, ann.UserID, post.User)
	assert.Equal(t, "ann", post.Name)
	assert.Equal(t, ann.Avatar, post.Avatar)
	assert.Empty(t, post.Likes)
	assert.Empty(t, post.Comments)
	assert.Equal(t, []string{EventPostCreated}, notifier.kinds())

	post, err = svc.Posts.Create(context.Background(), ann, validation.PostInput{Text: "x", Name: "Annie"})
	require.NoError(t, err)
	assert.Equal(t, "Annie", post.Name)
}

func TestPostCreateValidation(t *testing.T) {
	svc, _, notifier := newTestServices(t)

	_, err := svc.Posts.Create(context.Background(), newIdentity("ann"), validation.PostInput{Text: "   "})
	requireKind(t, err, KindValidation, "text")
	assert.Equal(t, "Text field is required", Fields(err)["text"])
	assert.Empty(t, notifier.kinds())
}

func TestPostGet(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestServices(t)

	created, err := svc.Posts.Create(ctx, newIdentity("ann"), validation.PostInput{Text: "hi"})
	require.NoError(t, err)

	got, err := svc.Posts.Get(ctx, created.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Posts.Get(ctx, primitive.NewObjectID().Hex())
	requireKind(t, err, KindNotFound, "nopostfound")

	_, err = svc.Posts.Get(ctx, "not-an-id")
	requireKind(t, err, KindNotFound, "nopostfound")
}

func TestPostListNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestServices(t)
	ann := newIdentity("ann")

	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.Posts.Create(ctx, ann, validation.PostInput{Text: text})
		require.NoError(t, err)
	}

	posts, err := svc.Posts.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "three", posts[0].Text)
	assert.Equal(t, "one", posts[2].Text)
}

func TestPostLikeTwice(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestServices(t)
	ann, bob := newIdentity("ann"), newIdentity("bob")

	post, err := svc.Posts.Create(ctx, ann, validation.PostInput{Text: "like me"})
	require.NoError(t, err)
	id := post.ID.Hex()

	post, err = svc.Posts.Like(ctx, id, bob)
	require.NoError(t, err)
	require.Len(t, post.Likes, 1)
	assert.Equal(t, bob.UserID, post.Likes[0].User)

	_, err = svc.Posts.Like(ctx, id, bob)
	requireKind(t, err, KindDuplicate, "alreadyliked")

	post, err = svc.Posts.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, post.Likes, 1)

	liked, err := svc.Posts.HasLiked(ctx, id, bob)
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = svc.Posts.HasLiked(ctx, id, ann)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestPostUnlike(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestServices(t)
	ann, bob := newIdentity("ann"), newIdentity("bob")

	post, err := svc.Posts.Create(ctx, ann, validation.PostInput{Text: "like me"})
	require.NoError(t, err)
	id := post.ID.Hex()

	_, err = svc.Posts.Unlike(ctx, id, bob)
	requireKind(t, err, KindAlreadyInState, "notliked")

	_, err = svc.Posts.Like(ctx, id, ann)
	require.NoError(t, err)
	_, err = svc.Posts.Like(ctx, id, bob)
	require.NoError(t, err)

	post, err = svc.Posts.Unlike(ctx, id, bob)
	require.NoError(t, err)
	require.Len(t, post.Likes, 1)
	assert.Equal(t, ann.UserID, post.Likes[0].User)

	_, err = svc.Posts.Unlike(ctx, id, bob)
	requireKind(t, err, KindAlreadyInState, "notliked")

	assert.Equal(t, []string{EventPostCreated, EventPostLiked, EventPostLiked, EventPostUnliked}, notifier.kinds())
}

func TestPostLikeMissingPost(t *testing.T) {
	svc, _, _ := newTestServices(t)

	_, err := svc.Posts.Like(context.Background(), primitive.NewObjectID().Hex(), newIdentity("bob"))
	requireKind(t, err, KindNotFound, "postnotfound")

	_, err = svc.Posts.Unlike(context.Background(), "garbage", newIdentity("bob"))
	requireKind(t, err, KindNotFound, "postnotfound")
}

func TestPostConcurrentLikesAllLand(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestServices(t)

	post, err := svc.Posts.Create(ctx, newIdentity("ann"), validation.PostInput{Text: "popular"})
	require.NoError(t, err)
	id := post.ID.Hex()

	const likers = 4
	var wg sync.WaitGroup
	errs := make(chan error, likers)
	for i := 0; i < likers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Posts.Like(ctx, id, newIdentity("fan"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	post, err = svc.Posts.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, post.Likes, likers)
}

func TestPostCommentsNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestServices(t)
	ann, bob := newIdentity("ann"), newIdentity("bob")

	post, err := svc.Posts.Create(ctx, ann, validation.PostInput{Text: "discuss"})
	require.NoError(t, err)
	id := post.ID.Hex()

	_, err = svc.Posts.Comment(ctx, id, bob, validation.PostInput{Text: "first"})
	require.NoError(t, err)
	post, err = svc.Posts.Comment(ctx, id, ann, validation.PostInput{Text: "second"})
	require.NoError(t, err)

	require.Len(t, post.Comments, 2)
	assert.Equal(t, "second", post.Comments[0].Text)
	assert.Equal(t, ann.UserID, post.Comments[0].User)
	assert.Equal(t, "first", post.Comments[1].Text)
	assert.Equal(t, "bob", post.Comments[1].Name)
	assert.NotEqual(t, post.Comments[0].ID, post.Comments[1].ID)
	assert.False(t, post.Comments[0].ID.IsZero())
	assert.False(t, post.Comments[0].Date.IsZero())

	_, err = svc.Posts.Comment(ctx, id, bob, validation.PostInput{})
	requireKind(t, err, KindValidation, "text")
}

func TestPostDeleteComment(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestServices(t)
	owner, author, stranger := newIdentity("owner"), newIdentity("author"), newIdentity("stranger")

	post, err := svc.Posts.Create(ctx, owner, validation.PostInput{Text: "thread"})
	require.NoError(t, err)
	id := post.ID.Hex()

	post, err = svc.Posts.Comment(ctx, id, author, validation.PostInput{Text: "a"})
	require.NoError(t, err)
	first := post.Comments[0].ID.Hex()
	post, err = svc.Posts.Comment(ctx, id, author, validation.PostInput{Text: "b"})
	require.NoError(t, err)
	second := post.Comments[0].ID.Hex()

	_, err = svc.Posts.DeleteComment(ctx, id, first, stranger)
	requireKind(t, err, KindNotAuthorized, "notauthorized")

	post, err = svc.Posts.DeleteComment(ctx, id, first, author)
	require.NoError(t, err)
	require.Len(t, post.Comments, 1)
	assert.Equal(t, second, post.Comments[0].ID.Hex())

	post, err = svc.Posts.DeleteComment(ctx, id, second, owner)
	require.NoError(t, err)
	assert.Empty(t, post.Comments)

	_, err = svc.Posts.DeleteComment(ctx, id, second, owner)
	requireKind(t, err, KindNotFound, "commentnotexists")

	_, err = svc.Posts.DeleteComment(ctx, id, "nope", owner)
	requireKind(t, err, KindNotFound, "commentnotexists")
}

func TestPostDeleteOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestServices(t)
	ann, bob := newIdentity("ann"), newIdentity("bob")

	post, err := svc.Posts.Create(ctx, ann, validation.PostInput{Text: "mine"})
	require.NoError(t, err)
	id := post.ID.Hex()

	err = svc.Posts.Delete(ctx, id, bob)
	requireKind(t, err, KindNotAuthorized, "notauthorized")

	_, err = svc.Posts.Get(ctx, id)
	require.NoError(t, err)

	require.NoError(t, svc.Posts.Delete(ctx, id, ann))

	_, err = svc.Posts.Get(ctx, id)
	requireKind(t, err, KindNotFound, "nopostfound")

	err = svc.Posts.Delete(ctx, id, ann)
	requireKind(t, err, KindNotFound, "postnotfound")

	assert.Equal(t, []string{EventPostCreated, EventPostDeleted}, notifier.kinds())
}
