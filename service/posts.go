package service

import (
	"context"
	"time"

	"devconnector/models"
	"devconnector/store"
	"devconnector/validation"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func errNoPost() error { return NotFound("nopostfound", "No post found with that ID") }
func errPostGone() error { return NotFound("postnotfound", "No post found") }

type PostService struct {
	posts    store.PostStore
	likes    *Collection[models.Post, models.Like]
	comments *Collection[models.Post, models.Comment]
	notifier Notifier
}

func NewPostService(posts store.PostStore, notifier Notifier) *PostService {
	likes := NewCollection(store.Repository[models.Post](posts), CollectionSpec[models.Post, models.Like]{
		Name:         "likes",
		Entries:      func(p *models.Post) *[]models.Like { return &p.Likes },
		Key:          func(l *models.Like) string { return l.User.Hex() },
		Unique:       true,
		OwnerMissing: errPostGone,
		Duplicate: func() error {
			return Duplicate("alreadyliked", "User already liked this post")
		},
		EntryMissing: func() error {
			return AlreadyInState("notliked", "You have not yet liked this post")
		},
	})

	comments := NewCollection(store.Repository[models.Post](posts), CollectionSpec[models.Post, models.Comment]{
		Name:    "comments",
		Entries: func(p *models.Post) *[]models.Comment { return &p.Comments },
		Key:     func(c *models.Comment) string { return c.ID.Hex() },
		AssignID: func(c *models.Comment) {
			c.ID = primitive.NewObjectID()
			c.Date = time.Now().UTC()
		},
		Front:        true,
		OwnerMissing: errPostGone,
		EntryMissing: func() error {
			return NotFound("commentnotexists", "Comment does not exist")
		},
	})

	return &PostService{posts: posts, likes: likes, comments: comments, notifier: notifier}
}

// List returns every post, newest first.
func (s *PostService) List(ctx context.Context) ([]*models.Post, error) {
	posts, err := s.posts.List(ctx)
	if err != nil {
		return nil, storageError(err, "list posts")
	}
	return posts, nil
}

func (s *PostService) Get(ctx context.Context, postID string) (*models.Post, error) {
	id, err := parseID(postID, errNoPost)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errNoPost()
	}
	if err != nil {
		return nil, storageError(err, "get post")
	}
	return post, nil
}

// Create publishes a post. Name and avatar default to the caller's.
func (s *PostService) Create(ctx context.Context, who Identity, in validation.PostInput) (*models.Post, error) {
	if errs, ok := validation.ValidatePostInput(&in); !ok {
		return nil, ValidationError(errs)
	}

	name, avatar := snapshot(who, in)
	post := models.NewPost(who.UserID, in.Text, name, avatar)
	if err := s.posts.Insert(ctx, post); err != nil {
		return nil, storageError(err, "create post")
	}

	s.notifier.NotifyPost(EventPostCreated, who.UserID, post)
	return post, nil
}

// Delete removes a post. Only its author may do so.
func (s *PostService) Delete(ctx context.Context, postID string, who Identity) error {
	id, err := parseID(postID, errPostGone)
	if err != nil {
		return err
	}

	post, err := s.posts.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return errPostGone()
	}
	if err != nil {
		return storageError(err, "load post")
	}
	if post.User != who.UserID {
		return NotAuthorized("notauthorized", "User not authorized")
	}

	err = s.posts.DeleteOwned(ctx, id, who.UserID)
	if errors.Is(err, store.ErrNotFound) {
		// deleted by a concurrent request
		return errPostGone()
	}
	if err != nil {
		return storageError(err, "delete post")
	}

	s.notifier.NotifyPost(EventPostDeleted, who.UserID, post)
	return nil
}

// Like adds the caller to the post's likes. Liking twice fails.
func (s *PostService) Like(ctx context.Context, postID string, who Identity) (*models.Post, error) {
	id, err := parseID(postID, errPostGone)
	if err != nil {
		return nil, err
	}
	post, err := s.likes.Append(ctx, id, models.Like{User: who.UserID})
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyPost(EventPostLiked, who.UserID, post)
	return post, nil
}

// Unlike removes the caller's like. Fails if the caller has none.
func (s *PostService) Unlike(ctx context.Context, postID string, who Identity) (*models.Post, error) {
	id, err := parseID(postID, errPostGone)
	if err != nil {
		return nil, err
	}
	post, err := s.likes.Remove(ctx, id, who.UserID.Hex())
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyPost(EventPostUnliked, who.UserID, post)
	return post, nil
}

// HasLiked reports whether the caller currently likes the post.
func (s *PostService) HasLiked(ctx context.Context, postID string, who Identity) (bool, error) {
	id, err := parseID(postID, errPostGone)
	if err != nil {
		return false, err
	}
	return s.likes.Exists(ctx, id, who.UserID.Hex())
}

// Comment prepends a comment by the caller.
func (s *PostService) Comment(ctx context.Context, postID string, who Identity, in validation.PostInput) (*models.Post, error) {
	id, err := parseID(postID, errPostGone)
	if err != nil {
		return nil, err
	}
	if errs, ok := validation.ValidatePostInput(&in); !ok {
		return nil, ValidationError(errs)
	}

	name, avatar := snapshot(who, in)
	post, err := s.comments.Append(ctx, id, models.Comment{
		User:   who.UserID,
		Text:   in.Text,
		Name:   name,
		Avatar: avatar,
	})
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyPost(EventCommentAdded, who.UserID, post)
	return post, nil
}

// DeleteComment removes a comment. The comment's author and the post's
// author may do so; nobody else.
func (s *PostService) DeleteComment(ctx context.Context, postID, commentID string, who Identity) (*models.Post, error) {
	id, err := parseID(postID, errPostGone)
	if err != nil {
		return nil, err
	}

	post, err := s.comments.Remove(ctx, id, commentID, func(p *models.Post, c *models.Comment) error {
		if c.User != who.UserID && p.User != who.UserID {
			return NotAuthorized("notauthorized", "User not authorized")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyPost(EventCommentRemoved, who.UserID, post)
	return post, nil
}

func snapshot(who Identity, in validation.PostInput) (string, string) {
	name, avatar := in.Name, in.Avatar
	if name == "" {
		name = who.Name
	}
	if avatar == "" {
		avatar = who.Avatar
	}
	return name, avatar
}
