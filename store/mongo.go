package store

import (
	"context"
	"strings"

	"devconnector/database"
	"devconnector/models"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// versioned is implemented by the owner documents committed under
// optimistic versioning.
type versioned interface {
	GetID() primitive.ObjectID
	GetVersion() int
	SetVersion(int)
}

type MongoStore struct {
	client   *mongo.Client
	users    *mongoUsers
	profiles *mongoProfiles
	posts    *mongoPosts
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:   client,
		users:    &mongoUsers{coll: db.Collection(database.UsersCollection)},
		profiles: &mongoProfiles{coll: db.Collection(database.ProfilesCollection)},
		posts:    &mongoPosts{coll: db.Collection(database.PostsCollection)},
	}
}

func (s *MongoStore) Users() UserStore       { return s.users }
func (s *MongoStore) Profiles() ProfileStore { return s.profiles }
func (s *MongoStore) Posts() PostStore       { return s.posts }

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// DeleteAccount runs both removals in one transaction. Transactions need a
// replica set; a single-node replica set is enough.
func (s *MongoStore) DeleteAccount(ctx context.Context, userID primitive.ObjectID) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return wrap(err, "start session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.profiles.coll.DeleteOne(sc, bson.M{"user": userID}); err != nil {
			return nil, err
		}
		if _, err := s.users.coll.DeleteOne(sc, bson.M{"_id": userID}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return wrap(err, "delete account")
}

// IsTransient reports whether err is a storage failure worth retrying
// rather than a definitive answer.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

func wrap(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return errors.WithStack(&DuplicateKeyError{Field: duplicateField(err)})
	default:
		return errors.Wrap(err, msg)
	}
}

// duplicateField extracts the field from a server message such as
// "E11000 duplicate key error collection: db.profiles index: handle_1 dup key".
func duplicateField(err error) string {
	msg := err.Error()
	i := strings.Index(msg, "index: ")
	if i < 0 {
		return ""
	}
	name := strings.Fields(msg[i+len("index: "):])
	if len(name) == 0 {
		return ""
	}
	return strings.TrimSuffix(name[0], "_1")
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, what string) (*T, error) {
	var doc T
	if err := coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, wrap(err, "find "+what)
	}
	return &doc, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts *options.FindOptions, what string) ([]*T, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap(err, "list "+what)
	}
	defer cursor.Close(ctx)

	docs := []*T{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrap(err, "decode "+what)
	}
	return docs, nil
}

// commit replaces doc if the stored version still equals doc's version, and
// bumps the version on success.
func commit[T versioned](ctx context.Context, coll *mongo.Collection, doc T, what string) error {
	expected := doc.GetVersion()

	filter := bson.M{"_id": doc.GetID(), "__v": expected}
	if expected == 0 {
		// documents written before versioning have no __v field
		filter["__v"] = bson.M{"$in": bson.A{0, nil}}
	}

	doc.SetVersion(expected + 1)
	res, err := coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		doc.SetVersion(expected)
		return wrap(err, "commit "+what)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	doc.SetVersion(expected)
	n, err := coll.CountDocuments(ctx, bson.M{"_id": doc.GetID()})
	if err != nil {
		return wrap(err, "commit "+what)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

type mongoUsers struct {
	coll *mongo.Collection
}

func (s *mongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, s.coll, bson.M{"_id": id}, "user")
}

func (s *mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, s.coll, bson.M{"email": email}, "user")
}

func (s *mongoUsers) FindRefs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserRef, error) {
	refs := make(map[primitive.ObjectID]models.UserRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	opts := options.Find().SetProjection(bson.M{"name": 1, "avatar": 1})
	users, err := findAll[models.UserRef](ctx, s.coll, bson.M{"_id": bson.M{"$in": ids}}, opts, "users")
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		refs[u.ID] = *u
	}
	return refs, nil
}

func (s *mongoUsers) Insert(ctx context.Context, user *models.User) error {
	_, err := s.coll.InsertOne(ctx, user)
	return wrap(err, "insert user")
}

type mongoProfiles struct {
	coll *mongo.Collection
}

func (s *mongoProfiles) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Profile, error) {
	p, err := findOne[models.Profile](ctx, s.coll, bson.M{"_id": id}, "profile")
	return normalizeProfile(p), err
}

func (s *mongoProfiles) FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error) {
	p, err := findOne[models.Profile](ctx, s.coll, bson.M{"user": userID}, "profile")
	return normalizeProfile(p), err
}

func (s *mongoProfiles) FindByHandle(ctx context.Context, handle string) (*models.Profile, error) {
	p, err := findOne[models.Profile](ctx, s.coll, bson.M{"handle": handle}, "profile")
	return normalizeProfile(p), err
}

func (s *mongoProfiles) List(ctx context.Context) ([]*models.Profile, error) {
	profiles, err := findAll[models.Profile](ctx, s.coll, bson.M{}, options.Find(), "profiles")
	for _, p := range profiles {
		normalizeProfile(p)
	}
	return profiles, err
}

func (s *mongoProfiles) Insert(ctx context.Context, profile *models.Profile) error {
	_, err := s.coll.InsertOne(ctx, profile)
	return wrap(err, "insert profile")
}

func (s *mongoProfiles) Commit(ctx context.Context, profile *models.Profile) error {
	return commit(ctx, s.coll, profile, "profile")
}

type mongoPosts struct {
	coll *mongo.Collection
}

func (s *mongoPosts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	p, err := findOne[models.Post](ctx, s.coll, bson.M{"_id": id}, "post")
	return normalizePost(p), err
}

func (s *mongoPosts) List(ctx context.Context) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	posts, err := findAll[models.Post](ctx, s.coll, bson.M{}, opts, "posts")
	for _, p := range posts {
		normalizePost(p)
	}
	return posts, err
}

func (s *mongoPosts) Insert(ctx context.Context, post *models.Post) error {
	_, err := s.coll.InsertOne(ctx, post)
	return wrap(err, "insert post")
}

func (s *mongoPosts) Commit(ctx context.Context, post *models.Post) error {
	return commit(ctx, s.coll, post, "post")
}

func (s *mongoPosts) DeleteOwned(ctx context.Context, id, owner primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "user": owner})
	if err != nil {
		return wrap(err, "delete post")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// normalizeProfile replaces nil sequences so they encode as [] rather than
// null.
func normalizeProfile(p *models.Profile) *models.Profile {
	if p == nil {
		return nil
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}
	if p.Experience == nil {
		p.Experience = []models.Experience{}
	}
	if p.Education == nil {
		p.Education = []models.Education{}
	}
	return p
}

func normalizePost(p *models.Post) *models.Post {
	if p == nil {
		return nil
	}
	if p.Likes == nil {
		p.Likes = []models.Like{}
	}
	if p.Comments == nil {
		p.Comments = []models.Comment{}
	}
	return p
}
