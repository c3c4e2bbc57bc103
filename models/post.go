package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User     primitive.ObjectID `bson:"user" json:"user"`
	Text     string             `bson:"text" json:"text"`
	Name     string             `bson:"name" json:"name"`
	Avatar   string             `bson:"avatar" json:"avatar"`
	Likes    []Like             `bson:"likes" json:"likes"`
	Comments []Comment          `bson:"comments" json:"comments"`
	Date     time.Time          `bson:"date" json:"date"`
	Version  int                `bson:"__v" json:"__v"`
}

// Like is keyed by user; a post holds at most one per user.
type Like struct {
	User primitive.ObjectID `bson:"user" json:"user"`
}

type Comment struct {
	ID     primitive.ObjectID `bson:"_id" json:"_id"`
	User   primitive.ObjectID `bson:"user" json:"user"`
	Text   string             `bson:"text" json:"text"`
	Name   string             `bson:"name" json:"name"`
	Avatar string             `bson:"avatar" json:"avatar"`
	Date   time.Time          `bson:"date" json:"date"`
}

func NewPost(user primitive.ObjectID, text, name, avatar string) *Post {
	return &Post{
		ID:       primitive.NewObjectID(),
		User:     user,
		Text:     text,
		Name:     name,
		Avatar:   avatar,
		Likes:    []Like{},
		Comments: []Comment{},
		Date:     time.Now().UTC(),
	}
}

func (p *Post) GetID() primitive.ObjectID { return p.ID }
func (p *Post) GetVersion() int           { return p.Version }
func (p *Post) SetVersion(v int)          { p.Version = v }
