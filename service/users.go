package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"devconnector/models"
	"devconnector/store"
	"devconnector/validation"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	users store.UserStore
	cost  int
}

func NewUserService(users store.UserStore) *UserService {
	return &UserService{users: users, cost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.cost = cost
	return s
}

func (s *UserService) Register(ctx context.Context, in validation.RegisterInput) (*models.User, error) {
	if errs, ok := validation.ValidateRegisterInput(&in); !ok {
		return nil, ValidationError(errs)
	}

	_, err := s.users.FindByEmail(ctx, in.Email)
	if err == nil {
		return nil, Duplicate("email", "Email already exists")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, storageError(err, "find user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, storageError(errors.Wrap(err, "hash password"), "register")
	}

	user := &models.User{
		ID:           primitive.NewObjectID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Avatar:       Gravatar(in.Email),
		Date:         time.Now().UTC(),
	}

	err = s.users.Insert(ctx, user)
	if store.DuplicateField(err) == "email" {
		return nil, Duplicate("email", "Email already exists")
	}
	if err != nil {
		return nil, storageError(err, "insert user")
	}
	return user, nil
}

// Authenticate checks an email/password pair and returns the user.
func (s *UserService) Authenticate(ctx context.Context, in validation.LoginInput) (*models.User, error) {
	if errs, ok := validation.ValidateLoginInput(&in); !ok {
		return nil, ValidationError(errs)
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFound("email", "User not found")
	}
	if err != nil {
		return nil, storageError(err, "find user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ValidationError(map[string]string{"password": "Password incorrect"})
	}
	return user, nil
}

func (s *UserService) Current(ctx context.Context, who Identity) (*models.User, error) {
	user, err := s.users.FindByID(ctx, who.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NotFound("nouser", "User not found")
	}
	if err != nil {
		return nil, storageError(err, "find user")
	}
	return user, nil
}

// Gravatar returns the avatar URL for email: 200px, pg rated, mystery-man
// fallback.
func Gravatar(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%s?s=200&r=pg&d=mm", hex.EncodeToString(sum[:]))
}
