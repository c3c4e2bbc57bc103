package middleware

import (
	"net/http"
	"strings"
	"time"

	"devconnector/logger"
	"devconnector/models"
	"devconnector/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const identityKey = "identity"

// Claims is the token payload: the user's id, name and avatar.
type Claims struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	jwt.RegisteredClaims
}

// NewToken signs a token for user valid for ttl.
func NewToken(secret string, ttl time.Duration, user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID.Hex(),
		Name:   user.Name,
		Avatar: user.Avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// ParseToken validates a raw token, with or without the "Bearer " prefix,
// and returns the identity it carries.
func ParseToken(secret, raw string) (service.Identity, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return service.Identity{}, errors.New("empty token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return service.Identity{}, errors.Wrap(err, "parse token")
	}
	if !token.Valid {
		return service.Identity{}, errors.New("token is not valid")
	}

	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return service.Identity{}, errors.Wrap(err, "token subject")
	}
	return service.Identity{UserID: id, Name: claims.Name, Avatar: claims.Avatar}, nil
}

// JWTAuth rejects requests without a valid bearer token and stores the
// caller's identity on the context.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "Format should be: Bearer <token>",
			})
			return
		}

		who, err := ParseToken(secret, header)
		if err != nil {
			logger.Log.WithError(err).WithField("path", c.FullPath()).Debug("rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(identityKey, who)
		c.Next()
	}
}

// CurrentIdentity returns the identity JWTAuth stored on c.
func CurrentIdentity(c *gin.Context) (service.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return service.Identity{}, false
	}
	who, ok := v.(service.Identity)
	return who, ok
}
