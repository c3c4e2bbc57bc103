package handlers

import (
	"context"
	"net/http"
	"time"

	"devconnector/middleware"
	"devconnector/service"

	"github.com/gin-gonic/gin"
)

const requestTimeout = 10 * time.Second

type Handler struct {
	users    *service.UserService
	profiles *service.ProfileService
	posts    *service.PostService
	accounts *service.AccountService

	jwtSecret string
	jwtTTL    time.Duration
}

func New(svc *service.Services, jwtSecret string, jwtTTL time.Duration) *Handler {
	return &Handler{
		users:     svc.Users,
		profiles:  svc.Profiles,
		posts:     svc.Posts,
		accounts:  svc.Accounts,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
	}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// identity returns the authenticated caller. Routes behind JWTAuth always
// have one; a missing identity means the route was wired without it.
func identity(c *gin.Context) (service.Identity, bool) {
	who, ok := middleware.CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return who, ok
}

func bind(c *gin.Context, in interface{}) bool {
	if err := c.ShouldBindJSON(in); err != nil {
		middleware.Log(c).WithError(err).Debug("bad request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	return true
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindDuplicate, service.KindAlreadyInState:
		return http.StatusBadRequest
	case service.KindNotAuthorized:
		return http.StatusUnauthorized
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func renderError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	if kind == service.KindInternal {
		middleware.Log(c).WithError(err).Error("request failed")
	}
	c.JSON(statusFor(kind), service.Fields(err))
}

func success(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}
