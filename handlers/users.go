package handlers

import (
	"net/http"

	"devconnector/middleware"
	"devconnector/validation"

	"github.com/gin-gonic/gin"
)

func (h *Handler) UsersTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"msg": "Users Works"})
}

func (h *Handler) Register(c *gin.Context) {
	var in validation.RegisterInput
	if !bind(c, &in) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.Register(ctx, in)
	if err != nil {
		renderError(c, err)
		return
	}
	middleware.Log(c).WithField("user", user.ID.Hex()).Info("user registered")
	c.JSON(http.StatusOK, user)
}

func (h *Handler) Login(c *gin.Context) {
	var in validation.LoginInput
	if !bind(c, &in) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.Authenticate(ctx, in)
	if err != nil {
		renderError(c, err)
		return
	}

	token, err := middleware.NewToken(h.jwtSecret, h.jwtTTL, user)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": "Bearer " + token})
}

func (h *Handler) CurrentUser(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.Current(ctx, who)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID.Hex(), "name": user.Name, "email": user.Email})
}
