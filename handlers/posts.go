package handlers

import (
	"net/http"

	"devconnector/validation"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListPosts(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	posts, err := h.posts.List(ctx)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) GetPost(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.Get(ctx, c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) CreatePost(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}
	var in validation.PostInput
	if !bind(c, &in) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.Create(ctx, who, in)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) DeletePost(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.posts.Delete(ctx, c.Param("id"), who); err != nil {
		renderError(c, err)
		return
	}
	success(c)
}

func (h *Handler) LikePost(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.Like(ctx, c.Param("id"), who)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) UnlikePost(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.Unlike(ctx, c.Param("id"), who)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) AddComment(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}
	var in validation.PostInput
	if !bind(c, &in) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.Comment(ctx, c.Param("id"), who, in)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) DeleteComment(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.DeleteComment(ctx, c.Param("id"), c.Param("commentId"), who)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}
