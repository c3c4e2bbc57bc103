package handlers

import (
	"net/http"

	"devconnector/validation"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CurrentProfile(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.profiles.Current(ctx, who)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) ProfileByHandle(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.profiles.ByHandle(ctx, c.Param("handle"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) ProfileByUser(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.profiles.ByUser(ctx, c.Param("userId"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) AllProfiles(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	profiles, err := h.profiles.All(ctx)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// UpsertProfile creates the caller's profile or merges the submitted fields
// into it.
func (h *Handler) UpsertProfile(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}
	var in validation.ProfileInput
	if !bind(c, &in) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.profiles.Upsert(ctx, who, in)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) AddExperience(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}
	var in validation.ExperienceInput
	if !bind(c, &in) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.profiles.AddExperience(ctx, who, in)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) DeleteExperience(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.profiles.RemoveExperience(ctx, who, c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) AddEducation(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}
	var in validation.EducationInput
	if !bind(c, &in) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.profiles.AddEducation(ctx, who, in)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) DeleteEducation(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := h.profiles.RemoveEducation(ctx, who, c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// DeleteAccount removes the caller's profile and user.
func (h *Handler) DeleteAccount(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.accounts.DeleteAccount(ctx, who); err != nil {
		renderError(c, err)
		return
	}
	success(c)
}
