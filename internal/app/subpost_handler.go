package app

import (
	"net/http"

	"postboard/internal/middleware"
	"postboard/internal/service"
	"postboard/internal/util"

	"github.com/gin-gonic/gin"
)

type SubPostHandler struct {
	subPostService service.SubPostService
	pageSize       int
}

func NewSubPostHandler(subPostService service.SubPostService, pageSize int) *SubPostHandler {
	return &SubPostHandler{
		subPostService: subPostService,
		pageSize:       pageSize,
	}
}

// ListSubPosts handles the paginated subpost list
// GET /sub-posts/
func (h *SubPostHandler) ListSubPosts(c *gin.Context) {
	p, err := util.ParsePagination(c, h.pageSize)
	if err != nil {
		util.NotFound(c, err.Error())
		return
	}

	subPosts, count, err := h.subPostService.ListSubPosts(c.Request.Context(), p.PageSize, p.Offset())
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := util.NewPage(c, p, count, subPosts)
	if err != nil {
		util.NotFound(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateSubPost attaches a subpost to an existing post
// POST /sub-posts/
func (h *SubPostHandler) CreateSubPost(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		util.Unauthorized(c, "Login required")
		return
	}

	var req service.CreateSubPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	subPost, err := h.subPostService.CreateSubPost(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subPost)
}

// GetSubPost handles getting a subpost by ID
// GET /sub-posts/:id/
func (h *SubPostHandler) GetSubPost(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	subPost, err := h.subPostService.GetSubPost(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("render") == "markdown" {
		subPost.BodyHTML = util.RenderMarkdown(subPost.Body)
	}
	c.JSON(http.StatusOK, subPost)
}

// UpdateSubPost handles PUT /sub-posts/:id/
func (h *SubPostHandler) UpdateSubPost(c *gin.Context) {
	h.update(c, false)
}

// PatchSubPost handles PATCH /sub-posts/:id/
func (h *SubPostHandler) PatchSubPost(c *gin.Context) {
	h.update(c, true)
}

func (h *SubPostHandler) update(c *gin.Context, partial bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		util.Unauthorized(c, "Login required")
		return
	}

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.UpdateSubPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	subPost, err := h.subPostService.UpdateSubPost(c.Request.Context(), userID, id, req, partial)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subPost)
}

// DeleteSubPost handles DELETE /sub-posts/:id/
func (h *SubPostHandler) DeleteSubPost(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		util.Unauthorized(c, "Login required")
		return
	}

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.subPostService.DeleteSubPost(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
