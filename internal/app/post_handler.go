package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"postboard/internal/middleware"
	"postboard/internal/model"
	"postboard/internal/service"
	"postboard/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type PostHandler struct {
	postService service.PostService
	pageSize    int
}

func NewPostHandler(postService service.PostService, pageSize int) *PostHandler {
	return &PostHandler{
		postService: postService,
		pageSize:    pageSize,
	}
}

// ListPosts handles the paginated post list, newest first
// GET /posts/
func (h *PostHandler) ListPosts(c *gin.Context) {
	p, err := util.ParsePagination(c, h.pageSize)
	if err != nil {
		util.NotFound(c, err.Error())
		return
	}

	posts, count, err := h.postService.ListPosts(c.Request.Context(), p.PageSize, p.Offset())
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := util.NewPage(c, p, count, posts)
	if err != nil {
		util.NotFound(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreatePost handles creation of one post or, when the body is a JSON array, a batch
// POST /posts/
func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		util.Unauthorized(c, "Login required")
		return
	}

	if c.ContentType() != binding.MIMEJSON {
		util.ErrorResponse(c, http.StatusUnsupportedMediaType,
			fmt.Sprintf("Unsupported media type \"%s\" in request.", c.ContentType()))
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		util.BadRequest(c, "Could not read request body")
		return
	}

	if isJSONArray(raw) {
		var reqs []service.CreatePostRequest
		if err := json.Unmarshal(raw, &reqs); err != nil {
			bindError(c, err)
			return
		}
		posts, err := h.postService.CreatePosts(c.Request.Context(), userID, reqs)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, posts)
		return
	}

	var req service.CreatePostRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		bindError(c, err)
		return
	}
	post, err := h.postService.CreatePost(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// GetPost handles getting a post by ID
// GET /posts/:id/
func (h *PostHandler) GetPost(c *gin.Context) {
	postID, ok := pathID(c, "id")
	if !ok {
		return
	}

	post, err := h.postService.GetPost(c.Request.Context(), postID)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("render") == "markdown" {
		renderPost(post)
	}
	c.JSON(http.StatusOK, post)
}

// UpdatePost replaces a post and reconciles its subposts
// PUT /posts/:id/
func (h *PostHandler) UpdatePost(c *gin.Context) {
	h.update(c, false)
}

// PatchPost updates only the fields present in the payload
// PATCH /posts/:id/
func (h *PostHandler) PatchPost(c *gin.Context) {
	h.update(c, true)
}

func (h *PostHandler) update(c *gin.Context, partial bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		util.Unauthorized(c, "Login required")
		return
	}

	postID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req service.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	post, err := h.postService.UpdatePost(c.Request.Context(), userID, postID, req, partial)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost handles post deletion; subposts, likes and views go with it
// DELETE /posts/:id/
func (h *PostHandler) DeletePost(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		util.Unauthorized(c, "Login required")
		return
	}

	postID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.postService.DeletePost(c.Request.Context(), userID, postID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func isJSONArray(raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

func renderPost(post *model.Post) {
	post.BodyHTML = util.RenderMarkdown(post.Body)
	for i := range post.SubPosts {
		post.SubPosts[i].BodyHTML = util.RenderMarkdown(post.SubPosts[i].Body)
	}
}
