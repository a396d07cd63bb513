package app

import (
	"net/http"

	"postboard/internal/middleware"
	"postboard/internal/service"
	"postboard/internal/util"

	"github.com/gin-gonic/gin"
)

type LikeHandler struct {
	likeService     service.LikeService
	postViewService service.PostViewService
}

func NewLikeHandler(likeService service.LikeService, postViewService service.PostViewService) *LikeHandler {
	return &LikeHandler{
		likeService:     likeService,
		postViewService: postViewService,
	}
}

// LikePost handles liking a post
// POST /posts/:id/like/
func (h *LikeHandler) LikePost(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		util.Unauthorized(c, "Login required")
		return
	}

	postID, ok := pathID(c, "id")
	if !ok {
		return
	}

	likes, err := h.likeService.LikePost(c.Request.Context(), userID, postID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"likes": likes})
}

// TrackView handles counting a post view
// POST /posts/:id/view/
func (h *LikeHandler) TrackView(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		util.Unauthorized(c, "Login required")
		return
	}

	postID, ok := pathID(c, "id")
	if !ok {
		return
	}

	views, err := h.postViewService.TrackView(c.Request.Context(), userID, postID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"detail":      "View counted successfully",
		"views_count": views,
	})
}
