package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse writes a {"detail": ...} body and aborts the chain
func ErrorResponse(c *gin.Context, statusCode int, detail string) {
	c.AbortWithStatusJSON(statusCode, gin.H{"detail": detail})
}

func BadRequest(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusBadRequest, detail)
}

func Unauthorized(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusUnauthorized, detail)
}

func Forbidden(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusForbidden, detail)
}

func NotFound(c *gin.Context, detail string) {
	ErrorResponse(c, http.StatusNotFound, detail)
}

func InternalServerError(c *gin.Context) {
	ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
}
