package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"

	"postboard/internal/service"
	"postboard/internal/util"

	"github.com/gin-gonic/gin"
)

// respondError maps a service error onto its HTTP status and writes {"detail"}
func respondError(c *gin.Context, err error) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		log.Printf("Unhandled error on %s %s: %v", c.Request.Method, c.FullPath(), err)
		util.InternalServerError(c)
		return
	}

	switch svcErr.Kind {
	case service.KindValidation, service.KindConflict:
		util.BadRequest(c, svcErr.Detail)
	case service.KindUnauthorized:
		util.Unauthorized(c, svcErr.Detail)
	case service.KindForbidden:
		util.Forbidden(c, svcErr.Detail)
	case service.KindNotFound:
		util.NotFound(c, svcErr.Detail)
	default:
		log.Printf("Internal error on %s %s: %v", c.Request.Method, c.FullPath(), svcErr)
		util.InternalServerError(c)
	}
}

// bindError explains a request body that could not be decoded
func bindError(c *gin.Context, err error) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		util.BadRequest(c, fmt.Sprintf("%s: Incorrect type. Got %s.", typeErr.Field, typeErr.Value))
		return
	}
	util.BadRequest(c, "JSON parse error - "+err.Error())
}

// pathID parses a positive integer path parameter; anything else is not found
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		util.NotFound(c, "Not found.")
		return 0, false
	}
	return uint(id), true
}
