package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/looplj/tzcore/internal/errkit"
)

// errorResponse is the JSON envelope every non-2xx response carries,
// grounded on the teacher's objects.ErrorResponse/objects.Error pair but
// keyed off the closed errkit.Kind taxonomy instead of an HTTP status
// text, since spec §7 treats Kind as the taxonomy and status as derived.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// abortWithError records err on the gin context (so accessLog can report
// it) and writes the mapped status/body, mirroring the teacher's
// middleware.AbortWithError.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := errkit.HTTPStatus(err)
	c.AbortWithStatusJSON(status, errorResponse{
		Error: errorBody{
			Kind:    string(errkit.KindOf(err)),
			Message: err.Error(),
		},
	})
}
