package httpapi

import (
	"errors"
	"net/http"

	"github.com/avelichko/linkvault/internal/common"
	"github.com/gin-gonic/gin"
)

// writeSuccess emits the uniform success envelope.
func writeSuccess(c *gin.Context, status int, data gin.H) {
	c.JSON(status, gin.H{"status": "success", "data": data})
}

// writeError maps a service error to a status code and the uniform error
// envelope. Sentinel wrapping (fmt.Errorf with %w) survives the mapping via
// errors.Is. Unknown errors collapse to an opaque 500; the detail is logged
// by the caller, never echoed to the client.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "something went wrong"
	}

	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorValidation),
		errors.Is(err, common.ErrorEmailTaken):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthenticated),
		errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrorPasswordRequired),
		errors.Is(err, common.ErrorWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorForbidden),
		errors.Is(err, common.ErrorViewLimitReached):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
