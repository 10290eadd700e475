package response

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/agora-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Scope   string `json:"scope,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes err using its domain code. Rate-limit errors also set
// Retry-After in whole seconds.
func RespondError(c *gin.Context, err error) {
	ae := apierr.From(err)
	if ae == nil {
		ae = apierr.From(errUnknown)
	}
	if ae.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ae.RetryAfter.Seconds()))))
	}
	c.AbortWithStatusJSON(ae.Status, ErrorEnvelope{
		Error: APIError{Message: ae.Message(), Code: ae.Code, Scope: ae.Scope},
	})
}

// RespondStatus writes a bare envelope for failures that never reach a
// service, such as malformed JSON.
func RespondStatus(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: message, Code: code}})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

var errUnknown = apierr.New(http.StatusInternalServerError, "internal", nil)
