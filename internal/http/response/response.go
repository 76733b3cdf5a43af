package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError maps err through apierr so dependency details never leave
// the process.
func RespondAPIError(c *gin.Context, err error) {
	code := "internal_error"
	if ae, ok := apierr.As(err); ok && ae.Code != "" {
		code = ae.Code
	}
	c.JSON(apierr.StatusOf(err), ErrorEnvelope{
		Error: APIError{
			Message: apierr.PublicMessage(err),
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
