package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/apierr"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/ctxutil"
)

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierr.Validation("invalid %s", name)
	}
	return id, nil
}

func queryLimit(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query("limit")))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func callerID(c *gin.Context) int64 {
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		return rd.UserID
	}
	return 0
}
