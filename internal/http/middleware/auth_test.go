package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/ctxutil"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

type stubVerifier map[string]int64

func (s stubVerifier) Verify(_ context.Context, token string) (*services.Identity, error) {
	id, ok := s[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &services.Identity{UserID: id, DisplayName: "user"}, nil
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	am := NewAuthMiddleware(logger.Nop(), stubVerifier{"good": 42})

	r := gin.New()
	r.Use(am.RequireAuth())
	r.GET("/me", func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": rd.UserID})
	})

	cases := []struct {
		name   string
		target string
		header string
		status int
	}{
		{name: "missing", target: "/me", status: http.StatusUnauthorized},
		{name: "query token", target: "/me?token=good", status: http.StatusOK},
		{name: "bearer token", target: "/me", header: "Bearer good", status: http.StatusOK},
		{name: "rejected token", target: "/me", header: "Bearer nope", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.target, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: want=%d got=%d body=%s", tc.name, tc.status, rec.Code, rec.Body.String())
		}
	}
}

func TestAttachTraceContextEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Tracing("test"), AttachTraceContext())
	r.GET("/healthcheck", func(c *gin.Context) {
		td := ctxutil.GetTraceData(c.Request.Context())
		if td == nil || td.TraceID == "" {
			t.Errorf("trace data missing")
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/healthcheck", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("X-Request-Id: want=req-123 got=%q", got)
	}
	if rec.Header().Get("X-Trace-Id") == "" {
		t.Fatalf("X-Trace-Id: want non-empty")
	}
}
