package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func preflight(r *gin.Engine, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/votes/post/x", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORSConfiguredOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("https://agora.example"))
	r.OPTIONS("/api/votes/post/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := preflight(r, "https://agora.example")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://agora.example" {
		t.Fatalf("allow-origin: want=%q got=%q", "https://agora.example", got)
	}

	rec = preflight(r, "http://localhost:5173")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign origin status: want=%d got=%d", http.StatusForbidden, rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin allowed: %q", got)
	}
}

func TestCORSDefaultsToDevOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.OPTIONS("/api/votes/post/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, origin := range []string{"http://localhost:5173", "http://127.0.0.1:3000"} {
		rec := preflight(r, origin)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("%s status: want=%d got=%d", origin, http.StatusNoContent, rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Fatalf("%s allow-origin: got=%q", origin, got)
		}
	}
}

func TestTraceHeadersEchoed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get(HeaderRequestID); got != "req-1" {
		t.Fatalf("request id: want=req-1 got=%q", got)
	}
	if rec.Header().Get(HeaderTraceID) == "" {
		t.Fatalf("trace id not generated")
	}
}
