package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func runHealth(t *testing.T, checks map[string]Pinger) (int, map[string]any) {
	t.Helper()
	r := gin.New()
	r.GET("/healthcheck", NewHealthHandler(checks).HealthCheck)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, body
}

func TestHealthAllOK(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	code, body := runHealth(t, map[string]Pinger{"postgres": ok, "redis": ok, "neo4j": nil})
	if code != http.StatusOK {
		t.Fatalf("status: want=200 got=%d", code)
	}
	checks := body["checks"].(map[string]any)
	if len(checks) != 2 {
		t.Fatalf("nil pinger should be skipped: %v", checks)
	}
}

func TestHealthReportsFailedDependency(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })
	code, body := runHealth(t, map[string]Pinger{"postgres": ok, "redis": down})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status: want=503 got=%d", code)
	}
	failed := body["failed"].([]any)
	if len(failed) != 1 || failed[0] != "redis" {
		t.Fatalf("failed: want=[redis] got=%v", failed)
	}
	if got := body["checks"].(map[string]any)["redis"]; got != "connection refused" {
		t.Fatalf("redis check: got=%v", got)
	}
}
