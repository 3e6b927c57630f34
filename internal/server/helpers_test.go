package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simplegantt/planner/internal/memstore"
	"github.com/simplegantt/planner/internal/planner"
)

var testNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

type sequenceIDGenerator struct {
	next int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%04d", g.next), nil
}

func newTestService(t *testing.T) *planner.Service {
	t.Helper()
	service, err := planner.NewService(planner.ServiceConfig{
		Store:      memstore.New(),
		Clock:      func() time.Time { return testNow },
		IDProvider: &sequenceIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler, err := NewHTTPHandler(Dependencies{Service: newTestService(t)})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func performRequest(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, http.NoBody)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var decoded T
	if err := json.Unmarshal(recorder.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return decoded
}

func mustPost[T any](t *testing.T, handler http.Handler, target, body string) T {
	t.Helper()
	recorder := performRequest(handler, http.MethodPost, target, body)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 from %s, got %d: %s", target, recorder.Code, recorder.Body.String())
	}
	return decodeBody[T](t, recorder)
}
