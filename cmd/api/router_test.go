package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/http/handlers"
	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
)

type noProfiles struct{}

func (noProfiles) FindByUserID(context.Context, string) (*entity.Profile, error) {
	return nil, entity.ErrNotFound
}

func testRouter() http.Handler {
	return newRouter(routerDeps{
		CORSOrigins: []string{"http://localhost:5173"},
		JWTSecret:   []byte("secret"),
		Profiles:    noProfiles{},
		Limiter:     middleware.NewRateLimiter(10, time.Minute),
		Health:      handlers.NewHealthHandler("test", nil),
		Pipeline:    handlers.NewPipelineHandler(nil, nil, nil),
		Calendar:    handlers.NewCalendarSyncHandler(nil, nil),
		Enrollments: handlers.NewEnrollmentHandler(nil),
		Documents:   handlers.NewDocumentHandler(nil),
	})
}

func TestPublicRoutes(t *testing.T) {
	r := testRouter()

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAPIRoutesRequireSession(t *testing.T) {
	r := testRouter()

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/records/r1/stage"},
		{http.MethodGet, "/api/pipelines/deal/stages"},
		{http.MethodPost, "/api/calendar/sync"},
		{http.MethodGet, "/api/calendar/sync?connectionId=c1"},
		{http.MethodPatch, "/api/sequences/s1/enrollments"},
		{http.MethodGet, "/api/records/r1/documents"},
	}
	for _, rt := range routes {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(rt.method, rt.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, rt.method+" "+rt.path)
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/records/r1/stage", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	testRouter().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
