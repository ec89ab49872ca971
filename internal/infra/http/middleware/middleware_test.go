package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

var testSecret = []byte("super-secret-jwt-token-with-at-least-32-characters")

type MockProfileFinder struct {
	mock.Mock
}

func (m *MockProfileFinder) FindByUserID(ctx context.Context, userID string) (*entity.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Profile), args.Error(1)
}

func signToken(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key any) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(sub string) jwt.MapClaims {
	return jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix(), "role": "authenticated"}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func protectedHandler(profiles ProfileFinder) (http.Handler, *bool) {
	called := false
	h := Auth(testSecret, profiles)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		p, ok := ProfileFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Header().Set("X-Org", p.OrganizationID)
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, &called
}

func TestAuthWithoutTokenReturns401(t *testing.T) {
	h, called := protectedHandler(new(MockProfileFinder))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calendar/sync", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decodeError(t, rec))
	assert.False(t, *called)
}

func TestAuthRejectsBadTokens(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, validClaims("user-1"), jwt.SigningMethodHS256, []byte("another-secret"))},
		{"expired", signToken(t, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Minute).Unix()}, jwt.SigningMethodHS256, testSecret)},
		{"without exp", signToken(t, jwt.MapClaims{"sub": "user-1"}, jwt.SigningMethodHS256, testSecret)},
		{"without sub", signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}, jwt.SigningMethodHS256, testSecret)},
		{"other algorithm", signToken(t, validClaims("user-1"), jwt.SigningMethodHS512, testSecret)},
		{"garbage", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, called := protectedHandler(new(MockProfileFinder))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, *called)
		})
	}
}

func TestAuthProfileNotFoundReturns404(t *testing.T) {
	profiles := new(MockProfileFinder)
	profiles.On("FindByUserID", mock.Anything, "user-1").Return(nil, entity.ErrNotFound)
	h, called := protectedHandler(profiles)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims("user-1"), jwt.SigningMethodHS256, testSecret))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Profile not found", decodeError(t, rec))
	assert.False(t, *called)
}

func TestAuthProfileLookupFailureReturns500(t *testing.T) {
	profiles := new(MockProfileFinder)
	profiles.On("FindByUserID", mock.Anything, "user-1").Return(nil, errors.New("connection refused"))
	h, _ := protectedHandler(profiles)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims("user-1"), jwt.SigningMethodHS256, testSecret))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthInjectsProfile(t *testing.T) {
	profiles := new(MockProfileFinder)
	profiles.On("FindByUserID", mock.Anything, "user-1").Return(&entity.Profile{ID: "p-1", UserID: "user-1", OrganizationID: "org-1"}, nil)

	t.Run("bearer header", func(t *testing.T) {
		h, called := protectedHandler(profiles)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims("user-1"), jwt.SigningMethodHS256, testSecret))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "org-1", rec.Header().Get("X-Org"))
		assert.True(t, *called)
	})

	t.Run("session cookie", func(t *testing.T) {
		h, _ := protectedHandler(profiles)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: signToken(t, validClaims("user-1"), jwt.SigningMethodHS256, testSecret)})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestProfileFromContextEmpty(t *testing.T) {
	_, ok := ProfileFromContext(context.Background())
	assert.False(t, ok)

	_, ok = ProfileFromContext(WithProfile(context.Background(), nil))
	assert.False(t, ok)
}

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 2, rl.Len())
}

func TestRateLimiterMiddlewareUsesProfile(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(profileID string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/calendar/sync", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req = req.WithContext(WithProfile(req.Context(), &entity.Profile{ID: profileID}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("p-1"))
	assert.Equal(t, http.StatusTooManyRequests, send("p-1"))
	// mesmo IP, outro profile
	assert.Equal(t, http.StatusOK, send("p-2"))
}

func TestClientIPPrefersFirstForwarded(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")

	assert.Equal(t, "203.0.113.7", clientIP(req))
}
