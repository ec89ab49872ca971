package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

// Cookie que o front do Supabase grava quando a sessão não vai no header.
const sessionCookie = "sb-access-token"

type ProfileFinder interface {
	FindByUserID(ctx context.Context, userID string) (*entity.Profile, error)
}

type profileKey struct{}

func WithProfile(ctx context.Context, p *entity.Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

func ProfileFromContext(ctx context.Context) (*entity.Profile, bool) {
	p, ok := ctx.Value(profileKey{}).(*entity.Profile)
	return p, ok && p != nil
}

// Auth valida o JWT da sessão (HS256, segredo do projeto Supabase) e carrega
// o profile do usuário. Sem sessão: 401. Sessão sem profile: 404.
func Auth(secret []byte, profiles ProfileFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			userID, err := parseSubject(token, secret)
			if err != nil {
				logger.Get().WithError(err).WithField("path", r.URL.Path).Warn("token inválido")
				writeAuthError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			profile, err := profiles.FindByUserID(r.Context(), userID)
			if errors.Is(err, entity.ErrNotFound) {
				writeAuthError(w, http.StatusNotFound, "Profile not found")
				return
			}
			if err != nil {
				logger.LogError(logger.Get(), "middleware", "Auth", "falha ao carregar profile", userID, err)
				writeAuthError(w, http.StatusInternalServerError, "Failed to load profile")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), profile)))
		})
	}
}

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func parseSubject(raw string, secret []byte) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errors.New("token without subject")
	}
	return sub, nil
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
