// Package calendars monta o adapter de agenda certo para cada conexão,
// com token OAuth renovado e persistido de volta no banco.
package calendars

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/integration/google"
	"github.com/xavierca1/ligue-crm/internal/infra/integration/microsoft"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
	"github.com/xavierca1/ligue-crm/internal/usecase"
)

var (
	_ usecase.IncrementalCalendarProvider = (*google.Client)(nil)
	_ usecase.IncrementalCalendarProvider = (*microsoft.Client)(nil)
)

type TokenStore interface {
	UpdateTokens(ctx context.Context, conn *entity.CalendarConnection) error
}

type Credentials struct {
	ClientID     string
	ClientSecret string
}

type Registry struct {
	google    *oauth2.Config
	microsoft *oauth2.Config
	tokens    TokenStore

	// Sobrescritos nos testes.
	GoogleBaseURL    string
	MicrosoftBaseURL string
}

// NewRegistry ignora provedores sem client id: conexões deles falham com
// entity.ErrUnknownProvider.
func NewRegistry(googleCreds, microsoftCreds Credentials, microsoftTenant string, tokens TokenStore) *Registry {
	r := &Registry{tokens: tokens}
	if googleCreds.ClientID != "" {
		r.google = &oauth2.Config{
			ClientID:     googleCreds.ClientID,
			ClientSecret: googleCreds.ClientSecret,
			Endpoint:     endpoints.Google,
			Scopes:       []string{google.Scope},
		}
	}
	if microsoftCreds.ClientID != "" {
		if microsoftTenant == "" {
			microsoftTenant = "common"
		}
		r.microsoft = &oauth2.Config{
			ClientID:     microsoftCreds.ClientID,
			ClientSecret: microsoftCreds.ClientSecret,
			Endpoint:     endpoints.AzureAD(microsoftTenant),
			Scopes:       microsoft.Scopes,
		}
	}
	return r
}

func (r *Registry) ForConnection(ctx context.Context, conn *entity.CalendarConnection) (usecase.CalendarProvider, error) {
	switch conn.Provider {
	case entity.ProviderGoogle:
		if r.google == nil {
			return nil, fmt.Errorf("%w: google not configured", entity.ErrUnknownProvider)
		}
		return google.NewClient(r.httpClient(ctx, r.google, conn), r.GoogleBaseURL), nil
	case entity.ProviderMicrosoft:
		if r.microsoft == nil {
			return nil, fmt.Errorf("%w: microsoft not configured", entity.ErrUnknownProvider)
		}
		return microsoft.NewClient(r.httpClient(ctx, r.microsoft, conn), r.MicrosoftBaseURL), nil
	}
	return nil, fmt.Errorf("%w: %s", entity.ErrUnknownProvider, conn.Provider)
}

func (r *Registry) httpClient(ctx context.Context, cfg *oauth2.Config, conn *entity.CalendarConnection) *http.Client {
	tok := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		TokenType:    "Bearer",
	}
	if conn.TokenExpiry != nil {
		tok.Expiry = *conn.TokenExpiry
	}

	src := &persistingSource{
		base:  cfg.TokenSource(context.WithoutCancel(ctx), tok),
		conn:  conn,
		store: r.tokens,
		last:  conn.AccessToken,
	}
	return oauth2.NewClient(ctx, src)
}

// persistingSource grava o token quando o oauth2 renova o access token.
type persistingSource struct {
	base  oauth2.TokenSource
	conn  *entity.CalendarConnection
	store TokenStore

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last || s.store == nil {
		return tok, nil
	}
	s.last = tok.AccessToken

	s.conn.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		s.conn.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		s.conn.TokenExpiry = &expiry
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.UpdateTokens(ctx, s.conn); err != nil {
		logger.LogError(logger.Get(), "calendars", "persistingSource.Token", "falha ao salvar token renovado", s.conn.ID, err)
	}
	return tok, nil
}
