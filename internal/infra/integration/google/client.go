package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

const (
	BaseURL = "https://www.googleapis.com/calendar/v3"
	Scope   = "https://www.googleapis.com/auth/calendar.readonly"

	pageSize = "250"
)

// Client fala com a Calendar API v3. O HTTPClient já vem autenticado (oauth2).
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{HTTPClient: httpClient, BaseURL: baseURL}
}

func (c *Client) ListCalendars(ctx context.Context) ([]entity.ProviderCalendar, error) {
	var out []entity.ProviderCalendar
	pageToken := ""
	for {
		q := url.Values{}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var page calendarListResponse
		if err := c.get(ctx, "/users/me/calendarList", q, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			name := item.Summary
			if item.SummaryOverride != "" {
				name = item.SummaryOverride
			}
			out = append(out, entity.ProviderCalendar{
				ExternalID: item.ID,
				Name:       name,
				Color:      item.BackgroundColor,
				TimeZone:   item.TimeZone,
				IsPrimary:  item.Primary,
			})
		}

		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

// ListEvents expande recorrências dentro da janela. O nextSyncToken da última
// página vira o cursor do calendário.
func (c *Client) ListEvents(ctx context.Context, calendarID string, from, to time.Time) (*entity.EventPage, error) {
	q := url.Values{}
	q.Set("timeMin", from.UTC().Format(time.RFC3339))
	q.Set("timeMax", to.UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("maxResults", pageSize)
	return c.listEvents(ctx, calendarID, q)
}

// ListChanges usa o syncToken; 410 significa token expirado.
func (c *Client) ListChanges(ctx context.Context, calendarID, cursor string) (*entity.EventPage, error) {
	q := url.Values{}
	q.Set("syncToken", cursor)
	q.Set("singleEvents", "true")
	q.Set("showDeleted", "true")
	q.Set("maxResults", pageSize)
	return c.listEvents(ctx, calendarID, q)
}

func (c *Client) listEvents(ctx context.Context, calendarID string, q url.Values) (*entity.EventPage, error) {
	path := "/calendars/" + url.PathEscape(calendarID) + "/events"
	result := &entity.EventPage{}
	for {
		var page eventsResponse
		if err := c.get(ctx, path, q, &page); err != nil {
			return nil, err
		}
		for _, ev := range page.Items {
			pe, err := toProviderEvent(ev)
			if err != nil {
				return nil, fmt.Errorf("event %s: %w", ev.ID, err)
			}
			result.Events = append(result.Events, pe)
		}

		if page.NextPageToken == "" {
			result.NextCursor = page.NextSyncToken
			return result, nil
		}
		q.Set("pageToken", page.NextPageToken)
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusGone {
		return entity.ErrCursorExpired
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("google calendar: %d - %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("google calendar: %d - %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

func toProviderEvent(ev event) (entity.ProviderEvent, error) {
	pe := entity.ProviderEvent{
		ExternalID:  ev.ID,
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		HTMLLink:    ev.HTMLLink,
		Status:      mapStatus(ev.Status),
	}

	// Eventos cancelados no modo incremental vêm só com id e status.
	if ev.Status == "cancelled" && ev.Start.DateTime == "" && ev.Start.Date == "" {
		return pe, nil
	}

	var err error
	if pe.StartsAt, pe.AllDay, err = parseTime(ev.Start); err != nil {
		return pe, err
	}
	if pe.EndsAt, _, err = parseTime(ev.End); err != nil {
		return pe, err
	}
	if ev.Updated != "" {
		if t, err := time.Parse(time.RFC3339, ev.Updated); err == nil {
			pe.UpdatedAt = &t
		}
	}
	for _, a := range ev.Attendees {
		if a.Email != "" {
			pe.Attendees = append(pe.Attendees, a.Email)
		}
	}
	return pe, nil
}

func parseTime(t eventTime) (time.Time, bool, error) {
	switch {
	case t.DateTime != "":
		v, err := time.Parse(time.RFC3339, t.DateTime)
		return v, false, err
	case t.Date != "":
		v, err := time.Parse(time.DateOnly, t.Date)
		return v, true, err
	}
	return time.Time{}, false, nil
}

func mapStatus(s string) entity.EventStatus {
	switch s {
	case "cancelled":
		return entity.EventCancelled
	case "tentative":
		return entity.EventTentative
	}
	return entity.EventConfirmed
}
