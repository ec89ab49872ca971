package microsoft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

const (
	BaseURL = "https://graph.microsoft.com/v1.0"

	graphDateTime = "2006-01-02T15:04:05.9999999"
)

var Scopes = []string{"offline_access", "Calendars.Read"}

var errForeignCursor = errors.New("delta link does not belong to graph base url")

// Client usa calendarView/delta: a primeira chamada recebe a janela e devolve
// um deltaLink, que é o cursor das chamadas seguintes.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{HTTPClient: httpClient, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) ListCalendars(ctx context.Context) ([]entity.ProviderCalendar, error) {
	var out []entity.ProviderCalendar
	next := c.BaseURL + "/me/calendars?$top=100"
	for next != "" {
		var page calendarsResponse
		if err := c.get(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, cal := range page.Value {
			out = append(out, entity.ProviderCalendar{
				ExternalID: cal.ID,
				Name:       cal.Name,
				Color:      cal.HexColor,
				IsPrimary:  cal.IsDefaultCalendar,
			})
		}
		next = page.NextLink
	}
	return out, nil
}

func (c *Client) ListEvents(ctx context.Context, calendarID string, from, to time.Time) (*entity.EventPage, error) {
	q := url.Values{}
	q.Set("startDateTime", from.UTC().Format(time.RFC3339))
	q.Set("endDateTime", to.UTC().Format(time.RFC3339))
	return c.follow(ctx, c.BaseURL+"/me/calendars/"+url.PathEscape(calendarID)+"/calendarView/delta?"+q.Encode())
}

// ListChanges segue o deltaLink salvo. O Graph responde 410 quando o estado
// do delta expirou.
func (c *Client) ListChanges(ctx context.Context, calendarID, cursor string) (*entity.EventPage, error) {
	if !strings.HasPrefix(cursor, c.BaseURL+"/") {
		return nil, errForeignCursor
	}
	return c.follow(ctx, cursor)
}

func (c *Client) follow(ctx context.Context, link string) (*entity.EventPage, error) {
	result := &entity.EventPage{}
	for link != "" {
		var page eventsResponse
		if err := c.get(ctx, link, &page); err != nil {
			return nil, err
		}
		for _, ev := range page.Value {
			pe, err := toProviderEvent(ev)
			if err != nil {
				return nil, fmt.Errorf("event %s: %w", ev.ID, err)
			}
			result.Events = append(result.Events, pe)
		}
		if page.DeltaLink != "" {
			result.NextCursor = page.DeltaLink
		}
		link = page.NextLink
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, link string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

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
			return fmt.Errorf("microsoft graph: %d %s - %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("microsoft graph: %d - %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

func toProviderEvent(ev event) (entity.ProviderEvent, error) {
	pe := entity.ProviderEvent{
		ExternalID:  ev.ID,
		Title:       ev.Subject,
		Description: ev.BodyPreview,
		Location:    ev.Location.DisplayName,
		HTMLLink:    ev.WebLink,
		AllDay:      ev.IsAllDay,
		Status:      entity.EventConfirmed,
	}
	switch {
	case ev.Removed != nil || ev.IsCancelled:
		pe.Status = entity.EventCancelled
	case ev.ShowAs == "tentative":
		pe.Status = entity.EventTentative
	}
	if ev.Removed != nil {
		return pe, nil
	}

	var err error
	if pe.StartsAt, err = parseDateTime(ev.Start); err != nil {
		return pe, err
	}
	if pe.EndsAt, err = parseDateTime(ev.End); err != nil {
		return pe, err
	}
	if ev.LastModifiedDateTime != "" {
		if t, err := time.Parse(time.RFC3339, ev.LastModifiedDateTime); err == nil {
			pe.UpdatedAt = &t
		}
	}
	for _, a := range ev.Attendees {
		if a.EmailAddress.Address != "" {
			pe.Attendees = append(pe.Attendees, a.EmailAddress.Address)
		}
	}
	return pe, nil
}

// parseDateTime: com o Prefer UTC o fuso vem "UTC"; nomes que o Go não
// conhece caem em UTC.
func parseDateTime(v dateTimeTimeZone) (time.Time, error) {
	if v.DateTime == "" {
		return time.Time{}, nil
	}
	loc := time.UTC
	if v.TimeZone != "" && v.TimeZone != "UTC" {
		if l, err := time.LoadLocation(v.TimeZone); err == nil {
			loc = l
		}
	}
	return time.ParseInLocation(graphDateTime, v.DateTime, loc)
}
