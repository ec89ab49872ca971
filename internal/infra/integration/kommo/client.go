package kommo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/ligue-crm/internal/entity"
	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

var ErrNotConfigured = errors.New("kommo não configurado")

const wonTag = "crm_ganho"

type Client struct {
	apiToken    string
	baseURL     string
	wonStatusID int
	http        *http.Client
}

func NewClient(apiToken, baseURL string, wonStatusID int) *Client {
	return &Client{
		apiToken:    apiToken,
		baseURL:     baseURL,
		wonStatusID: wonStatusID,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
}

// MirrorWonDeal cria no Kommo um lead já no status de ganho, ligado ao
// contato (reaproveitado pelo telefone quando existe).
func (c *Client) MirrorWonDeal(ctx context.Context, change entity.StageChange) (int, error) {
	if c.apiToken == "" {
		return 0, ErrNotConfigured
	}

	contactID, err := c.findOrCreateContact(ctx, change)
	if err != nil {
		return 0, fmt.Errorf("erro ao criar/buscar contato: %w", err)
	}

	lead := leadPayload{
		Name:     change.Name,
		StatusID: c.wonStatusID,
		Embedded: leadEmbedded{
			Tags:     []tag{{Name: wonTag}},
			Contacts: []ref{{ID: contactID}},
		},
	}
	if change.Amount.Valid {
		lead.Price = change.Amount.Decimal.Round(0).IntPart()
	}

	var result embeddedIDs
	if err := c.do(ctx, http.MethodPost, "/leads", []leadPayload{lead}, &result); err != nil {
		return 0, fmt.Errorf("erro ao criar lead: %w", err)
	}
	if len(result.Embedded.Leads) == 0 {
		return 0, errors.New("lead não criado")
	}

	leadID := result.Embedded.Leads[0].ID
	logger.Get().WithFields(logrus.Fields{
		"lead_id":    leadID,
		"contact_id": contactID,
		"record_id":  change.RecordID,
	}).Info("Kommo: lead criado")
	return leadID, nil
}

func (c *Client) findOrCreateContact(ctx context.Context, change entity.StageChange) (int, error) {
	if change.Phone != "" {
		id, err := c.findContactByPhone(ctx, change.Phone)
		if err != nil {
			logger.Get().WithError(err).Warn("Kommo: busca de contato falhou, criando novo")
		}
		if id > 0 {
			return id, nil
		}
	}
	return c.createContact(ctx, change)
}

func (c *Client) findContactByPhone(ctx context.Context, phone string) (int, error) {
	var result embeddedIDs
	if err := c.do(ctx, http.MethodGet, "/contacts?query="+url.QueryEscape(phone), nil, &result); err != nil {
		return 0, err
	}
	if len(result.Embedded.Contacts) > 0 {
		return result.Embedded.Contacts[0].ID, nil
	}
	return 0, nil
}

func (c *Client) createContact(ctx context.Context, change entity.StageChange) (int, error) {
	contact := contactPayload{Name: change.Name}
	if change.Phone != "" {
		contact.CustomFieldsValues = append(contact.CustomFieldsValues, customField{
			FieldCode: "PHONE",
			Values:    []customFieldValue{{Value: change.Phone, EnumCode: "WORK"}},
		})
	}
	if change.Email != "" {
		contact.CustomFieldsValues = append(contact.CustomFieldsValues, customField{
			FieldCode: "EMAIL",
			Values:    []customFieldValue{{Value: change.Email, EnumCode: "WORK"}},
		})
	}

	var result embeddedIDs
	if err := c.do(ctx, http.MethodPost, "/contacts", []contactPayload{contact}, &result); err != nil {
		return 0, err
	}
	if len(result.Embedded.Contacts) == 0 {
		return 0, errors.New("erro ao obter ID do contato criado")
	}
	return result.Embedded.Contacts[0].ID, nil
}

// do trata 204 (busca sem resultado) como resposta vazia.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	c.addAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s %s: %d - %s", method, path, resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func (c *Client) addAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiToken))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
