package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type StageRequest struct {
	Stage     string         `json:"stage"`
	FromStage string         `json:"fromStage,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Verdict espelha a resposta etiquetada do POST /api/records/{id}/stage.
type Verdict struct {
	Kind             entity.VerdictKind  `json:"kind"`
	Reason           entity.GateReason   `json:"reason,omitempty"`
	Stage            StageRef            `json:"stage"`
	MissingFields    []string            `json:"missingFields,omitempty"`
	ValidationErrors []entity.FieldError `json:"validationErrors,omitempty"`
	RequiresApproval bool                `json:"requiresApproval,omitempty"`
	Record           *entity.Record      `json:"record,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Client faz uma única tentativa por chamada.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: httpClient,
	}
}

// RequestStageChange devolve o veredito para 200 e para 422 com kind gated.
// O resto vira *TransitionError.
func (c *Client) RequestStageChange(ctx context.Context, recordID string, in StageRequest) (*Verdict, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/records/%s/stage", c.BaseURL, url.PathEscape(recordID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransitionError{RecordID: recordID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransitionError{RecordID: recordID, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransitionError{RecordID: recordID, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusUnprocessableEntity {
		var v Verdict
		if json.Unmarshal(raw, &v) == nil {
			switch {
			case resp.StatusCode == http.StatusOK && v.Kind == entity.VerdictOK:
				return &v, nil
			case v.Kind == entity.VerdictGated:
				return &v, nil
			}
		}
	}

	te := &TransitionError{RecordID: recordID, Status: resp.StatusCode}
	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
		te.Code, te.Message = apiErr.Code, apiErr.Error
	} else {
		te.Message = http.StatusText(resp.StatusCode)
	}
	return nil, te
}
