// Package listclient implements store.RecordStore against the remote list
// service over HTTP. It tolerates the service's verbose-JSON envelope (a
// single "d" wrapper) on read responses.
package listclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/calejo/formgate/internal/models"
	"github.com/calejo/formgate/internal/store"
)

// Ensure Client implements store.RecordStore
var _ store.RecordStore = (*Client)(nil)

const acceptHeader = "application/json;odata=verbose"

// Client talks to the remote list service's item endpoints.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a list client for the service at baseURL.
// If httpClient is nil, http.DefaultClient is used.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// personPayload mirrors the wire form of an author/modifier stamp.
type personPayload struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// recordPayload mirrors the wire form of a list item.
type recordPayload struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Body        string              `json:"body"`
	CreatedBy   *personPayload      `json:"createdBy,omitempty"`
	ModifiedBy  *personPayload      `json:"modifiedBy,omitempty"`
	Attachments []attachmentPayload `json:"attachments,omitempty"`
	Revisions   []revisionPayload   `json:"revisions,omitempty"`
	Final       bool                `json:"final"`
	CreatedAt   int64               `json:"createdAt"`
	UpdatedAt   int64               `json:"updatedAt"`
}

type attachmentPayload struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

type revisionPayload struct {
	Editor     string `json:"editor"`
	ModifiedAt int64  `json:"modifiedAt"`
	Comment    string `json:"comment,omitempty"`
}

// Load retrieves a list item by id.
func (c *Client) Load(ctx context.Context, id string) (*models.Record, error) {
	body, err := c.do(ctx, http.MethodGet, c.itemURL(id), nil)
	if err != nil {
		return nil, err
	}

	var payload recordPayload
	if err := json.Unmarshal(unwrapEnvelope(body), &payload); err != nil {
		return nil, fmt.Errorf("malformed item payload: %w", err)
	}
	return payload.toModel(), nil
}

// Persist writes the record. The service assigns an id on first persist;
// the record is updated in place from the response.
func (c *Client) Persist(ctx context.Context, rec *models.Record, final bool) error {
	payload := struct {
		recordPayload
		IsFinal bool `json:"isFinal"`
	}{recordPayload: toPayload(rec), IsFinal: final}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	method := http.MethodPut
	target := c.itemURL(rec.ID)
	if rec.ID == "" {
		method = http.MethodPost
		target = c.baseURL + "/items"
	}

	respBody, err := c.do(ctx, method, target, reqBody)
	if err != nil {
		return err
	}

	var stored recordPayload
	if err := json.Unmarshal(unwrapEnvelope(respBody), &stored); err != nil {
		return fmt.Errorf("malformed persist response: %w", err)
	}

	rec.ID = stored.ID
	rec.Final = stored.Final
	rec.CreatedAt = stored.CreatedAt
	rec.UpdatedAt = stored.UpdatedAt
	rec.Revisions = toRevisions(stored.Revisions)
	return nil
}

// Delete removes the list item with the given id.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, c.itemURL(id), nil)
	return err
}

// RemoveAttachment detaches one attachment from the item.
func (c *Client) RemoveAttachment(ctx context.Context, recordID string, att models.Attachment) error {
	target := c.itemURL(recordID) + "/attachments?url=" + url.QueryEscape(att.URL)
	_, err := c.do(ctx, http.MethodDelete, target, nil)
	return err
}

// Close is a no-op; the client holds no resources beyond the http.Client.
func (c *Client) Close() error { return nil }

func (c *Client) itemURL(id string) string {
	return c.baseURL + "/items/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, store.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return nil, store.ErrLocked
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("list service returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return respBody, nil
}

func toPayload(rec *models.Record) recordPayload {
	p := recordPayload{
		ID:        rec.ID,
		Title:     rec.Title,
		Body:      rec.Body,
		Final:     rec.Final,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.CreatedBy != nil {
		p.CreatedBy = &personPayload{ID: rec.CreatedBy.ID, Title: rec.CreatedBy.Title}
	}
	if rec.ModifiedBy != nil {
		p.ModifiedBy = &personPayload{ID: rec.ModifiedBy.ID, Title: rec.ModifiedBy.Title}
	}
	for _, att := range rec.Attachments {
		p.Attachments = append(p.Attachments, attachmentPayload{URL: att.URL, Name: att.Name})
	}
	for _, rev := range rec.Revisions {
		p.Revisions = append(p.Revisions, revisionPayload{
			Editor: rev.Editor, ModifiedAt: rev.ModifiedAt, Comment: rev.Comment,
		})
	}
	return p
}

func (p recordPayload) toModel() *models.Record {
	rec := &models.Record{
		ID:        p.ID,
		Title:     p.Title,
		Body:      p.Body,
		Final:     p.Final,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.CreatedBy != nil {
		rec.CreatedBy = &models.Person{ID: p.CreatedBy.ID, Title: p.CreatedBy.Title}
	}
	if p.ModifiedBy != nil {
		rec.ModifiedBy = &models.Person{ID: p.ModifiedBy.ID, Title: p.ModifiedBy.Title}
	}
	for _, att := range p.Attachments {
		rec.Attachments = append(rec.Attachments, models.Attachment{URL: att.URL, Name: att.Name})
	}
	rec.Revisions = toRevisions(p.Revisions)
	return rec
}

func toRevisions(payloads []revisionPayload) []models.Revision {
	var revs []models.Revision
	for _, p := range payloads {
		revs = append(revs, models.Revision{
			Editor: p.Editor, ModifiedAt: p.ModifiedAt, Comment: p.Comment,
		})
	}
	return revs
}

// unwrapEnvelope strips the single "d" wrapper if present.
func unwrapEnvelope(body []byte) []byte {
	var env struct {
		D json.RawMessage `json:"d"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.D) > 0 {
		return env.D
	}
	return body
}
