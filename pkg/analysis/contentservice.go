package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPContentService calls the content service's integration API over
// HTTP, grounded on wisbric-nightowl's bookowl.Client — a single
// *http.Client with a fixed timeout and one method per endpoint. The
// content database's own schema is an external collaborator spec.md §1
// scopes out, so this client only speaks the narrow ContentService
// contract the analyzers need.
type HTTPContentService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPContentService(baseURL, apiKey string) *HTTPContentService {
	return &HTTPContentService{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPContentService) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling content service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("content service returned HTTP %d for %s %s", resp.StatusCode, method, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *HTTPContentService) GetWorkItem(ctx context.Context, wadID string) (WorkItem, error) {
	var item WorkItem
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/work-items/%s", wadID), nil, &item); err != nil {
		return WorkItem{}, err
	}
	return item, nil
}

func (c *HTTPContentService) HasMapAnalysis(ctx context.Context, wadID, mapName string) (bool, error) {
	var result struct {
		Exists bool `json:"exists"`
	}
	path := fmt.Sprintf("/work-items/%s/maps/%s/analysis", wadID, mapName)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return false, err
	}
	return result.Exists, nil
}

func (c *HTTPContentService) HasWadAnalysis(ctx context.Context, wadID string) (bool, error) {
	var result struct {
		Exists bool `json:"exists"`
	}
	path := fmt.Sprintf("/work-items/%s/analysis", wadID)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return false, err
	}
	return result.Exists, nil
}

func (c *HTTPContentService) PostResult(ctx context.Context, analysisContext any, result json.RawMessage) error {
	body := struct {
		Context any             `json:"context"`
		Result  json.RawMessage `json:"result"`
	}{Context: analysisContext, Result: result}
	return c.do(ctx, http.MethodPost, "/analysis-results", body, nil)
}
