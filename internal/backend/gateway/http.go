// internal/backend/gateway/http.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// APIError defines a standardized error response from the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (Status: %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (Status: %d)", e.Message, e.StatusCode)
}

// listResponse is the paginated list envelope used by every list
// endpoint.
type listResponse[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

// listAll walks a paginated list endpoint until the next link runs
// out.
func listAll[T any](ctx context.Context, a *Adapter, resource string, query url.Values) ([]T, error) {
	path := apiBase + "/" + resource + "/"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var out []T
	for path != "" {
		var page listResponse[T]
		if err := a.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Results...)
		if page.Next == nil || *page.Next == "" {
			break
		}
		path = *page.Next
	}
	return out, nil
}

func (a *Adapter) post(ctx context.Context, resource string, payload, out any) error {
	return a.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s/", apiBase, resource), payload, out)
}

func (a *Adapter) patch(ctx context.Context, resourcePath string, payload any) error {
	return a.do(ctx, http.MethodPatch, fmt.Sprintf("%s/%s/", apiBase, resourcePath), payload, nil)
}

func (a *Adapter) delete(ctx context.Context, resourcePath string) error {
	return a.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%s/", apiBase, resourcePath), nil, nil)
}

// do performs one JSON request against the gateway and unmarshals the
// response into out when out is non-nil.
func (a *Adapter) do(ctx context.Context, method, path string, payload, out any) error {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	endpoint := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		endpoint = strings.TrimRight(a.config.BaseURL, "/") + path
	}

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.config.Username != "" {
		req.SetBasicAuth(a.config.Username, a.config.Password)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr APIError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return &APIError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("request failed with status code %d", resp.StatusCode),
			}
		}
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
