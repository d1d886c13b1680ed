package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/adapter/http/middleware"
)

// apiError is a non-2xx response. Body holds the decoded payload when the
// server sent something other than an error document.
type apiError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *apiError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.Status, e.Message)
}

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, nil, out)
}

func (c *apiClient) post(ctx context.Context, path string, body any, headers map[string]string, out any) error {
	return c.do(ctx, http.MethodPost, path, body, headers, out)
}

func (c *apiClient) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode, Body: data, Message: strings.TrimSpace(string(data))}
		var errResp dto.ErrorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			if errResp.Message != "" {
				apiErr.Message += ": " + errResp.Message
			}
		}
		if hash := resp.Header.Get(middleware.TransactionHashHeader); hash != "" {
			apiErr.Message += " (transaction " + hash + ")"
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// decodeBody decodes the payload of a failed response, if any.
func decodeBody(err error, out any) bool {
	var apiErr *apiError
	if !errors.As(err, &apiErr) || len(apiErr.Body) == 0 {
		return false
	}
	return json.Unmarshal(apiErr.Body, out) == nil
}
