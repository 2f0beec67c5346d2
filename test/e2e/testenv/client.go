//go:build e2e

package testenv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const contentType = "application/vnd.schemaregistry.v1+json"

// Client is a minimal schema registry REST client.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the registry at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Subjects lists the registered subjects.
func (c *Client) Subjects(ctx context.Context) ([]string, error) {
	var subjects []string
	if err := c.do(ctx, http.MethodGet, "/subjects", nil, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// Register registers an Avro schema under subject and returns its id.
func (c *Client) Register(ctx context.Context, subject, schema string) (int, error) {
	var resp struct {
		ID int `json:"id"`
	}
	body := map[string]string{"schema": schema}
	if err := c.do(ctx, http.MethodPost, "/subjects/"+subject+"/versions", body, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Schema returns the schema registered under id.
func (c *Client) Schema(ctx context.Context, id int) (string, error) {
	var resp struct {
		Schema string `json:"schema"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/schemas/ids/%d", id), nil, &resp); err != nil {
		return "", err
	}
	return resp.Schema, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, data)
	}
	return json.Unmarshal(data, out)
}
