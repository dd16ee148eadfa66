// Package client is a small Go client for the guardsvc HTTP API. It
// defines its own wire types so importers outside this module can name
// every request and response.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Capability describes the tool, resource, or prompt an access request
// is about. For resources Name holds the URI.
type Capability struct {
	Name      string         `json:"name"`
	Namespace string         `json:"namespace,omitempty"`
	Version   string         `json:"version,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AccessRequest is the body of POST /v1/decision. ResourceType is one
// of "tools", "resources", or "prompts".
type AccessRequest struct {
	ResourceType string     `json:"resource_type"`
	Resource     Capability `json:"resource"`
	Action       string     `json:"action"`
	Method       string     `json:"method,omitempty"`
	RequestID    string     `json:"request_id,omitempty"`
}

// Decision is the service's answer, including the audit metadata.
type Decision struct {
	Allowed        bool    `json:"allowed"`
	Reason         string  `json:"reason"`
	MatchedRule    string  `json:"matched_rule,omitempty"`
	Message        string  `json:"message,omitempty"`
	EvaluatedRules int     `json:"evaluated_rules"`
	EvaluationTime float64 `json:"evaluation_time_ms"`
}

// Client calls a running guardsvc.
type Client struct {
	BaseURL    string
	APIKey     string
	BearerTok  string
	HTTPClient *http.Client
}

// Config holds configuration for the client.
type Config struct {
	BaseURL string
	APIKey  string
	Bearer  string
	Timeout time.Duration
}

// New creates a new Client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		APIKey:     cfg.APIKey,
		BearerTok:  cfg.Bearer,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Decide asks the service for an authorization decision.
func (c *Client) Decide(ctx context.Context, req AccessRequest) (Decision, error) {
	var d Decision
	err := c.do(ctx, http.MethodPost, "/v1/decision", req, &d)
	return d, err
}

// ListPolicies returns the names of the loaded policies.
func (c *Client) ListPolicies(ctx context.Context) ([]string, error) {
	var out struct {
		Policies []string `json:"policies"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/policies", nil, &out); err != nil {
		return nil, err
	}
	return out.Policies, nil
}

// GetPolicy fetches one policy document by name. Policy documents pass
// through as raw JSON; the client does not pin the policy schema.
func (c *Client) GetPolicy(ctx context.Context, name string) (json.RawMessage, error) {
	var doc json.RawMessage
	err := c.do(ctx, http.MethodGet, "/v1/policies/"+name, nil, &doc)
	return doc, err
}

// AddPolicy registers a new policy from a JSON document.
func (c *Client) AddPolicy(ctx context.Context, doc json.RawMessage) error {
	return c.do(ctx, http.MethodPost, "/v1/policies", doc, nil)
}

// RemovePolicy deletes a policy by name.
func (c *Client) RemovePolicy(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/v1/policies/"+name, nil, nil)
}

// ReloadPolicies atomically replaces the whole policy set with the
// given JSON documents.
func (c *Client) ReloadPolicies(ctx context.Context, docs []json.RawMessage) error {
	body := map[string]any{"policies": docs}
	return c.do(ctx, http.MethodPut, "/v1/policies", body, nil)
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

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	if c.BearerTok != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerTok)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
