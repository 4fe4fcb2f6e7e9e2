// Package registry publishes the current ticket to an external lookup
// service under a well-known name, so strangers can find the replication
// set without out-of-band ticket sharing. The whole feature is best-effort:
// a publisher without registry credentials, or one that cannot reach the
// registry, still distributes its ticket through the local ticket file.
package registry

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
)

// Publisher pushes a named ticket to a discovery service.
type Publisher interface {
	Publish(ctx context.Context, name, ticket string) error
}

// Nop is the publisher used when no registry is configured. Absence of
// credentials is a reduced-discoverability mode, not an error, so every
// call site can treat Publish as a total function.
type Nop struct{}

func (Nop) Publish(context.Context, string, string) error { return nil }

// HTTP publishes tickets to an HTTP registry with a bearer token.
type HTTP struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTP builds a registry client for baseURL.
func NewHTTP(baseURL, token string) *HTTP {
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type publishRequest struct {
	Name   string `json:"name"`
	Ticket string `json:"ticket"`
}

// Publish PUTs the ticket under name. Any non-2xx response is an error the
// caller is expected to log and absorb.
func (h *HTTP) Publish(ctx context.Context, name, ticket string) error {
	body, err := json.Marshal(publishRequest{Name: name, Ticket: ticket})
	if err != nil {
		return fmt.Errorf("registry: encode request: %w", err)
	}

	endpoint := h.baseURL + "/v1/tickets/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("registry: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("registry: publish %q: %w", name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("registry: publish %q: unexpected status %s", name, resp.Status)
	}
	return nil
}
