package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ErrABIUnavailable is returned when the explorer answers with a non-200 status.
var ErrABIUnavailable = errors.New("contract abi unavailable")

// Resolver fetches contract ABIs from an Etherscan-compatible API.
type Resolver struct {
	baseURL string
	client  *http.Client
}

// NewResolver builds a Resolver. A nil client means http.DefaultClient.
func NewResolver(baseURL string, client *http.Client) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{baseURL: baseURL, client: client}
}

// RequestURL returns the getabi URL for address.
func (r *Resolver) RequestURL(address string) (string, error) {
	u, err := url.Parse(r.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse explorer url: %w", err)
	}
	q := u.Query()
	q.Set("module", "contract")
	q.Set("action", "getabi")
	q.Set("address", address)
	q.Set("format", "raw")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch downloads the raw ABI JSON for address.
func (r *Resolver) Fetch(ctx context.Context, address string) (json.RawMessage, error) {
	reqURL, err := r.RequestURL(address)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create abi request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch abi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: explorer returned status %d", ErrABIUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read abi body: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("abi body is not valid json")
	}

	return json.RawMessage(body), nil
}
