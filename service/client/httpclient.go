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

	"github.com/er-state/vrf-consumer/service"
	"github.com/er-state/vrf-consumer/types"
)

const defaultTimeout = 10 * time.Second

type VrfConsumerHTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewVrfConsumerHTTPClient creates a client of the vrfcd HTTP API at
// remoteAddr, given as host:port or a full URL.
func NewVrfConsumerHTTPClient(remoteAddr string) (*VrfConsumerHTTPClient, error) {
	if remoteAddr == "" {
		return nil, fmt.Errorf("the daemon address cannot be empty")
	}

	baseURL := remoteAddr
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &VrfConsumerHTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (c *VrfConsumerHTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *VrfConsumerHTTPClient) RequestRandomness(ctx context.Context, keyName string, clientSeed uint8) (*service.RequestRandomnessResult, error) {
	var res service.RequestRandomnessResult
	body := service.RequestRandomnessBody{ClientSeed: &clientSeed}
	if err := c.do(ctx, http.MethodPost, "/users/"+keyName+"/randomness", body, &res); err != nil {
		return nil, err
	}

	return &res, nil
}

func (c *VrfConsumerHTTPClient) QueryUserAccount(ctx context.Context, user types.Pubkey) (*service.UserAccountInfo, error) {
	var res service.UserAccountInfo
	if err := c.do(ctx, http.MethodGet, "/users/"+user.String()+"/account", nil, &res); err != nil {
		return nil, err
	}

	return &res, nil
}

func (c *VrfConsumerHTTPClient) QueryAccount(ctx context.Context, addr types.Pubkey) (*service.AccountResponse, error) {
	var res service.AccountResponse
	if err := c.do(ctx, http.MethodGet, "/accounts/"+addr.String(), nil, &res); err != nil {
		return nil, err
	}

	return &res, nil
}

func (c *VrfConsumerHTTPClient) PendingRequests(ctx context.Context) ([]service.QueuedRequestResponse, error) {
	var res []service.QueuedRequestResponse
	if err := c.do(ctx, http.MethodGet, "/queue", nil, &res); err != nil {
		return nil, err
	}

	return res, nil
}

func (c *VrfConsumerHTTPClient) FulfillPending(ctx context.Context) (*service.FulfillResponse, error) {
	var res service.FulfillResponse
	if err := c.do(ctx, http.MethodPost, "/queue/fulfill", nil, &res); err != nil {
		return nil, err
	}

	return &res, nil
}

// do sends a JSON request and decodes a JSON response into out, if given.
func (c *VrfConsumerHTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach vrfcd at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			return fmt.Errorf("vrfcd returned %s", resp.Status)
		}

		return fmt.Errorf("vrfcd returned %s: %s", resp.Status, apiErr.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
