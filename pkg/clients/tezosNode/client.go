package tezosNode

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Layr-Labs/tezos-client-go/pkg/crypto"
	"github.com/Layr-Labs/tezos-client-go/pkg/operation"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	EndpointVersion           = "/version"
	EndpointConstants         = "/chains/main/blocks/head/context/constants"
	EndpointProtocols         = "/chains/main/blocks/head/protocols"
	EndpointHeadHash          = "/chains/main/blocks/head/hash"
	EndpointChainID           = "/chains/main/chain_id"
	EndpointCounter           = "/chains/main/blocks/head/context/contracts/{address}/counter"
	EndpointManagerKey        = "/chains/main/blocks/head/context/contracts/{address}/manager_key"
	EndpointBalance           = "/chains/main/blocks/head/context/contracts/{address}/balance"
	EndpointForge             = "/chains/main/blocks/{branch}/helpers/forge/operations"
	EndpointPreapply          = "/chains/main/blocks/head/helpers/preapply/operations"
	EndpointInject            = "/injection/operation"
	EndpointPendingOperations = "/chains/main/mempool/pending_operations"

	DefaultRequestTimeout    = 30 * time.Second
	DefaultRequestsPerSecond = 10

	maxResponseBytes = 16 << 20
)

type ClientConfig struct {
	BaseURL string
	// Timeout bounds each request.
	Timeout time.Duration
	// RequestsPerSecond throttles calls from this client. Zero uses the
	// default; negative disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// Client talks to a node's JSON RPC over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ INodeClient = (*Client)(nil)

func NewClient(cfg *ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("node base URL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid node base URL %q: %w", cfg.BaseURL, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	limit := rate.Limit(cfg.RequestsPerSecond)
	switch {
	case cfg.RequestsPerSecond == 0:
		limit = DefaultRequestsPerSecond
	case cfg.RequestsPerSecond < 0:
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}, nil
}

// SetHttpClient replaces the underlying HTTP client.
func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

func expand(template string, params map[string]string) string {
	out := template
	for k, v := range params {
		out = strings.ReplaceAll(out, "{"+k+"}", url.PathEscape(v))
	}
	return out
}

// call performs one request. endpoint is the path template reported in
// errors; path is the expanded request path.
func (c *Client) call(ctx context.Context, method, endpoint, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Endpoint: endpoint, Method: method, Err: err}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Endpoint: endpoint, Method: method, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Method: method, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Method: method, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Endpoint: endpoint, Method: method, StatusCode: resp.StatusCode, StatusText: resp.Status, Err: err}
	}
	c.logger.Sugar().Debugw("Node call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{
			Endpoint:   endpoint,
			Method:     method,
			StatusCode: resp.StatusCode,
			StatusText: resp.Status,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &TransportError{
			Endpoint:   endpoint,
			Method:     method,
			StatusCode: resp.StatusCode,
			StatusText: resp.Status,
			Body:       strings.TrimSpace(string(respBody)),
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

func (c *Client) GetVersion(ctx context.Context) (*VersionInfo, error) {
	var v VersionInfo
	if err := c.call(ctx, http.MethodPost, EndpointVersion, EndpointVersion, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) GetConstants(ctx context.Context) (*Constants, error) {
	var constants Constants
	if err := c.call(ctx, http.MethodGet, EndpointConstants, EndpointConstants, nil, &constants); err != nil {
		return nil, err
	}
	return &constants, nil
}

func (c *Client) GetProtocols(ctx context.Context) (*ProtocolInfo, error) {
	var info ProtocolInfo
	if err := c.call(ctx, http.MethodGet, EndpointProtocols, EndpointProtocols, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) GetHeadHash(ctx context.Context) (crypto.BlockHash, error) {
	var hash crypto.BlockHash
	err := c.call(ctx, http.MethodGet, EndpointHeadHash, EndpointHeadHash, nil, &hash)
	return hash, err
}

func (c *Client) GetChainID(ctx context.Context) (crypto.ChainID, error) {
	var id crypto.ChainID
	err := c.call(ctx, http.MethodGet, EndpointChainID, EndpointChainID, nil, &id)
	return id, err
}

func (c *Client) GetCounter(ctx context.Context, address crypto.Address) (uint64, error) {
	var counter Uint
	path := expand(EndpointCounter, map[string]string{"address": address.String()})
	if err := c.call(ctx, http.MethodGet, EndpointCounter, path, nil, &counter); err != nil {
		return 0, err
	}
	return uint64(counter), nil
}

func (c *Client) GetManagerKey(ctx context.Context, address crypto.Address) (*crypto.PublicKey, error) {
	var key *string
	path := expand(EndpointManagerKey, map[string]string{"address": address.String()})
	if err := c.call(ctx, http.MethodGet, EndpointManagerKey, path, nil, &key); err != nil {
		return nil, err
	}
	if key == nil || *key == "" {
		return nil, nil
	}
	pk, err := crypto.ParsePublicKey(*key)
	if err != nil {
		return nil, &TransportError{Endpoint: EndpointManagerKey, Method: http.MethodGet, Err: fmt.Errorf("invalid manager key: %w", err)}
	}
	return &pk, nil
}

func (c *Client) GetBalance(ctx context.Context, address crypto.Address) (uint64, error) {
	var balance Uint
	path := expand(EndpointBalance, map[string]string{"address": address.String()})
	if err := c.call(ctx, http.MethodGet, EndpointBalance, path, nil, &balance); err != nil {
		return 0, err
	}
	return uint64(balance), nil
}

func (c *Client) ForgeOperations(ctx context.Context, group *operation.OperationGroup) ([]byte, error) {
	var forgedHex string
	path := expand(EndpointForge, map[string]string{"branch": group.Branch.String()})
	if err := c.call(ctx, http.MethodPost, EndpointForge, path, group, &forgedHex); err != nil {
		return nil, err
	}
	forged, err := hex.DecodeString(forgedHex)
	if err != nil {
		return nil, &TransportError{Endpoint: EndpointForge, Method: http.MethodPost, Err: fmt.Errorf("forge returned invalid hex: %w", err)}
	}
	return forged, nil
}

func (c *Client) PreapplyOperations(
	ctx context.Context,
	protocol crypto.ProtocolHash,
	group *operation.OperationGroup,
	signature crypto.Signature,
) ([]PreapplyResult, error) {
	body := []PreapplyRequest{{
		Protocol:  protocol,
		Branch:    group.Branch,
		Contents:  operation.Contents(group.Contents),
		Signature: signature,
	}}
	var results []PreapplyResult
	if err := c.call(ctx, http.MethodPost, EndpointPreapply, EndpointPreapply, body, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) InjectOperation(ctx context.Context, signedHex string) (crypto.OperationHash, error) {
	var hash crypto.OperationHash
	err := c.call(ctx, http.MethodPost, EndpointInject, EndpointInject, signedHex, &hash)
	return hash, err
}

func (c *Client) GetPendingOperationStatus(ctx context.Context, hash crypto.OperationHash) (PendingStatus, error) {
	var pending pendingOperations
	if err := c.call(ctx, http.MethodGet, EndpointPendingOperations, EndpointPendingOperations, nil, &pending); err != nil {
		return StatusUnknown, err
	}
	return pending.status(hash.String()), nil
}
