package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"newstack/internal/domain"
	"newstack/internal/ports"
)

const (
	DefaultFunction = "ingest-rss"
	defaultTimeout  = 60 * time.Second
	maxErrorBody    = 4096
)

// FunctionsClient invokes serverless functions on the hosted backend.
type FunctionsClient struct {
	baseURL  string
	apiKey   string
	function string
	http     *http.Client
}

var _ ports.IngestionInvoker = (*FunctionsClient)(nil)

// NewFunctionsClient builds a client for {baseURL}/functions/v1/{function}.
func NewFunctionsClient(baseURL, apiKey, function string, timeout time.Duration) *FunctionsClient {
	if function == "" {
		function = DefaultFunction
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &FunctionsClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		function: function,
		http:     &http.Client{Timeout: timeout},
	}
}

// Timeout is the per-call deadline applied to every invocation.
func (c *FunctionsClient) Timeout() time.Duration {
	return c.http.Timeout
}

type invokeRequest struct {
	Trigger domain.Trigger `json:"trigger"`
}

type invokeStats struct {
	FeedsProcessed *int `json:"feedsProcessed"`
	StoriesCreated *int `json:"storiesCreated"`
	StoriesMerged  *int `json:"storiesMerged"`
}

type invokeResponse struct {
	RunID string       `json:"runId"`
	Stats *invokeStats `json:"stats"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// Invoke runs the ingestion function and decodes its canonical response.
func (c *FunctionsClient) Invoke(ctx context.Context, trigger domain.Trigger) (domain.RunResult, error) {
	body, err := json.Marshal(invokeRequest{Trigger: trigger})
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/functions/v1/%s", c.baseURL, c.function)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.RunResult{}, transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.RunResult{}, statusError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RunResult{}, transportError(err)
	}

	return decodeResult(raw)
}

func decodeResult(raw []byte) (domain.RunResult, error) {
	var payload invokeResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.RunResult{}, &domain.RemoteError{Kind: domain.ErrorDecode, Message: "decode response", Err: err}
	}

	if payload.Stats == nil {
		return domain.RunResult{}, &domain.RemoteError{Kind: domain.ErrorDecode, Message: "response has no stats object"}
	}
	s := payload.Stats
	if s.FeedsProcessed == nil || s.StoriesCreated == nil || s.StoriesMerged == nil {
		return domain.RunResult{}, &domain.RemoteError{Kind: domain.ErrorDecode, Message: "response stats are incomplete"}
	}

	return domain.RunResult{
		RunID:          payload.RunID,
		FeedsProcessed: *s.FeedsProcessed,
		StoriesCreated: *s.StoriesCreated,
		StoriesMerged:  *s.StoriesMerged,
	}, nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	remote := &domain.RemoteError{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode}

	var payload errorResponse
	if err := json.Unmarshal(raw, &payload); err == nil {
		if kind, ok := domain.ParseErrorKind(payload.Kind); ok {
			remote.Kind = kind
		}
		remote.Message = payload.Error
		if remote.Message == "" {
			remote.Message = payload.Message
		}
	}
	if remote.Message == "" {
		remote.Message = strings.TrimSpace(string(raw))
	}
	if remote.Message == "" {
		remote.Message = resp.Status
	}
	return remote
}

func kindForStatus(status int) domain.ErrorKind {
	switch status {
	case http.StatusTooManyRequests:
		return domain.ErrorRateLimited
	case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return domain.ErrorNetwork
	default:
		return domain.ErrorUnknown
	}
}

func transportError(err error) error {
	// Anything else that failed on the wire (dial, DNS, timeout) is a network issue.
	kind := domain.ErrorNetwork
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, syscall.ECONNRESET):
		kind = domain.ErrorConnectionClosed
	case errors.Is(err, context.Canceled):
		kind = domain.ErrorUnknown
	}

	return &domain.RemoteError{Kind: kind, Message: err.Error(), Err: err}
}
