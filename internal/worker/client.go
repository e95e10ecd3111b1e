// Package worker talks to the external article-generation worker network.
// Calls are accept-only: the worker queues a 10-20 minute job and later
// writes the result back out of band, so only HTTP-level acceptance is
// checked here and no response body is consumed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wordforge/wordforge/pkg/models"
)

// Sentinel errors for worker dispatch failures.
var (
	ErrWorkerUnreachable = errors.New("worker unreachable")
	ErrWorkerRejected    = errors.New("worker rejected dispatch")
	ErrWorkerTimeout     = errors.New("worker dispatch timeout")
)

// Client is the interface for dispatching generation requests.
type Client interface {
	Dispatch(ctx context.Context, req Request) error
}

// Request identifies one generation unit to the worker. The worker echoes
// the ids back when it delivers content, so they must round-trip intact.
type Request struct {
	UnitID       uuid.UUID
	BatchID      uuid.UUID
	UserID       uuid.UUID
	Keyword      string
	Tier         models.Tier
	WordLimit    int
	Instructions string
}

// HTTPClient implements Client against the worker's form-encoded HTTP API.
type HTTPClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

// NewHTTPClient creates a worker client. The timeout bounds the accept
// call only, never the generation job itself.
func NewHTTPClient(baseURL, secret string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Dispatch(ctx context.Context, req Request) error {
	form := url.Values{
		"keyword":  {req.Keyword},
		"unit_id":  {req.UnitID.String()},
		"user_id":  {req.UserID.String()},
		"batch_id": {req.BatchID.String()},
		"tier":     {req.Tier.String()},
		"secret":   {c.secret},
	}
	if req.WordLimit > 0 {
		form.Set("word_limit", strconv.Itoa(req.WordLimit))
	}
	if req.Instructions != "" {
		form.Set("instructions", req.Instructions)
	}

	endpoint := c.baseURL + req.Tier.EndpointPath()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrWorkerRejected, resp.StatusCode)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrWorkerTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrWorkerTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrWorkerUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrWorkerUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
