package solver

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

	"dispacio/internal/vrp"
)

// RemoteEngine delegates solving to an HTTP solver sidecar:
//
//	POST {baseURL}/solve  {"problem":{...},"vehicles":1,"capacity":N,"timeLimitMs":N}
//	200 {"routes":[[3,1,2]]}
//
// A single attempt is made per call.
type RemoteEngine struct {
	baseURL string
	client  *http.Client
}

func NewRemoteEngine(baseURL string, client *http.Client) *RemoteEngine {
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteEngine{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (e *RemoteEngine) Name() string { return "remote" }

type remoteRequest struct {
	Problem     *vrp.Problem `json:"problem"`
	Vehicles    int          `json:"vehicles"`
	Capacity    int64        `json:"capacity"`
	TimeLimitMs int64        `json:"timeLimitMs"`
}

type remoteResponse struct {
	Routes [][]int `json:"routes"`
	Status string  `json:"status,omitempty"`
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

func (e *RemoteEngine) Solve(ctx context.Context, p *vrp.Problem, req Request) ([][]int, error) {
	if e.baseURL == "" {
		return nil, fmt.Errorf("%w: no solver url configured", ErrUnavailable)
	}
	body, err := json.Marshal(remoteRequest{
		Problem:     p,
		Vehicles:    req.Vehicles,
		Capacity:    req.Capacity,
		TimeLimitMs: req.TimeLimit.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode problem: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/solve", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		he := &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		switch resp.StatusCode {
		case http.StatusUnprocessableEntity:
			return nil, fmt.Errorf("%w: %v", ErrNoSolution, he)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return nil, fmt.Errorf("%w: %v", ErrTimeout, he)
		case http.StatusNotFound, http.StatusBadGateway, http.StatusServiceUnavailable:
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, he)
		}
		return nil, he
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode solution: %w", err)
	}
	switch out.Status {
	case "infeasible":
		return nil, ErrNoSolution
	case "timeout":
		return nil, ErrTimeout
	}
	return out.Routes, nil
}

// Ping reports whether the sidecar answers its health endpoint.
func (e *RemoteEngine) Ping(ctx context.Context) error {
	if e.baseURL == "" {
		return ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
