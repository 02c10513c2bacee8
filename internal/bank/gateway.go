// internal/bank/gateway.go

// Package bank drives the activation handshake with the partner bank:
// opening a redirect session, polling for the decision, and reconciling
// the outcome into the application lifecycle exactly once.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/config"
	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
	commonhttp "github.com/Synergyfy/Help2Home-sub002/internal/common/http"
	"github.com/Synergyfy/Help2Home-sub002/internal/common/logger"
	"github.com/Synergyfy/Help2Home-sub002/internal/common/metrics"
)

// Result is the bank's view of an activation session.
type Result string

const (
	ResultPending Result = "pending"
	ResultSuccess Result = "success"
	ResultFailed  Result = "failed"
)

// Gateway is the outbound contract to the partner bank.
type Gateway interface {
	// OpenSession starts an activation session and returns the URL the
	// tenant is redirected to.
	OpenSession(ctx context.Context, applicationID string) (string, error)
	// CheckStatus reads the current session result without side effects.
	CheckStatus(ctx context.Context, applicationID string) (Result, error)
	// ManualConfirm asks the bank to settle the session now, used as the
	// out-of-band escape hatch when polling lags behind.
	ManualConfirm(ctx context.Context, applicationID string) (Result, error)
}

// HTTPGateway talks to the bank's activation REST API.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *commonhttp.Client
	logger  logger.Logger
}

func NewHTTPGateway(cfg config.BankConfig, log logger.Logger) *HTTPGateway {
	timeout := config.GetDuration(cfg.OpenTimeout)
	if statusTimeout := config.GetDuration(cfg.StatusTimeout); statusTimeout > timeout {
		timeout = statusTimeout
	}
	return &HTTPGateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  commonhttp.NewClient(timeout),
		logger:  log,
	}
}

type openSessionRequest struct {
	ApplicationID string `json:"applicationId"`
}

type openSessionResponse struct {
	RedirectURL string `json:"redirectUrl"`
}

type sessionStatusResponse struct {
	Status string `json:"status"`
}

func (g *HTTPGateway) OpenSession(ctx context.Context, applicationID string) (string, error) {
	body, _ := json.Marshal(openSessionRequest{ApplicationID: applicationID})
	url := fmt.Sprintf("%s/v1/activations", g.baseURL)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.NewGatewayUnavailableError("open_session", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out openSessionResponse
	if err := g.do(ctx, "open_session", req, &out); err != nil {
		return "", err
	}
	if out.RedirectURL == "" {
		return "", errors.NewGatewayUnavailableError("open_session",
			fmt.Errorf("bank returned no redirect url"))
	}
	return out.RedirectURL, nil
}

func (g *HTTPGateway) CheckStatus(ctx context.Context, applicationID string) (Result, error) {
	url := fmt.Sprintf("%s/v1/activations/%s", g.baseURL, applicationID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", errors.NewGatewayUnavailableError("check_status", err)
	}

	var out sessionStatusResponse
	if err := g.do(ctx, "check_status", req, &out); err != nil {
		return "", err
	}
	return parseResult("check_status", out.Status)
}

func (g *HTTPGateway) ManualConfirm(ctx context.Context, applicationID string) (Result, error) {
	url := fmt.Sprintf("%s/v1/activations/%s/confirm", g.baseURL, applicationID)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return "", errors.NewGatewayUnavailableError("manual_confirm", err)
	}

	var out sessionStatusResponse
	if err := g.do(ctx, "manual_confirm", req, &out); err != nil {
		return "", err
	}
	return parseResult("manual_confirm", out.Status)
}

func (g *HTTPGateway) do(ctx context.Context, operation string, req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.client.DoWithContext(ctx, req)
	metrics.GatewayCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || isTimeout(err) {
			metrics.GatewayCalls.WithLabelValues(operation, "timeout").Inc()
			return errors.NewGatewayTimeoutError(operation)
		}
		metrics.GatewayCalls.WithLabelValues(operation, "error").Inc()
		return errors.NewGatewayUnavailableError(operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.GatewayCalls.WithLabelValues(operation, "error").Inc()
		return errors.NewGatewayUnavailableError(operation,
			fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.GatewayCalls.WithLabelValues(operation, "error").Inc()
		return errors.NewGatewayUnavailableError(operation, err)
	}

	metrics.GatewayCalls.WithLabelValues(operation, "ok").Inc()
	return nil
}

func parseResult(operation, raw string) (Result, error) {
	switch Result(raw) {
	case ResultPending, ResultSuccess, ResultFailed:
		return Result(raw), nil
	default:
		return "", errors.NewGatewayUnavailableError(operation,
			fmt.Errorf("unknown session status %q", raw))
	}
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	for e := err; e != nil; {
		if t, ok := e.(timeout); ok && t.Timeout() {
			return true
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := e.(unwrapper)
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return false
}
