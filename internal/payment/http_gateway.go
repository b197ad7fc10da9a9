package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kioskops-backend/internal/logger"
)

// httpGateway talks to the processor's REST API. One bounded timeout per
// call; no internal retries.
type httpGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPGateway creates a gateway adapter against the configured processor
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) Gateway {
	return &httpGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type gatewayResponse struct {
	Success         bool   `json:"success"`
	AuthorizationID string `json:"authorization_id,omitempty"`
	SettlementID    string `json:"settlement_id,omitempty"`
	AmountCents     int64  `json:"amount_cents,omitempty"`
	RequiresAction  bool   `json:"requires_action,omitempty"`
	ActionURL       string `json:"action_url,omitempty"`
	ErrorCode       string `json:"error_code,omitempty"`
}

func (g *httpGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	body := map[string]any{
		"amount_cents":  req.AmountCents,
		"currency":      req.Currency,
		"customer_ref":  req.CustomerRef,
		"description":   req.Description,
		"payment_token": req.PaymentToken,
	}
	resp, err := g.post(ctx, "/v1/authorizations", body)
	if err != nil {
		return nil, err
	}
	return &AuthorizeResult{
		Success:         resp.Success,
		AuthorizationID: resp.AuthorizationID,
		RequiresAction:  resp.RequiresAction,
		ActionURL:       resp.ActionURL,
		ErrorCode:       resp.ErrorCode,
	}, nil
}

func (g *httpGateway) Void(ctx context.Context, authorizationID string) (*VoidResult, error) {
	resp, err := g.post(ctx, fmt.Sprintf("/v1/authorizations/%s/void", authorizationID), map[string]any{})
	if err != nil {
		return nil, err
	}
	return &VoidResult{Success: resp.Success, ErrorCode: resp.ErrorCode}, nil
}

func (g *httpGateway) Finalize(ctx context.Context, authorizationID string, finalCents, originalCents int64, currency string) (*FinalizeResult, error) {
	if finalCents > originalCents {
		finalCents = originalCents
	}
	body := map[string]any{
		"final_cents":    finalCents,
		"original_cents": originalCents,
		"currency":       currency,
	}
	resp, err := g.post(ctx, fmt.Sprintf("/v1/authorizations/%s/finalize", authorizationID), body)
	if err != nil {
		return nil, err
	}
	return &FinalizeResult{
		Success:      resp.Success,
		SettlementID: resp.SettlementID,
		AmountCents:  resp.AmountCents,
		ErrorCode:    resp.ErrorCode,
	}, nil
}

func (g *httpGateway) post(ctx context.Context, path string, body any) (*gatewayResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		logger.WarnContext(ctx, "Gateway call failed", "path", path, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var out gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return &out, nil
}
