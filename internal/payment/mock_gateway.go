package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"kioskops-backend/internal/logger"
)

// mockGateway approves everything and keeps holds in memory. Used for local
// development, selected via payment.type: "mock" in config.
type mockGateway struct {
	mu    sync.Mutex
	holds map[string]int64 // authorization id -> held cents
}

// NewMockGateway creates an in-memory gateway that approves all requests
func NewMockGateway() Gateway {
	return &mockGateway{holds: make(map[string]int64)}
}

func (g *mockGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := "mock-auth-" + uuid.NewString()
	g.holds[id] = req.AmountCents
	logger.Debug("Mock gateway authorized", "authorization_id", id, "amount_cents", req.AmountCents)
	return &AuthorizeResult{Success: true, AuthorizationID: id}, nil
}

func (g *mockGateway) Void(ctx context.Context, authorizationID string) (*VoidResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.holds[authorizationID]; !ok {
		return &VoidResult{Success: false, ErrorCode: "authorization_not_found"}, nil
	}
	delete(g.holds, authorizationID)
	return &VoidResult{Success: true}, nil
}

func (g *mockGateway) Finalize(ctx context.Context, authorizationID string, finalCents, originalCents int64, currency string) (*FinalizeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	held, ok := g.holds[authorizationID]
	if !ok {
		return &FinalizeResult{Success: false, ErrorCode: "authorization_not_found"}, nil
	}
	delete(g.holds, authorizationID)

	if finalCents > held {
		finalCents = held
	}
	return &FinalizeResult{
		Success:      true,
		SettlementID: "mock-settle-" + uuid.NewString(),
		AmountCents:  finalCents,
	}, nil
}
