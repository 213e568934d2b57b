// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/finvista/finvista-gateway-go/internal/domain"
)

// TransactionStore retrieves the two transaction collections for a statement
// period. Implemented by the Supabase adapter (or any other persistence
// layer); the reconciliation core never talks to storage directly.
type TransactionStore interface {
	FetchBankTransactions(ctx context.Context, clientID string, from, to time.Time) ([]domain.Transaction, error)
	FetchRecordedTransactions(ctx context.Context, clientID string, from, to time.Time) ([]domain.Transaction, error)
}

// DecisionStore persists finalized match decisions and their audit trail.
type DecisionStore interface {
	SaveDecisions(ctx context.Context, sessionID string, decisions []domain.MatchDecision) error
	AppendAuditEntries(ctx context.Context, entries []domain.MatchAuditEntry) error
}

// ClientStore provides client-management persistence.
type ClientStore interface {
	ListClients(ctx context.Context, page, pageSize int) ([]domain.Client, error)
	GetClient(ctx context.Context, clientID string) (*domain.Client, error)
	CreateClient(ctx context.Context, client *domain.Client) (*domain.Client, error)
	UpdateClient(ctx context.Context, clientID string, update *domain.ClientUpdate) (*domain.Client, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
