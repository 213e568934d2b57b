// Package memstore provides in-memory implementations of the persistence
// ports. Used for local development without a Supabase project and as a
// deterministic backend in tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finvista/finvista-gateway-go/internal/domain"
)

// Store holds all in-memory collections behind a single mutex. It implements
// port.TransactionStore, port.DecisionStore and port.ClientStore.
type Store struct {
	mu sync.RWMutex

	bank     map[string][]domain.Transaction // keyed by client id
	recorded map[string][]domain.Transaction

	decisions map[string][]domain.MatchDecision // keyed by session id
	audit     []domain.MatchAuditEntry

	clients map[string]domain.Client
}

// New creates an empty store.
func New() *Store {
	return &Store{
		bank:      make(map[string][]domain.Transaction),
		recorded:  make(map[string][]domain.Transaction),
		decisions: make(map[string][]domain.MatchDecision),
		clients:   make(map[string]domain.Client),
	}
}

// SeedTransactions loads a client's bank and recorded transactions.
func (s *Store) SeedTransactions(clientID string, bank, recorded []domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bank[clientID] = append([]domain.Transaction(nil), bank...)
	s.recorded[clientID] = append([]domain.Transaction(nil), recorded...)
}

// SeedClient loads a client record.
func (s *Store) SeedClient(client domain.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = client
}

// FetchBankTransactions returns the client's bank transactions within the period.
func (s *Store) FetchBankTransactions(_ context.Context, clientID string, from, to time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterPeriod(s.bank[clientID], from, to), nil
}

// FetchRecordedTransactions returns the client's recorded transactions within the period.
func (s *Store) FetchRecordedTransactions(_ context.Context, clientID string, from, to time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterPeriod(s.recorded[clientID], from, to), nil
}

func filterPeriod(txns []domain.Transaction, from, to time.Time) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txns))
	for _, t := range txns {
		day := t.Day()
		if day.Before(from) || day.After(to) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// SaveDecisions stores the finalized decisions of a session.
func (s *Store) SaveDecisions(_ context.Context, sessionID string, decisions []domain.MatchDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[sessionID] = append([]domain.MatchDecision(nil), decisions...)
	return nil
}

// AppendAuditEntries appends audit rows.
func (s *Store) AppendAuditEntries(_ context.Context, entries []domain.MatchAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entries...)
	return nil
}

// SavedDecisions returns the persisted decisions for a session.
func (s *Store) SavedDecisions(sessionID string) []domain.MatchDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.MatchDecision(nil), s.decisions[sessionID]...)
}

// AuditEntries returns a copy of the audit log.
func (s *Store) AuditEntries() []domain.MatchAuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.MatchAuditEntry(nil), s.audit...)
}

// ListClients returns a page of clients ordered by name.
func (s *Store) ListClients(_ context.Context, page, pageSize int) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	start := (page - 1) * pageSize
	if start >= len(all) {
		return []domain.Client{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

// GetClient returns a client by id.
func (s *Store) GetClient(_ context.Context, clientID string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "client", ID: clientID}
	}
	return &c, nil
}

// CreateClient stores a new client.
func (s *Store) CreateClient(_ context.Context, client *domain.Client) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[client.ID]; exists {
		return nil, &domain.ErrConflict{Resource: "client", ID: client.ID}
	}
	stored := *client
	stored.CreatedAt = time.Now().UTC()
	s.clients[client.ID] = stored
	return &stored, nil
}

// UpdateClient patches a client's mutable fields.
func (s *Store) UpdateClient(_ context.Context, clientID string, update *domain.ClientUpdate) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "client", ID: clientID}
	}
	if update.Name != "" {
		c.Name = update.Name
	}
	if update.Email != "" {
		c.Email = update.Email
	}
	if update.Status != "" {
		c.Status = update.Status
	}
	s.clients[clientID] = c
	return &c, nil
}
