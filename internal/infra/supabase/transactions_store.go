package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/finvista/finvista-gateway-go/internal/domain"
)

// transactionRow maps the bank_transactions / recorded_transactions columns.
type transactionRow struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"client_id"`
	Date        string          `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	Account     string          `json:"account"`
}

func (r transactionRow) toDomain() domain.Transaction {
	t, err := time.Parse(time.RFC3339, r.Date)
	if err != nil {
		t, _ = time.Parse("2006-01-02", r.Date)
	}
	return domain.Transaction{
		ID:          r.ID,
		Date:        t.UTC(),
		Amount:      r.Amount,
		Description: r.Description,
		Reference:   r.Reference,
		Account:     r.Account,
	}
}

// FetchBankTransactions fetches bank statement lines for a client and period.
func (c *Client) FetchBankTransactions(ctx context.Context, clientID string, from, to time.Time) ([]domain.Transaction, error) {
	return c.fetchTransactions(ctx, "bank_transactions", clientID, from, to)
}

// FetchRecordedTransactions fetches internally recorded ledger entries for a
// client and period.
func (c *Client) FetchRecordedTransactions(ctx context.Context, clientID string, from, to time.Time) ([]domain.Transaction, error) {
	return c.fetchTransactions(ctx, "recorded_transactions", clientID, from, to)
}

func (c *Client) fetchTransactions(ctx context.Context, table, clientID string, from, to time.Time) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchTransactions")
	defer span.End()
	span.SetAttributes(
		attribute.String("client.id", clientID),
		attribute.String("table", table),
	)

	var transactions []domain.Transaction

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("%s?client_id=eq.%s&date=gte.%s&date=lte.%s&order=date.asc",
			table,
			url.QueryEscape(clientID),
			from.UTC().Format("2006-01-02"),
			to.UTC().Format("2006-01-02"),
		)
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}

		if body == nil || string(body) == "[]" {
			transactions = []domain.Transaction{}
			return nil
		}

		var rows []transactionRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode %s: %w", table, err)
		}

		transactions = make([]domain.Transaction, 0, len(rows))
		for _, r := range rows {
			transactions = append(transactions, r.toDomain())
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/" + table, Err: err}
	}

	return transactions, nil
}
