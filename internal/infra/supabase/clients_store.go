package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/finvista/finvista-gateway-go/internal/domain"
)

// clientRow maps the clients table columns.
type clientRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Document  string `json:"document"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func (r clientRow) toDomain() domain.Client {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.Client{
		ID:        r.ID,
		Name:      r.Name,
		Document:  r.Document,
		Email:     r.Email,
		Status:    r.Status,
		CreatedAt: created,
	}
}

// ListClients fetches a page of clients ordered by name.
func (c *Client) ListClients(ctx context.Context, page, pageSize int) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListClients")
	defer span.End()
	span.SetAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize))

	var clients []domain.Client

	err := c.execute(ctx, func() error {
		offset := (page - 1) * pageSize
		path := fmt.Sprintf("clients?order=name.asc&limit=%d&offset=%d", pageSize, offset)
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}

		if body == nil || string(body) == "[]" {
			clients = []domain.Client{}
			return nil
		}

		var rows []clientRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode clients: %w", err)
		}

		clients = make([]domain.Client, 0, len(rows))
		for _, r := range rows {
			clients = append(clients, r.toDomain())
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/clients", Err: err}
	}
	return clients, nil
}

// GetClient fetches a single client by id.
func (c *Client) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	var client *domain.Client

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("clients?id=eq.%s&limit=1", url.QueryEscape(clientID))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}

		if body == nil || string(body) == "[]" {
			return &domain.ErrNotFound{Resource: "client", ID: clientID}
		}

		var rows []clientRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode client: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "client", ID: clientID}
		}

		cl := rows[0].toDomain()
		client = &cl
		return nil
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/clients", Err: err}
	}
	return client, nil
}

// CreateClient inserts a new client row and returns the stored record.
func (c *Client) CreateClient(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateClient")
	defer span.End()

	var created *domain.Client

	err := c.execute(ctx, func() error {
		body, err := c.doPost(ctx, "clients", map[string]any{
			"id":       client.ID,
			"name":     client.Name,
			"document": client.Document,
			"email":    client.Email,
			"status":   client.Status,
		})
		if err != nil {
			return err
		}

		var rows []clientRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode created client: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("insert returned no rows")
		}

		cl := rows[0].toDomain()
		created = &cl
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/clients", Err: err}
	}
	return created, nil
}

// UpdateClient patches the mutable fields of a client and returns the
// refreshed record.
func (c *Client) UpdateClient(ctx context.Context, clientID string, update *domain.ClientUpdate) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	data := map[string]any{}
	if update.Name != "" {
		data["name"] = update.Name
	}
	if update.Email != "" {
		data["email"] = update.Email
	}
	if update.Status != "" {
		data["status"] = update.Status
	}
	if len(data) == 0 {
		return c.GetClient(ctx, clientID)
	}

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("clients?id=eq.%s", url.QueryEscape(clientID))
		return c.doPatch(ctx, path, data)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/clients", Err: err}
	}

	return c.GetClient(ctx, clientID)
}
