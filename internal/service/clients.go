package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/finvista/finvista-gateway-go/internal/domain"
	"github.com/finvista/finvista-gateway-go/internal/port"
)

// Clients provides client management on top of the client store.
type Clients struct {
	store  port.ClientStore
	logger *zap.Logger
}

// NewClients creates the clients service.
func NewClients(store port.ClientStore, logger *zap.Logger) *Clients {
	return &Clients{store: store, logger: logger}
}

// List returns a page of clients.
func (c *Clients) List(ctx context.Context, page, pageSize int) (*domain.ListResponse[domain.Client], error) {
	ctx, span := tracer.Start(ctx, "Clients.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	span.SetAttributes(attribute.Int("page", page), attribute.Int("page_size", pageSize))

	clients, err := c.store.ListClients(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &domain.ListResponse[domain.Client]{
		Data:     clients,
		Total:    len(clients),
		Page:     page,
		PageSize: pageSize,
		HasMore:  len(clients) == pageSize,
	}, nil
}

// Get returns a single client by id.
func (c *Clients) Get(ctx context.Context, clientID string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Clients.Get")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	if clientID == "" {
		return nil, &domain.ErrValidation{Field: "clientId", Message: "required"}
	}
	return c.store.GetClient(ctx, clientID)
}

// Create validates and stores a new client.
func (c *Clients) Create(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Clients.Create")
	defer span.End()

	if strings.TrimSpace(client.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	if client.Status == "" {
		client.Status = "active"
	}

	created, err := c.store.CreateClient(ctx, client)
	if err != nil {
		return nil, err
	}
	c.logger.Info("client created",
		zap.String("client_id", created.ID),
		zap.String("name", created.Name),
	)
	return created, nil
}

// Update patches a client's mutable fields.
func (c *Clients) Update(ctx context.Context, clientID string, update *domain.ClientUpdate) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Clients.Update")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	if clientID == "" {
		return nil, &domain.ErrValidation{Field: "clientId", Message: "required"}
	}
	if update.Status != "" && update.Status != "active" && update.Status != "inactive" {
		return nil, &domain.ErrValidation{Field: "status", Message: "must be active or inactive"}
	}
	return c.store.UpdateClient(ctx, clientID, update)
}
