// Package directory provides injectable read-through caches over the client
// directory and product catalog collaborators. Matching runs against the
// cached snapshot; a stated TTL plus an explicit Refresh keep tests
// deterministic and production reads cheap.
package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/celikd/orderdesk/internal/model"
)

// ClientDirectory lists the known clients.
type ClientDirectory interface {
	ListClients(ctx context.Context) ([]model.Client, error)
}

// ProductCatalog lists the known products.
type ProductCatalog interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
}

// ClientCache is a read-through TTL cache over a ClientDirectory.
type ClientCache struct {
	provider ClientDirectory
	snapshot []model.Client
	byID     map[string]model.Client
	expiry   time.Time
	ttl      time.Duration
	mu       sync.RWMutex
}

// NewClientCache creates a cache with the given TTL.
func NewClientCache(provider ClientDirectory, ttl time.Duration) *ClientCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ClientCache{provider: provider, ttl: ttl}
}

// ListClients returns the cached snapshot, refreshing it when expired.
func (c *ClientCache) ListClients(ctx context.Context) ([]model.Client, error) {
	c.mu.RLock()
	if c.snapshot != nil && time.Now().Before(c.expiry) {
		defer c.mu.RUnlock()
		return c.snapshot, nil
	}
	c.mu.RUnlock()

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, nil
}

// Get returns the client with the given id from the snapshot.
func (c *ClientCache) Get(ctx context.Context, id string) (*model.Client, bool, error) {
	if _, err := c.ListClients(ctx); err != nil {
		return nil, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	client, ok := c.byID[id]
	if !ok {
		return nil, false, nil
	}
	return &client, true, nil
}

// Refresh reloads the snapshot from the underlying directory.
func (c *ClientCache) Refresh(ctx context.Context) error {
	clients, err := c.provider.ListClients(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh client directory: %w", err)
	}

	byID := make(map[string]model.Client, len(clients))
	for _, cl := range clients {
		byID[cl.ID] = cl
	}

	c.mu.Lock()
	c.snapshot = clients
	c.byID = byID
	c.expiry = time.Now().Add(c.ttl)
	c.mu.Unlock()
	return nil
}

// ProductCache is a read-through TTL cache over a ProductCatalog.
type ProductCache struct {
	provider ProductCatalog
	snapshot []model.Product
	byID     map[string]model.Product
	expiry   time.Time
	ttl      time.Duration
	mu       sync.RWMutex
}

// NewProductCache creates a cache with the given TTL.
func NewProductCache(provider ProductCatalog, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ProductCache{provider: provider, ttl: ttl}
}

// ListProducts returns the cached snapshot, refreshing it when expired.
func (c *ProductCache) ListProducts(ctx context.Context) ([]model.Product, error) {
	c.mu.RLock()
	if c.snapshot != nil && time.Now().Before(c.expiry) {
		defer c.mu.RUnlock()
		return c.snapshot, nil
	}
	c.mu.RUnlock()

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, nil
}

// Get returns the product with the given id from the snapshot.
func (c *ProductCache) Get(ctx context.Context, id string) (*model.Product, bool, error) {
	if _, err := c.ListProducts(ctx); err != nil {
		return nil, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	product, ok := c.byID[id]
	if !ok {
		return nil, false, nil
	}
	return &product, true, nil
}

// Refresh reloads the snapshot from the underlying catalog.
func (c *ProductCache) Refresh(ctx context.Context) error {
	products, err := c.provider.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh product catalog: %w", err)
	}

	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	c.mu.Lock()
	c.snapshot = products
	c.byID = byID
	c.expiry = time.Now().Add(c.ttl)
	c.mu.Unlock()
	return nil
}
