package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celikd/orderdesk/internal/model"
)

type fakeDirectory struct {
	clients []model.Client
	calls   int
	err     error
}

func (f *fakeDirectory) ListClients(_ context.Context) ([]model.Client, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.clients, nil
}

func TestClientCacheServesSnapshot(t *testing.T) {
	provider := &fakeDirectory{clients: []model.Client{{ID: "cl-1", Name: "Marmara Cam"}}}
	cache := NewClientCache(provider, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		clients, err := cache.ListClients(ctx)
		require.NoError(t, err)
		assert.Len(t, clients, 1)
	}
	assert.Equal(t, 1, provider.calls, "snapshot served without re-reading")
}

func TestClientCacheGet(t *testing.T) {
	provider := &fakeDirectory{clients: []model.Client{{ID: "cl-1", Name: "Marmara Cam"}}}
	cache := NewClientCache(provider, time.Minute)
	ctx := context.Background()

	client, ok, err := cache.Get(ctx, "cl-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Marmara Cam", client.Name)

	_, ok, err = cache.Get(ctx, "cl-missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientCacheRefreshPicksUpChanges(t *testing.T) {
	provider := &fakeDirectory{clients: []model.Client{{ID: "cl-1", Name: "Marmara Cam"}}}
	cache := NewClientCache(provider, time.Minute)
	ctx := context.Background()

	_, err := cache.ListClients(ctx)
	require.NoError(t, err)

	provider.clients = append(provider.clients, model.Client{ID: "cl-2", Name: "Nordfenster GmbH"})
	require.NoError(t, cache.Refresh(ctx))

	clients, err := cache.ListClients(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 2)
}

func TestClientCachePropagatesProviderErrors(t *testing.T) {
	provider := &fakeDirectory{err: errors.New("directory down")}
	cache := NewClientCache(provider, time.Minute)

	_, err := cache.ListClients(context.Background())
	require.Error(t, err)
}

type fakeCatalog struct {
	products []model.Product
}

func (f *fakeCatalog) ListProducts(_ context.Context) ([]model.Product, error) {
	return f.products, nil
}

func TestProductCacheGet(t *testing.T) {
	cache := NewProductCache(&fakeCatalog{
		products: []model.Product{{ID: "pr-1", Code: "C0249", Name: "Tempered Glass Panel"}},
	}, time.Minute)

	product, ok, err := cache.Get(context.Background(), "pr-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "C0249", product.Code)
}
