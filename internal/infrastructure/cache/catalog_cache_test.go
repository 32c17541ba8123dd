package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturation/internal/domain/catalogs"
	"facturation/internal/domain/catalogs/service"
	"facturation/internal/domain/catalogs/unit"
)

// sourceFunc adapts a function to catalogs.Source.
type sourceFunc func(ctx context.Context) (*catalogs.Catalog, error)

func (f sourceFunc) Load(ctx context.Context) (*catalogs.Catalog, error) { return f(ctx) }

func TestCatalogCache_StartLoadsSnapshot(t *testing.T) {
	src := catalogs.StaticSource{
		Services: []*service.Service{service.NewService("CONSEIL", "Conseil")},
		Units:    []*unit.Unit{unit.NewUnit("HEURE", "Heure")},
	}
	c := NewCatalogCache(src, nil)
	assert.False(t, c.Current().HasService("CONSEIL"))
	assert.True(t, c.LoadedAt().IsZero())

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	assert.True(t, c.Current().HasService("CONSEIL"))
	assert.True(t, c.Current().HasUnit("HEURE"))
	assert.False(t, c.LoadedAt().IsZero())

	loaded, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, c.Current(), loaded)
}

func TestCatalogCache_StartFails(t *testing.T) {
	c := NewCatalogCache(sourceFunc(func(context.Context) (*catalogs.Catalog, error) {
		return nil, errors.New("db down")
	}), nil)

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestCatalogCache_ReloadKeepsPreviousOnError(t *testing.T) {
	calls := 0
	c := NewCatalogCache(sourceFunc(func(context.Context) (*catalogs.Catalog, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("db down")
		}
		return catalogs.NewCatalog([]*service.Service{service.NewService("FORFAIT", "Forfait")}, nil), nil
	}), nil)

	require.NoError(t, c.Reload(context.Background()))
	before := c.Current()

	require.Error(t, c.Reload(context.Background()))
	assert.Same(t, before, c.Current())
}

func TestCatalogCache_HandleNotification(t *testing.T) {
	services := []*service.Service{service.NewService("CONSEIL", "Conseil")}
	c := NewCatalogCache(sourceFunc(func(context.Context) (*catalogs.Catalog, error) {
		return catalogs.NewCatalog(services, nil), nil
	}), nil)
	require.NoError(t, c.Reload(context.Background()))

	var got []string
	c.OnInvalidate(func(channel, payload string) { got = append(got, channel+":"+payload) })
	c.OnInvalidate(func(string, string) { panic("boom") })

	services = append(services, service.NewService("DIVERS", "Divers"))

	c.handleNotification(context.Background(), "other_channel", "x")
	assert.False(t, c.Current().HasService("DIVERS"))
	assert.Empty(t, got)

	c.handleNotification(context.Background(), CatalogChangedChannel, "services")
	assert.True(t, c.Current().HasService("DIVERS"))
	assert.Equal(t, []string{"catalog_changed:services"}, got)
}

func TestCatalogCache_StopInterruptsListenRetry(t *testing.T) {
	// Nothing listens on port 1: every LISTEN attempt fails to connect.
	pool, err := pgxpool.New(context.Background(), "postgres://facturation@127.0.0.1:1/facturation?connect_timeout=1")
	require.NoError(t, err)
	defer pool.Close()

	c := NewCatalogCache(catalogs.StaticSource{}, pool)
	c.retryDelay = time.Hour
	require.NoError(t, c.Start(context.Background()))

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not interrupt the LISTEN retry delay")
	}
}
