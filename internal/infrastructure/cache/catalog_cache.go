// Package cache keeps the shared catalog snapshot and short-lived request state in memory.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"facturation/internal/domain/catalogs"
	"facturation/pkg/logger"
)

// CatalogChangedChannel is the NOTIFY channel that triggers a catalog reload.
const CatalogChangedChannel = "catalog_changed"

// InvalidationListener is called after the snapshot was replaced.
type InvalidationListener func(channel string, payload string)

// CatalogCache serves the current catalog snapshot. When a pool is given it
// reloads the snapshot on PostgreSQL NOTIFY. Editors already open keep the
// snapshot they were created with.
type CatalogCache struct {
	source catalogs.Source
	pool   *pgxpool.Pool

	mu       sync.RWMutex
	current  *catalogs.Catalog
	loadedAt time.Time

	listeners   []InvalidationListener
	listenersMu sync.RWMutex

	// retryDelay separates LISTEN attempts after a connection failure
	retryDelay time.Duration

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

var _ catalogs.Source = (*CatalogCache)(nil)

// NewCatalogCache creates a cache over source. pool may be nil, in which case
// the snapshot only changes through Reload.
func NewCatalogCache(source catalogs.Source, pool *pgxpool.Pool) *CatalogCache {
	return &CatalogCache{
		source:     source,
		pool:       pool,
		current:    catalogs.Empty(),
		retryDelay: time.Second,
	}
}

// Start loads the initial snapshot and begins listening for NOTIFY events.
func (c *CatalogCache) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	if c.started {
		c.lifecycleMu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	c.lifecycleMu.Unlock()

	if err := c.Reload(c.ctx); err != nil {
		c.Stop()
		return fmt.Errorf("load catalog: %w", err)
	}

	if c.pool != nil {
		c.wg.Add(1)
		go c.listenLoop()
	}
	logger.Info(c.ctx, "catalog cache started", "listen", c.pool != nil)
	return nil
}

// Stop gracefully stops the listener.
func (c *CatalogCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	logger.Info(context.Background(), "catalog cache stopped")
}

// Current returns the latest snapshot.
func (c *CatalogCache) Current() *catalogs.Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// LoadedAt returns when the current snapshot was loaded (zero before the first load).
func (c *CatalogCache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Load implements catalogs.Source by returning the current snapshot.
func (c *CatalogCache) Load(context.Context) (*catalogs.Catalog, error) {
	return c.Current(), nil
}

// Reload replaces the snapshot from the source. On failure the previous snapshot stays.
func (c *CatalogCache) Reload(ctx context.Context) error {
	next, err := c.source.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.current = next
	c.loadedAt = time.Now()
	c.mu.Unlock()

	logger.Debug(ctx, "catalog snapshot replaced",
		"services", len(next.Services()),
		"units", len(next.Units()))
	return nil
}

// OnInvalidate registers a listener called after every NOTIFY-driven reload.
func (c *CatalogCache) OnInvalidate(l InvalidationListener) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, l)
	c.listenersMu.Unlock()
}

// listenLoop holds a dedicated connection subscribed to CatalogChangedChannel.
func (c *CatalogCache) listenLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			logger.Error(c.ctx, "failed to acquire connection for LISTEN", "error", err)
			if !c.pause(c.retryDelay) {
				return
			}
			continue
		}

		if _, err := conn.Exec(c.ctx, "LISTEN "+CatalogChangedChannel); err != nil {
			logger.Error(c.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			if !c.pause(c.retryDelay) {
				return
			}
			continue
		}

		logger.Info(c.ctx, "listening for catalog notifications", "channel", CatalogChangedChannel)
		c.waitForNotifications(conn)
		conn.Release()
	}
}

// pause waits d unless the cache is stopped first. It reports whether the
// listener should keep going.
func (c *CatalogCache) pause(d time.Duration) bool {
	select {
	case <-c.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// waitForNotifications blocks waiting for NOTIFY events.
func (c *CatalogCache) waitForNotifications(conn *pgxpool.Conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		// Timeout keeps shutdown responsive.
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if ctx.Err() == nil {
				// Connection lost: reacquire.
				logger.Warn(c.ctx, "notification wait failed", "error", err)
				return
			}
			continue
		}

		logger.Debug(c.ctx, "received notification",
			"channel", notification.Channel,
			"payload", notification.Payload)
		c.handleNotification(c.ctx, notification.Channel, notification.Payload)
	}
}

// handleNotification reloads the snapshot and fans out to listeners.
func (c *CatalogCache) handleNotification(ctx context.Context, channel, payload string) {
	if channel != CatalogChangedChannel {
		return
	}

	if err := c.Reload(ctx); err != nil {
		logger.Error(ctx, "failed to reload catalog", "error", err)
		return
	}

	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	for _, listener := range c.listeners {
		func(l InvalidationListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error(ctx, "listener panic recovered", "channel", channel, "panic", r)
				}
			}()
			l(channel, payload)
		}(listener)
	}
}
