package adapters

import (
	"context"
	"fmt"
	"time"

	"commerce-backend/internal/core/cache"
)

// DefaultEventRetention covers the gateway's redelivery window.
const DefaultEventRetention = 72 * time.Hour

// CacheDeduplicator implements the EventDeduplicator interface on top of the cache port.
type CacheDeduplicator struct {
	store     cache.Cache
	retention time.Duration
}

// NewCacheDeduplicator creates a new CacheDeduplicator.
func NewCacheDeduplicator(store cache.Cache, retention time.Duration) *CacheDeduplicator {
	if retention <= 0 {
		retention = DefaultEventRetention
	}
	return &CacheDeduplicator{store: store, retention: retention}
}

func eventKey(eventID string) string {
	return fmt.Sprintf("webhook:event:%s", eventID)
}

// FirstDelivery records eventID and reports whether this is the first time it was seen.
func (d *CacheDeduplicator) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	stored, err := d.store.SetNX(ctx, eventKey(eventID), []byte(time.Now().UTC().Format(time.RFC3339)), d.retention)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	return stored, nil
}

// Forget drops eventID so a redelivery is processed again.
func (d *CacheDeduplicator) Forget(ctx context.Context, eventID string) error {
	if err := d.store.Delete(ctx, eventKey(eventID)); err != nil {
		return fmt.Errorf("failed to forget webhook event: %w", err)
	}
	return nil
}
