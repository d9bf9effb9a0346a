package idempotency

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"commerce-backend/internal/core/apperr"
	"commerce-backend/internal/core/auth"
	"commerce-backend/internal/core/cache"
	"commerce-backend/internal/core/logger"
	"commerce-backend/internal/core/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	// HeaderKey is the request header carrying the client's idempotency key.
	HeaderKey = "Idempotency-Key"
	// HeaderReplayed marks responses served from the replay store.
	HeaderReplayed = "Idempotent-Replayed"
)

// anonymous scopes keys when authentication is disabled.
const anonymous = "anonymous"

type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// New returns a middleware that replays the first successful response for a
// repeated Idempotency-Key from the same caller. Requests without the header
// pass straight through. A key is reserved before the handler runs, so a
// concurrent request with the same key is rejected until the first completes.
// Cache failures degrade to normal processing.
func New(store cache.Cache, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(HeaderKey)
		if key == "" {
			return c.Next()
		}

		owner := auth.UserID(c)
		if owner == "" {
			owner = anonymous
		}
		cacheKey := fmt.Sprintf("idempotency:%s:%s:%s:%s", owner, c.Method(), c.Path(), key)
		log := logger.FromContext(c.UserContext()).Named("idempotency").With(zap.String("key", cacheKey))
		ctx := c.UserContext()

		pending, _ := json.Marshal(storedResponse{Pending: true})
		reserved, err := store.SetNX(ctx, cacheKey, pending, ttl)
		if err != nil {
			log.Warn("Replay store unavailable", zap.Error(err))
			return c.Next()
		}

		if !reserved {
			raw, err := store.Get(ctx, cacheKey)
			switch {
			case err == nil:
				var stored storedResponse
				if jsonErr := json.Unmarshal(raw, &stored); jsonErr != nil {
					log.Warn("Unreadable replay entry")
					return c.Next()
				}
				if stored.Pending {
					return response.Error(c, fmt.Errorf("%w: a request with this idempotency key is in progress", apperr.ErrInvalidState))
				}
				c.Set(HeaderReplayed, "true")
				if stored.ContentType != "" {
					c.Set(fiber.HeaderContentType, stored.ContentType)
				}
				return c.Status(stored.Status).Send(stored.Body)
			case errors.Is(err, cache.ErrCacheMiss):
				// Reservation expired or was released in between.
				return c.Next()
			default:
				log.Warn("Replay store unavailable", zap.Error(err))
				return c.Next()
			}
		}

		if err := c.Next(); err != nil {
			release(c, store, cacheKey, log)
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusBadRequest {
			release(c, store, cacheKey, log)
			return nil
		}

		payload, err := json.Marshal(storedResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		})
		if err != nil {
			release(c, store, cacheKey, log)
			return nil
		}
		if err := store.Set(ctx, cacheKey, payload, ttl); err != nil {
			log.Warn("Failed to store idempotent response", zap.Error(err))
		}
		return nil
	}
}

// release drops a reservation so a failed request can be retried with the same key.
func release(c *fiber.Ctx, store cache.Cache, cacheKey string, log *zap.Logger) {
	if err := store.Delete(c.UserContext(), cacheKey); err != nil {
		log.Warn("Failed to release idempotency key", zap.Error(err))
	}
}
