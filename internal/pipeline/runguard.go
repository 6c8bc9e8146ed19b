package pipeline

import (
	"context"
	"time"

	"sitesmith/internal/logging"

	"github.com/go-redis/redis/v8"
)

// runGuardTTL bounds how long a stuck run can hold the per-draft lock.
const runGuardTTL = 10 * time.Minute

// RunGuard serializes generation runs per draft with a Redis lock. Without
// Redis the guard admits everything: a second concurrent run then produces
// at worst a benign double increment of the generation count.
type RunGuard struct {
	client *redis.Client
}

// NewRunGuard creates a run guard. A nil client disables locking.
func NewRunGuard(client *redis.Client) *RunGuard {
	return &RunGuard{client: client}
}

// Acquire takes the per-draft lock. The returned release function is safe
// to call regardless of outcome.
func (g *RunGuard) Acquire(ctx context.Context, draftPublicID string) (release func(), ok bool) {
	if g.client == nil {
		return func() {}, true
	}

	key := "sitesmith:run:" + draftPublicID
	acquired, err := g.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), runGuardTTL).Result()
	if err != nil {
		// Redis being down should not block generations.
		logging.S().Warnw("run guard unavailable, proceeding unlocked", "draft", draftPublicID, "error", err)
		return func() {}, true
	}
	if !acquired {
		return func() {}, false
	}

	return func() {
		if err := g.client.Del(context.Background(), key).Err(); err != nil {
			logging.S().Warnw("failed to release run guard", "draft", draftPublicID, "error", err)
		}
	}, true
}
