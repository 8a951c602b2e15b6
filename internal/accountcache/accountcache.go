// Package accountcache is a process-wide, lazily-refreshed cache of the
// music platform's account list, so the lookup_existing_client tool can
// search by venue name without a GraphQL round trip on every chat turn.
package accountcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/brightears/bmasia-music-brief/internal/adapters/musicplatform"
)

const ttl = 30 * time.Minute

// Cache holds the last-refreshed account snapshot behind a mutex; refreshes
// replace the snapshot wholesale rather than mutating it in place, so readers
// never observe a partially-paginated list.
type Cache struct {
	mu          sync.RWMutex
	accounts    []musicplatform.Account
	lastRefresh time.Time
	client      *musicplatform.Client
}

// New constructs an empty Cache bound to client.
func New(client *musicplatform.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.lastRefresh) > ttl
}

// refresh pages through the entire account list and replaces the cached
// snapshot. Called with no lock held; callers serialize via refreshMu-style
// single-flight is unnecessary here since a duplicate concurrent refresh is
// harmless, just a wasted round trip.
func (c *Cache) refresh(ctx context.Context) error {
	var all []musicplatform.Account
	cursor := ""
	for {
		page, next, hasNext, err := c.client.AccountsPage(ctx, cursor)
		if err != nil {
			return err
		}
		all = append(all, page...)
		if !hasNext {
			break
		}
		cursor = next
	}

	c.mu.Lock()
	c.accounts = all
	c.lastRefresh = time.Now()
	c.mu.Unlock()
	return nil
}

// ensureFresh refreshes the cache if it has never been loaded or has passed
// its TTL. A refresh failure is swallowed and the stale (or empty) snapshot
// is served instead: lookup_existing_client is a convenience tool, not a
// hard dependency.
func (c *Cache) ensureFresh(ctx context.Context) {
	if !c.stale() {
		return
	}
	_ = c.refresh(ctx)
}

// Match is one ranked search hit.
type Match struct {
	Account musicplatform.Account
	Rank    int // 0=exact, 1=prefix, 2=substring
}

// Search looks up accounts by case-insensitive venue name, ranking exact
// matches first, then prefix matches, then any substring match.
func (c *Cache) Search(ctx context.Context, name string) []Match {
	c.ensureFresh(ctx)

	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var exact, prefix, substring []Match
	for _, a := range c.accounts {
		hay := strings.ToLower(a.Name)
		switch {
		case hay == needle:
			exact = append(exact, Match{Account: a, Rank: 0})
		case strings.HasPrefix(hay, needle):
			prefix = append(prefix, Match{Account: a, Rank: 1})
		case strings.Contains(hay, needle):
			substring = append(substring, Match{Account: a, Rank: 2})
		}
	}

	out := make([]Match, 0, len(exact)+len(prefix)+len(substring))
	out = append(out, exact...)
	out = append(out, prefix...)
	out = append(out, substring...)
	return out
}
