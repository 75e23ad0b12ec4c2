package credcache

import (
	"context"
	"sync"
)

// InMemoryCache is a process-local Cache.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[string]Entry // mail -> entry
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{entries: make(map[string]Entry)}
}

var _ Cache = (*InMemoryCache)(nil)

func (c *InMemoryCache) Upsert(ctx context.Context, e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Mail] = cloneEntry(e)
	return nil
}

func (c *InMemoryCache) Get(ctx context.Context, mail string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[mail]
	return cloneEntry(e), ok, nil
}

func (c *InMemoryCache) Remove(ctx context.Context, mail string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, mail)
	return nil
}

func (c *InMemoryCache) RemoveAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	return nil
}

func (c *InMemoryCache) ListMails(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for mail := range c.entries {
		out = append(out, mail)
	}
	return out, nil
}

func cloneEntry(e Entry) Entry {
	if e.ProfileImage != nil {
		img := *e.ProfileImage
		e.ProfileImage = &img
	}
	return e
}
