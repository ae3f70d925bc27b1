package magento

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Enricher resolves category ids and attribute option values into
// human-readable names, memoizing every answer for the lifetime of one
// sync session. Entries are never refreshed or invalidated within a run.
//
// Safe for concurrent use by the transform workers: map access is
// mutex-guarded and network fills are serialized per key through a
// singleflight group, so a category or option table is fetched at most
// once no matter how many records reference it.
type Enricher struct {
	client *Client
	logger *slog.Logger

	mu         sync.Mutex
	categories map[string]string
	options    map[string]map[string]string

	group singleflight.Group
}

func NewEnricher(client *Client, logger *slog.Logger) *Enricher {
	return &Enricher{
		client:     client,
		logger:     logger.With("source", "magento"),
		categories: make(map[string]string),
		options:    make(map[string]map[string]string),
	}
}

// PrefetchCategories loads the whole category tree in one call and seeds
// the name cache with every node, so per-record category resolution stays
// O(records) in network calls instead of O(records x depth).
func (e *Enricher) PrefetchCategories(ctx context.Context) error {
	var root categoryNode
	if err := e.client.getJSON(ctx, "/categories", nil, &root); err != nil {
		return fmt.Errorf("fetch category tree: %w", err)
	}

	e.mu.Lock()
	count := e.seedCategory(root)
	e.mu.Unlock()

	e.logger.Debug("prefetched categories", "count", count)
	return nil
}

func (e *Enricher) seedCategory(node categoryNode) int {
	key := strconv.FormatInt(node.ID, 10)
	if _, ok := e.categories[key]; !ok {
		e.categories[key] = node.Name
	}
	count := 1
	for _, child := range node.Children {
		count += e.seedCategory(child)
	}
	return count
}

// CategoryName resolves a category id to its name, issuing a point lookup
// on first sight of the id.
func (e *Enricher) CategoryName(ctx context.Context, id string) (string, error) {
	e.mu.Lock()
	if name, ok := e.categories[id]; ok {
		e.mu.Unlock()
		return name, nil
	}
	e.mu.Unlock()

	v, err, _ := e.group.Do("category:"+id, func() (any, error) {
		var resp categoryResponse
		if err := e.client.getJSON(ctx, "/categories/"+id, nil, &resp); err != nil {
			return "", fmt.Errorf("fetch category %s: %w", id, err)
		}

		e.mu.Lock()
		e.categories[id] = resp.Name
		e.mu.Unlock()

		return resp.Name, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// AttributeLabel resolves an attribute option value to its display label.
// The first reference to an attribute code fetches the code's entire
// option table; later values for the same code are served from cache. The
// second return value is false when the option has no label.
func (e *Enricher) AttributeLabel(ctx context.Context, code, value string) (string, bool, error) {
	e.mu.Lock()
	table, loaded := e.options[code]
	e.mu.Unlock()

	if !loaded {
		v, err, _ := e.group.Do("options:"+code, func() (any, error) {
			// Re-check under the group: a concurrent caller may have
			// completed the fetch while this one waited.
			e.mu.Lock()
			if t, ok := e.options[code]; ok {
				e.mu.Unlock()
				return t, nil
			}
			e.mu.Unlock()

			var opts []attributeOption
			path := "/products/attributes/" + code + "/options"
			if err := e.client.getJSON(ctx, path, nil, &opts); err != nil {
				return nil, fmt.Errorf("fetch options for %s: %w", code, err)
			}

			t := make(map[string]string, len(opts))
			for _, o := range opts {
				if o.Value != "" {
					t[o.Value] = o.Label
				}
			}

			e.mu.Lock()
			e.options[code] = t
			e.mu.Unlock()

			e.logger.Debug("fetched attribute options", "code", code, "count", len(t))
			return t, nil
		})
		if err != nil {
			return "", false, err
		}
		table = v.(map[string]string)
	}

	label, ok := table[value]
	if !ok || label == "" {
		return "", false, nil
	}
	return label, true, nil
}
