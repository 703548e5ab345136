package sessioncache

import (
	"strings"
	"sync"

	"github.com/runger/suggestengine/internal/engine"
)

// QueryResults is the insertion-ordered set of per-source responses cached
// for one query string.
type QueryResults struct {
	order     []string
	responses map[string]engine.SourceResponse
}

func newQueryResults() *QueryResults {
	return &QueryResults{responses: make(map[string]engine.SourceResponse)}
}

// Responses returns the cached responses in the order they were reported.
func (q *QueryResults) Responses() []engine.SourceResponse {
	if q == nil {
		return nil
	}
	out := make([]engine.SourceResponse, 0, len(q.order))
	for _, src := range q.order {
		out = append(out, q.responses[src])
	}
	return out
}

// Has reports whether a source's response is already cached for this query.
func (q *QueryResults) Has(source string) bool {
	if q == nil {
		return false
	}
	_, ok := q.responses[source]
	return ok
}

func (q *QueryResults) put(resp engine.SourceResponse) {
	if _, exists := q.responses[resp.Source]; !exists {
		q.order = append(q.order, resp.Source)
	}
	q.responses[resp.Source] = resp
}

// defaultCacheCapacity bounds the number of distinct queries remembered per
// session; the LRU eviction this enforces is the Go stand-in for the
// original's SoftReference-based advisory cache (see the cache policy note
// in the component design).
const defaultCacheCapacity = 256

// Cache is the SessionCache (C5): an intra-session memo of per-query
// source results, zero-result prefixes, and refreshed shortcut ids. All
// operations are safe for concurrent use.
type Cache struct {
	mu                sync.Mutex
	zeroResultSources map[string]map[string]struct{}
	refreshedShortcuts map[string]struct{}
	results           *LRU[string, *QueryResults]
}

// New creates an empty SessionCache.
func New() *Cache {
	return &Cache{
		zeroResultSources:  make(map[string]map[string]struct{}),
		refreshedShortcuts: make(map[string]struct{}),
		results:            NewLRU[string, *QueryResults](defaultCacheCapacity, nil),
	}
}

// HasReportedZeroResultsForPrefix reports whether any strict prefix of
// query already reported zero results for source.
func (c *Cache) HasReportedZeroResultsForPrefix(query, source string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(query); i++ {
		prefix := query[:i]
		if sources, ok := c.zeroResultSources[prefix]; ok {
			if _, ok := sources[source]; ok {
				return true
			}
		}
	}
	return false
}

// HasShortcutBeenRefreshed reports whether source's shortcutID has already
// been refreshed this session. The memo is keyed by (source, shortcutID),
// so the same shortcut id under another source is tracked separately.
func (c *Cache) HasShortcutBeenRefreshed(source, shortcutID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.refreshedShortcuts[refreshKey(source, shortcutID)]
	return ok
}

// GetSourceResults returns the cached results for query, or an empty
// QueryResults if nothing is cached or the entry was evicted.
func (c *Cache) GetSourceResults(query string) *QueryResults {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.results.Get(query); ok {
		return cached
	}
	return newQueryResults()
}

// ReportSourceResult stores a source's response for query. OK responses
// with no suggestions mark the source as zero-result for this query prefix
// unless it opted into being queried after zero results. Error responses
// are never cached, so a later query may retry the source.
func (c *Cache) ReportSourceResult(query string, response engine.SourceResponse, queryAfterZeroResults bool) {
	if response.ResultCode == engine.ResultError {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.results.Get(query)
	if !ok {
		cached = newQueryResults()
	}
	cached.put(response)
	c.results.Put(query, cached)

	if response.ResultCode == engine.ResultOK && !queryAfterZeroResults && len(response.Suggestions) == 0 {
		if c.zeroResultSources[query] == nil {
			c.zeroResultSources[query] = make(map[string]struct{})
		}
		c.zeroResultSources[query][response.Source] = struct{}{}
	}
}

// ReportRefreshedShortcut records that shortcutID has been refreshed this session.
func (c *Cache) ReportRefreshedShortcut(source, shortcutID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshedShortcuts[refreshKey(source, shortcutID)] = struct{}{}
}

func refreshKey(source, shortcutID string) string {
	var b strings.Builder
	b.WriteString(source)
	b.WriteByte(0)
	b.WriteString(shortcutID)
	return b.String()
}
