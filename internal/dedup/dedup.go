package dedup

import (
	"sync"
	"time"
)

// DefaultThreshold is the maximum Hamming distance still considered a
// near-duplicate, matching dedup.py's default.
const DefaultThreshold = 3

// DefaultMaxTextChars bounds how much body text feeds the simhash, matching
// create_dedup_text's max_text_chars default.
const DefaultMaxTextChars = 400

// DefaultCacheWindow is how long a seen hash stays eligible for matching.
const DefaultCacheWindow = 72 * time.Hour

type entry struct {
	newsID  int64
	hash    uint64
	urlNorm string
	seenAt  time.Time
}

// Deduplicator holds an in-memory window of recently seen items and answers
// whether a new item is an exact URL repeat or a simhash near-duplicate of
// one of them. It is safe for concurrent use.
type Deduplicator struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	entries   []entry
}

// New builds a Deduplicator with the given Hamming-distance threshold and
// cache retention window.
func New(threshold int, window time.Duration) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultCacheWindow
	}
	return &Deduplicator{threshold: threshold, window: window}
}

// SeedExisting loads hashes already known (e.g. from storage) into the
// cache, bypassing recomputation at process start.
func (d *Deduplicator) SeedExisting(items []struct {
	NewsID        int64
	URLNormalized string
	Simhash       uint64
	SeenAt        time.Time
}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, it := range items {
		d.entries = append(d.entries, entry{
			newsID:  it.NewsID,
			hash:    it.Simhash,
			urlNorm: it.URLNormalized,
			seenAt:  it.SeenAt,
		})
	}
}

// Check reports whether title/text/urlNormalized duplicates something
// already in the cache. An exact normalized-URL match takes precedence over
// a simhash near-duplicate match. It returns the duplicate's news ID and the
// computed simhash for the caller to register via Add regardless of outcome.
func (d *Deduplicator) Check(title, text, urlNormalized string, now time.Time) (duplicateOf int64, isDuplicate bool, computedHash uint64) {
	computedHash = Simhash(DedupText(title, text, DefaultMaxTextChars))

	d.mu.Lock()
	defer d.mu.Unlock()
	d.evictLocked(now)

	for _, e := range d.entries {
		if urlNormalized != "" && e.urlNorm == urlNormalized {
			return e.newsID, true, computedHash
		}
	}
	if computedHash == 0 {
		return 0, false, computedHash
	}
	for _, e := range d.entries {
		if e.hash == 0 {
			continue
		}
		if HammingDistance(computedHash, e.hash) <= d.threshold {
			return e.newsID, true, computedHash
		}
	}
	return 0, false, computedHash
}

// Add registers a non-duplicate item's hash so later items can be compared
// against it.
func (d *Deduplicator) Add(newsID int64, urlNormalized string, hash uint64, seenAt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, entry{newsID: newsID, hash: hash, urlNorm: urlNormalized, seenAt: seenAt})
}

func (d *Deduplicator) evictLocked(now time.Time) {
	cutoff := now.Add(-d.window)
	kept := d.entries[:0]
	for _, e := range d.entries {
		if e.seenAt.After(cutoff) {
			kept = append(kept, e)
		}
	}
	d.entries = kept
}
