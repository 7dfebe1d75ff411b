// Package cache stores compile results keyed by a digest of everything that can
// change them. An in-memory LRU tier is backed by an optional LZ4-compressed disk tier.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEntries is the in-memory capacity used when a non-positive size is given.
const DefaultEntries = 512

const entrySuffix = ".lz4"

// ErrCorrupt is returned when a disk entry cannot be decoded.
var ErrCorrupt = errors.New("corrupt cache entry")

// Entry is one cached compile result.
type Entry struct {
	CSS          string   `json:"css"`
	Map          []byte   `json:"map,omitempty"`
	Exports      string   `json:"exports,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// Option configures a Cache.
type Option func(*Cache)

// WithDisk persists entries under dir on fsys.
func WithDisk(fsys billy.Filesystem, dir string) Option {
	return func(c *Cache) {
		c.disk = fsys
		c.dir = dir
	}
}

// WithLogger sets the logger for disk tier warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxEntrySize skips entries whose CSS and map together exceed limit bytes.
// Zero means unlimited.
func WithMaxEntrySize(limit int) Option {
	return func(c *Cache) {
		c.maxEntry = limit
	}
}

// Cache is safe for concurrent use.
type Cache struct {
	mem      *lru.Cache[string, Entry]
	disk     billy.Filesystem
	dir      string
	maxEntry int
	logger   *slog.Logger
	hits     atomic.Int64
	misses   atomic.Int64
}

// New creates a Cache holding up to size entries in memory.
func New(size int, opts ...Option) (*Cache, error) {
	if size <= 0 {
		size = DefaultEntries
	}

	mem, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	c := &Cache{mem: mem, logger: slog.Default()}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Key digests parts into a cache key. Parts are length-delimited so that
// ("ab", "c") and ("a", "bc") differ.
func Key(parts ...[]byte) string {
	digest := xxhash.New()

	var size [8]byte

	for _, part := range parts {
		n := uint64(len(part))
		for i := range size {
			size[i] = byte(n >> (8 * i))
		}

		_, _ = digest.Write(size[:])
		_, _ = digest.Write(part)
	}

	return hex.EncodeToString(digest.Sum(nil))
}

// Get returns the entry for key, consulting the disk tier on a memory miss.
func (c *Cache) Get(key string) (Entry, bool) {
	if entry, ok := c.mem.Get(key); ok {
		c.hits.Add(1)

		return entry, true
	}

	if c.disk != nil {
		entry, err := c.load(key)
		if err == nil {
			c.mem.Add(key, entry)
			c.hits.Add(1)

			return entry, true
		}

		if !errors.Is(err, errMissing) {
			c.logger.Warn("cache entry unreadable", "key", key, "error", err)
		}
	}

	c.misses.Add(1)

	return Entry{}, false
}

// Put stores entry under key in memory and, when configured, on disk.
// Oversized entries are silently skipped.
func (c *Cache) Put(key string, entry Entry) error {
	if c.maxEntry > 0 && len(entry.CSS)+len(entry.Map) > c.maxEntry {
		return nil
	}

	c.mem.Add(key, entry)

	if c.disk == nil {
		return nil
	}

	return c.store(key, entry)
}

// Stats returns a snapshot of hit and miss counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.mem.Len(),
	}
}

// Purge drops all in-memory entries. The disk tier is left alone.
func (c *Cache) Purge() {
	c.mem.Purge()
}

var errMissing = errors.New("cache entry missing")

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key[:2], key+entrySuffix)
}

func (c *Cache) load(key string) (Entry, error) {
	data, err := util.ReadFile(c.disk, c.path(key))
	if err != nil {
		return Entry{}, errMissing
	}

	raw, err := decompress(data)
	if err != nil {
		return Entry{}, err
	}

	var entry Entry

	unmarshalErr := json.Unmarshal(raw, &entry)
	if unmarshalErr != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrCorrupt, unmarshalErr)
	}

	return entry, nil
}

func (c *Cache) store(key string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	name := c.path(key)

	mkdirErr := c.disk.MkdirAll(filepath.Dir(name), 0o755)
	if mkdirErr != nil {
		return fmt.Errorf("create cache dir: %w", mkdirErr)
	}

	writeErr := util.WriteFile(c.disk, name, compress(raw), 0o644)
	if writeErr != nil {
		return fmt.Errorf("write cache entry: %w", writeErr)
	}

	return nil
}
