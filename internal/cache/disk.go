package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const (
	compressedExt = ".pcm.zst"
	rawExt        = ".pcm"
)

// DiskCache stores one file per key, zstd compressed unless the
// compression level is 0. File modification times record recency.
type DiskCache struct {
	mu sync.Mutex

	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	entries map[string]*diskEntry
	stats   Stats
}

type diskEntry struct {
	path       string
	size       int64
	lastAccess time.Time
}

// NewDiskCache opens or creates a cache directory.
func NewDiskCache(dir string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		entries:  make(map[string]*diskEntry),
	}

	if compressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Compressed files written earlier stay readable after the level
	// changes to 0.
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	dc.decoder = decoder

	if err := dc.scan(); err != nil {
		return nil, err
	}
	return dc, nil
}

// scan rebuilds the index from the directory.
func (dc *DiskCache) scan() error {
	return filepath.WalkDir(dc.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		key, ok := keyFromFile(d.Name())
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		dc.entries[key] = &diskEntry{path: path, size: info.Size(), lastAccess: info.ModTime()}
		dc.size += info.Size()
		return nil
	})
}

func keyFromFile(name string) (string, bool) {
	switch {
	case strings.HasSuffix(name, compressedExt):
		return strings.TrimSuffix(name, compressedExt), true
	case strings.HasSuffix(name, rawExt):
		return strings.TrimSuffix(name, rawExt), true
	default:
		return "", false
	}
}

// Get reads and decodes a cached value.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.entries[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := dc.read(entry)
	if err != nil {
		log.Debug("Cache: dropping unreadable entry", "key", key, "error", err)
		dc.remove(key, entry)
		dc.stats.Misses++
		return nil, false
	}

	now := time.Now()
	entry.lastAccess = now
	_ = os.Chtimes(entry.path, now, now)
	dc.stats.Hits++
	return data, true
}

func (dc *DiskCache) read(entry *diskEntry) ([]byte, error) {
	data, err := os.ReadFile(entry.path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(entry.path, compressedExt) {
		return data, nil
	}
	decoded, err := dc.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheCorrupted, err)
	}
	return decoded, nil
}

// Put encodes and writes a value, evicting the least recently used files to
// stay within capacity.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	data, ext := value, rawExt
	if dc.encoder != nil {
		data, ext = dc.encoder.EncodeAll(value, nil), compressedExt
	}
	size := int64(len(data))
	if size > dc.capacity {
		return ErrItemTooLarge
	}

	if existing, ok := dc.entries[key]; ok {
		dc.remove(key, existing)
	}
	for dc.size+size > dc.capacity && len(dc.entries) > 0 {
		dc.evictOldest()
	}

	path := filepath.Join(dc.dir, key+ext)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	dc.entries[key] = &diskEntry{path: path, size: size, lastAccess: time.Now()}
	dc.size += size
	return nil
}

// Delete removes an entry.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if entry, ok := dc.entries[key]; ok {
		return dc.remove(key, entry)
	}
	return nil
}

// Clear removes every cached file.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	var errs []error
	for key, entry := range dc.entries {
		if err := dc.remove(key, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Prune removes entries not used within maxAge and returns how many went.
func (dc *DiskCache) Prune(maxAge time.Duration) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for key, entry := range dc.entries {
		if entry.lastAccess.Before(cutoff) {
			dc.remove(key, entry)
			pruned++
		}
	}
	return pruned
}

// Stats returns cache statistics.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	stats := dc.stats
	stats.Capacity = dc.capacity
	stats.Size = dc.size
	stats.Items = int64(len(dc.entries))
	return stats
}

// Close releases the zstd encoder and decoder.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.encoder != nil {
		if err := dc.encoder.Close(); err != nil {
			return err
		}
	}
	dc.decoder.Close()
	return nil
}

// evictOldest must be called with dc.mu held.
func (dc *DiskCache) evictOldest() {
	keys := make([]string, 0, len(dc.entries))
	for key := range dc.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return dc.entries[keys[i]].lastAccess.Before(dc.entries[keys[j]].lastAccess)
	})
	if len(keys) > 0 {
		dc.remove(keys[0], dc.entries[keys[0]])
		dc.stats.Evictions++
	}
}

// remove must be called with dc.mu held.
func (dc *DiskCache) remove(key string, entry *diskEntry) error {
	delete(dc.entries, key)
	dc.size -= entry.size
	if err := os.Remove(entry.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}
