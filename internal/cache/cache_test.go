package cache

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func pcm(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = seed + byte(i%7)
	}
	return data
}

func TestMemoryCacheLRU(t *testing.T) {
	c := NewMemoryCache(100)

	c.Put("a", pcm(40, 1))
	c.Put("b", pcm(40, 2))
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Expected a to be cached")
	}

	// b is now least recently used and makes room for c.
	c.Put("c", pcm(40, 3))
	if c.Contains("b") {
		t.Error("Expected b to be evicted")
	}
	if !c.Contains("a") || !c.Contains("c") {
		t.Error("Expected a and c to remain")
	}

	stats := c.Stats()
	if stats.Size != 80 || stats.Items != 2 || stats.Evictions != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestMemoryCacheReplaceAndLimits(t *testing.T) {
	c := NewMemoryCache(100)

	if err := c.Put("big", pcm(101, 0)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Expected ErrItemTooLarge, got %v", err)
	}

	c.Put("k", pcm(10, 0))
	c.Put("k", pcm(30, 0))
	if got := c.Stats().Size; got != 30 {
		t.Errorf("Expected size 30 after replacing, got %d", got)
	}

	c.Delete("k")
	c.Delete("missing")
	if _, ok := c.Get("k"); ok {
		t.Error("Expected k deleted")
	}
	if c.Stats().Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", c.Stats().Misses)
	}
}

func TestDiskCacheRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		level int
		ext   string
	}{
		{"compressed", 3, compressedExt},
		{"raw", 0, rawExt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			dc, err := NewDiskCache(dir, 1<<20, tt.level)
			if err != nil {
				t.Fatal(err)
			}
			defer dc.Close()

			value := pcm(4096, 9)
			if err := dc.Put("key", value); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if _, err := os.Stat(filepath.Join(dir, "key"+tt.ext)); err != nil {
				t.Errorf("Expected file with %s extension: %v", tt.ext, err)
			}

			got, ok := dc.Get("key")
			if !ok || !bytes.Equal(got, value) {
				t.Error("Expected the stored value back")
			}
		})
	}
}

func TestDiskCacheSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	dc.Put("persisted", pcm(2048, 4))
	dc.Close()

	reopened, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, ok := reopened.Get("persisted")
	if !ok || !bytes.Equal(got, pcm(2048, 4)) {
		t.Error("Expected compressed entry readable after reopening without compression")
	}
	if reopened.Stats().Items != 1 {
		t.Errorf("Expected 1 item, got %d", reopened.Stats().Items)
	}
}

func TestDiskCacheCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	dc.Put("bad", pcm(512, 1))
	os.WriteFile(filepath.Join(dir, "bad"+compressedExt), []byte("not zstd"), 0o644)

	if _, ok := dc.Get("bad"); ok {
		t.Error("Expected corrupt entry to miss")
	}
	if dc.Stats().Items != 0 {
		t.Error("Expected corrupt entry dropped")
	}
}

func TestDiskCacheEvictionAndPrune(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 250, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	dc.Put("first", pcm(100, 1))
	time.Sleep(5 * time.Millisecond)
	dc.Put("second", pcm(100, 2))
	time.Sleep(5 * time.Millisecond)
	dc.Put("third", pcm(100, 3))

	if _, ok := dc.Get("first"); ok {
		t.Error("Expected the oldest entry evicted")
	}
	if dc.Stats().Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", dc.Stats().Evictions)
	}

	if n := dc.Prune(0); n != 2 {
		t.Errorf("Expected 2 pruned, got %d", n)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected empty directory, got %d files", len(entries))
	}
}

func TestManagerPromotesDiskHits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiskPath = t.TempDir()

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	key := Key("gtts", "ko", "안녕하세요.", 1.0)
	m.Put(key, pcm(1000, 5))
	m.memory.Clear()

	if _, ok := m.Get(key); !ok {
		t.Fatal("Expected disk hit")
	}
	if !m.memory.Contains(key) {
		t.Error("Expected disk hit promoted to memory")
	}
	if m.promotions.Load() != 1 {
		t.Errorf("Expected 1 promotion, got %d", m.promotions.Load())
	}

	m.Get("missing")
	stats := m.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if !strings.Contains(stats.String(), "50% hits") {
		t.Errorf("Unexpected stats string %q", stats.String())
	}

	if err := m.Delete(key); err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(key); ok {
		t.Error("Expected key deleted from both tiers")
	}
}

func TestManagerMemoryOnly(t *testing.T) {
	m, err := NewManager(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.LevelStats(LevelDisk); ok {
		t.Error("Expected no disk tier")
	}
	m.Put("k", pcm(10, 0))
	if _, ok := m.Get("k"); !ok {
		t.Error("Expected memory hit")
	}
}

func TestKey(t *testing.T) {
	base := Key("gtts", "ko", "text", 1.0)
	if base != Key("gtts", "ko", "text", 1.0) {
		t.Error("Expected stable keys")
	}
	for name, other := range map[string]string{
		"engine":   Key("piper", "ko", "text", 1.0),
		"language": Key("gtts", "en", "text", 1.0),
		"speed":    Key("gtts", "ko", "text", 1.5),
		"text":     Key("gtts", "ko", "text!", 1.0),
	} {
		if other == base {
			t.Errorf("Expected %s to change the key", name)
		}
	}
}
