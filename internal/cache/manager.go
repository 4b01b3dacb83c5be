package cache

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// Manager puts the memory cache in front of the disk cache. Disk hits are
// promoted to memory.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache // Nil when no directory is configured

	hits       atomic.Int64
	misses     atomic.Int64
	promotions atomic.Int64
}

// NewManager creates the cache tiers described by cfg and prunes expired
// disk entries.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = DefaultConfig().MemoryCapacity
	}

	m := &Manager{memory: NewMemoryCache(cfg.MemoryCapacity)}
	if cfg.DiskPath == "" {
		return m, nil
	}

	if cfg.DiskCapacity <= 0 {
		cfg.DiskCapacity = DefaultConfig().DiskCapacity
	}
	disk, err := NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to open disk cache: %w", err)
	}
	m.disk = disk

	if cfg.TTL > 0 {
		if n := disk.Prune(cfg.TTL); n > 0 {
			log.Debug("Cache: pruned expired audio", "entries", n)
		}
	}
	log.Debug("Cache: opened", "path", cfg.DiskPath, "disk", disk.Stats())
	return m, nil
}

// Get looks in memory, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		m.hits.Add(1)
		return data, true
	}
	if m.disk != nil {
		if data, ok := m.disk.Get(key); ok {
			m.hits.Add(1)
			if err := m.memory.Put(key, data); err == nil {
				m.promotions.Add(1)
			}
			return data, true
		}
	}
	m.misses.Add(1)
	return nil, false
}

// Put stores value in every tier that can hold it.
func (m *Manager) Put(key string, value []byte) error {
	memErr := m.memory.Put(key, value)
	if m.disk == nil {
		return memErr
	}
	diskErr := m.disk.Put(key, value)
	if errors.Is(memErr, ErrItemTooLarge) && diskErr == nil {
		return nil
	}
	return errors.Join(memErr, diskErr)
}

// Delete removes key from every tier.
func (m *Manager) Delete(key string) error {
	err := m.memory.Delete(key)
	if m.disk != nil {
		err = errors.Join(err, m.disk.Delete(key))
	}
	return err
}

// Clear empties every tier.
func (m *Manager) Clear() error {
	err := m.memory.Clear()
	if m.disk != nil {
		err = errors.Join(err, m.disk.Clear())
	}
	return err
}

// Stats returns combined statistics. Capacity and size are summed over
// tiers; hits and misses count lookups through the manager.
func (m *Manager) Stats() Stats {
	stats := m.memory.Stats()
	if m.disk != nil {
		disk := m.disk.Stats()
		stats.Capacity += disk.Capacity
		stats.Size += disk.Size
		stats.Items = disk.Items
		stats.Evictions += disk.Evictions
	}
	stats.Hits = m.hits.Load()
	stats.Misses = m.misses.Load()
	return stats
}

// LevelStats returns the statistics of one tier.
func (m *Manager) LevelStats(level Level) (Stats, bool) {
	switch level {
	case LevelMemory:
		return m.memory.Stats(), true
	case LevelDisk:
		if m.disk == nil {
			return Stats{}, false
		}
		return m.disk.Stats(), true
	default:
		return Stats{}, false
	}
}

// Close releases the disk tier.
func (m *Manager) Close() error {
	if m.disk != nil {
		return m.disk.Close()
	}
	return nil
}
