// Package cache keeps synthesized speech so repeated sentences are not sent
// to an engine twice. A small in-memory LRU sits in front of a zstd
// compressed directory that survives restarts.
package cache
