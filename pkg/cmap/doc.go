// Package cmap provides a concurrent map keyed by strings.
//
// Keys are spread over a power-of-two number of shards by their murmur3
// hash; each shard has its own RWMutex, so operations on different shards
// never contend.
//
// Usage:
//
//	m := cmap.New[entry]()
//	m.Set("key", e)
//	val, ok := m.Get("key")
//
// All operations are safe for concurrent use. Range and DeleteIf lock one
// shard at a time, so they do not observe a single consistent snapshot.
package cmap
