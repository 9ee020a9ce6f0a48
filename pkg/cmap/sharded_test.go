package cmap

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{8, 8},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[int](tt.input)
			if m.ShardCount() != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d", tt.input, m.ShardCount(), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[int]()

	m.Set("key1", 100)
	m.Set("key2", 200)
	m.Set("key1", 101)

	if val, ok := m.Get("key1"); !ok || val != 101 {
		t.Errorf("Get(key1) = (%d, %v), want (101, true)", val, ok)
	}
	if !m.Has("key2") {
		t.Error("Has(key2) = false")
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Delete("key1")
	m.Delete("missing")
	if _, ok := m.Get("key1"); ok {
		t.Error("key1 still present after Delete")
	}

	m.Clear()
	if m.Count() != 0 {
		t.Errorf("Count() after Clear = %d", m.Count())
	}
}

func TestDeleteIf(t *testing.T) {
	m := New[int]()
	m.Set("a", 1)

	if m.DeleteIf("a", func(v int) bool { return v == 2 }) {
		t.Error("DeleteIf removed a value the predicate rejected")
	}
	if m.DeleteIf("missing", func(int) bool { return true }) {
		t.Error("DeleteIf reported removing a missing key")
	}
	if !m.DeleteIf("a", func(v int) bool { return v == 1 }) {
		t.Error("DeleteIf did not remove an approved value")
	}
	if m.Has("a") {
		t.Error("key still present")
	}
}

func TestGetOrSet(t *testing.T) {
	m := New[string]()

	got, loaded := m.GetOrSet("k", "first")
	if loaded || got != "first" {
		t.Errorf("GetOrSet() = %q, %v; want first, false", got, loaded)
	}
	got, loaded = m.GetOrSet("k", "second")
	if !loaded || got != "first" {
		t.Errorf("GetOrSet() = %q, %v; want first, true", got, loaded)
	}
}

func TestRangeAndRemoveAll(t *testing.T) {
	m := NewWithShards[int](4)
	for i := 0; i < 100; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	sum := 0
	m.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	if sum != 4950 {
		t.Errorf("Range sum = %d, want 4950", sum)
	}

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return visited < 10
	})
	if visited != 10 {
		t.Errorf("Range visited %d items after stop, want 10", visited)
	}

	removed := m.RemoveAll(func(_ string, v int) bool { return v%2 == 0 })
	if removed != 50 || m.Count() != 50 {
		t.Errorf("RemoveAll removed %d, %d left; want 50/50", removed, m.Count())
	}
}

func TestDistribution(t *testing.T) {
	m := NewWithShards[int](8)
	for i := 0; i < 8000; i++ {
		m.Set(fmt.Sprintf("tb_%d", i), i)
	}
	for i, s := range m.shards {
		if n := len(s.items); n < 500 || n > 1500 {
			t.Errorf("shard %d holds %d items; distribution is skewed", i, n)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("g%d-%d", g, i)
				m.Set(key, i)
				if _, ok := m.Get(key); !ok {
					t.Errorf("Get(%s) missing right after Set", key)
				}
				if i%3 == 0 {
					m.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if got, want := m.Count(), 8*(500-167); got != want {
		t.Errorf("Count() = %d, want %d", got, want)
	}
}
