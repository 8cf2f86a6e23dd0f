// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shadercache

import (
	"errors"
	"strconv"
	"sync"
	"testing"
)

func words(n uint32) []uint32 { return []uint32{0x07230203, n} }

func TestGetSet(t *testing.T) {
	c := New(4)
	k := KeyOf("fn main() {}")

	if _, ok := c.Get(k); ok {
		t.Fatal("Get on empty cache hit")
	}
	c.Set(k, words(1))
	got, ok := c.Get(k)
	if !ok || got[1] != 1 {
		t.Fatalf("Get = %v, %v", got, ok)
	}

	c.Set(k, words(2))
	if got, _ := c.Get(k); got[1] != 2 {
		t.Errorf("updated value = %v", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestKeyOfIsStable(t *testing.T) {
	if KeyOf("a") != KeyOf("a") {
		t.Error("KeyOf not deterministic")
	}
	if KeyOf("a") == KeyOf("b") {
		t.Error("KeyOf collides on trivial input")
	}
}

func TestEvictionIsLRUPerShard(t *testing.T) {
	c := New(2)
	// Keys in the same shard.
	k1, k2, k3 := Key(0*shardCount), Key(1*shardCount), Key(2*shardCount)

	c.Set(k1, words(1))
	c.Set(k2, words(2))
	c.Get(k1) // k2 is now least recently used
	c.Set(k3, words(3))

	if _, ok := c.Get(k2); ok {
		t.Error("least recently used entry survived")
	}
	if _, ok := c.Get(k1); !ok {
		t.Error("recently used entry evicted")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestGetOrCompile(t *testing.T) {
	c := New(0)
	calls := 0
	compile := func(string) ([]uint32, error) {
		calls++
		return words(uint32(calls)), nil
	}

	for range 3 {
		if _, err := c.GetOrCompile("src", compile); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("compile calls = %d, want 1", calls)
	}

	errBad := errors.New("bad")
	fail := func(string) ([]uint32, error) { return nil, errBad }
	if _, err := c.GetOrCompile("broken", fail); !errors.Is(err, errBad) {
		t.Errorf("err = %v, want errBad", err)
	}
	if _, ok := c.Get(KeyOf("broken")); ok {
		t.Error("failed compile was cached")
	}
}

func TestClear(t *testing.T) {
	c := New(4)
	for i := range 10 {
		c.Set(KeyOf(strconv.Itoa(i)), words(uint32(i)))
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(16)
	compile := func(s string) ([]uint32, error) { return words(uint32(len(s))), nil }

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				src := strconv.Itoa((g + i) % 32)
				if _, err := c.GetOrCompile(src, compile); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if c.Len() > shardCount*16 {
		t.Errorf("Len = %d exceeds capacity", c.Len())
	}
}
