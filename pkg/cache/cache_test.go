package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCache_Basic(t *testing.T) {
	c := New[string, int](3)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	for key, want := range map[string]int{"a": 1, "b": 2, "c": 3} {
		if v, ok := c.Get(key); !ok || v != want {
			t.Errorf("Get(%s) = %d, %v; want %d, true", key, v, ok, want)
		}
	}
	if _, ok := c.Get("d"); ok {
		t.Error("Get(d) should return false for missing key")
	}
}

func TestCache_Eviction(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a is now most recently used
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("'b' should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d; want 2", c.Len())
	}
	if c.Stats().Evicts != 1 {
		t.Errorf("Evicts = %d; want 1", c.Stats().Evicts)
	}
}

func TestCache_UpdateDeleteClear(t *testing.T) {
	c := New[string, int](2)

	c.Set("a", 1)
	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("Get(a) = %d; want 10", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d; want 1", c.Len())
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("'a' should have been deleted")
	}

	c.Set("x", 1)
	c.Set("y", 2)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d; want 0", c.Len())
	}
}

func TestCache_GetOrCompute(t *testing.T) {
	c := New[string, int](4)
	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompute("k", compute)
		if err != nil || v != 42 {
			t.Errorf("GetOrCompute = %d, %v; want 42, nil", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("compute called %d times; want 1", calls)
	}

	errBoom := errors.New("boom")
	if _, err := c.GetOrCompute("bad", func() (int, error) { return 0, errBoom }); !errors.Is(err, errBoom) {
		t.Errorf("GetOrCompute error = %v; want boom", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("failed computations should not be cached")
	}
}

func TestCache_Stats(t *testing.T) {
	c := New[string, int](0)

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	want := Stats{Size: 1, Capacity: DefaultCapacity, Hits: 2, Misses: 1, HitRate: 2.0 / 3.0}
	if diff := cmp.Diff(want, c.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := New[string, int](50)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%100)
				c.Set(key, i)
				c.Get(key)
				_, _ = c.GetOrCompute(key, func() (int, error) { return i, nil })
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("Len() = %d; want <= 50", c.Len())
	}
}

func BenchmarkCache_Get(b *testing.B) {
	c := New[string, int](1000)
	for i := 0; i < 1000; i++ {
		c.Set(fmt.Sprintf("key%d", i), i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("key500")
	}
}
