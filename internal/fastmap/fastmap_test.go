package fastmap

import (
	"math/rand"
	"testing"
)

type object struct {
	id int
}

func TestMap(t *testing.T) {
	m := &Map[*object]{}

	if _, ok := m.Get(1); ok {
		t.Error("Expected miss on empty map")
	}

	o1 := &object{100}
	o2 := &object{200}
	m.Set(1, o1)
	m.Set(2, o2)

	if v, ok := m.Get(1); !ok || v != o1 {
		t.Error("Get(1) failed")
	}
	if v, ok := m.Get(2); !ok || v != o2 {
		t.Error("Get(2) failed")
	}
	if _, ok := m.Get(3); ok {
		t.Error("Get(3) should miss")
	}

	o3 := &object{300}
	m.Set(1, o3)
	if v, _ := m.Get(1); v != o3 {
		t.Error("Update failed")
	}

	if m.Len() != 2 {
		t.Errorf("Expected len=2, got %d", m.Len())
	}

	m.Clear()
	if m.Len() != 0 {
		t.Error("Clear failed")
	}
	if _, ok := m.Get(1); ok {
		t.Error("Get after clear should miss")
	}
}

func TestMapGrowth(t *testing.T) {
	m := &Map[int]{}

	n := 10000
	for i := 0; i < n; i++ {
		m.Set(uint32(i), i*10)
	}
	if m.Len() != n {
		t.Errorf("Expected len=%d, got %d", n, m.Len())
	}
	for i := 0; i < n; i++ {
		if v, ok := m.Get(uint32(i)); !ok || v != i*10 {
			t.Errorf("Get(%d) = %d, %v", i, v, ok)
		}
	}
}

func TestMapZeroKey(t *testing.T) {
	m := &Map[string]{}
	m.Set(0, "zero")
	if v, ok := m.Get(0); !ok || v != "zero" {
		t.Error("Zero key failed")
	}
	if m.Len() != 1 {
		t.Error("Len should be 1")
	}
}

func TestMapDelete(t *testing.T) {
	m := &Map[int]{}
	if m.Delete(7) {
		t.Error("Delete on empty map should report false")
	}

	for i := 1; i <= 1000; i++ {
		m.Set(uint32(i), i)
	}
	// remove every third handle, then make sure the survivors are reachable
	for i := 3; i <= 1000; i += 3 {
		if !m.Delete(uint32(i)) {
			t.Fatalf("Delete(%d) failed", i)
		}
	}
	if m.Delete(3) {
		t.Error("second Delete(3) should report false")
	}
	for i := 1; i <= 1000; i++ {
		v, ok := m.Get(uint32(i))
		if i%3 == 0 {
			if ok {
				t.Errorf("Get(%d) should miss after delete", i)
			}
			continue
		}
		if !ok || v != i {
			t.Errorf("Get(%d) = %d, %v", i, v, ok)
		}
	}
	if m.Len() != 1000-333 {
		t.Errorf("Expected len=%d, got %d", 1000-333, m.Len())
	}
}

func TestMapDeleteRandom(t *testing.T) {
	m := &Map[uint32]{}
	ref := make(map[uint32]uint32)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 20000; i++ {
		k := uint32(rng.Intn(512))
		if rng.Intn(3) == 0 {
			_, want := ref[k]
			if got := m.Delete(k); got != want {
				t.Fatalf("Delete(%d) = %v, want %v", k, got, want)
			}
			delete(ref, k)
			continue
		}
		m.Set(k, k+1)
		ref[k] = k + 1
	}

	if m.Len() != len(ref) {
		t.Fatalf("len mismatch: %d vs %d", m.Len(), len(ref))
	}
	seen := 0
	m.ForEach(func(k, v uint32) {
		seen++
		if ref[k] != v {
			t.Errorf("ForEach(%d) = %d, want %d", k, v, ref[k])
		}
	})
	if seen != len(ref) {
		t.Errorf("ForEach visited %d entries, want %d", seen, len(ref))
	}
}

func BenchmarkMapSeqWrite(b *testing.B) {
	m := &Map[int]{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Set(uint32(i), i)
	}
}

func BenchmarkGoMapSeqWrite(b *testing.B) {
	m := make(map[uint32]int)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m[uint32(i)] = i
	}
}

func BenchmarkMapRandRead(b *testing.B) {
	m := &Map[int]{}
	keys := make([]uint32, 100000)
	for i := range keys {
		keys[i] = rand.Uint32()
		m.Set(keys[i], i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Get(keys[i%100000])
	}
}

func BenchmarkMapSetDelete(b *testing.B) {
	m := &Map[int]{}
	for i := 0; i < 10000; i++ {
		m.Set(uint32(i), i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := uint32(10000 + i)
		m.Set(k, i)
		m.Delete(k)
	}
}
