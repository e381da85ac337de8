package benchmarks

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/cruppstahl/ups"
)

func TestMain(m *testing.M) {
	ups.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	code := m.Run()
	CleanupBenchCache()
	os.Exit(code)
}

// BenchmarkRecordSizes measures how record size affects insert and find,
// which copy the record into and out of engine memory.
func BenchmarkRecordSizes(b *testing.B) {
	sizes := []struct {
		name string
		size int
	}{
		{"16B", 16},
		{"1KB", 1 << 10},
		{"64KB", 64 << 10},
		{"1MB", 1 << 20},
	}
	for _, s := range sizes {
		size := s.size
		b.Run(fmt.Sprintf("Insert_%s/ups", s.name), func(b *testing.B) {
			benchRecordInsertUps(b, size)
		})
		b.Run(fmt.Sprintf("Find_%s/ups", s.name), func(b *testing.B) {
			benchRecordFindUps(b, size)
		})
	}
}

func newBenchMemDB(b *testing.B) (*ups.Environment, *ups.Database) {
	env := ups.NewEnvironment()
	if err := env.Create("", ups.InMemory, 0); err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { env.Close() })
	db, err := env.CreateDatabase(plainDB, 0)
	if err != nil {
		b.Fatal(err)
	}
	return env, db
}

func benchRecordInsertUps(b *testing.B, size int) {
	_, db := newBenchMemDB(b)
	key := make([]byte, 8)
	val := make([]byte, size)

	b.SetBytes(int64(size))
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		binary.BigEndian.PutUint64(key, uint64(i%1000))
		if err := db.Insert(nil, key, val, ups.Overwrite); err != nil {
			b.Fatal(err)
		}
	}
}

func benchRecordFindUps(b *testing.B, size int) {
	_, db := newBenchMemDB(b)
	key := make([]byte, 8)
	val := make([]byte, size)
	for i := 0; i < 1000; i++ {
		binary.BigEndian.PutUint64(key, uint64(i))
		if err := db.Insert(nil, key, val, 0); err != nil {
			b.Fatal(err)
		}
	}

	b.SetBytes(int64(size))
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		binary.BigEndian.PutUint64(key, uint64(i%1000))
		rec, err := db.Find(nil, key)
		if err != nil {
			b.Fatal(err)
		}
		if len(rec) != size {
			b.Fatalf("record size %d, want %d", len(rec), size)
		}
	}
}
