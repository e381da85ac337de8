package benchmarks

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"testing"

	"github.com/cruppstahl/ups"
	mdbxgo "github.com/erigontech/mdbx-go/mdbx"
	"github.com/tecbot/gorocksdb"
)

func newRocksWriteOpts() *gorocksdb.WriteOptions {
	wo := gorocksdb.NewDefaultWriteOptions()
	wo.DisableWAL(true) // the others don't sync either
	return wo
}

// BenchmarkWriteOps measures overwrites of existing keys inside one write
// transaction that is aborted afterwards, so the cached files stay intact.
func BenchmarkWriteOps(b *testing.B) {
	sizes := []int{10_000, 100_000}

	for _, size := range sizes {
		sizeName := formatSize(size)

		b.Run(fmt.Sprintf("SeqPut_%s/ups", sizeName), func(b *testing.B) {
			benchPutUps(b, size, false)
		})
		b.Run(fmt.Sprintf("SeqPut_%s/mdbx", sizeName), func(b *testing.B) {
			benchPutMdbx(b, size, false)
		})
		b.Run(fmt.Sprintf("SeqPut_%s/bolt", sizeName), func(b *testing.B) {
			benchPutBolt(b, size, false)
		})
		b.Run(fmt.Sprintf("SeqPut_%s/rocksdb", sizeName), func(b *testing.B) {
			benchPutRocksDB(b, size, false)
		})

		b.Run(fmt.Sprintf("RandPut_%s/ups", sizeName), func(b *testing.B) {
			benchPutUps(b, size, true)
		})
		b.Run(fmt.Sprintf("RandPut_%s/mdbx", sizeName), func(b *testing.B) {
			benchPutMdbx(b, size, true)
		})
		b.Run(fmt.Sprintf("RandPut_%s/bolt", sizeName), func(b *testing.B) {
			benchPutBolt(b, size, true)
		})
		b.Run(fmt.Sprintf("RandPut_%s/rocksdb", sizeName), func(b *testing.B) {
			benchPutRocksDB(b, size, true)
		})

		b.Run(fmt.Sprintf("CursorPut_%s/ups", sizeName), func(b *testing.B) {
			benchCursorPutUps(b, size)
		})
		b.Run(fmt.Sprintf("CursorPut_%s/mdbx", sizeName), func(b *testing.B) {
			benchCursorPutMdbx(b, size)
		})
	}

	b.Run("Commit_100/ups", benchCommitUps)
}

// putOrder maps iteration i to a key index.
func putOrder(numKeys int, random bool) func(i int) uint64 {
	if !random {
		return func(i int) uint64 { return uint64(i % numKeys) }
	}
	order := shuffled(numKeys)
	return func(i int) uint64 { return uint64(order[i%numKeys]) }
}

func benchPutUps(b *testing.B, numKeys int, random bool) {
	db, _ := getCachedUpsDB(b, numKeys, 1)
	next := putOrder(numKeys, random)

	key := make([]byte, 8)
	val := make([]byte, 32)

	txn, err := db.Environment().Begin(ups.TxnReadWrite)
	if err != nil {
		b.Fatal(err)
	}
	defer txn.Abort()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		binary.BigEndian.PutUint64(key, next(i))
		binary.BigEndian.PutUint64(val, uint64(i))
		if err := db.Insert(txn, key, val, ups.Overwrite); err != nil {
			b.Fatal(err)
		}
	}
}

func benchPutMdbx(b *testing.B, numKeys int, random bool) {
	menv := getCachedMdbx(b, numKeys, 1)
	next := putOrder(numKeys, random)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	key := make([]byte, 8)
	val := make([]byte, 32)

	txn, err := menv.BeginTxn(nil, 0)
	if err != nil {
		b.Fatal(err)
	}
	defer txn.Abort()

	dbi, err := txn.OpenDBI("bench", 0, nil, nil)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		binary.BigEndian.PutUint64(key, next(i))
		binary.BigEndian.PutUint64(val, uint64(i))
		txn.Put(dbi, key, val, 0)
	}
}

func benchPutBolt(b *testing.B, numKeys int, random bool) {
	boltDB := getCachedBoltDB(b, numKeys)
	next := putOrder(numKeys, random)

	key := make([]byte, 8)
	val := make([]byte, 32)

	tx, err := boltDB.Begin(true)
	if err != nil {
		b.Fatal(err)
	}
	defer tx.Rollback()
	bucket := tx.Bucket([]byte("bench"))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		binary.BigEndian.PutUint64(key, next(i))
		binary.BigEndian.PutUint64(val, uint64(i))
		bucket.Put(key, val)
	}
}

func benchPutRocksDB(b *testing.B, numKeys int, random bool) {
	db := getCachedRocksDB(b, numKeys)
	next := putOrder(numKeys, random)

	wo := newRocksWriteOpts()
	defer wo.Destroy()

	key := make([]byte, 8)
	val := make([]byte, 32)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		binary.BigEndian.PutUint64(key, next(i))
		binary.BigEndian.PutUint64(val, uint64(i))
		db.Put(wo, key, val)
	}
}

func benchCursorPutUps(b *testing.B, numKeys int) {
	db, _ := getCachedUpsDB(b, numKeys, 1)

	key := make([]byte, 8)
	val := make([]byte, 32)

	txn, err := db.Environment().Begin(ups.TxnReadWrite)
	if err != nil {
		b.Fatal(err)
	}
	defer txn.Abort()

	cursor, err := db.NewCursor(txn)
	if err != nil {
		b.Fatal(err)
	}
	defer cursor.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		binary.BigEndian.PutUint64(key, uint64(i%numKeys))
		binary.BigEndian.PutUint64(val, uint64(i))
		if err := cursor.Insert(key, val, ups.Overwrite); err != nil {
			b.Fatal(err)
		}
	}
}

func benchCursorPutMdbx(b *testing.B, numKeys int) {
	menv := getCachedMdbx(b, numKeys, 1)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	key := make([]byte, 8)
	val := make([]byte, 32)

	txn, err := menv.BeginTxn(nil, 0)
	if err != nil {
		b.Fatal(err)
	}
	defer txn.Abort()

	dbi, err := txn.OpenDBI("bench", 0, nil, nil)
	if err != nil {
		b.Fatal(err)
	}
	cursor, err := txn.OpenCursor(dbi)
	if err != nil {
		b.Fatal(err)
	}
	defer cursor.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		binary.BigEndian.PutUint64(key, uint64(i%numKeys))
		binary.BigEndian.PutUint64(val, uint64(i))
		cursor.Put(key, val, 0)
	}
}

// benchCommitUps measures a full write transaction of 100 inserts against
// an in-memory environment, including begin and commit.
func benchCommitUps(b *testing.B) {
	env := ups.NewEnvironment()
	if err := env.Create("", ups.InMemory|ups.EnableTransactions, 0); err != nil {
		b.Fatal(err)
	}
	defer env.Close()
	db, err := env.CreateDatabase(plainDB, 0)
	if err != nil {
		b.Fatal(err)
	}

	key := make([]byte, 8)
	val := make([]byte, 32)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		err := env.Update(func(txn *ups.Transaction) error {
			for j := 0; j < 100; j++ {
				binary.BigEndian.PutUint64(key, uint64(j))
				binary.BigEndian.PutUint64(val, uint64(i))
				if err := db.Insert(txn, key, val, ups.Overwrite); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
