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

// BenchmarkReadOps compares point lookups, seeks and scans through the
// session layer against libmdbx, BoltDB and RocksDB.
func BenchmarkReadOps(b *testing.B) {
	sizes := []int{10_000, 100_000}

	for _, size := range sizes {
		sizeName := formatSize(size)

		b.Run(fmt.Sprintf("SeqRead_%s/ups", sizeName), func(b *testing.B) {
			benchSeqReadUps(b, size)
		})
		b.Run(fmt.Sprintf("SeqRead_%s/mdbx", sizeName), func(b *testing.B) {
			benchSeqReadMdbx(b, size)
		})
		b.Run(fmt.Sprintf("SeqRead_%s/bolt", sizeName), func(b *testing.B) {
			benchSeqReadBolt(b, size)
		})
		b.Run(fmt.Sprintf("SeqRead_%s/rocksdb", sizeName), func(b *testing.B) {
			benchSeqReadRocksDB(b, size)
		})

		b.Run(fmt.Sprintf("RandGet_%s/ups", sizeName), func(b *testing.B) {
			benchRandGetUps(b, size)
		})
		b.Run(fmt.Sprintf("RandGet_%s/ups_txn", sizeName), func(b *testing.B) {
			benchRandGetUpsTxn(b, size)
		})
		b.Run(fmt.Sprintf("RandGet_%s/mdbx", sizeName), func(b *testing.B) {
			benchRandGetMdbx(b, size)
		})
		b.Run(fmt.Sprintf("RandGet_%s/bolt", sizeName), func(b *testing.B) {
			benchRandGetBolt(b, size)
		})
		b.Run(fmt.Sprintf("RandGet_%s/rocksdb", sizeName), func(b *testing.B) {
			benchRandGetRocksDB(b, size)
		})

		b.Run(fmt.Sprintf("RandSeek_%s/ups", sizeName), func(b *testing.B) {
			benchRandSeekUps(b, size)
		})
		b.Run(fmt.Sprintf("RandSeek_%s/mdbx", sizeName), func(b *testing.B) {
			benchRandSeekMdbx(b, size)
		})
		b.Run(fmt.Sprintf("RandSeek_%s/bolt", sizeName), func(b *testing.B) {
			benchRandSeekBolt(b, size)
		})
	}
}

// lookupKeys returns the keys 0..n-1 in shuffled order.
func lookupKeys(n int) [][]byte {
	keys := make([][]byte, n)
	for i, idx := range shuffled(n) {
		keys[i] = binary.BigEndian.AppendUint64(nil, uint64(idx))
	}
	return keys
}

// ============ Sequential Read ============

func benchSeqReadUps(b *testing.B, numKeys int) {
	db, _ := getCachedUpsDB(b, numKeys, 1)

	cursor, err := db.NewCursor(nil)
	if err != nil {
		b.Fatal(err)
	}
	defer cursor.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if i%numKeys == 0 {
			cursor.MoveFirst()
		} else {
			cursor.MoveNext()
		}
	}
}

func benchSeqReadMdbx(b *testing.B, numKeys int) {
	menv := getCachedMdbx(b, numKeys, 1)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	txn, err := menv.BeginTxn(nil, mdbxgo.Readonly)
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
		if i%numKeys == 0 {
			cursor.Get(nil, nil, mdbxgo.First)
		} else {
			cursor.Get(nil, nil, mdbxgo.Next)
		}
	}
}

func benchSeqReadBolt(b *testing.B, numKeys int) {
	boltDB := getCachedBoltDB(b, numKeys)

	tx, err := boltDB.Begin(false)
	if err != nil {
		b.Fatal(err)
	}
	defer tx.Rollback()
	cursor := tx.Bucket([]byte("bench")).Cursor()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if i%numKeys == 0 {
			cursor.First()
		} else {
			cursor.Next()
		}
	}
}

func benchSeqReadRocksDB(b *testing.B, numKeys int) {
	rocksDB := getCachedRocksDB(b, numKeys)

	ro := gorocksdb.NewDefaultReadOptions()
	defer ro.Destroy()
	it := rocksDB.NewIterator(ro)
	defer it.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if i%numKeys == 0 {
			it.SeekToFirst()
		} else {
			it.Next()
		}
	}
}

// ============ Random Get ============

func benchRandGetUps(b *testing.B, numKeys int) {
	db, _ := getCachedUpsDB(b, numKeys, 1)
	keys := lookupKeys(numKeys)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := db.Find(nil, keys[i%numKeys]); err != nil {
			b.Fatal(err)
		}
	}
}

// benchRandGetUpsTxn reads inside one read-only transaction, which adds
// the overlay lookup to every find.
func benchRandGetUpsTxn(b *testing.B, numKeys int) {
	db, _ := getCachedUpsDB(b, numKeys, 1)
	keys := lookupKeys(numKeys)

	txn, err := db.Environment().Begin(ups.TxnReadOnly)
	if err != nil {
		b.Fatal(err)
	}
	defer txn.Abort()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := db.Find(txn, keys[i%numKeys]); err != nil {
			b.Fatal(err)
		}
	}
}

func benchRandGetMdbx(b *testing.B, numKeys int) {
	menv := getCachedMdbx(b, numKeys, 1)
	keys := lookupKeys(numKeys)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	txn, err := menv.BeginTxn(nil, mdbxgo.Readonly)
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
		if _, err := txn.Get(dbi, keys[i%numKeys]); err != nil {
			b.Fatal(err)
		}
	}
}

func benchRandGetBolt(b *testing.B, numKeys int) {
	boltDB := getCachedBoltDB(b, numKeys)
	keys := lookupKeys(numKeys)

	tx, err := boltDB.Begin(false)
	if err != nil {
		b.Fatal(err)
	}
	defer tx.Rollback()
	bucket := tx.Bucket([]byte("bench"))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if bucket.Get(keys[i%numKeys]) == nil {
			b.Fatal("key not found")
		}
	}
}

func benchRandGetRocksDB(b *testing.B, numKeys int) {
	rocksDB := getCachedRocksDB(b, numKeys)
	keys := lookupKeys(numKeys)

	ro := gorocksdb.NewDefaultReadOptions()
	defer ro.Destroy()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		val, err := rocksDB.Get(ro, keys[i%numKeys])
		if err != nil {
			b.Fatal(err)
		}
		val.Free()
	}
}

// ============ Random Seek ============

// Seek targets fall between stored keys so every lookup is approximate.
func seekKeys(n int) [][]byte {
	keys := lookupKeys(n)
	for i := range keys {
		keys[i] = append(keys[i], 0)
	}
	return keys
}

func benchRandSeekUps(b *testing.B, numKeys int) {
	db, _ := getCachedUpsDB(b, numKeys, 1)
	keys := seekKeys(numKeys - 1)

	cursor, err := db.NewCursor(nil)
	if err != nil {
		b.Fatal(err)
	}
	defer cursor.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, _, err := cursor.Find(keys[i%len(keys)], ups.FindGEQ); err != nil {
			b.Fatal(err)
		}
	}
}

func benchRandSeekMdbx(b *testing.B, numKeys int) {
	menv := getCachedMdbx(b, numKeys, 1)
	keys := seekKeys(numKeys - 1)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	txn, err := menv.BeginTxn(nil, mdbxgo.Readonly)
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
		if _, _, err := cursor.Get(keys[i%len(keys)], nil, mdbxgo.SetRange); err != nil {
			b.Fatal(err)
		}
	}
}

func benchRandSeekBolt(b *testing.B, numKeys int) {
	boltDB := getCachedBoltDB(b, numKeys)
	keys := seekKeys(numKeys - 1)

	tx, err := boltDB.Begin(false)
	if err != nil {
		b.Fatal(err)
	}
	defer tx.Rollback()
	cursor := tx.Bucket([]byte("bench")).Cursor()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if k, _ := cursor.Seek(keys[i%len(keys)]); k == nil {
			b.Fatal("seek ran off the end")
		}
	}
}
