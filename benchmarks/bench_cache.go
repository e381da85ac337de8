package benchmarks

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/cruppstahl/ups"
	mdbxgo "github.com/erigontech/mdbx-go/mdbx"
	"github.com/tecbot/gorocksdb"
	bolt "go.etcd.io/bbolt"
)

// Cached benchmark database directory
const benchCacheDir = "testdata/benchdb"

const (
	plainDB = 1
	dupDB   = 2
)

var (
	cacheMu     sync.Mutex
	upsEnvs     = make(map[string]*ups.Environment)
	upsDBs      = make(map[string]*ups.Database)
	mdbxEnvs    = make(map[string]*mdbxgo.Env)
	boltDBs     = make(map[string]*bolt.DB)
	rocksDBs    = make(map[string]*gorocksdb.DB)
	sampleCache = make(map[string][][]byte)
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func formatSize(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%dM", n/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%dk", n/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// shuffled returns 0..n-1 in a fixed pseudo-random order.
func shuffled(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := int(uint64(i*17+31) % uint64(i+1))
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// getCachedUpsDB returns a cached ups database with numKeys keys and
// valsPerKey duplicates each. valsPerKey == 1 gives a plain database.
func getCachedUpsDB(b *testing.B, numKeys, valsPerKey int) (*ups.Database, [][]byte) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	key := fmt.Sprintf("ups_%d_%d", numKeys, valsPerKey)
	if db, ok := upsDBs[key]; ok {
		return db, sampleCache[key]
	}
	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(benchCacheDir, fmt.Sprintf("%s.ups", key))
	name := uint16(plainDB)
	var flags uint32
	if valsPerKey > 1 {
		name, flags = dupDB, ups.EnableDuplicateKeys
	}

	env := ups.NewEnvironment()
	var db *ups.Database
	if fileExists(path) {
		b.Logf("Using cached ups DB %s", key)
		if err := env.Open(path, ups.EnableTransactions); err != nil {
			b.Fatal(err)
		}
		var err error
		if db, err = env.OpenDatabase(name, 0); err != nil {
			b.Fatal(err)
		}
	} else {
		b.Logf("Creating cached ups DB %s...", key)
		if err := env.Create(path, ups.EnableTransactions, 0644); err != nil {
			b.Fatal(err)
		}
		var err error
		if db, err = env.CreateDatabase(name, flags); err != nil {
			b.Fatal(err)
		}
		populateUps(b, env, db, numKeys, valsPerKey)
	}

	upsEnvs[key] = env
	upsDBs[key] = db
	sampleCache[key] = sampleKeys(numKeys)
	return db, sampleCache[key]
}

func populateUps(b *testing.B, env *ups.Environment, db *ups.Database, numKeys, valsPerKey int) {
	const batchSize = 100_000
	for start := 0; start < numKeys; start += batchSize {
		end := min(start+batchSize, numKeys)
		err := env.Update(func(txn *ups.Transaction) error {
			key := make([]byte, 8)
			val := make([]byte, 32)
			for i := start; i < end; i++ {
				binary.BigEndian.PutUint64(key, uint64(i))
				for j := 0; j < valsPerKey; j++ {
					binary.BigEndian.PutUint64(val, uint64(j))
					flags := ups.Overwrite
					if valsPerKey > 1 {
						flags = ups.Duplicate
					}
					if err := db.Insert(txn, key, val, flags); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

// sampleKeys returns every 1000th key.
func sampleKeys(numKeys int) [][]byte {
	samples := make([][]byte, 0, numKeys/1000+1)
	for i := 0; i < numKeys; i += 1000 {
		samples = append(samples, binary.BigEndian.AppendUint64(nil, uint64(i)))
	}
	return samples
}

// getCachedMdbx returns a cached libmdbx environment holding the same data
// as getCachedUpsDB, in table "bench".
func getCachedMdbx(b *testing.B, numKeys, valsPerKey int) *mdbxgo.Env {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	key := fmt.Sprintf("mdbx_%d_%d", numKeys, valsPerKey)
	if env, ok := mdbxEnvs[key]; ok {
		return env
	}
	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(benchCacheDir, key+".db")
	exists := fileExists(path)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	env, err := mdbxgo.NewEnv(mdbxgo.Label("bench"))
	if err != nil {
		b.Fatal(err)
	}
	env.SetOption(mdbxgo.OptMaxDB, 10)
	env.SetGeometry(-1, -1, 1<<32, -1, -1, 4096) // 4GB max
	if err := env.Open(path, mdbxgo.NoSubdir|mdbxgo.NoMetaSync|mdbxgo.WriteMap, 0644); err != nil {
		b.Fatal(err)
	}
	if !exists {
		b.Logf("Creating cached mdbx DB %s...", key)
		populateMdbx(b, env, numKeys, valsPerKey)
	}
	mdbxEnvs[key] = env
	return env
}

func mdbxTableFlags(valsPerKey int) uint {
	if valsPerKey > 1 {
		return mdbxgo.DupSort
	}
	return 0
}

func populateMdbx(b *testing.B, env *mdbxgo.Env, numKeys, valsPerKey int) {
	txn, err := env.BeginTxn(nil, 0)
	if err != nil {
		b.Fatal(err)
	}
	dbi, err := txn.OpenDBI("bench", mdbxgo.Create|mdbxTableFlags(valsPerKey), nil, nil)
	if err != nil {
		b.Fatal(err)
	}

	key := make([]byte, 8)
	val := make([]byte, 32)
	for i := 0; i < numKeys; i++ {
		binary.BigEndian.PutUint64(key, uint64(i))
		for j := 0; j < valsPerKey; j++ {
			binary.BigEndian.PutUint64(val, uint64(j))
			if err := txn.Put(dbi, key, val, mdbxgo.Upsert); err != nil {
				b.Fatal(err)
			}
		}
		if (i+1)%100_000 == 0 {
			if _, err := txn.Commit(); err != nil {
				b.Fatal(err)
			}
			if txn, err = env.BeginTxn(nil, 0); err != nil {
				b.Fatal(err)
			}
		}
	}
	if _, err := txn.Commit(); err != nil {
		b.Fatal(err)
	}
}

// getCachedBoltDB returns a cached BoltDB database with bucket "bench".
func getCachedBoltDB(b *testing.B, size int) *bolt.DB {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	key := fmt.Sprintf("bolt_%d", size)
	if db, ok := boltDBs[key]; ok {
		return db
	}
	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(benchCacheDir, key+".db")
	exists := fileExists(path)

	db, err := bolt.Open(path, 0644, &bolt.Options{
		NoSync:         true,
		NoFreelistSync: true,
	})
	if err != nil {
		b.Fatal(err)
	}
	if !exists {
		b.Logf("Creating cached BoltDB with %d keys...", size)
		key := make([]byte, 8)
		val := make([]byte, 32)
		for start := 0; start < size; start += 100_000 {
			end := min(start+100_000, size)
			err := db.Update(func(tx *bolt.Tx) error {
				bucket, err := tx.CreateBucketIfNotExists([]byte("bench"))
				if err != nil {
					return err
				}
				for i := start; i < end; i++ {
					binary.BigEndian.PutUint64(key, uint64(i))
					binary.BigEndian.PutUint64(val, uint64(i))
					if err := bucket.Put(key, val); err != nil {
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
	boltDBs[key] = db
	return db
}

// getCachedRocksDB returns a cached RocksDB database.
func getCachedRocksDB(b *testing.B, size int) *gorocksdb.DB {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	key := fmt.Sprintf("rocks_%d", size)
	if db, ok := rocksDBs[key]; ok {
		return db
	}
	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(benchCacheDir, key+".db")
	exists := fileExists(path)

	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	opts.SetWriteBufferSize(64 * 1024 * 1024)
	opts.SetMaxWriteBufferNumber(3)
	opts.SetTargetFileSizeBase(64 * 1024 * 1024)

	db, err := gorocksdb.OpenDb(opts, path)
	if err != nil {
		b.Fatal(err)
	}
	if !exists {
		b.Logf("Creating cached RocksDB with %d keys...", size)
		wo := gorocksdb.NewDefaultWriteOptions()
		defer wo.Destroy()
		batch := gorocksdb.NewWriteBatch()
		defer batch.Destroy()

		key := make([]byte, 8)
		val := make([]byte, 32)
		for i := 0; i < size; i++ {
			binary.BigEndian.PutUint64(key, uint64(i))
			binary.BigEndian.PutUint64(val, uint64(i))
			batch.Put(key, val)
			if (i+1)%100_000 == 0 {
				if err := db.Write(wo, batch); err != nil {
					b.Fatal(err)
				}
				batch.Clear()
			}
		}
		if batch.Count() > 0 {
			if err := db.Write(wo, batch); err != nil {
				b.Fatal(err)
			}
		}
	}
	rocksDBs[key] = db
	return db
}

// CleanupBenchCache closes all cached environments.
func CleanupBenchCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	for _, env := range upsEnvs {
		env.Close()
	}
	for _, env := range mdbxEnvs {
		env.Close()
	}
	for _, db := range boltDBs {
		db.Close()
	}
	for _, db := range rocksDBs {
		db.Close()
	}
	upsEnvs = make(map[string]*ups.Environment)
	upsDBs = make(map[string]*ups.Database)
	mdbxEnvs = make(map[string]*mdbxgo.Env)
	boltDBs = make(map[string]*bolt.DB)
	rocksDBs = make(map[string]*gorocksdb.DB)
	sampleCache = make(map[string][][]byte)
}

// DeleteBenchCache removes all cached database files.
func DeleteBenchCache() error {
	return os.RemoveAll(benchCacheDir)
}
