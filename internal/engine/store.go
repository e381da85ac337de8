package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt"
)

const (
	storeVersion = 1
	lockTimeout  = 100 * time.Millisecond
)

var (
	metaBucket   = []byte("ups.meta")
	tablesBucket = []byte("ups.tables")
	envMetaKey   = []byte("env")

	errNoMeta      = errors.New("missing environment header")
	errBadVersion  = errors.New("unsupported file version")
	errBadChecksum = errors.New("record checksum mismatch")
)

type envMeta struct {
	Version      int    `msgpack:"v"`
	Flags        uint32 `msgpack:"f"`
	PageSize     uint64 `msgpack:"p"`
	MaxDatabases uint64 `msgpack:"m"`
}

type tableMeta struct {
	Flags      uint32 `msgpack:"f"`
	KeyType    uint16 `msgpack:"t"`
	KeySize    uint16 `msgpack:"k"`
	RecordSize uint32 `msgpack:"r"`
	RecNo      uint64 `msgpack:"n"`
	Compare    string `msgpack:"c,omitempty"`
}

// storedValue is the on-disk form of one key: its duplicates in order and,
// when the environment was created with EnableCRC32, their checksum.
type storedValue struct {
	Records [][]byte `msgpack:"r"`
	Sum     uint64   `msgpack:"s,omitempty"`
}

// store persists committed table state in a bbolt file. bbolt owns the file
// lock, the mapping and fsync.
type store struct {
	db        *bolt.DB
	checksums bool
}

func tableKey(name uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], name)
	return b[:]
}

func tableBucket(name uint16) []byte {
	return append([]byte("t."), tableKey(name)...)
}

func boltOptions(flags uint32) *bolt.Options {
	return &bolt.Options{
		Timeout:        lockTimeout,
		NoSync:         flags&EnableFsync == 0,
		NoFreelistSync: true,
		ReadOnly:       flags&ReadOnly != 0,
	}
}

// createStore opens path, discarding any previous content.
func createStore(path string, mode os.FileMode, flags uint32, meta envMeta) (*store, error) {
	db, err := bolt.Open(path, mode, boltOptions(flags))
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		var names [][]byte
		if err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, cloneBytes(name))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		mb, err := tx.CreateBucket(metaBucket)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucket(tablesBucket); err != nil {
			return err
		}
		raw, err := msgpack.Marshal(&meta)
		if err != nil {
			return err
		}
		return mb.Put(envMetaKey, raw)
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &store{db: db, checksums: meta.Flags&EnableCRC32 != 0}, nil
}

func openStore(path string, flags uint32) (*store, envMeta, error) {
	var meta envMeta
	if _, err := os.Stat(path); err != nil {
		return nil, meta, err
	}
	db, err := bolt.Open(path, 0, boltOptions(flags))
	if err != nil {
		return nil, meta, err
	}
	err = db.View(func(tx *bolt.Tx) error {
		mb := tx.Bucket(metaBucket)
		if mb == nil || tx.Bucket(tablesBucket) == nil {
			return errNoMeta
		}
		raw := mb.Get(envMetaKey)
		if raw == nil {
			return errNoMeta
		}
		if err := msgpack.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("decode environment header: %w", errNoMeta)
		}
		if meta.Version != storeVersion {
			return errBadVersion
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, meta, err
	}
	return &store{db: db, checksums: meta.Flags&EnableCRC32 != 0}, meta, nil
}

func checksum(records [][]byte) uint64 {
	d := xxhash.New()
	var n [4]byte
	for _, r := range records {
		binary.LittleEndian.PutUint32(n[:], uint32(len(r)))
		d.Write(n[:])
		d.Write(r)
	}
	return d.Sum64()
}

func (s *store) encode(records [][]byte) ([]byte, error) {
	v := storedValue{Records: records}
	if s.checksums {
		v.Sum = checksum(records)
	}
	return msgpack.Marshal(&v)
}

func (s *store) decode(raw []byte) ([][]byte, error) {
	var v storedValue
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode record list: %w", errBadChecksum)
	}
	if s.checksums && v.Sum != checksum(v.Records) {
		return nil, errBadChecksum
	}
	return v.Records, nil
}

// load calls fn for every table, then visit for every key of that table in
// byte order.
func (s *store) load(fn func(name uint16, meta tableMeta) (visit func(key []byte, records [][]byte), err error)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		tables := tx.Bucket(tablesBucket)
		return tables.ForEach(func(k, v []byte) error {
			if len(k) != 2 {
				return errNoMeta
			}
			var meta tableMeta
			if err := msgpack.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("decode table header: %w", errNoMeta)
			}
			name := binary.BigEndian.Uint16(k)
			visit, err := fn(name, meta)
			if err != nil {
				return err
			}
			b := tx.Bucket(tableBucket(name))
			if b == nil {
				return nil
			}
			return b.ForEach(func(key, raw []byte) error {
				records, err := s.decode(raw)
				if err != nil {
					return err
				}
				visit(cloneBytes(key), records)
				return nil
			})
		})
	})
}

func (s *store) putMeta(tx *bolt.Tx, name uint16, meta tableMeta) error {
	raw, err := msgpack.Marshal(&meta)
	if err != nil {
		return err
	}
	return tx.Bucket(tablesBucket).Put(tableKey(name), raw)
}

func (s *store) createTable(name uint16, meta tableMeta) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(tableBucket(name)); err != nil {
			return err
		}
		return s.putMeta(tx, name, meta)
	})
}

func (s *store) dropTable(name uint16) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(tableBucket(name)); err != nil && !errors.Is(err, berrors.ErrBucketNotFound) {
			return err
		}
		return tx.Bucket(tablesBucket).Delete(tableKey(name))
	})
}

// renameTable copies the bucket of oldName under newName; bbolt has no
// bucket rename.
func (s *store) renameTable(oldName, newName uint16, meta tableMeta) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		dst, err := tx.CreateBucket(tableBucket(newName))
		if err != nil {
			return err
		}
		if src := tx.Bucket(tableBucket(oldName)); src != nil {
			if err := src.ForEach(func(k, v []byte) error {
				return dst.Put(k, v)
			}); err != nil {
				return err
			}
			if err := tx.DeleteBucket(tableBucket(oldName)); err != nil {
				return err
			}
		}
		if err := tx.Bucket(tablesBucket).Delete(tableKey(oldName)); err != nil {
			return err
		}
		return s.putMeta(tx, newName, meta)
	})
}

// apply writes one batch of changes atomically, together with the headers
// of every table it touches.
func (s *store) apply(changes []change) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		touched := make(map[*table]struct{})
		for _, c := range changes {
			b := tx.Bucket(tableBucket(c.tbl.name))
			if b == nil {
				return fmt.Errorf("table %d has no bucket", c.tbl.name)
			}
			touched[c.tbl] = struct{}{}
			if c.records == nil {
				if err := b.Delete(c.key); err != nil {
					return err
				}
				continue
			}
			raw, err := s.encode(c.records)
			if err != nil {
				return err
			}
			if err := b.Put(c.key, raw); err != nil {
				return err
			}
		}
		for tb := range touched {
			if tb.recnoSize() == 0 {
				continue
			}
			if err := s.putMeta(tx, tb.name, tb.meta()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *store) sync() error {
	return s.db.Sync()
}

func (s *store) close() error {
	return s.db.Close()
}

// storeStatus maps persistence failures to engine status codes.
func storeStatus(err error) Status {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, berrors.ErrTimeout):
		return WouldBlock
	case errors.Is(err, berrors.ErrDatabaseReadOnly):
		return WriteProtected
	case errors.Is(err, berrors.ErrInvalid), errors.Is(err, berrors.ErrChecksum),
		errors.Is(err, errNoMeta):
		return InvFileHeader
	case errors.Is(err, berrors.ErrVersionMismatch), errors.Is(err, errBadVersion):
		return InvFileVersion
	case errors.Is(err, errBadChecksum):
		return IntegrityViolated
	case errors.Is(err, os.ErrNotExist):
		return FileNotFound
	}
	return IOError
}
