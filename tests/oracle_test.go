// Package tests checks the ordering and lookup semantics of ups against
// libmdbx (via CGO), which serves as the reference implementation of an
// ordered key/value store.
package tests

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/cruppstahl/ups"

	mdbx "github.com/erigontech/mdbx-go/mdbx"
)

// pair is one key/record item in iteration order.
type pair struct {
	key, val []byte
}

// oracle is a libmdbx environment holding one table.
type oracle struct {
	env     *mdbx.Env
	dbi     mdbx.DBI
	dupsort bool
}

func newOracle(t *testing.T, flags uint) *oracle {
	t.Helper()
	dir, err := os.MkdirTemp("", "ups-compat-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	env, err := mdbx.NewEnv(mdbx.Label("oracle"))
	if err != nil {
		t.Fatal(err)
	}
	env.SetOption(mdbx.OptMaxDB, 10)
	env.SetGeometry(-1, -1, 1<<30, -1, -1, 4096)
	if err := env.Open(filepath.Join(dir, "oracle.mdbx"), mdbx.Create|mdbx.NoSubdir, 0644); err != nil {
		env.Close()
		t.Fatal(err)
	}
	t.Cleanup(func() { env.Close() })

	o := &oracle{env: env, dupsort: flags&mdbx.DupSort != 0}
	err = env.Update(func(txn *mdbx.Txn) error {
		o.dbi, err = txn.OpenDBI("oracle", mdbx.Create|flags, nil, nil)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func (o *oracle) put(t *testing.T, items []pair) {
	t.Helper()
	err := o.env.Update(func(txn *mdbx.Txn) error {
		for _, it := range items {
			if err := txn.Put(o.dbi, it.key, it.val, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("oracle put failed: %v", err)
	}
}

// get runs one cursor operation and copies the result out of the mmap.
func (o *oracle) get(t *testing.T, key []byte, op uint) ([]byte, []byte, bool) {
	t.Helper()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var k, v []byte
	found := false
	err := o.env.View(func(txn *mdbx.Txn) error {
		c, err := txn.OpenCursor(o.dbi)
		if err != nil {
			return err
		}
		defer c.Close()
		rk, rv, err := c.Get(key, nil, op)
		if mdbx.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		k, v, found = bytes.Clone(rk), bytes.Clone(rv), true
		return nil
	})
	if err != nil {
		t.Fatalf("oracle get failed: %v", err)
	}
	return k, v, found
}

// neighbour returns the closest key below (dir < 0) or above key, or key
// itself when orEqual is set and it exists. It mirrors the approximate
// find modes of ups.
func (o *oracle) neighbour(t *testing.T, key []byte, dir int, orEqual bool) ([]byte, []byte, bool) {
	t.Helper()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var outK, outV []byte
	found := false
	err := o.env.View(func(txn *mdbx.Txn) error {
		c, err := txn.OpenCursor(o.dbi)
		if err != nil {
			return err
		}
		defer c.Close()
		k, v, err := c.Get(key, nil, mdbx.SetRange)
		exact := err == nil && bytes.Equal(k, key)
		switch {
		case orEqual && exact:
		case dir > 0 && exact:
			k, v, err = c.Get(nil, nil, mdbx.NextNoDup)
		case dir > 0:
		case mdbx.IsNotFound(err):
			k, v, err = c.Get(nil, nil, mdbx.Last)
			if err == nil && o.dupsort {
				// Last lands on the last duplicate; ups reports the first
				_, v, err = c.Get(nil, nil, mdbx.FirstDup)
			}
		case err == nil:
			k, v, err = c.Get(nil, nil, mdbx.PrevNoDup)
			if err == nil && o.dupsort {
				_, v, err = c.Get(nil, nil, mdbx.FirstDup)
			}
		}
		if mdbx.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		outK, outV, found = bytes.Clone(k), bytes.Clone(v), true
		return nil
	})
	if err != nil {
		t.Fatalf("oracle neighbour failed: %v", err)
	}
	return outK, outV, found
}

// scan returns every item in order, or in reverse.
func (o *oracle) scan(t *testing.T, reverse, skipDups bool) []pair {
	t.Helper()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	op := uint(mdbx.Next)
	switch {
	case reverse && skipDups:
		op = mdbx.PrevNoDup
	case reverse:
		op = mdbx.Prev
	case skipDups:
		op = mdbx.NextNoDup
	}
	var out []pair
	err := o.env.View(func(txn *mdbx.Txn) error {
		c, err := txn.OpenCursor(o.dbi)
		if err != nil {
			return err
		}
		defer c.Close()
		for {
			k, v, err := c.Get(nil, nil, op)
			if mdbx.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			out = append(out, pair{bytes.Clone(k), bytes.Clone(v)})
		}
	})
	if err != nil {
		t.Fatalf("oracle scan failed: %v", err)
	}
	return out
}

func newUpsDB(t *testing.T, flags uint32, params ...ups.Parameter) *ups.Database {
	t.Helper()
	env := ups.NewEnvironment()
	if err := env.Create("", ups.InMemory|ups.EnableTransactions, 0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	t.Cleanup(func() { env.Close() })
	db, err := env.CreateDatabase(1, flags, params...)
	if err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	return db
}

func putUps(t *testing.T, db *ups.Database, items []pair, flags ups.InsertFlag) {
	t.Helper()
	err := db.Environment().Update(func(txn *ups.Transaction) error {
		for _, it := range items {
			if err := db.Insert(txn, it.key, it.val, flags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ups insert failed: %v", err)
	}
}

// scanUps iterates db with a cursor using the given move flags.
func scanUps(t *testing.T, db *ups.Database, flags ups.MoveFlag) []pair {
	t.Helper()
	c, err := db.NewCursor(nil)
	if err != nil {
		t.Fatalf("NewCursor failed: %v", err)
	}
	defer c.Close()
	var out []pair
	for {
		k, v, ok, err := c.TryMove(flags)
		if err != nil {
			t.Fatalf("TryMove failed: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, pair{k, v})
	}
}

func comparePairs(t *testing.T, what string, got, want []pair) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: ups has %d items, libmdbx %d", what, len(got), len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i].key, want[i].key) || !bytes.Equal(got[i].val, want[i].val) {
			t.Fatalf("%s: item %d: ups %x=%x, libmdbx %x=%x",
				what, i, got[i].key, got[i].val, want[i].key, want[i].val)
		}
	}
}

func randomPairs(n, maxKey int) []pair {
	items := make([]pair, n)
	for i := range items {
		var sz [2]byte
		rand.Read(sz[:])
		k := make([]byte, 1+int(binary.LittleEndian.Uint16(sz[:]))%maxKey)
		rand.Read(k)
		v := make([]byte, 8)
		binary.BigEndian.PutUint64(v, uint64(i))
		items[i] = pair{k, v}
	}
	return dedupe(items)
}

// dedupe keeps the last record of every key, like an overwriting insert.
func dedupe(items []pair) []pair {
	last := make(map[string]int, len(items))
	for i, it := range items {
		last[string(it.key)] = i
	}
	out := make([]pair, 0, len(last))
	for i, it := range items {
		if last[string(it.key)] == i {
			out = append(out, it)
		}
	}
	return out
}

func sortedKeys(items []pair) [][]byte {
	keys := make([][]byte, len(items))
	for i, it := range items {
		keys[i] = it.key
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	return keys
}
