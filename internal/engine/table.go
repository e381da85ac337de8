package engine

import (
	"github.com/google/btree"
)

const btreeDegree = 32

// entry is one key of a table together with its ordered duplicates. Entries
// in a committed tree are immutable; writers replace them.
type entry struct {
	tbl     *table
	key     []byte
	records [][]byte
	erased  bool // tombstone in a transaction overlay
	owner   *txn // set in the owners tree only
}

func (e *entry) Less(than btree.Item) bool {
	return e.tbl.order(e.key, than.(*entry).key) < 0
}

// table holds the committed state of one database of an environment. It
// outlives the database handles opened on it.
type table struct {
	name       uint16
	flags      uint32
	keyType    uint16
	keySize    uint16
	recordSize uint32
	recno      uint64
	compare    string // registered compare function, if any

	order  keyOrder
	tree   *btree.BTree
	owners *btree.BTree // keys written by active transactions
	db     *database       // open handle, nil when closed
	custom CompareFunc
}

func newTable(name uint16, meta tableMeta) *table {
	tb := &table{
		name:       name,
		flags:      meta.Flags,
		keyType:    meta.KeyType,
		keySize:    meta.KeySize,
		recordSize: meta.RecordSize,
		recno:      meta.RecNo,
		compare:    meta.Compare,
		tree:       btree.New(btreeDegree),
		owners:     btree.New(btreeDegree),
	}
	tb.order = orderFor(tb.keyType)
	return tb
}

func (tb *table) meta() tableMeta {
	return tableMeta{
		Flags:      tb.flags,
		KeyType:    tb.keyType,
		KeySize:    tb.keySize,
		RecordSize: tb.recordSize,
		RecNo:      tb.recno,
		Compare:    tb.compare,
	}
}

func (tb *table) recnoSize() int {
	switch {
	case tb.flags&RecordNumber32 != 0:
		return 4
	case tb.flags&RecordNumber64 != 0:
		return 8
	}
	return 0
}

func (tb *table) duplicates() bool {
	return tb.flags&EnableDuplicateKeys != 0
}

// ready reports whether keys can be ordered. Custom tables need a compare
// function installed on an open handle.
func (tb *table) ready() bool {
	return tb.keyType != TypeCustom || tb.custom != nil
}

// setCompare installs the compare function of a custom table and re-sorts
// the committed entries under it.
func (tb *table) setCompare(db Handle, fn CompareFunc) {
	tb.custom = fn
	if fn == nil {
		return
	}
	tb.order = func(lhs, rhs []byte) int { return fn(db, lhs, rhs) }

	tb.tree = resort(tb.tree)
	tb.owners = resort(tb.owners)
}

// resort rebuilds tr under the current order of its entries' table.
func resort(tr *btree.BTree) *btree.BTree {
	out := btree.New(btreeDegree)
	tr.Ascend(func(it btree.Item) bool {
		out.ReplaceOrInsert(it)
		return true
	})
	return out
}

func (tb *table) pivot(key []byte) *entry {
	return &entry{tbl: tb, key: key}
}

// owner returns the transaction holding a key equal to key under the
// table's order.
func (tb *table) owner(key []byte) *txn {
	if it := tb.owners.Get(tb.pivot(key)); it != nil {
		return it.(*entry).owner
	}
	return nil
}

func (tb *table) claim(t *txn, key []byte) {
	tb.owners.ReplaceOrInsert(&entry{tbl: tb, key: key, owner: t})
}

func (tb *table) unclaim(t *txn, key []byte) {
	if tb.owner(key) == t {
		tb.owners.Delete(tb.pivot(key))
	}
}

func (tb *table) conflicts(t *txn, key []byte) bool {
	owner := tb.owner(key)
	return owner != nil && owner != t
}

// get returns the duplicates of key visible to t (nil for a temporary
// transaction).
func (tb *table) get(t *txn, key []byte) ([][]byte, Status) {
	if tb.conflicts(t, key) {
		return nil, TxnConflict
	}
	if e := t.pending(tb, key); e != nil {
		if e.erased {
			return nil, KeyNotFound
		}
		return e.records, Success
	}
	if it := tb.tree.Get(tb.pivot(key)); it != nil {
		return it.(*entry).records, Success
	}
	return nil, KeyNotFound
}

// nearest returns the first entry of tr after (dir > 0) or before (dir < 0)
// from. A nil from starts at the respective end of the tree.
func (tb *table) nearest(tr *btree.BTree, from []byte, dir int, inclusive bool) *entry {
	if tr == nil {
		return nil
	}
	var found *entry
	visit := func(it btree.Item) bool {
		e := it.(*entry)
		if !inclusive && from != nil && tb.order(e.key, from) == 0 {
			return true
		}
		found = e
		return false
	}
	switch {
	case from == nil && dir > 0:
		tr.Ascend(visit)
	case from == nil:
		tr.Descend(visit)
	case dir > 0:
		tr.AscendGreaterOrEqual(tb.pivot(from), visit)
	default:
		tr.DescendLessOrEqual(tb.pivot(from), visit)
	}
	return found
}

// seek walks the view of t from key in direction dir and returns the first
// visible key. Keys owned by other transactions are skipped when skip is
// set, otherwise they end the walk with TxnConflict.
func (tb *table) seek(t *txn, from []byte, dir int, inclusive, skip bool) ([]byte, [][]byte, Status) {
	overlay := t.overlay(tb)
	for {
		committed := tb.nearest(tb.tree, from, dir, inclusive)
		staged := tb.nearest(overlay, from, dir, inclusive)

		var pick *entry
		switch {
		case committed == nil && staged == nil:
			return nil, nil, KeyNotFound
		case committed == nil:
			pick = staged
		case staged == nil:
			pick = committed
		default:
			r := tb.order(staged.key, committed.key)
			if r == 0 || (dir > 0) == (r < 0) {
				pick = staged
			} else {
				pick = committed
			}
		}

		from, inclusive = pick.key, false
		if tb.conflicts(t, pick.key) {
			if skip {
				continue
			}
			return nil, nil, TxnConflict
		}
		if pick.erased {
			continue
		}
		return pick.key, pick.records, Success
	}
}

// find resolves a lookup with the FindEQ/FindLT/FindGT combination mode.
func (tb *table) find(t *txn, key []byte, mode uint32) ([]byte, [][]byte, Status) {
	if mode == 0 {
		mode = FindEQ
	}
	if mode&FindEQ != 0 {
		records, st := tb.get(t, key)
		if st == Success {
			return key, records, Success
		}
		if st != KeyNotFound || mode == FindEQ {
			return nil, nil, st
		}
	}
	if mode&FindLT != 0 {
		k, records, st := tb.seek(t, key, -1, false, true)
		if st != KeyNotFound || mode&FindGT == 0 {
			return k, records, st
		}
	}
	return tb.seek(t, key, 1, false, true)
}

// apply writes committed state. A nil records slice removes the key.
func (tb *table) apply(key []byte, records [][]byte) {
	if records == nil {
		tb.tree.Delete(tb.pivot(key))
		return
	}
	tb.tree.ReplaceOrInsert(&entry{tbl: tb, key: key, records: records})
}

// count returns the number of visible keys, or duplicates when dups is set.
func (tb *table) count(t *txn, dups bool) uint64 {
	var n uint64
	var from []byte
	for {
		k, records, st := tb.seek(t, from, 1, false, true)
		if st != Success {
			return n
		}
		if dups {
			n += uint64(len(records))
		} else {
			n++
		}
		from = k
	}
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
