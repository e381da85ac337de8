package engine

import (
	"slices"

	"github.com/google/btree"
)

// txn stages writes in per-table overlays until commit. A nil *txn stands
// for the temporary transaction of a call made without a transaction
// handle; its methods are safe to call on nil.
type txn struct {
	id       Handle
	env      *environment
	name     string
	flags    uint32
	overlays map[*table]*btree.BTree
	cursors  int
}

func (t *txn) readOnly() bool {
	return t != nil && t.flags&TxnReadOnly != 0
}

func (t *txn) overlay(tb *table) *btree.BTree {
	if t == nil {
		return nil
	}
	return t.overlays[tb]
}

func (t *txn) pending(tb *table, key []byte) *entry {
	tr := t.overlay(tb)
	if tr == nil {
		return nil
	}
	if it := tr.Get(tb.pivot(key)); it != nil {
		return it.(*entry)
	}
	return nil
}

// stage records a write and takes ownership of key.
func (t *txn) stage(tb *table, key []byte, records [][]byte) {
	tr := t.overlays[tb]
	if tr == nil {
		tr = btree.New(btreeDegree)
		t.overlays[tb] = tr
	}
	tr.ReplaceOrInsert(&entry{tbl: tb, key: key, records: records, erased: records == nil})
	tb.claim(t, key)
}

// changes lists the staged writes ordered by table name, then key.
func (t *txn) changes() []change {
	tables := make([]*table, 0, len(t.overlays))
	for tb := range t.overlays {
		tables = append(tables, tb)
	}
	slices.SortFunc(tables, func(a, b *table) int { return int(a.name) - int(b.name) })

	var out []change
	for _, tb := range tables {
		t.overlays[tb].Ascend(func(it btree.Item) bool {
			e := it.(*entry)
			out = append(out, change{tbl: tb, key: e.key, records: e.records})
			return true
		})
	}
	return out
}

// release drops key ownership and the staged writes.
func (t *txn) release() {
	for tb, tr := range t.overlays {
		tr.Ascend(func(it btree.Item) bool {
			tb.unclaim(t, it.(*entry).key)
			return true
		})
	}
	t.overlays = nil
}

// touches reports whether t has staged writes on tb.
func (t *txn) touches(tb *table) bool {
	tr := t.overlays[tb]
	return tr != nil && tr.Len() > 0
}

// change is one key-level write headed for committed state.
type change struct {
	tbl     *table
	key     []byte
	records [][]byte // nil erases the key
}

// TxnBegin starts a transaction on env. The environment must have been
// created or opened with EnableTransactions.
func (l *Local) TxnBegin(env Handle, name string, flags uint32) (Handle, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, st := l.env(env)
	if st != Success {
		return 0, st
	}
	if !e.transactional() {
		return 0, l.fail(InvParameter, "transactions are not enabled")
	}
	if flags&^(TxnReadOnly|TxnTemporary) != 0 {
		return 0, l.fail(InvParameter, "invalid transaction flags 0x%x", flags)
	}
	if e.readOnly() {
		flags |= TxnReadOnly
	}
	t := &txn{
		env:      e,
		name:     name,
		flags:    flags,
		overlays: make(map[*table]*btree.BTree),
	}
	t.id = l.register(t)
	e.txns[t.id] = t
	e.gauges()
	return t.id, Success
}

func (l *Local) activeTxn(h Handle) (*txn, Status) {
	t, ok := lookup[*txn](l, h)
	if !ok {
		return nil, l.fail(InvParameter, "invalid transaction handle %d", h)
	}
	if t.cursors > 0 {
		return nil, l.fail(CursorStillOpen, "transaction has %d open cursors", t.cursors)
	}
	return t, Success
}

func (l *Local) TxnCommit(th Handle, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, st := l.activeTxn(th)
	if st != Success {
		return st
	}
	return l.commit(t)
}

func (l *Local) TxnAbort(th Handle, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	t, st := l.activeTxn(th)
	if st != Success {
		return st
	}
	l.abort(t)
	return Success
}

// commit persists the staged writes of t and ends it. On failure t stays
// active with its writes staged.
func (l *Local) commit(t *txn) Status {
	e := t.env
	if st := e.persist(t.changes()); st != Success {
		return l.fail(st, "commit transaction %d", t.id)
	}
	if e.flags&FlushWhenCommitted != 0 && e.store != nil {
		if err := e.store.sync(); err != nil {
			l.fail(storeStatus(err), "flush after commit: %v", err)
		}
	}
	e.metrics.commits.Inc(1)
	l.end(t)
	return Success
}

func (l *Local) abort(t *txn) {
	t.env.metrics.aborts.Inc(1)
	l.end(t)
}

func (l *Local) end(t *txn) {
	t.release()
	delete(t.env.txns, t.id)
	l.unregister(t.id)
	t.env.gauges()
}
