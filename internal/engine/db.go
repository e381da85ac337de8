package engine

type database struct {
	id      Handle
	env     *environment
	tbl     *table
	flags   uint32
	cursors map[Handle]*cursor
	keys    arena
	recs    arena
}

func (d *database) readOnly(t *txn) bool {
	return d.env.readOnly() || d.flags&ReadOnly != 0 || t.readOnly()
}

// access resolves db and txn handles for a data call.
func (l *Local) access(db, th Handle) (*database, *txn, Status) {
	d, st := l.db(db)
	if st != Success {
		return nil, nil, st
	}
	t, st := l.txnFor(d, th)
	if st != Success {
		return nil, nil, st
	}
	if !d.tbl.ready() {
		return nil, nil, l.fail(NotReady, "database %d has no compare function", d.tbl.name)
	}
	return d, t, Success
}

// checkKey validates a key against the table's key size and type.
func (l *Local) checkKey(tb *table, key []byte) Status {
	if tb.keySize != uint16(ParamKeySizeUnlimited) && len(key) != int(tb.keySize) {
		return l.fail(InvKeySize, "key size %d, database requires %d", len(key), tb.keySize)
	}
	return Success
}

func (l *Local) checkRecord(tb *table, rec []byte) Status {
	if tb.recordSize != uint32(ParamRecordSizeUnlimited) && uint64(len(rec)) != uint64(tb.recordSize) {
		return l.fail(InvRecordSize, "record size %d, database requires %d", len(rec), tb.recordSize)
	}
	return Success
}

func (l *Local) DBGetParameters(db Handle, params []Parameter) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, st := l.db(db)
	if st != Success {
		return st
	}
	tb := d.tbl
	for i := range params {
		switch params[i].Name {
		case 0:
			return Success
		case ParamKeyType:
			params[i].Value = uint64(tb.keyType)
		case ParamKeySize:
			params[i].Value = uint64(tb.keySize)
		case ParamRecordSize:
			params[i].Value = uint64(tb.recordSize)
		case ParamFlags:
			params[i].Value = uint64(tb.flags | d.flags)
		case ParamDatabaseName:
			params[i].Value = uint64(tb.name)
		case ParamMaxKeysPerPage:
			params[i].Value = d.env.pageSize / uint64(max(tb.keySize&0x7fff, 8)+8)
		case ParamCustomCompareName:
			params[i].Value = 0
			if tb.compare != "" {
				params[i].Value = CompareNameID(tb.compare)
			}
		default:
			return l.fail(InvParameter, "unknown database parameter 0x%x", params[i].Name)
		}
	}
	if len(params) > 0 {
		return l.fail(InvParameter, "unterminated parameter list")
	}
	return Success
}

// DBSetCompareFunc installs the ordering of a TypeCustom database. The
// function is called with the engine lock held and must not call back into
// the engine.
func (l *Local) DBSetCompareFunc(db Handle, fn CompareFunc) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, st := l.db(db)
	if st != Success {
		return st
	}
	if d.tbl.keyType != TypeCustom {
		return l.fail(InvParameter, "database %d does not use custom keys", d.tbl.name)
	}
	if fn == nil {
		return l.fail(InvParameter, "nil compare function")
	}
	d.tbl.setCompare(d.id, fn)
	for _, t := range d.env.txns {
		if tr := t.overlays[d.tbl]; tr != nil {
			t.overlays[d.tbl] = resort(tr)
		}
	}
	return Success
}

func (l *Local) DBFind(db, th Handle, key *Key, rec *Record, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, t, st := l.access(db, th)
	if st != Success {
		return st
	}
	return d.env.metrics.observe(d.env.metrics.finds, l.find(d, t, key, rec, flags, &d.keys, &d.recs))
}

func (l *Local) find(d *database, t *txn, key *Key, rec *Record, flags uint32, keys, recs *arena) Status {
	if flags&^(findMask|Partial) != 0 {
		return l.fail(InvParameter, "invalid find flags 0x%x", flags)
	}
	k, st := keyBytes(key)
	if st != Success {
		return l.fail(st, "invalid key")
	}
	if st := l.checkKey(d.tbl, k); st != Success {
		return st
	}
	matched, records, st := d.tbl.find(t, k, flags&findMask)
	if st != Success {
		return st
	}
	if flags&(FindLT|FindGT) != 0 {
		putKey(key, keys, matched)
	}
	putRecord(rec, recs, records[0], flags)
	return Success
}

func (l *Local) DBInsert(db, th Handle, key *Key, rec *Record, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, t, st := l.access(db, th)
	if st != Success {
		return st
	}
	if flags&duplicatePositionMask != 0 {
		return l.fail(InvParameter, "duplicate position flags need a cursor")
	}
	_, _, st = l.insert(d, t, key, rec, flags, nil)
	return d.env.metrics.observe(d.env.metrics.inserts, st)
}

// insert is shared by DBInsert, CursorInsert and bulk operations. at is the
// inserting cursor, if any; the returned key and duplicate index locate the
// new item.
func (l *Local) insert(d *database, t *txn, key *Key, rec *Record, flags uint32, at *cursor) ([]byte, int, Status) {
	tb := d.tbl
	if d.readOnly(t) {
		return nil, 0, l.fail(WriteProtected, "database %d is read-only", tb.name)
	}
	if flags&^(Overwrite|Duplicate|duplicatePositionMask|Partial|HintAppend|HintPrepend) != 0 {
		return nil, 0, l.fail(InvParameter, "invalid insert flags 0x%x", flags)
	}
	position := flags & duplicatePositionMask
	if position&(position-1) != 0 {
		return nil, 0, l.fail(InvParameter, "more than one duplicate position flag")
	}
	if position != 0 {
		flags |= Duplicate
	}
	if flags&Overwrite != 0 && flags&Duplicate != 0 {
		return nil, 0, l.fail(InvParameter, "Overwrite and Duplicate are exclusive")
	}
	if flags&Duplicate != 0 && !tb.duplicates() {
		return nil, 0, l.fail(InvParameter, "database %d does not allow duplicates", tb.name)
	}
	if flags&Partial != 0 && flags&Duplicate != 0 {
		return nil, 0, l.fail(InvParameter, "partial writes cannot create duplicates")
	}
	data, st := recordBytes(rec)
	if st != Success {
		return nil, 0, l.fail(st, "invalid record")
	}

	var k []byte
	if tb.recnoSize() != 0 {
		k, st = l.recnoKey(tb, key, flags)
	} else {
		k, st = keyBytes(key)
		if st == Success {
			st = l.checkKey(tb, k)
		}
	}
	if st != Success {
		return nil, 0, st
	}

	existing, st := tb.get(t, k)
	switch st {
	case Success, KeyNotFound:
	default:
		return nil, 0, st
	}
	found := st == Success
	if found && flags&(Overwrite|Duplicate) == 0 {
		return nil, 0, DuplicateKey
	}

	if flags&Partial != 0 {
		var base []byte
		if found {
			base = existing[0]
		}
		data = writePartial(base, data, rec.PartialOffset, rec.PartialSize)
	}
	if st := l.checkRecord(tb, data); st != Success {
		return nil, 0, st
	}
	data = cloneBytes(data)

	// cursor's duplicate index, when it sits on this key
	cur := -1
	if at != nil && at.key != nil && tb.order(at.key, k) == 0 {
		cur = at.dup
	}

	var records [][]byte
	idx := 0
	switch {
	case !found:
		records = [][]byte{data}
	case flags&Overwrite != 0:
		if cur >= 0 && cur < len(existing) {
			idx = cur
		}
		records = append([][]byte(nil), existing...)
		records[idx] = data
	default:
		switch position {
		case DuplicateInsertFirst:
			idx = 0
		case DuplicateInsertBefore:
			idx = max(cur, 0)
		case DuplicateInsertAfter:
			if cur >= 0 {
				idx = cur + 1
			} else {
				idx = len(existing)
			}
		default:
			idx = len(existing)
		}
		idx = min(idx, len(existing))
		records = make([][]byte, 0, len(existing)+1)
		records = append(records, existing[:idx]...)
		records = append(records, data)
		records = append(records, existing[idx:]...)
	}

	k = cloneBytes(k)
	if st := l.write(d, t, k, records); st != Success {
		return nil, 0, st
	}
	if found && flags&Duplicate != 0 {
		d.shift(t, k, idx, 1, at)
	}
	if tb.recnoSize() != 0 {
		putKey(key, &d.keys, k)
	}
	return k, idx, Success
}

// recnoKey returns the key of a record number insert: a new number, or the
// caller's key when overwriting.
func (l *Local) recnoKey(tb *table, key *Key, flags uint32) ([]byte, Status) {
	n := tb.recnoSize()
	if flags&Duplicate != 0 {
		return nil, l.fail(InvParameter, "record number databases cannot hold duplicates")
	}
	if flags&Overwrite != 0 {
		k, st := keyBytes(key)
		if st != Success || len(k) != n {
			return nil, l.fail(InvKeySize, "record number keys are %d bytes", n)
		}
		return k, Success
	}
	if key == nil {
		return nil, l.fail(InvParameter, "record number insert without key structure")
	}
	if n == 4 && tb.recno >= 0xffffffff {
		return nil, l.fail(LimitsReached, "record numbers exhausted")
	}
	tb.recno++
	k := make([]byte, n)
	if n == 4 {
		putRecno32(k, uint32(tb.recno))
	} else {
		putRecno64(k, tb.recno)
	}
	return k, Success
}

func writePartial(base, data []byte, off, size uint32) []byte {
	size = min(size, uint32(len(data)))
	end := int(off) + int(size)
	out := make([]byte, max(len(base), end))
	copy(out, base)
	copy(out[off:end], data[:size])
	return out
}

// write stages records for key in t, or persists them at once for a
// temporary transaction. nil records erase the key.
func (l *Local) write(d *database, t *txn, key []byte, records [][]byte) Status {
	if t != nil {
		t.stage(d.tbl, key, records)
		return Success
	}
	if st := d.env.persist([]change{{tbl: d.tbl, key: key, records: records}}); st != Success {
		return l.fail(st, "write database %d", d.tbl.name)
	}
	return Success
}

// shift moves cursors that observe the write of t and sit on key at or
// after duplicate index from by delta. except is left untouched.
func (d *database) shift(t *txn, key []byte, from, delta int, except *cursor) {
	for _, c := range d.cursors {
		if c == except || !c.observes(t) || c.key == nil || d.tbl.order(c.key, key) != 0 {
			continue
		}
		if c.dup >= from {
			c.dup += delta
		}
	}
}

func (l *Local) DBErase(db, th Handle, key *Key, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, t, st := l.access(db, th)
	if st != Success {
		return st
	}
	return d.env.metrics.observe(d.env.metrics.erases, l.erase(d, t, key, flags))
}

func (l *Local) erase(d *database, t *txn, key *Key, flags uint32) Status {
	if d.readOnly(t) {
		return l.fail(WriteProtected, "database %d is read-only", d.tbl.name)
	}
	k, st := keyBytes(key)
	if st != Success {
		return l.fail(st, "invalid key")
	}
	if st := l.checkKey(d.tbl, k); st != Success {
		return st
	}
	if _, st := d.tbl.get(t, k); st != Success {
		return st
	}
	k = cloneBytes(k)
	if st := l.write(d, t, k, nil); st != Success {
		return st
	}
	for _, c := range d.cursors {
		if c.observes(t) && c.key != nil && d.tbl.order(c.key, k) == 0 {
			c.key = nil
		}
	}
	return Success
}

func (l *Local) DBCount(db, th Handle, flags uint32) (uint64, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, t, st := l.access(db, th)
	if st != Success {
		return 0, st
	}
	if flags&^SkipDuplicates != 0 {
		return 0, l.fail(InvParameter, "invalid count flags 0x%x", flags)
	}
	return d.tbl.count(t, flags&SkipDuplicates == 0), Success
}

// DBBulkOperations runs ops in order. Each op stores its own status in
// Result; results of find operations use memory private to the op.
func (l *Local) DBBulkOperations(db, th Handle, ops []Operation, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, t, st := l.access(db, th)
	if st != Success {
		return st
	}
	if flags != 0 {
		return l.fail(InvParameter, "invalid bulk flags 0x%x", flags)
	}
	m := d.env.metrics
	for i := range ops {
		op := &ops[i]
		switch op.Type {
		case OpInsert:
			if op.Flags&duplicatePositionMask != 0 {
				op.Result = l.fail(InvParameter, "duplicate position flags need a cursor")
				continue
			}
			_, _, op.Result = l.insert(d, t, &op.Key, &op.Record, op.Flags, nil)
			m.observe(m.inserts, op.Result)
		case OpErase:
			op.Result = m.observe(m.erases, l.erase(d, t, &op.Key, op.Flags))
		case OpFind:
			op.Result = m.observe(m.finds, l.find(d, t, &op.Key, &op.Record, op.Flags, &arena{}, &arena{}))
		default:
			op.Result = l.fail(InvParameter, "unknown operation type %d", op.Type)
		}
	}
	return Success
}

// DBClose closes db. Open cursors are closed with AutoCleanup, otherwise
// the call fails with CursorStillOpen.
func (l *Local) DBClose(db Handle, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, st := l.db(db)
	if st != Success {
		return st
	}
	if len(d.cursors) > 0 {
		if flags&AutoCleanup == 0 {
			return l.fail(CursorStillOpen, "database %d has %d open cursors", d.tbl.name, len(d.cursors))
		}
		for _, c := range d.cursors {
			l.closeCursor(c)
		}
	}
	l.closeDB(d)
	return Success
}

func (l *Local) closeDB(d *database) {
	d.tbl.db = nil
	if d.tbl.keyType == TypeCustom {
		d.tbl.custom = nil
	}
	delete(d.env.dbs, d.id)
	l.unregister(d.id)
	d.env.gauges()
}
