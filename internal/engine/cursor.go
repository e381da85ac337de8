package engine

// cursor is a position inside one database. A nil key is the nil state.
type cursor struct {
	id   Handle
	db   *database
	txn  *txn
	key  []byte
	dup  int
	keys arena
	recs arena
}

func (l *Local) CursorCreate(db, th Handle, flags uint32) (Handle, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, t, st := l.access(db, th)
	if st != Success {
		return 0, st
	}
	if flags != 0 {
		return 0, l.fail(InvParameter, "invalid cursor flags 0x%x", flags)
	}
	return l.track(&cursor{db: d, txn: t}), Success
}

// CursorClone creates a cursor on the same database and transaction,
// positioned where src is.
func (l *Local) CursorClone(src Handle) (Handle, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, st := l.cursor(src)
	if st != Success {
		return 0, st
	}
	return l.track(&cursor{db: c.db, txn: c.txn, key: c.key, dup: c.dup}), Success
}

func (l *Local) track(c *cursor) Handle {
	c.id = l.register(c)
	c.db.cursors[c.id] = c
	if c.txn != nil {
		c.txn.cursors++
	}
	c.db.env.gauges()
	return c.id
}

func (l *Local) closeCursor(c *cursor) {
	delete(c.db.cursors, c.id)
	if c.txn != nil {
		c.txn.cursors--
	}
	l.unregister(c.id)
	c.db.env.gauges()
}

func (l *Local) CursorClose(h Handle) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, st := l.cursor(h)
	if st != Success {
		return st
	}
	l.closeCursor(c)
	return Success
}

// observes reports whether a write made in t moves c at once. Writes of
// the temporary transaction are committed immediately and move every
// cursor. Staged writes move only the cursors of their own transaction;
// other cursors catch up through current once the write is committed.
func (c *cursor) observes(t *txn) bool {
	return t == nil || c.txn == t
}

// current returns the duplicates of the cursor's key. A cursor whose key
// has vanished falls back to the nil state.
func (l *Local) current(c *cursor) ([][]byte, Status) {
	if c.key == nil {
		return nil, CursorIsNil
	}
	records, st := c.db.tbl.get(c.txn, c.key)
	switch st {
	case Success:
	case KeyNotFound:
		c.key = nil
		return nil, CursorIsNil
	default:
		return nil, st
	}
	if c.dup >= len(records) {
		c.dup = len(records) - 1
	}
	return records, Success
}

func (l *Local) CursorMove(h Handle, key *Key, rec *Record, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, st := l.cursor(h)
	if st != Success {
		return st
	}
	m := c.db.env.metrics
	if flags&^(cursorDirectionMask|SkipDuplicates|OnlyDuplicates) != 0 {
		return m.observe(m.moves, l.fail(InvParameter, "invalid move flags 0x%x", flags))
	}
	dir := flags & cursorDirectionMask
	if dir&(dir-1) != 0 {
		return m.observe(m.moves, l.fail(InvParameter, "more than one move direction"))
	}
	if flags&SkipDuplicates != 0 && flags&OnlyDuplicates != 0 {
		return m.observe(m.moves, l.fail(InvParameter, "SkipDuplicates and OnlyDuplicates are exclusive"))
	}

	k, records, dup, st := l.move(c, dir, flags)
	if st != Success {
		return m.observe(m.moves, st)
	}
	c.key, c.dup = k, dup
	putKey(key, &c.keys, k)
	putRecord(rec, &c.recs, records[dup], 0)
	return m.observe(m.moves, Success)
}

// move computes the position reached from c in direction dir without
// changing c.
func (l *Local) move(c *cursor, dir, flags uint32) ([]byte, [][]byte, int, Status) {
	tb, t := c.db.tbl, c.txn
	skipDups := flags&SkipDuplicates != 0
	onlyDups := flags&OnlyDuplicates != 0

	if c.key == nil {
		switch dir {
		case CursorNext:
			dir = CursorFirst
		case CursorPrevious:
			dir = CursorLast
		}
	}

	switch dir {
	case 0:
		records, st := l.current(c)
		return c.key, records, c.dup, st
	case CursorFirst:
		k, records, st := tb.seek(t, nil, 1, true, false)
		return k, records, 0, st
	case CursorLast:
		k, records, st := tb.seek(t, nil, -1, true, false)
		if st != Success || skipDups {
			return k, records, 0, st
		}
		return k, records, len(records) - 1, st
	case CursorNext:
		if !skipDups {
			records, st := tb.get(t, c.key)
			if st == Success && c.dup+1 < len(records) {
				return c.key, records, c.dup + 1, Success
			}
		}
		if onlyDups {
			return nil, nil, 0, KeyNotFound
		}
		k, records, st := tb.seek(t, c.key, 1, false, true)
		return k, records, 0, st
	default:
		if !skipDups {
			records, st := tb.get(t, c.key)
			if st == Success && c.dup > 0 {
				return c.key, records, min(c.dup, len(records)) - 1, Success
			}
		}
		if onlyDups {
			return nil, nil, 0, KeyNotFound
		}
		k, records, st := tb.seek(t, c.key, -1, false, true)
		if st != Success || skipDups {
			return k, records, 0, st
		}
		return k, records, len(records) - 1, st
	}
}

// CursorFind positions the cursor on the first duplicate of the matching
// key. Approximate matches write the matched key to key.
func (l *Local) CursorFind(h Handle, key *Key, rec *Record, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, st := l.cursor(h)
	if st != Success {
		return st
	}
	m := c.db.env.metrics
	if flags&^(findMask|Partial) != 0 {
		return m.observe(m.finds, l.fail(InvParameter, "invalid find flags 0x%x", flags))
	}
	k, st := keyBytes(key)
	if st != Success {
		return m.observe(m.finds, l.fail(st, "invalid key"))
	}
	if st := l.checkKey(c.db.tbl, k); st != Success {
		return m.observe(m.finds, st)
	}
	matched, records, st := c.db.tbl.find(c.txn, k, flags&findMask)
	if st != Success {
		return m.observe(m.finds, st)
	}
	c.key, c.dup = cloneBytes(matched), 0
	if flags&(FindLT|FindGT) != 0 {
		putKey(key, &c.keys, c.key)
	}
	putRecord(rec, &c.recs, records[0], flags)
	return m.observe(m.finds, Success)
}

// CursorInsert inserts through the cursor and positions it on the new item.
// Duplicate position flags are relative to the current duplicate.
func (l *Local) CursorInsert(h Handle, key *Key, rec *Record, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, st := l.cursor(h)
	if st != Success {
		return st
	}
	m := c.db.env.metrics
	k, idx, st := l.insert(c.db, c.txn, key, rec, flags, c)
	if st != Success {
		return m.observe(m.inserts, st)
	}
	c.key, c.dup = k, idx
	return m.observe(m.inserts, Success)
}

// CursorOverwrite replaces the record of the current duplicate.
func (l *Local) CursorOverwrite(h Handle, rec *Record, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, st := l.cursor(h)
	if st != Success {
		return st
	}
	d := c.db
	if flags&^Partial != 0 {
		return l.fail(InvParameter, "invalid overwrite flags 0x%x", flags)
	}
	if d.readOnly(c.txn) {
		return l.fail(WriteProtected, "database %d is read-only", d.tbl.name)
	}
	records, st := l.current(c)
	if st != Success {
		return st
	}
	data, st := recordBytes(rec)
	if st != Success {
		return l.fail(st, "invalid record")
	}
	if flags&Partial != 0 {
		data = writePartial(records[c.dup], data, rec.PartialOffset, rec.PartialSize)
	}
	if st := l.checkRecord(d.tbl, data); st != Success {
		return st
	}
	updated := append([][]byte(nil), records...)
	updated[c.dup] = cloneBytes(data)
	return l.write(d, c.txn, c.key, updated)
}

// CursorErase removes the current duplicate and moves the cursor to the nil
// state. Cursors of the same transaction on that duplicate become nil as
// well.
func (l *Local) CursorErase(h Handle, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, st := l.cursor(h)
	if st != Success {
		return st
	}
	d := c.db
	m := d.env.metrics
	if flags != 0 {
		return m.observe(m.erases, l.fail(InvParameter, "invalid erase flags 0x%x", flags))
	}
	if d.readOnly(c.txn) {
		return m.observe(m.erases, l.fail(WriteProtected, "database %d is read-only", d.tbl.name))
	}
	records, st := l.current(c)
	if st != Success {
		return m.observe(m.erases, st)
	}

	key, dup := c.key, c.dup
	var updated [][]byte
	if len(records) > 1 {
		updated = make([][]byte, 0, len(records)-1)
		updated = append(updated, records[:dup]...)
		updated = append(updated, records[dup+1:]...)
	}
	if st := l.write(d, c.txn, key, updated); st != Success {
		return m.observe(m.erases, st)
	}
	for _, o := range d.cursors {
		if !o.observes(c.txn) || o.key == nil || d.tbl.order(o.key, key) != 0 {
			continue
		}
		switch {
		case updated == nil || o.dup == dup:
			o.key = nil
		case o.dup > dup:
			o.dup--
		}
	}
	c.key = nil
	return m.observe(m.erases, Success)
}

func (l *Local) CursorGetDuplicateCount(h Handle, flags uint32) (uint32, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, st := l.cursor(h)
	if st != Success {
		return 0, st
	}
	if flags != 0 {
		return 0, l.fail(InvParameter, "invalid flags 0x%x", flags)
	}
	records, st := l.current(c)
	if st != Success {
		return 0, st
	}
	return uint32(len(records)), Success
}

func (l *Local) CursorGetDuplicatePosition(h Handle) (uint32, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, st := l.cursor(h)
	if st != Success {
		return 0, st
	}
	if _, st := l.current(c); st != Success {
		return 0, st
	}
	return uint32(c.dup), Success
}

func (l *Local) CursorGetRecordSize(h Handle) (uint64, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, st := l.cursor(h)
	if st != Success {
		return 0, st
	}
	records, st := l.current(c)
	if st != Success {
		return 0, st
	}
	return uint64(len(records[c.dup])), Success
}
