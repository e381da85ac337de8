package ups

import "github.com/cruppstahl/ups/internal/engine"

// Cursor is a position inside a Database, optionally bound to a
// Transaction. A new cursor is nil: it points to no item until a move, find
// or insert positions it.
type Cursor struct {
	noCopy noCopy

	db  *Database
	txn *Transaction
	ref *handleRef
}

func newCursor(db *Database, txn *Transaction) *Cursor {
	return &Cursor{
		db:  db,
		txn: txn,
		ref: newHandleRef(db.api(), "cursor", releaseCursor),
	}
}

// handle returns the engine handle. Callers hold c.db.mu.
func (c *Cursor) handle() (engine.Handle, error) {
	h := c.ref.get()
	if h == 0 {
		return 0, errClosed
	}
	return h, nil
}

// lock takes the database mutex and returns the cursor handle. On error the
// mutex is not held.
func (c *Cursor) lock() (engine.Handle, error) {
	c.db.mu.Lock()
	h, err := c.handle()
	if err != nil {
		c.db.mu.Unlock()
		return 0, err
	}
	return h, nil
}

func (c *Cursor) unlock() {
	c.db.mu.Unlock()
}

// Database returns the database the cursor belongs to.
func (c *Cursor) Database() *Database {
	return c.db
}

// Transaction returns the bound transaction, or nil.
func (c *Cursor) Transaction() *Transaction {
	return c.txn
}

// Move moves the cursor and returns the key and record it lands on. With
// no direction flag it returns the current item. Next and Previous on a
// nil cursor start at the first and last item. Moving past either end
// fails with ErrKeyNotFound and leaves the cursor in place.
func (c *Cursor) Move(flags MoveFlag) ([]byte, []byte, error) {
	if err := flags.Validate(); err != nil {
		return nil, nil, err
	}
	h, err := c.lock()
	if err != nil {
		return nil, nil, err
	}
	defer c.unlock()

	var k engine.Key
	var r engine.Record
	if err := check(c.db.api().CursorMove(h, &k, &r, uint32(flags))); err != nil {
		return nil, nil, err
	}
	return copyKey(&k), copyRecord(&r), nil
}

func (c *Cursor) MoveFirst() ([]byte, []byte, error) {
	return c.Move(MoveFirst)
}

func (c *Cursor) MoveLast() ([]byte, []byte, error) {
	return c.Move(MoveLast)
}

func (c *Cursor) MoveNext() ([]byte, []byte, error) {
	return c.Move(MoveNext)
}

func (c *Cursor) MovePrevious() ([]byte, []byte, error) {
	return c.Move(MovePrevious)
}

// TryMove is like Move but reports the end of the database as ok == false
// instead of an error.
func (c *Cursor) TryMove(flags MoveFlag) (key, record []byte, ok bool, err error) {
	key, record, err = c.Move(flags)
	if IsNotFound(err) {
		return nil, nil, false, nil
	}
	return key, record, err == nil, err
}

// Find positions the cursor on key, on its first duplicate, and returns the
// key and record it lands on. Approximate flags may land on a neighbouring
// key, which is the key returned. On failure the cursor does not move.
func (c *Cursor) Find(key []byte, flags FindFlag) ([]byte, []byte, error) {
	if err := flags.Validate(); err != nil {
		return nil, nil, err
	}
	k, err := marshalKey(key)
	if err != nil {
		return nil, nil, err
	}
	h, err := c.lock()
	if err != nil {
		return nil, nil, err
	}
	defer c.unlock()

	var r engine.Record
	if err := check(c.db.api().CursorFind(h, &k, &r, uint32(flags))); err != nil {
		return nil, nil, err
	}
	return copyKey(&k), copyRecord(&r), nil
}

// TryFind is like Find but reports a missing key as ok == false.
func (c *Cursor) TryFind(key []byte, flags FindFlag) (found, record []byte, ok bool, err error) {
	found, record, err = c.Find(key, flags)
	if IsNotFound(err) {
		return nil, nil, false, nil
	}
	return found, record, err == nil, err
}

// Insert stores record under key and positions the cursor on it. Duplicate
// position flags are relative to the current duplicate.
func (c *Cursor) Insert(key, record []byte, flags InsertFlag) error {
	if err := flags.Validate(); err != nil {
		return err
	}
	k, err := marshalKey(key)
	if err != nil {
		return err
	}
	r, err := marshalRecord(record)
	if err != nil {
		return err
	}
	h, err := c.lock()
	if err != nil {
		return err
	}
	defer c.unlock()
	return check(c.db.api().CursorInsert(h, &k, &r, uint32(flags)))
}

// Overwrite replaces the record of the current item. The key and the
// duplicate order are unchanged.
func (c *Cursor) Overwrite(record []byte) error {
	r, err := marshalRecord(record)
	if err != nil {
		return err
	}
	h, err := c.lock()
	if err != nil {
		return err
	}
	defer c.unlock()
	return check(c.db.api().CursorOverwrite(h, &r, 0))
}

// Erase removes the current item and leaves the cursor nil.
func (c *Cursor) Erase() error {
	h, err := c.lock()
	if err != nil {
		return err
	}
	defer c.unlock()
	return check(c.db.api().CursorErase(h, 0))
}

// Key returns a copy of the current key.
func (c *Cursor) Key() ([]byte, error) {
	h, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer c.unlock()

	var k engine.Key
	if err := check(c.db.api().CursorMove(h, &k, nil, 0)); err != nil {
		return nil, err
	}
	return copyKey(&k), nil
}

// Record returns a copy of the current record.
func (c *Cursor) Record() ([]byte, error) {
	h, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer c.unlock()

	var r engine.Record
	if err := check(c.db.api().CursorMove(h, nil, &r, 0)); err != nil {
		return nil, err
	}
	return copyRecord(&r), nil
}

// DuplicateCount returns the number of duplicates of the current key; 1
// for a key without duplicates.
func (c *Cursor) DuplicateCount() (uint32, error) {
	h, err := c.lock()
	if err != nil {
		return 0, err
	}
	defer c.unlock()

	n, st := c.db.api().CursorGetDuplicateCount(h, 0)
	if err := check(st); err != nil {
		return 0, err
	}
	return n, nil
}

// DuplicatePosition returns the index of the current duplicate.
func (c *Cursor) DuplicatePosition() (uint32, error) {
	h, err := c.lock()
	if err != nil {
		return 0, err
	}
	defer c.unlock()

	n, st := c.db.api().CursorGetDuplicatePosition(h)
	if err := check(st); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *Cursor) RecordSize() (uint64, error) {
	h, err := c.lock()
	if err != nil {
		return 0, err
	}
	defer c.unlock()

	n, st := c.db.api().CursorGetRecordSize(h)
	if err := check(st); err != nil {
		return 0, err
	}
	return n, nil
}

// Clone returns a new cursor on the same item and transaction. The clone
// moves independently and must be closed separately.
func (c *Cursor) Clone() (*Cursor, error) {
	h, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer c.unlock()

	ch, st := c.db.api().CursorClone(h)
	if err := check(st); err != nil {
		return nil, err
	}
	return c.db.trackCursor(ch, c.txn), nil
}

// Close closes the cursor. Closing twice is a no-op; every other call on a
// closed cursor fails with ErrClosed.
func (c *Cursor) Close() error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()

	err := c.release()
	c.db.removeCursor(c)
	return err
}

// release closes the engine handle. Callers hold c.db.mu.
func (c *Cursor) release() error {
	h := c.ref.take()
	if h == 0 {
		return nil
	}
	return check(c.db.api().CursorClose(h))
}
