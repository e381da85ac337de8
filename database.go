package ups

import (
	"encoding/binary"
	"errors"
	"os"
	"sync"

	"github.com/cruppstahl/ups/internal/engine"
)

// DefaultDatabaseName is the name used by the standalone CreateDatabase and
// OpenDatabase functions.
const DefaultDatabaseName uint16 = 1

// Database is an ordered key/record store inside an Environment. It tracks
// the cursors created on it and closes them before closing itself.
//
// All Database and Cursor calls are serialized on the database's mutex.
type Database struct {
	noCopy noCopy

	env     *Environment
	name    uint16
	ref     *handleRef
	mu      sync.Mutex
	cursors []*Cursor

	// owns env; closing the database closes the environment
	standalone bool
}

func newDatabase(env *Environment, name uint16) *Database {
	return &Database{
		env:  env,
		name: name,
		ref:  newHandleRef(env.api, "database", releaseDatabase),
	}
}

func (d *Database) api() engine.API {
	return d.env.api
}

// handle returns the engine handle. Callers hold d.mu.
func (d *Database) handle() (engine.Handle, error) {
	h := d.ref.get()
	if h == 0 {
		return 0, errClosed
	}
	return h, nil
}

// handles resolves the database and the optional transaction handle.
// Callers hold d.mu.
func (d *Database) handles(txn *Transaction) (engine.Handle, engine.Handle, error) {
	h, err := d.handle()
	if err != nil {
		return 0, 0, err
	}
	th, err := txn.handle()
	if err != nil {
		return 0, 0, err
	}
	return h, th, nil
}

// Environment returns the environment the database belongs to.
func (d *Database) Environment() *Environment {
	return d.env
}

// Name returns the database name.
func (d *Database) Name() uint16 {
	return d.name
}

// Find returns the record of key, or the first duplicate. txn may be nil.
func (d *Database) Find(txn *Transaction, key []byte) ([]byte, error) {
	_, rec, err := d.find(txn, key, 0, nil)
	return rec, err
}

// TryFind is like Find but returns nil, nil when the key does not exist.
func (d *Database) TryFind(txn *Transaction, key []byte) ([]byte, error) {
	rec, err := d.Find(txn, key)
	if IsNotFound(err) {
		return nil, nil
	}
	return rec, err
}

// FindKey looks up key with exact or approximate matching and returns the
// matched key and its record. The returned key is always a new slice.
func (d *Database) FindKey(txn *Transaction, key []byte, flags FindFlag) ([]byte, []byte, error) {
	if err := flags.Validate(); err != nil {
		return nil, nil, err
	}
	return d.find(txn, key, uint32(flags), nil)
}

// FindPartial returns size bytes of the record of key starting at offset.
func (d *Database) FindPartial(txn *Transaction, key []byte, offset, size uint32) ([]byte, error) {
	_, rec, err := d.find(txn, key, engine.Partial, &[2]uint32{offset, size})
	return rec, err
}

func (d *Database) find(txn *Transaction, key []byte, flags uint32, partial *[2]uint32) ([]byte, []byte, error) {
	k, err := marshalKey(key)
	if err != nil {
		return nil, nil, err
	}
	var r engine.Record
	if partial != nil {
		r.PartialOffset, r.PartialSize = partial[0], partial[1]
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h, th, err := d.handles(txn)
	if err != nil {
		return nil, nil, err
	}
	if err := check(d.api().DBFind(h, th, &k, &r, flags)); err != nil {
		return nil, nil, err
	}
	return copyKey(&k), copyRecord(&r), nil
}

// Insert stores record under key. Without flags an existing key fails with
// ErrDuplicateKey. Duplicate position flags need a cursor; use
// Cursor.Insert.
func (d *Database) Insert(txn *Transaction, key, record []byte, flags InsertFlag) error {
	if err := flags.validateDatabaseInsert(); err != nil {
		return err
	}
	r, err := marshalRecord(record)
	if err != nil {
		return err
	}
	_, err = d.insert(txn, key, &r, uint32(flags))
	return err
}

// InsertPartial writes record at offset into the record of key, growing it
// when needed. A new key is zero-filled up to offset; an existing key needs
// Overwrite.
func (d *Database) InsertPartial(txn *Transaction, key, record []byte, offset uint32, flags InsertFlag) error {
	if err := flags.validateDatabaseInsert(); err != nil {
		return err
	}
	r, err := marshalPartial(record, offset, uint32(len(record)))
	if err != nil {
		return err
	}
	_, err = d.insert(txn, key, &r, uint32(flags)|engine.Partial)
	return err
}

// InsertRecNo appends record to a record number database and returns the
// generated key. Use RecNo to decode it.
func (d *Database) InsertRecNo(txn *Transaction, record []byte) ([]byte, error) {
	r, err := marshalRecord(record)
	if err != nil {
		return nil, err
	}
	return d.insert(txn, nil, &r, 0)
}

func (d *Database) insert(txn *Transaction, key []byte, r *engine.Record, flags uint32) ([]byte, error) {
	k, err := marshalKey(key)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h, th, err := d.handles(txn)
	if err != nil {
		return nil, err
	}
	if err := check(d.api().DBInsert(h, th, &k, r, flags)); err != nil {
		return nil, err
	}
	return copyKey(&k), nil
}

// RecNo decodes a 4 or 8 byte record number key.
func RecNo(key []byte) (uint64, error) {
	switch len(key) {
	case 4:
		return uint64(binary.LittleEndian.Uint32(key)), nil
	case 8:
		return binary.LittleEndian.Uint64(key), nil
	}
	return 0, &Error{Code: ErrInvKeySize, Message: "record number keys are 4 or 8 bytes"}
}

// RecNoKey encodes n as an 8 byte record number key for RecordNumber64
// databases.
func RecNoKey(n uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, n)
}

// Erase removes key with all of its duplicates.
func (d *Database) Erase(txn *Transaction, key []byte) error {
	k, err := marshalKey(key)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h, th, err := d.handles(txn)
	if err != nil {
		return err
	}
	return check(d.api().DBErase(h, th, &k, 0))
}

// Count returns the number of records, or of distinct keys when
// skipDuplicates is set.
func (d *Database) Count(txn *Transaction, skipDuplicates bool) (uint64, error) {
	var flags uint32
	if skipDuplicates {
		flags = engine.SkipDuplicates
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h, th, err := d.handles(txn)
	if err != nil {
		return 0, err
	}
	n, st := d.api().DBCount(h, th, flags)
	if err := check(st); err != nil {
		return 0, err
	}
	return n, nil
}

// NewCursor creates a cursor in the nil state. txn may be nil.
func (d *Database) NewCursor(txn *Transaction) (*Cursor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	h, th, err := d.handles(txn)
	if err != nil {
		return nil, err
	}
	ch, st := d.api().CursorCreate(h, th, 0)
	if err := check(st); err != nil {
		return nil, err
	}
	return d.trackCursor(ch, txn), nil
}

// trackCursor wraps ch and registers it. Callers hold d.mu.
func (d *Database) trackCursor(ch engine.Handle, txn *Transaction) *Cursor {
	c := newCursor(d, txn)
	c.ref.set(ch)
	d.cursors = append(d.cursors, c)
	return c
}

// removeCursor removes a cursor from the database's list.
// Uses swap-with-last for O(1) removal instead of O(n) slice shift.
// Callers hold d.mu.
func (d *Database) removeCursor(c *Cursor) {
	n := len(d.cursors)
	for i := 0; i < n; i++ {
		if d.cursors[i] == c {
			d.cursors[i] = d.cursors[n-1]
			d.cursors[n-1] = nil
			d.cursors = d.cursors[:n-1]
			break
		}
	}
}

// SetCompareFunc installs the key ordering of a TypeCustom database. It must
// be set after every open, before the first access. fn runs with the engine
// locked and must not call back into ups.
func (d *Database) SetCompareFunc(fn CompareFunc) error {
	if fn == nil {
		return invalid("nil compare function")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.handle()
	if err != nil {
		return err
	}
	key := compareKey{api: d.api(), db: h}
	compareFuncs.Store(key, fn)
	if err := check(d.api().DBSetCompareFunc(h, compareTrampoline(d.api()))); err != nil {
		compareFuncs.Delete(key)
		return err
	}
	return nil
}

// Parameters queries the named database parameters.
func (d *Database) Parameters(names ...uint32) ([]Parameter, error) {
	params, err := queryParams(names)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.handle()
	if err != nil {
		return nil, err
	}
	if err := check(d.api().DBGetParameters(h, params)); err != nil {
		return nil, err
	}
	return queryResult(params), nil
}

// Close closes every cursor of the database, then the database. A standalone
// database also closes its environment. Closing twice is a no-op.
func (d *Database) Close() error {
	return d.close(true)
}

func (d *Database) close(withEnv bool) error {
	d.mu.Lock()
	h := d.ref.take()
	if h == 0 {
		d.mu.Unlock()
		return nil
	}
	var errs []error
	for _, c := range d.cursors {
		if err := c.release(); err != nil {
			errs = append(errs, err)
		}
	}
	d.cursors = nil
	if err := check(d.api().DBClose(h, 0)); err != nil {
		errs = append(errs, err)
	}
	compareFuncs.Delete(compareKey{api: d.api(), db: h})
	d.mu.Unlock()

	d.env.untrack(d)
	logger().Debug("database closed", "name", d.name)
	if withEnv && d.standalone {
		if err := d.env.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// standalone database constructors split flags and parameters between the
// private environment and the database.
const standaloneDatabaseFlags = RecordNumber32 | RecordNumber64 | EnableDuplicateKeys

func splitParams(params []Parameter) (env, db []Parameter) {
	for _, p := range params {
		switch p.Name {
		case ParamKeyType, ParamKeySize, ParamRecordSize, ParamCustomCompareName:
			db = append(db, p)
		default:
			env = append(env, p)
		}
	}
	return env, db
}

// CreateDatabase creates a file holding a single database. Closing the
// database closes the file.
func CreateDatabase(path string, flags uint32, mode os.FileMode, params ...Parameter) (*Database, error) {
	envParams, dbParams := splitParams(params)
	env := NewEnvironment()
	if err := env.Create(path, flags&^standaloneDatabaseFlags, mode, envParams...); err != nil {
		return nil, err
	}
	db, err := env.CreateDatabase(DefaultDatabaseName, flags&standaloneDatabaseFlags, dbParams...)
	if err != nil {
		env.Close()
		return nil, err
	}
	db.standalone = true
	return db, nil
}

// OpenDatabase opens a file created with CreateDatabase.
func OpenDatabase(path string, flags uint32, params ...Parameter) (*Database, error) {
	env := NewEnvironment()
	if err := env.Open(path, flags, params...); err != nil {
		return nil, err
	}
	db, err := env.OpenDatabase(DefaultDatabaseName, 0)
	if err != nil {
		env.Close()
		return nil, err
	}
	db.standalone = true
	return db, nil
}
