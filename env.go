package ups

import (
	"errors"
	"os"
	"slices"
	"sync"

	"github.com/cruppstahl/ups/internal/engine"
)

// Environment is a container of databases backed by one file or by memory.
// It must be initialized with Create or Open before use.
//
// Environment and Transaction calls are serialized on the environment's
// mutex. Databases opened from it use their own mutex.
type Environment struct {
	noCopy noCopy

	api  engine.API
	ref  *handleRef
	mu   sync.Mutex
	path string

	dbsMu sync.Mutex // leaf lock, guards dbs only
	dbs   []*Database
}

// NewEnvironment returns an uninitialized environment handle.
func NewEnvironment() *Environment {
	return newEnvironment(engine.Default())
}

func newEnvironment(api engine.API) *Environment {
	return &Environment{
		api: api,
		ref: newHandleRef(api, "environment", releaseEnvironment),
	}
}

// handle returns the engine handle. Callers hold e.mu.
func (e *Environment) handle() (engine.Handle, error) {
	h := e.ref.get()
	if h == 0 {
		return 0, errClosed
	}
	return h, nil
}

// Create creates a new environment at path, replacing any existing one.
// With InMemory the path is ignored.
func (e *Environment) Create(path string, flags uint32, mode os.FileMode, params ...Parameter) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ref.valid() {
		return NewError(ErrEnvironmentAlreadyOpen)
	}
	h, st := e.api.EnvCreate(path, flags, uint32(mode.Perm()), terminateParams(params))
	if err := check(st); err != nil {
		return err
	}
	e.ref.set(h)
	e.path = path
	logger().Debug("environment created", "path", path, "flags", flags)
	return nil
}

// Open opens an existing environment.
func (e *Environment) Open(path string, flags uint32, params ...Parameter) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ref.valid() {
		return NewError(ErrEnvironmentAlreadyOpen)
	}
	h, st := e.api.EnvOpen(path, flags, terminateParams(params))
	if err := check(st); err != nil {
		return err
	}
	e.ref.set(h)
	e.path = path
	logger().Debug("environment opened", "path", path, "flags", flags)
	return nil
}

// Path returns the path the environment was created or opened with.
func (e *Environment) Path() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path
}

// CreateDatabase creates database name. Accepted flags are RecordNumber32,
// RecordNumber64 and EnableDuplicateKeys; accepted parameters are
// ParamKeyType, ParamKeySize, ParamRecordSize and CompareName.
func (e *Environment) CreateDatabase(name uint16, flags uint32, params ...Parameter) (*Database, error) {
	return e.openDatabase(name, flags, params, e.api.EnvCreateDB)
}

// OpenDatabase opens an existing database. The only accepted flag is
// ReadOnly. A database created with CompareName needs that name registered.
func (e *Environment) OpenDatabase(name uint16, flags uint32, params ...Parameter) (*Database, error) {
	return e.openDatabase(name, flags, params, e.api.EnvOpenDB)
}

type dbOpener func(env engine.Handle, name uint16, flags uint32, params []engine.Parameter) (engine.Handle, engine.Status)

func (e *Environment) openDatabase(name uint16, flags uint32, params []Parameter, open dbOpener) (*Database, error) {
	e.mu.Lock()
	h, err := e.handle()
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	dh, st := open(h, name, flags, terminateParams(params))
	e.mu.Unlock()
	if err := check(st); err != nil {
		return nil, err
	}

	d := newDatabase(e, name)
	d.ref.set(dh)
	e.track(d)
	logger().Debug("database opened", "path", e.path, "name", name)
	return d, nil
}

func (e *Environment) track(d *Database) {
	e.dbsMu.Lock()
	e.dbs = append(e.dbs, d)
	e.dbsMu.Unlock()
}

// untrack removes d using swap-with-last.
func (e *Environment) untrack(d *Database) {
	e.dbsMu.Lock()
	defer e.dbsMu.Unlock()
	n := len(e.dbs)
	for i := 0; i < n; i++ {
		if e.dbs[i] == d {
			e.dbs[i] = e.dbs[n-1]
			e.dbs[n-1] = nil
			e.dbs = e.dbs[:n-1]
			return
		}
	}
}

// RenameDatabase renames a closed database.
func (e *Environment) RenameDatabase(oldName, newName uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.handle()
	if err != nil {
		return err
	}
	return check(e.api.EnvRenameDB(h, oldName, newName, 0))
}

// EraseDatabase deletes a closed database and all of its items.
func (e *Environment) EraseDatabase(name uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.handle()
	if err != nil {
		return err
	}
	return check(e.api.EnvEraseDB(h, name, 0))
}

// Flush writes committed state to disk.
func (e *Environment) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.handle()
	if err != nil {
		return err
	}
	return check(e.api.EnvFlush(h, 0))
}

// DatabaseNames returns the names of all databases in ascending order.
func (e *Environment) DatabaseNames() ([]uint16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.handle()
	if err != nil {
		return nil, err
	}
	names, st := e.api.EnvGetDatabaseNames(h)
	if err := check(st); err != nil {
		return nil, err
	}
	return names, nil
}

// Parameters queries the named environment parameters.
func (e *Environment) Parameters(names ...uint32) ([]Parameter, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.handle()
	if err != nil {
		return nil, err
	}
	params, err := queryParams(names)
	if err != nil {
		return nil, err
	}
	if err := check(e.api.EnvGetParameters(h, params)); err != nil {
		return nil, err
	}
	return queryResult(params), nil
}

// Metrics returns the operation counters of the environment.
func (e *Environment) Metrics() (map[string]int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.handle()
	if err != nil {
		return nil, err
	}
	m, st := e.api.EnvGetMetrics(h)
	if err := check(st); err != nil {
		return nil, err
	}
	return m, nil
}

// Begin starts a transaction. The environment needs EnableTransactions.
func (e *Environment) Begin(flags uint32) (*Transaction, error) {
	return e.BeginNamed("", flags)
}

// BeginNamed starts a transaction carrying a name for diagnostics.
func (e *Environment) BeginNamed(name string, flags uint32) (*Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.handle()
	if err != nil {
		return nil, err
	}
	th, st := e.api.TxnBegin(h, name, flags)
	if err := check(st); err != nil {
		return nil, err
	}
	t := newTransaction(e, h, name)
	t.ref.set(th)
	return t, nil
}

// Close closes every database opened through the environment, then the
// environment itself. Active transactions are aborted. Closing an
// uninitialized or closed environment is a no-op.
func (e *Environment) Close() error {
	e.dbsMu.Lock()
	dbs := slices.Clone(e.dbs)
	e.dbsMu.Unlock()

	var errs []error
	for _, d := range dbs {
		if err := d.close(false); err != nil {
			errs = append(errs, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.ref.take()
	if h == 0 {
		return errors.Join(errs...)
	}
	if err := check(e.api.EnvClose(h, closeTxnAutoAbort)); err != nil {
		errs = append(errs, err)
	}
	logger().Debug("environment closed", "path", e.path)
	return errors.Join(errs...)
}
