package engine

import (
	"cmp"
	"os"
	"slices"
)

type environment struct {
	id           Handle
	path         string
	flags        uint32
	mode         uint32
	cacheSize    uint64
	pageSize     uint64
	maxDatabases uint64
	sizeLimit    uint64

	store   *store
	tables  map[uint16]*table
	dbs     map[Handle]*database
	txns    map[Handle]*txn
	metrics *envMetrics
}

func (e *environment) readOnly() bool {
	return e.flags&ReadOnly != 0
}

func (e *environment) transactional() bool {
	return e.flags&EnableTransactions != 0
}

// persist writes changes to the store and then to the in-memory trees.
func (e *environment) persist(changes []change) Status {
	if len(changes) == 0 {
		return Success
	}
	if e.store != nil {
		if err := e.store.apply(changes); err != nil {
			return storeStatus(err)
		}
	}
	for _, c := range changes {
		c.tbl.apply(c.key, c.records)
	}
	return Success
}

func (e *environment) cursorCount() int {
	n := 0
	for _, d := range e.dbs {
		n += len(d.cursors)
	}
	return n
}

func (e *environment) gauges() {
	e.metrics.databases.Update(int64(len(e.dbs)))
	e.metrics.txns.Update(int64(len(e.txns)))
	e.metrics.cursors.Update(int64(e.cursorCount()))
}

const (
	minPageSize = 1024
	maxPageSize = 64 * 1024
)

var envCreateParams = []uint32{ParamCacheSize, ParamPageSize, ParamMaxDatabases, ParamFileSizeLimit, ParamFileMode}

func (l *Local) EnvCreate(path string, flags uint32, mode uint32, params []Parameter) (Handle, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if flags&ReadOnly != 0 {
		return 0, l.fail(InvParameter, "cannot create an environment read-only")
	}
	if flags&databaseFlags&^ReadOnly != 0 {
		return 0, l.fail(InvParameter, "database flags passed to environment create")
	}
	p, st := parseParams(params, envCreateParams...)
	if st != Success {
		return 0, l.fail(st, "invalid or unterminated parameter list")
	}
	if path == "" && flags&InMemory == 0 {
		return 0, l.fail(InvParameter, "file environment without a path")
	}

	e := &environment{
		path:         path,
		flags:        flags,
		mode:         mode,
		cacheSize:    DefaultCacheSize,
		pageSize:     DefaultPageSize,
		maxDatabases: DefaultMaxDatabases,
		tables:       make(map[uint16]*table),
		dbs:          make(map[Handle]*database),
		txns:         make(map[Handle]*txn),
		metrics:      newEnvMetrics(),
	}
	if e.mode == 0 {
		e.mode = DefaultFileMode
	}
	if v, ok := p[ParamFileMode]; ok {
		e.mode = uint32(v)
	}
	if v, ok := p[ParamCacheSize]; ok {
		e.cacheSize = v
	}
	if v, ok := p[ParamPageSize]; ok {
		if v < minPageSize || v > maxPageSize || v%minPageSize != 0 {
			return 0, l.fail(InvPageSize, "page size %d out of range", v)
		}
		e.pageSize = v
	}
	if v, ok := p[ParamMaxDatabases]; ok {
		if v == 0 || v > 0xf000 {
			return 0, l.fail(InvParameter, "max databases %d out of range", v)
		}
		e.maxDatabases = v
	}
	if v, ok := p[ParamFileSizeLimit]; ok {
		e.sizeLimit = v
	}

	if flags&InMemory == 0 {
		meta := envMeta{
			Version:      storeVersion,
			Flags:        flags & EnableCRC32,
			PageSize:     e.pageSize,
			MaxDatabases: e.maxDatabases,
		}
		s, err := createStore(path, os.FileMode(e.mode), flags, meta)
		if err != nil {
			return 0, l.fail(storeStatus(err), "create %s: %v", path, err)
		}
		e.store = s
	}

	e.id = l.register(e)
	return e.id, Success
}

func (l *Local) EnvOpen(path string, flags uint32, params []Parameter) (Handle, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if flags&InMemory != 0 {
		return 0, l.fail(InvParameter, "in-memory environments cannot be opened")
	}
	if flags&databaseFlags&^ReadOnly != 0 {
		return 0, l.fail(InvParameter, "database flags passed to environment open")
	}
	p, st := parseParams(params, ParamCacheSize, ParamFileSizeLimit)
	if st != Success {
		return 0, l.fail(st, "invalid or unterminated parameter list")
	}

	s, meta, err := openStore(path, flags)
	if err != nil {
		return 0, l.fail(storeStatus(err), "open %s: %v", path, err)
	}
	e := &environment{
		path:         path,
		flags:        flags | meta.Flags,
		cacheSize:    DefaultCacheSize,
		pageSize:     meta.PageSize,
		maxDatabases: meta.MaxDatabases,
		store:        s,
		tables:       make(map[uint16]*table),
		dbs:          make(map[Handle]*database),
		txns:         make(map[Handle]*txn),
		metrics:      newEnvMetrics(),
	}
	if fi, err := os.Stat(path); err == nil {
		e.mode = uint32(fi.Mode().Perm())
	}
	if v, ok := p[ParamCacheSize]; ok {
		e.cacheSize = v
	}
	if v, ok := p[ParamFileSizeLimit]; ok {
		e.sizeLimit = v
	}

	err = s.load(func(name uint16, meta tableMeta) (func([]byte, [][]byte), error) {
		tb := newTable(name, meta)
		e.tables[name] = tb
		return func(key []byte, records [][]byte) {
			tb.apply(key, records)
		}, nil
	})
	if err != nil {
		s.close()
		return 0, l.fail(storeStatus(err), "load %s: %v", path, err)
	}

	e.id = l.register(e)
	return e.id, Success
}

func (l *Local) EnvGetParameters(env Handle, params []Parameter) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, st := l.env(env)
	if st != Success {
		return st
	}
	for i := range params {
		switch params[i].Name {
		case 0:
			return Success
		case ParamCacheSize:
			params[i].Value = e.cacheSize
		case ParamPageSize:
			params[i].Value = e.pageSize
		case ParamMaxDatabases:
			params[i].Value = e.maxDatabases
		case ParamFlags:
			params[i].Value = uint64(e.flags)
		case ParamFileMode:
			params[i].Value = uint64(e.mode)
		case ParamFileSizeLimit:
			params[i].Value = e.sizeLimit
		default:
			return l.fail(InvParameter, "unknown environment parameter 0x%x", params[i].Name)
		}
	}
	if len(params) > 0 {
		return l.fail(InvParameter, "unterminated parameter list")
	}
	return Success
}

// validDBName rejects the null name and the reserved range.
func validDBName(name uint16) bool {
	return name != 0 && name < 0xf000
}

func (l *Local) EnvCreateDB(env Handle, name uint16, flags uint32, params []Parameter) (Handle, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, st := l.env(env)
	if st != Success {
		return 0, st
	}
	if e.readOnly() {
		return 0, l.fail(WriteProtected, "environment is read-only")
	}
	if !validDBName(name) {
		return 0, l.fail(InvParameter, "invalid database name %d", name)
	}
	if flags&^(RecordNumber32|RecordNumber64|EnableDuplicateKeys) != 0 {
		return 0, l.fail(InvParameter, "invalid database flags 0x%x", flags)
	}
	recno := flags & (RecordNumber32 | RecordNumber64)
	if recno == RecordNumber32|RecordNumber64 {
		return 0, l.fail(InvParameter, "RecordNumber32 and RecordNumber64 are exclusive")
	}
	if recno != 0 && flags&EnableDuplicateKeys != 0 {
		return 0, l.fail(InvParameter, "record number databases cannot hold duplicates")
	}
	p, st := parseParams(params, ParamKeyType, ParamKeySize, ParamRecordSize, ParamCustomCompareName)
	if st != Success {
		return 0, l.fail(st, "invalid or unterminated parameter list")
	}
	if _, ok := e.tables[name]; ok {
		return 0, l.fail(DatabaseAlreadyExists, "database %d already exists", name)
	}
	if uint64(len(e.tables)) >= e.maxDatabases {
		return 0, l.fail(LimitsReached, "environment holds %d databases", len(e.tables))
	}

	meta := tableMeta{
		Flags:      flags,
		KeyType:    TypeBinary,
		KeySize:    uint16(ParamKeySizeUnlimited),
		RecordSize: uint32(ParamRecordSizeUnlimited),
	}
	if v, ok := p[ParamKeyType]; ok {
		if v > 0xffff || !validKeyType(uint16(v)) {
			return 0, l.fail(InvParameter, "invalid key type %d", v)
		}
		meta.KeyType = uint16(v)
	}
	switch recno {
	case RecordNumber32:
		meta.KeyType = TypeUint32
	case RecordNumber64:
		meta.KeyType = TypeUint64
	}
	if fixed := fixedKeySize(meta.KeyType); fixed != 0 {
		meta.KeySize = fixed
	}
	if v, ok := p[ParamKeySize]; ok {
		if v == 0 || v > ParamKeySizeUnlimited {
			return 0, l.fail(InvKeySize, "invalid key size %d", v)
		}
		if fixed := fixedKeySize(meta.KeyType); fixed != 0 && v != uint64(fixed) {
			return 0, l.fail(InvKeySize, "key type requires %d byte keys", fixed)
		}
		meta.KeySize = uint16(v)
	}
	if v, ok := p[ParamRecordSize]; ok {
		if v > ParamRecordSizeUnlimited {
			return 0, l.fail(InvRecordSize, "invalid record size %d", v)
		}
		meta.RecordSize = uint32(v)
	}
	var named namedCompare
	if v, ok := p[ParamCustomCompareName]; ok {
		if meta.KeyType != TypeCustom {
			return 0, l.fail(InvParameter, "compare functions need custom keys")
		}
		if named, ok = lookupCompare(v); !ok {
			return 0, l.fail(PluginNotFound, "compare function 0x%x is not registered", v)
		}
		meta.Compare = named.name
	}

	if e.store != nil {
		if err := e.store.createTable(name, meta); err != nil {
			return 0, l.fail(storeStatus(err), "create database %d: %v", name, err)
		}
	}
	tb := newTable(name, meta)
	e.tables[name] = tb
	h := l.openDB(e, tb, 0)
	if named.fn != nil {
		tb.setCompare(h, named.fn)
	}
	return h, Success
}

func (l *Local) EnvOpenDB(env Handle, name uint16, flags uint32, params []Parameter) (Handle, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, st := l.env(env)
	if st != Success {
		return 0, st
	}
	if flags&^ReadOnly != 0 {
		return 0, l.fail(InvParameter, "invalid database flags 0x%x", flags)
	}
	if _, st := parseParams(params); st != Success {
		return 0, l.fail(st, "invalid or unterminated parameter list")
	}
	tb, ok := e.tables[name]
	if !ok {
		return 0, l.fail(DatabaseNotFound, "database %d not found", name)
	}
	if tb.db != nil {
		return 0, l.fail(DatabaseAlreadyOpen, "database %d already open", name)
	}
	var named namedCompare
	if tb.compare != "" {
		if named, ok = lookupCompare(CompareNameID(tb.compare)); !ok {
			return 0, l.fail(NotReady, "compare function %q is not registered", tb.compare)
		}
	}
	h := l.openDB(e, tb, flags)
	if named.fn != nil {
		tb.setCompare(h, named.fn)
	}
	return h, Success
}

func (l *Local) openDB(e *environment, tb *table, flags uint32) Handle {
	d := &database{
		env:     e,
		tbl:     tb,
		flags:   flags,
		cursors: make(map[Handle]*cursor),
	}
	d.id = l.register(d)
	tb.db = d
	e.dbs[d.id] = d
	e.gauges()
	return d.id
}

func (l *Local) EnvRenameDB(env Handle, oldName, newName uint16, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, st := l.env(env)
	if st != Success {
		return st
	}
	if e.readOnly() {
		return l.fail(WriteProtected, "environment is read-only")
	}
	if !validDBName(newName) || flags != 0 {
		return l.fail(InvParameter, "invalid rename of database %d to %d", oldName, newName)
	}
	tb, ok := e.tables[oldName]
	if !ok {
		return l.fail(DatabaseNotFound, "database %d not found", oldName)
	}
	if oldName == newName {
		return Success
	}
	if _, ok := e.tables[newName]; ok {
		return l.fail(DatabaseAlreadyExists, "database %d already exists", newName)
	}
	if tb.db != nil {
		return l.fail(DatabaseAlreadyOpen, "database %d is open", oldName)
	}
	if e.store != nil {
		if err := e.store.renameTable(oldName, newName, tb.meta()); err != nil {
			return l.fail(storeStatus(err), "rename database %d: %v", oldName, err)
		}
	}
	delete(e.tables, oldName)
	tb.name = newName
	e.tables[newName] = tb
	return Success
}

func (l *Local) EnvEraseDB(env Handle, name uint16, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, st := l.env(env)
	if st != Success {
		return st
	}
	if e.readOnly() {
		return l.fail(WriteProtected, "environment is read-only")
	}
	if flags != 0 {
		return l.fail(InvParameter, "invalid flags 0x%x", flags)
	}
	tb, ok := e.tables[name]
	if !ok {
		return l.fail(DatabaseNotFound, "database %d not found", name)
	}
	if tb.db != nil {
		return l.fail(DatabaseAlreadyOpen, "database %d is open", name)
	}
	for _, t := range e.txns {
		if t.touches(tb) {
			return l.fail(TxnStillOpen, "database %d has pending writes", name)
		}
	}
	if e.store != nil {
		if err := e.store.dropTable(name); err != nil {
			return l.fail(storeStatus(err), "erase database %d: %v", name, err)
		}
	}
	delete(e.tables, name)
	return Success
}

func (l *Local) EnvFlush(env Handle, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, st := l.env(env)
	if st != Success {
		return st
	}
	if e.store == nil || e.readOnly() {
		return Success
	}
	if err := e.store.sync(); err != nil {
		return l.fail(storeStatus(err), "flush: %v", err)
	}
	return Success
}

func (l *Local) EnvGetDatabaseNames(env Handle) ([]uint16, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, st := l.env(env)
	if st != Success {
		return nil, st
	}
	names := make([]uint16, 0, len(e.tables))
	for name := range e.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, Success
}

func (l *Local) EnvGetMetrics(env Handle) (map[string]int64, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, st := l.env(env)
	if st != Success {
		return nil, st
	}
	e.gauges()
	return e.metrics.snapshot(), Success
}

// EnvClose closes env. Open cursors need AutoCleanup and active
// transactions need TxnAutoAbort or TxnAutoCommit, otherwise nothing is
// closed.
func (l *Local) EnvClose(env Handle, flags uint32) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, st := l.env(env)
	if st != Success {
		return st
	}
	if flags&AutoCleanup == 0 && e.cursorCount() > 0 {
		return l.fail(CursorStillOpen, "environment has open cursors")
	}
	if flags&(TxnAutoAbort|TxnAutoCommit) == 0 && len(e.txns) > 0 {
		return l.fail(TxnStillOpen, "environment has active transactions")
	}

	for _, d := range e.dbs {
		for _, c := range d.cursors {
			l.closeCursor(c)
		}
	}
	for _, t := range sortedTxns(e) {
		if flags&TxnAutoCommit != 0 {
			if st := l.commit(t); st == Success {
				continue
			}
		}
		l.abort(t)
	}
	for _, d := range e.dbs {
		l.closeDB(d)
	}

	var result Status
	if e.store != nil {
		if err := e.store.close(); err != nil {
			result = l.fail(storeStatus(err), "close %s: %v", e.path, err)
		}
	}
	l.unregister(e.id)
	return result
}

// sortedTxns returns the active transactions in begin order.
func sortedTxns(e *environment) []*txn {
	out := make([]*txn, 0, len(e.txns))
	for _, t := range e.txns {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *txn) int { return cmp.Compare(a.id, b.id) })
	return out
}
