// Package engine is the embedded storage engine driven by the ups session
// layer. It exposes a flat, handle based API in the style of a native
// library: every resource is an opaque Handle, every call returns a Status,
// and memory handed back in Key and Record structures belongs to the engine
// until the next call on the same handle.
//
// The engine keeps each database as an ordered in-memory index and, unless
// the environment is created with InMemory, persists committed state to a
// bbolt file. Transactions take ownership of the keys they write; other
// transactions touching an owned key fail with TxnConflict.
package engine

// Handle identifies a live engine resource. Zero is the null handle.
// Handles are never reused within a process.
type Handle uint32

// Key is the wire layout of a key: a signed 16-bit size, the data and flags.
type Key struct {
	Size  int16
	Data  []byte
	Flags uint32
}

// Record is the wire layout of a record.
type Record struct {
	Size          uint32
	Data          []byte
	PartialOffset uint32
	PartialSize   uint32
	Flags         uint32
}

// Parameter is one name/value pair of a parameter array. Arrays passed to the
// engine must be terminated by an entry with Name == 0.
type Parameter struct {
	Name  uint32
	Value uint64
}

// Operation is one element of a DBBulkOperations batch. Result receives the
// status of the individual operation.
type Operation struct {
	Type   uint32
	Key    Key
	Record Record
	Flags  uint32
	Result Status
}

// CompareFunc orders two keys of a TypeCustom database. db is the handle the
// function was installed on.
type CompareFunc func(db Handle, lhs, rhs []byte) int

// ErrorHandler receives diagnostic messages emitted while a call fails.
type ErrorHandler func(level int, message string)

// API is the complete engine surface.
type API interface {
	EnvCreate(path string, flags uint32, mode uint32, params []Parameter) (Handle, Status)
	EnvOpen(path string, flags uint32, params []Parameter) (Handle, Status)
	EnvGetParameters(env Handle, params []Parameter) Status
	EnvCreateDB(env Handle, name uint16, flags uint32, params []Parameter) (Handle, Status)
	EnvOpenDB(env Handle, name uint16, flags uint32, params []Parameter) (Handle, Status)
	EnvRenameDB(env Handle, oldName, newName uint16, flags uint32) Status
	EnvEraseDB(env Handle, name uint16, flags uint32) Status
	EnvFlush(env Handle, flags uint32) Status
	EnvGetDatabaseNames(env Handle) ([]uint16, Status)
	EnvGetMetrics(env Handle) (map[string]int64, Status)
	EnvSelectRange(env Handle, query string, begin, end Handle) (*Result, Status)
	EnvClose(env Handle, flags uint32) Status

	TxnBegin(env Handle, name string, flags uint32) (Handle, Status)
	TxnCommit(txn Handle, flags uint32) Status
	TxnAbort(txn Handle, flags uint32) Status

	DBGetParameters(db Handle, params []Parameter) Status
	DBSetCompareFunc(db Handle, fn CompareFunc) Status
	DBFind(db, txn Handle, key *Key, rec *Record, flags uint32) Status
	DBInsert(db, txn Handle, key *Key, rec *Record, flags uint32) Status
	DBErase(db, txn Handle, key *Key, flags uint32) Status
	DBCount(db, txn Handle, flags uint32) (uint64, Status)
	DBBulkOperations(db, txn Handle, ops []Operation, flags uint32) Status
	DBClose(db Handle, flags uint32) Status

	CursorCreate(db, txn Handle, flags uint32) (Handle, Status)
	CursorClone(src Handle) (Handle, Status)
	CursorMove(cursor Handle, key *Key, rec *Record, flags uint32) Status
	CursorFind(cursor Handle, key *Key, rec *Record, flags uint32) Status
	CursorInsert(cursor Handle, key *Key, rec *Record, flags uint32) Status
	CursorOverwrite(cursor Handle, rec *Record, flags uint32) Status
	CursorErase(cursor Handle, flags uint32) Status
	CursorGetDuplicateCount(cursor Handle, flags uint32) (uint32, Status)
	CursorGetDuplicatePosition(cursor Handle) (uint32, Status)
	CursorGetRecordSize(cursor Handle) (uint64, Status)
	CursorClose(cursor Handle) Status

	StrError(st Status) string
	Version() (major, minor, revision uint32)
	SetErrorHandler(fn ErrorHandler)
}
