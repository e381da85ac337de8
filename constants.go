package ups

import "github.com/cruppstahl/ups/internal/engine"

// Environment flags for Create and Open
const (
	// EnableFsync flushes every commit to disk
	EnableFsync = engine.EnableFsync

	// ReadOnly opens the file read-only; writes fail with ErrWriteProtected
	ReadOnly = engine.ReadOnly

	// InMemory keeps the environment in memory only; it cannot be reopened
	InMemory = engine.InMemory

	// DisableMmap is accepted for compatibility
	DisableMmap = engine.DisableMmap

	AutoRecovery   = engine.AutoRecovery
	CacheUnlimited = engine.CacheUnlimited

	// EnableTransactions is required before Environment.Begin
	EnableTransactions = engine.EnableTransactions

	// FlushWhenCommitted syncs the file after every commit
	FlushWhenCommitted = engine.FlushWhenCommitted

	// EnableCRC32 stores a checksum with every record and verifies it on open
	EnableCRC32 = engine.EnableCRC32
)

// Database flags for CreateDatabase and OpenDatabase
const (
	RecordNumber32      = engine.RecordNumber32
	RecordNumber64      = engine.RecordNumber64
	EnableDuplicateKeys = engine.EnableDuplicateKeys
)

// Transaction flags
const (
	TxnReadWrite uint32 = 0
	TxnReadOnly         = engine.TxnReadOnly
)

// Parameter names
const (
	ParamCacheSize      = engine.ParamCacheSize
	ParamPageSize       = engine.ParamPageSize
	ParamKeySize        = engine.ParamKeySize
	ParamMaxDatabases   = engine.ParamMaxDatabases
	ParamKeyType        = engine.ParamKeyType
	ParamRecordSize     = engine.ParamRecordSize
	ParamFileSizeLimit  = engine.ParamFileSizeLimit
	ParamFlags          = engine.ParamFlags
	ParamFileMode       = engine.ParamFileMode
	ParamDatabaseName   = engine.ParamDatabaseName
	ParamMaxKeysPerPage = engine.ParamMaxKeysPerPage

	// ParamCustomCompareName carries the value built by CompareName
	ParamCustomCompareName = engine.ParamCustomCompareName

	// KeySizeUnlimited and RecordSizeUnlimited are the values reported for
	// variable-size keys and records.
	KeySizeUnlimited    = engine.ParamKeySizeUnlimited
	RecordSizeUnlimited = engine.ParamRecordSizeUnlimited
)

// Key types for ParamKeyType
const (
	TypeBinary = engine.TypeBinary
	TypeCustom = engine.TypeCustom
	TypeUint8  = engine.TypeUint8
	TypeUint16 = engine.TypeUint16
	TypeUint32 = engine.TypeUint32
	TypeUint64 = engine.TypeUint64
	TypeReal32 = engine.TypeReal32
	TypeReal64 = engine.TypeReal64
)

// Size limits of the wire structures
const (
	// MaxKeySize is the largest key the signed 16-bit size field can carry
	MaxKeySize = 1<<15 - 1

	// MaxRecordSize is the largest record the 32-bit size field can carry
	MaxRecordSize = 1<<32 - 1
)

// close flags used by the release paths
const (
	closeAutoCleanup  = engine.AutoCleanup
	closeTxnAutoAbort = engine.TxnAutoAbort
)
