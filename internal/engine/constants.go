package engine

// Environment and database flags
const (
	EnableFsync         uint32 = 0x00000001
	ReadOnly            uint32 = 0x00000004
	InMemory            uint32 = 0x00000080
	DisableMmap         uint32 = 0x00000200
	RecordNumber32      uint32 = 0x00001000
	RecordNumber64      uint32 = 0x00002000
	EnableDuplicateKeys uint32 = 0x00004000
	AutoRecovery        uint32 = 0x00010000
	EnableTransactions  uint32 = 0x00020000
	CacheUnlimited      uint32 = 0x00040000
	FlushWhenCommitted  uint32 = 0x01000000
	EnableCRC32         uint32 = 0x02000000

	// flags accepted by EnvCreateDB/EnvOpenDB
	databaseFlags = RecordNumber32 | RecordNumber64 | EnableDuplicateKeys | ReadOnly
)

// Insert flags
const (
	Overwrite             uint32 = 0x0001
	Duplicate             uint32 = 0x0002
	DuplicateInsertBefore uint32 = 0x0004
	DuplicateInsertAfter  uint32 = 0x0008
	DuplicateInsertFirst  uint32 = 0x0010
	DuplicateInsertLast   uint32 = 0x0020
	Partial               uint32 = 0x0080
	HintAppend            uint32 = 0x00080000
	HintPrepend           uint32 = 0x00100000

	duplicatePositionMask = DuplicateInsertBefore | DuplicateInsertAfter |
		DuplicateInsertFirst | DuplicateInsertLast
)

// Cursor move flags
const (
	CursorFirst    uint32 = 0x0001
	CursorLast     uint32 = 0x0002
	CursorNext     uint32 = 0x0004
	CursorPrevious uint32 = 0x0008
	SkipDuplicates uint32 = 0x0010
	OnlyDuplicates uint32 = 0x0020

	cursorDirectionMask = CursorFirst | CursorLast | CursorNext | CursorPrevious
)

// Find flags
const (
	FindLT   uint32 = 0x1000
	FindGT   uint32 = 0x2000
	FindEQ   uint32 = 0x4000
	FindLEQ         = FindLT | FindEQ
	FindGEQ         = FindGT | FindEQ
	FindNear        = FindLT | FindGT | FindEQ

	findMask = FindLT | FindGT | FindEQ
)

// Transaction and close flags
const (
	TxnReadOnly   uint32 = 0x0001
	TxnTemporary  uint32 = 0x0002
	AutoCleanup   uint32 = 0x0001
	TxnAutoAbort  uint32 = 0x0004
	TxnAutoCommit uint32 = 0x0008
)

// Parameter names
const (
	ParamCacheSize      uint32 = 0x00000100
	ParamPageSize       uint32 = 0x00000101
	ParamKeySize        uint32 = 0x00000102
	ParamMaxDatabases   uint32 = 0x00000103
	ParamKeyType        uint32 = 0x00000104
	ParamRecordSize     uint32 = 0x00000108
	ParamFileSizeLimit  uint32 = 0x00000109

	// ParamCustomCompareName selects a compare function registered with
	// RegisterCompare. The value is CompareNameID of the name.
	ParamCustomCompareName uint32 = 0x00000111

	ParamFlags          uint32 = 0x00000200
	ParamFileMode       uint32 = 0x00000201
	ParamDatabaseName   uint32 = 0x00000203
	ParamMaxKeysPerPage uint32 = 0x00000204

	ParamKeySizeUnlimited    uint64 = 0xffff
	ParamRecordSizeUnlimited uint64 = 0xffffffff
)

// Key types
const (
	TypeBinary uint16 = 0
	TypeCustom uint16 = 1
	TypeUint8  uint16 = 3
	TypeUint16 uint16 = 5
	TypeUint32 uint16 = 7
	TypeUint64 uint16 = 9
	TypeReal32 uint16 = 11
	TypeReal64 uint16 = 12
)

// Bulk operation types
const (
	OpInsert uint32 = 1
	OpErase  uint32 = 2
	OpFind   uint32 = 3
)

// Error handler levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelFatal = 3
)

// Defaults reported by EnvGetParameters.
const (
	DefaultCacheSize    = 2 * 1024 * 1024
	DefaultPageSize     = 16 * 1024
	DefaultMaxDatabases = 420
	DefaultFileMode     = 0644
)

// Version of the engine ABI implemented by this package.
const (
	VersionMajor    = 2
	VersionMinor    = 2
	VersionRevision = 1
)
