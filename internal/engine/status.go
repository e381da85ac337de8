package engine

import "fmt"

// Status is the integer result of every engine call. Zero means success.
type Status int32

// Status codes. The values are part of the engine ABI.
const (
	Success                Status = 0
	InvRecordSize          Status = -2
	InvKeySize             Status = -3
	InvPageSize            Status = -4
	OutOfMemory            Status = -6
	InvParameter           Status = -8
	InvFileHeader          Status = -9
	InvFileVersion         Status = -10
	KeyNotFound            Status = -11
	DuplicateKey           Status = -12
	IntegrityViolated      Status = -13
	InternalError          Status = -14
	WriteProtected         Status = -15
	BlobNotFound           Status = -16
	IOError                Status = -18
	NotImplemented         Status = -20
	FileNotFound           Status = -21
	WouldBlock             Status = -22
	NotReady               Status = -23
	LimitsReached          Status = -24
	AlreadyInitialized     Status = -27
	NeedRecovery           Status = -28
	CursorStillOpen        Status = -29
	TxnConflict            Status = -31
	TxnStillOpen           Status = -33
	CursorIsNil            Status = -100
	DatabaseNotFound       Status = -200
	DatabaseAlreadyExists  Status = -201
	DatabaseAlreadyOpen    Status = -202
	EnvironmentAlreadyOpen Status = -203
	LogInvFileHeader       Status = -300
	PluginNotFound         Status = -500
	ParserError            Status = -501
)

var statusMessages = map[Status]string{
	Success:                "Success",
	InvRecordSize:          "Invalid record size",
	InvKeySize:             "Invalid key size",
	InvPageSize:            "Invalid page size",
	OutOfMemory:            "Out of memory",
	InvParameter:           "Invalid parameter",
	InvFileHeader:          "Invalid database file header",
	InvFileVersion:         "Invalid database file version",
	KeyNotFound:            "Key not found",
	DuplicateKey:           "Duplicate key",
	IntegrityViolated:      "Internal integrity violated",
	InternalError:          "Internal error",
	WriteProtected:         "Database opened in read-only mode",
	BlobNotFound:           "Data blob not found",
	IOError:                "System I/O error",
	NotImplemented:         "Operation not implemented",
	FileNotFound:           "File not found",
	WouldBlock:             "Operation would block",
	NotReady:               "Object was not initialized correctly",
	LimitsReached:          "Database limits reached",
	AlreadyInitialized:     "Object was already initialized",
	NeedRecovery:           "Database needs recovery",
	CursorStillOpen:        "Cursor must be closed prior to Transaction abort/commit",
	TxnConflict:            "Operation conflicts with another Transaction",
	TxnStillOpen:           "Cannot close Database while a Transaction is open",
	CursorIsNil:            "Cursor points to NIL",
	DatabaseNotFound:       "Database not found",
	DatabaseAlreadyExists:  "Database name already exists",
	DatabaseAlreadyOpen:    "Database already open, or: Database handle already initialized",
	EnvironmentAlreadyOpen: "Environment already open, or: Environment handle already initialized",
	LogInvFileHeader:       "Invalid log file header",
	PluginNotFound:         "Plugin not found",
	ParserError:            "Failed to parse a query command",
}

// StrError returns the human readable description of a status code.
func StrError(st Status) string {
	if msg, ok := statusMessages[st]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error %d", int32(st))
}

func (st Status) String() string {
	return StrError(st)
}
