package ups

import (
	"errors"
	"fmt"

	"github.com/cruppstahl/ups/internal/engine"
)

// Error represents an ups error with an error code
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // wrapped error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ups: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("ups: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the category of the error code.
func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

// Is matches another *Error with the same code, so that errors.Is works
// against the exported sentinel values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrorCode represents engine status codes
type ErrorCode int

// Error codes - matching the engine status values
const (
	// Success indicates the operation completed successfully
	Success ErrorCode = 0

	ErrInvRecordSize          ErrorCode = ErrorCode(engine.InvRecordSize)
	ErrInvKeySize             ErrorCode = ErrorCode(engine.InvKeySize)
	ErrInvPageSize            ErrorCode = ErrorCode(engine.InvPageSize)
	ErrOutOfMemory            ErrorCode = ErrorCode(engine.OutOfMemory)
	ErrInvParameter           ErrorCode = ErrorCode(engine.InvParameter)
	ErrInvFileHeader          ErrorCode = ErrorCode(engine.InvFileHeader)
	ErrInvFileVersion         ErrorCode = ErrorCode(engine.InvFileVersion)
	ErrKeyNotFound            ErrorCode = ErrorCode(engine.KeyNotFound)
	ErrDuplicateKey           ErrorCode = ErrorCode(engine.DuplicateKey)
	ErrIntegrityViolated      ErrorCode = ErrorCode(engine.IntegrityViolated)
	ErrInternal               ErrorCode = ErrorCode(engine.InternalError)
	ErrWriteProtected         ErrorCode = ErrorCode(engine.WriteProtected)
	ErrBlobNotFound           ErrorCode = ErrorCode(engine.BlobNotFound)
	ErrIO                     ErrorCode = ErrorCode(engine.IOError)
	ErrNotImplemented         ErrorCode = ErrorCode(engine.NotImplemented)
	ErrFileNotFound           ErrorCode = ErrorCode(engine.FileNotFound)
	ErrWouldBlock             ErrorCode = ErrorCode(engine.WouldBlock)
	ErrNotReady               ErrorCode = ErrorCode(engine.NotReady)
	ErrLimitsReached          ErrorCode = ErrorCode(engine.LimitsReached)
	ErrAlreadyInitialized     ErrorCode = ErrorCode(engine.AlreadyInitialized)
	ErrNeedRecovery           ErrorCode = ErrorCode(engine.NeedRecovery)
	ErrCursorStillOpen        ErrorCode = ErrorCode(engine.CursorStillOpen)
	ErrTxnConflict            ErrorCode = ErrorCode(engine.TxnConflict)
	ErrTxnStillOpen           ErrorCode = ErrorCode(engine.TxnStillOpen)
	ErrCursorIsNil            ErrorCode = ErrorCode(engine.CursorIsNil)
	ErrDatabaseNotFound       ErrorCode = ErrorCode(engine.DatabaseNotFound)
	ErrDatabaseAlreadyExists  ErrorCode = ErrorCode(engine.DatabaseAlreadyExists)
	ErrDatabaseAlreadyOpen    ErrorCode = ErrorCode(engine.DatabaseAlreadyOpen)
	ErrEnvironmentAlreadyOpen ErrorCode = ErrorCode(engine.EnvironmentAlreadyOpen)
	ErrLogInvFileHeader       ErrorCode = ErrorCode(engine.LogInvFileHeader)
	ErrPluginNotFound         ErrorCode = ErrorCode(engine.PluginNotFound)
	ErrParserError            ErrorCode = ErrorCode(engine.ParserError)

	// ErrClosed is raised by the binding itself for a handle that was never
	// initialized or is already closed. The engine never returns it.
	ErrClosed ErrorCode = -1000
)

// Kind groups error codes by what the caller can do about them.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindAlreadyExists
	KindInvalidArgument
	KindWriteProtected
	KindResourceExhausted
	KindConflict
	KindIntegrity
	KindCursorInvalidState
	KindStillOpen
	KindClosed
)

var kindNames = [...]string{
	KindInternal:           "internal",
	KindNotFound:           "not found",
	KindAlreadyExists:      "already exists",
	KindInvalidArgument:    "invalid argument",
	KindWriteProtected:     "write protected",
	KindResourceExhausted:  "resource exhausted",
	KindConflict:           "conflict",
	KindIntegrity:          "integrity",
	KindCursorInvalidState: "cursor invalid state",
	KindStillOpen:          "still open",
	KindClosed:             "closed",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Kind classifies c. Unknown codes are internal errors.
func (c ErrorCode) Kind() Kind {
	switch c {
	case ErrKeyNotFound, ErrBlobNotFound, ErrFileNotFound, ErrDatabaseNotFound,
		ErrPluginNotFound:
		return KindNotFound
	case ErrDuplicateKey, ErrDatabaseAlreadyExists, ErrDatabaseAlreadyOpen,
		ErrEnvironmentAlreadyOpen, ErrAlreadyInitialized:
		return KindAlreadyExists
	case ErrInvParameter, ErrInvKeySize, ErrInvRecordSize, ErrInvPageSize,
		ErrParserError:
		return KindInvalidArgument
	case ErrWriteProtected:
		return KindWriteProtected
	case ErrOutOfMemory, ErrLimitsReached:
		return KindResourceExhausted
	case ErrTxnConflict, ErrWouldBlock:
		return KindConflict
	case ErrIntegrityViolated, ErrInvFileHeader, ErrInvFileVersion,
		ErrLogInvFileHeader, ErrNeedRecovery:
		return KindIntegrity
	case ErrCursorIsNil:
		return KindCursorInvalidState
	case ErrCursorStillOpen, ErrTxnStillOpen:
		return KindStillOpen
	case ErrClosed:
		return KindClosed
	}
	return KindInternal
}

func (c ErrorCode) String() string {
	return message(c)
}

func message(code ErrorCode) string {
	switch code {
	case ErrClosed:
		return "handle is closed or not initialized"
	case Success:
		return "success"
	}
	return engine.StrError(engine.Status(code))
}

// NewError creates a new Error with the given code
func NewError(code ErrorCode) *Error {
	return &Error{Code: code, Message: message(code)}
}

// WrapError creates a new Error wrapping another error
func WrapError(code ErrorCode, err error) *Error {
	e := NewError(code)
	e.Err = err
	return e
}

// invalid builds an ErrInvParameter naming the offending argument.
func invalid(format string, args ...any) *Error {
	return &Error{Code: ErrInvParameter, Message: fmt.Sprintf(format, args...)}
}

var errClosed = NewError(ErrClosed)

// check maps an engine status to an error. Success maps to nil.
func check(st engine.Status) error {
	if st == engine.Success {
		return nil
	}
	return NewError(ErrorCode(st))
}

// Common error variables for convenience
var (
	ErrKeyNotFoundError     = NewError(ErrKeyNotFound)
	ErrDuplicateKeyError    = NewError(ErrDuplicateKey)
	ErrTxnConflictError     = NewError(ErrTxnConflict)
	ErrCursorIsNilError     = NewError(ErrCursorIsNil)
	ErrCursorStillOpenError = NewError(ErrCursorStillOpen)
	ErrClosedError          = errClosed
)

// IsNotFound returns true if the error is ErrKeyNotFound
func IsNotFound(err error) bool {
	return Code(err) == ErrKeyNotFound
}

// IsKeyExist returns true if the error is ErrDuplicateKey
func IsKeyExist(err error) bool {
	return Code(err) == ErrDuplicateKey
}

// IsConflict returns true for transaction conflicts and lock timeouts
func IsConflict(err error) bool {
	return err != nil && KindOf(err) == KindConflict
}

// IsClosed returns true if the error reports a closed handle
func IsClosed(err error) bool {
	return Code(err) == ErrClosed
}

// Code returns the error code from an error, or ErrInternal if not an ups
// error
func Code(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// KindOf returns the kind of err. Non-ups errors are internal.
func KindOf(err error) Kind {
	return Code(err).Kind()
}
