package engine

import (
	"fmt"
	"sync"

	"github.com/cruppstahl/ups/internal/fastmap"
)

// Local is the in-process engine. All calls are serialized on one mutex,
// the way a native engine serializes calls on its environment lock.
type Local struct {
	mu      sync.Mutex
	last    uint32
	objects fastmap.Map[any]
	onError ErrorHandler
}

var _ API = (*Local)(nil)

var defaultLocal = New()

// New returns an engine with no open resources.
func New() *Local {
	return &Local{}
}

// Default returns the process-wide engine instance.
func Default() *Local {
	return defaultLocal
}

// register assigns the next handle to obj. Handles are never reused so a
// stale handle can never reach a newer resource.
func (l *Local) register(obj any) Handle {
	l.last++
	l.objects.Set(l.last, obj)
	return Handle(l.last)
}

func (l *Local) unregister(h Handle) {
	l.objects.Delete(uint32(h))
}

func lookup[T any](l *Local, h Handle) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}
	obj, ok := l.objects.Get(uint32(h))
	if !ok {
		return zero, false
	}
	v, ok := obj.(T)
	return v, ok
}

func (l *Local) env(h Handle) (*environment, Status) {
	e, ok := lookup[*environment](l, h)
	if !ok {
		return nil, l.fail(InvParameter, "invalid environment handle %d", h)
	}
	return e, Success
}

func (l *Local) db(h Handle) (*database, Status) {
	d, ok := lookup[*database](l, h)
	if !ok {
		return nil, l.fail(InvParameter, "invalid database handle %d", h)
	}
	return d, Success
}

func (l *Local) cursor(h Handle) (*cursor, Status) {
	c, ok := lookup[*cursor](l, h)
	if !ok {
		return nil, l.fail(InvParameter, "invalid cursor handle %d", h)
	}
	return c, Success
}

// txnFor resolves a transaction handle passed together with db. The null
// handle yields a nil txn, which runs the call as a temporary transaction.
func (l *Local) txnFor(d *database, h Handle) (*txn, Status) {
	if h == 0 {
		return nil, Success
	}
	t, ok := lookup[*txn](l, h)
	if !ok {
		return nil, l.fail(InvParameter, "invalid transaction handle %d", h)
	}
	if t.env != d.env {
		return nil, l.fail(InvParameter, "transaction belongs to another environment")
	}
	return t, Success
}

// fail reports st through the error handler and returns it.
func (l *Local) fail(st Status, format string, args ...any) Status {
	if l.onError != nil {
		level := LevelDebug
		switch st {
		case IOError, InternalError, IntegrityViolated:
			level = LevelFatal
		case InvParameter, InvKeySize, InvRecordSize, InvFileHeader, InvFileVersion:
			level = LevelWarn
		}
		l.onError(level, fmt.Sprintf(format, args...))
	}
	return st
}

// SetErrorHandler installs fn as the receiver of diagnostic messages. A nil
// fn silences the engine.
func (l *Local) SetErrorHandler(fn ErrorHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onError = fn
}

func (l *Local) StrError(st Status) string {
	return StrError(st)
}

func (l *Local) Version() (major, minor, revision uint32) {
	return VersionMajor, VersionMinor, VersionRevision
}

// arena is per-handle scratch memory. Each hold overwrites what the
// previous hold returned.
type arena struct {
	buf []byte
}

func (a *arena) hold(b []byte) []byte {
	a.buf = append(a.buf[:0], b...)
	return a.buf
}

func putKey(k *Key, a *arena, data []byte) {
	if k == nil {
		return
	}
	k.Data = a.hold(data)
	k.Size = int16(len(data))
}

// putRecord stores data into r, honouring a partial read request.
func putRecord(r *Record, a *arena, data []byte, flags uint32) {
	if r == nil {
		return
	}
	if flags&Partial != 0 {
		off := min(int(r.PartialOffset), len(data))
		end := min(off+int(r.PartialSize), len(data))
		data = data[off:end]
	}
	r.Data = a.hold(data)
	r.Size = uint32(len(data))
}

// keyBytes validates the caller's key wire structure.
func keyBytes(k *Key) ([]byte, Status) {
	if k == nil {
		return nil, InvParameter
	}
	if k.Size < 0 || int(k.Size) > len(k.Data) {
		return nil, InvKeySize
	}
	return k.Data[:k.Size], Success
}

func recordBytes(r *Record) ([]byte, Status) {
	if r == nil {
		return nil, InvParameter
	}
	if uint64(r.Size) > uint64(len(r.Data)) {
		return nil, InvRecordSize
	}
	return r.Data[:r.Size], Success
}

// parseParams reads a sentinel terminated parameter array. Names not in
// allowed fail with InvParameter.
func parseParams(params []Parameter, allowed ...uint32) (map[uint32]uint64, Status) {
	out := make(map[uint32]uint64)
	if len(params) == 0 {
		return out, Success
	}
	for _, p := range params {
		if p.Name == 0 {
			return out, Success
		}
		known := false
		for _, a := range allowed {
			if a == p.Name {
				known = true
				break
			}
		}
		if !known {
			return nil, InvParameter
		}
		out[p.Name] = p.Value
	}
	// no sentinel
	return nil, InvParameter
}
