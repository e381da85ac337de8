package ups

import (
	"bytes"
	"runtime"
	"sync/atomic"

	"github.com/cruppstahl/ups/internal/engine"
	"github.com/puzpuzpuz/xsync/v3"
)

// noCopy may be embedded into structs which must not be copied after first
// use. go vet's copylocks check reports copies.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// releaseFunc frees a handle from the finalizer path.
type releaseFunc func(api engine.API, h engine.Handle) engine.Status

// handleRef owns one engine handle. The zero handle means the owner was
// never opened or is closed. The finalizer sits on handleRef rather than on
// the façade types, which reference each other.
type handleRef struct {
	api     engine.API
	h       atomic.Uint32
	kind    string
	release releaseFunc
}

func newHandleRef(api engine.API, kind string, release releaseFunc) *handleRef {
	return &handleRef{api: api, kind: kind, release: release}
}

// set stores h and arms the finalizer.
func (r *handleRef) set(h engine.Handle) {
	r.h.Store(uint32(h))
	runtime.SetFinalizer(r, finalizeHandle)
}

func (r *handleRef) get() engine.Handle {
	return engine.Handle(r.h.Load())
}

func (r *handleRef) valid() bool {
	return r.h.Load() != 0
}

// take clears the handle and returns it. Only the first caller gets a
// non-zero handle.
func (r *handleRef) take() engine.Handle {
	h := engine.Handle(r.h.Swap(0))
	if h != 0 {
		runtime.SetFinalizer(r, nil)
	}
	return h
}

// finalizeHandle releases a handle whose owner was dropped without Close.
// The engine may already have invalidated the handle through its parent;
// the resulting status is ignored.
func finalizeHandle(r *handleRef) {
	h := engine.Handle(r.h.Swap(0))
	if h == 0 {
		return
	}
	logger().Warn("releasing unclosed handle", "kind", r.kind, "handle", uint32(h))
	r.release(r.api, h)
	if r.kind == "database" {
		compareFuncs.Delete(compareKey{api: r.api, db: h})
	}
}

func releaseEnvironment(api engine.API, h engine.Handle) engine.Status {
	return api.EnvClose(h, closeAutoCleanup|closeTxnAutoAbort)
}

func releaseDatabase(api engine.API, h engine.Handle) engine.Status {
	return api.DBClose(h, closeAutoCleanup)
}

func releaseTransaction(api engine.API, h engine.Handle) engine.Status {
	return api.TxnAbort(h, 0)
}

func releaseCursor(api engine.API, h engine.Handle) engine.Status {
	return api.CursorClose(h)
}

// compareKey names one database handle of one engine. Handles of separate
// engines overlap.
type compareKey struct {
	api engine.API
	db  engine.Handle
}

// compareFuncs maps database handles to their compare callbacks. The engine
// only ever sees trampolines.
var compareFuncs = xsync.NewMapOf[compareKey, CompareFunc]()

// compareTrampoline returns the engine callback of databases opened through
// api.
func compareTrampoline(api engine.API) engine.CompareFunc {
	return func(db engine.Handle, lhs, rhs []byte) int {
		fn, ok := compareFuncs.Load(compareKey{api: api, db: db})
		if !ok {
			return bytes.Compare(lhs, rhs)
		}
		return fn(lhs, rhs)
	}
}
