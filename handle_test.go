package ups

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/cruppstahl/ups/internal/engine"
)

// faultEngine wraps a real engine, failing selected calls and counting the
// release calls it sees.
type faultEngine struct {
	engine.API

	mu         sync.Mutex
	createErr  engine.Status
	dbCloseErr engine.Status
	calls      map[string]int
	lastFlags  map[string]uint32
}

func newFaultEngine() *faultEngine {
	return &faultEngine{
		API:       engine.New(),
		calls:     make(map[string]int),
		lastFlags: make(map[string]uint32),
	}
}

func (f *faultEngine) count(name string, flags uint32) {
	f.mu.Lock()
	f.calls[name]++
	f.lastFlags[name] = flags
	f.mu.Unlock()
}

func (f *faultEngine) called(name string) (int, uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name], f.lastFlags[name]
}

func (f *faultEngine) EnvCreate(path string, flags, mode uint32, params []engine.Parameter) (engine.Handle, engine.Status) {
	f.count("EnvCreate", flags)
	if f.createErr != engine.Success {
		return 0, f.createErr
	}
	return f.API.EnvCreate(path, flags, mode, params)
}

func (f *faultEngine) EnvClose(h engine.Handle, flags uint32) engine.Status {
	f.count("EnvClose", flags)
	return f.API.EnvClose(h, flags)
}

func (f *faultEngine) DBClose(h engine.Handle, flags uint32) engine.Status {
	f.count("DBClose", flags)
	if f.dbCloseErr != engine.Success {
		// release the handle anyway so the environment can close
		f.API.DBClose(h, flags|engine.AutoCleanup)
		return f.dbCloseErr
	}
	return f.API.DBClose(h, flags)
}

func (f *faultEngine) CursorClose(h engine.Handle) engine.Status {
	f.count("CursorClose", 0)
	return f.API.CursorClose(h)
}

func TestFailedCreateLeavesEnvironmentClosed(t *testing.T) {
	fe := newFaultEngine()
	fe.createErr = engine.IOError
	env := newEnvironment(fe)

	err := env.Create("", InMemory, 0)
	if Code(err) != ErrIO {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if env.ref.valid() {
		t.Fatal("failed create stored a handle")
	}
	if _, err := env.CreateDatabase(1, 0); !IsClosed(err) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if _, err := env.Begin(0); !IsClosed(err) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if err := env.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if n, _ := fe.called("EnvClose"); n != 0 {
		t.Fatalf("EnvClose called %d times for a never-opened environment", n)
	}

	fe.createErr = engine.Success
	if err := env.Create("", InMemory, 0); err != nil {
		t.Fatalf("retry Create failed: %v", err)
	}
	if err := env.Create("", InMemory, 0); Code(err) != ErrEnvironmentAlreadyOpen {
		t.Fatalf("expected ErrEnvironmentAlreadyOpen, got %v", err)
	}
	if err := env.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if n, flags := fe.called("EnvClose"); n != 1 || flags&engine.TxnAutoAbort == 0 {
		t.Fatalf("EnvClose calls = %d, flags 0x%x", n, flags)
	}
}

func TestCloseClearsHandleOnEngineFailure(t *testing.T) {
	fe := newFaultEngine()
	env := newEnvironment(fe)
	if err := env.Create("", InMemory, 0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer env.Close()
	db, err := env.CreateDatabase(1, 0)
	if err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}

	fe.dbCloseErr = engine.IOError
	if err := db.Close(); Code(err) != ErrIO {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	fe.dbCloseErr = engine.Success
	if err := db.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if n, _ := fe.called("DBClose"); n != 1 {
		t.Fatalf("DBClose called %d times", n)
	}
	if _, err := db.Find(nil, []byte("k")); !IsClosed(err) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestCursorCloseOnce(t *testing.T) {
	fe := newFaultEngine()
	env := newEnvironment(fe)
	if err := env.Create("", InMemory, 0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer env.Close()
	db, _ := env.CreateDatabase(1, 0)

	var cursors []*Cursor
	for i := 0; i < 3; i++ {
		c, err := db.NewCursor(nil)
		if err != nil {
			t.Fatalf("NewCursor failed: %v", err)
		}
		cursors = append(cursors, c)
	}
	cursors[0].Close()
	cursors[0].Close()
	if len(db.cursors) != 2 {
		t.Fatalf("expected 2 tracked cursors, got %d", len(db.cursors))
	}
	db.Close()
	for _, c := range cursors {
		c.Close()
	}
	if n, _ := fe.called("CursorClose"); n != 3 {
		t.Fatalf("CursorClose called %d times, want 3", n)
	}
}

func TestFinalizeHandle(t *testing.T) {
	fe := newFaultEngine()
	env := newEnvironment(fe)
	if err := env.Create("", InMemory, 0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer env.Close()
	db, _ := env.CreateDatabase(1, 0)
	if _, err := db.NewCursor(nil); err != nil {
		t.Fatalf("NewCursor failed: %v", err)
	}

	finalizeHandle(db.ref)
	if db.ref.valid() {
		t.Fatal("finalizer left the handle set")
	}
	n, flags := fe.called("DBClose")
	if n != 1 || flags&engine.AutoCleanup == 0 {
		t.Fatalf("DBClose calls = %d, flags 0x%x", n, flags)
	}
	finalizeHandle(db.ref)
	if n, _ := fe.called("DBClose"); n != 1 {
		t.Fatalf("finalizer released twice")
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close after finalize failed: %v", err)
	}
}

func TestConcurrentClose(t *testing.T) {
	fe := newFaultEngine()
	env := newEnvironment(fe)
	if err := env.Create("", InMemory, 0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	db, _ := env.CreateDatabase(1, 0)
	for i := 0; i < 4; i++ {
		db.NewCursor(nil)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- db.Close()
		}()
		go func() {
			defer wg.Done()
			errs <- env.Close()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil && !errors.Is(err, errClosed) {
			t.Fatalf("concurrent Close failed: %v", err)
		}
	}
	if n, _ := fe.called("DBClose"); n != 1 {
		t.Fatalf("DBClose called %d times", n)
	}
	if n, _ := fe.called("EnvClose"); n != 1 {
		t.Fatalf("EnvClose called %d times", n)
	}
}

func customDB(t *testing.T, api engine.API, fn CompareFunc) (*Environment, *Database) {
	t.Helper()
	env := newEnvironment(api)
	if err := env.Create("", InMemory, 0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	db, err := env.CreateDatabase(1, 0, Parameter{Name: ParamKeyType, Value: uint64(TypeCustom)})
	if err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}
	if err := db.SetCompareFunc(fn); err != nil {
		t.Fatalf("SetCompareFunc failed: %v", err)
	}
	for _, k := range []string{"a", "c", "b"} {
		if err := db.Insert(nil, []byte(k), nil, 0); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	return env, db
}

func keyOrder(t *testing.T, db *Database) string {
	t.Helper()
	c, err := db.NewCursor(nil)
	if err != nil {
		t.Fatalf("NewCursor failed: %v", err)
	}
	defer c.Close()
	var got string
	for {
		key, _, ok, err := c.TryMove(MoveNext)
		if err != nil {
			t.Fatalf("TryMove failed: %v", err)
		}
		if !ok {
			return got
		}
		got += string(key)
	}
}

func TestCompareFuncPerEngine(t *testing.T) {
	reverse := func(a, b []byte) int { return bytes.Compare(b, a) }
	envA, dbA := customDB(t, engine.New(), reverse)
	defer envA.Close()
	envB, dbB := customDB(t, engine.New(), bytes.Compare)
	defer envB.Close()

	if dbA.ref.get() != dbB.ref.get() {
		t.Fatalf("engines assigned handles %d and %d", dbA.ref.get(), dbB.ref.get())
	}
	if got := keyOrder(t, dbA); got != "cba" {
		t.Fatalf("first engine order %q, want cba", got)
	}
	if got := keyOrder(t, dbB); got != "abc" {
		t.Fatalf("second engine order %q, want abc", got)
	}
}

func TestFinalizeDropsCompareFunc(t *testing.T) {
	fe := newFaultEngine()
	env, db := customDB(t, fe, bytes.Compare)
	defer env.Close()

	key := compareKey{api: fe, db: db.ref.get()}
	if _, ok := compareFuncs.Load(key); !ok {
		t.Fatal("compare function not registered")
	}
	finalizeHandle(db.ref)
	if _, ok := compareFuncs.Load(key); ok {
		t.Fatal("finalizer left the compare function registered")
	}
}
