package ups

import "github.com/cruppstahl/ups/internal/engine"

// Transaction scopes database and cursor operations for atomic commit or
// rollback. It ends exactly once, through Commit or Abort; afterwards every
// call fails with ErrClosed. Cursors bound to it must be closed first.
type Transaction struct {
	noCopy noCopy

	env  *Environment
	envH engine.Handle // environment handle the transaction was begun on
	name string
	ref  *handleRef
}

func newTransaction(env *Environment, envH engine.Handle, name string) *Transaction {
	return &Transaction{
		env:  env,
		envH: envH,
		name: name,
		ref:  newHandleRef(env.api, "transaction", releaseTransaction),
	}
}

// handle returns the engine handle; a nil transaction yields the null
// handle, which runs a call as a temporary transaction.
func (t *Transaction) handle() (engine.Handle, error) {
	if t == nil {
		return 0, nil
	}
	h := t.ref.get()
	if h == 0 || t.env.ref.get() != t.envH {
		return 0, errClosed
	}
	return h, nil
}

// Environment returns the environment the transaction was begun on.
func (t *Transaction) Environment() *Environment {
	return t.env
}

func (t *Transaction) Name() string {
	return t.name
}

// Commit makes the transaction's writes visible to everyone. A failed
// commit leaves the transaction active.
func (t *Transaction) Commit() error {
	return t.end(t.env.api.TxnCommit)
}

// Abort discards the transaction's writes.
func (t *Transaction) Abort() error {
	return t.end(t.env.api.TxnAbort)
}

func (t *Transaction) end(fn func(engine.Handle, uint32) engine.Status) error {
	t.env.mu.Lock()
	defer t.env.mu.Unlock()

	h, err := t.handle()
	if err != nil {
		// the environment closed underneath and aborted the transaction
		t.ref.take()
		return err
	}
	if err := check(fn(h, 0)); err != nil {
		return err
	}
	t.ref.take()
	return nil
}
