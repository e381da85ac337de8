package ups

// TxnOp is a function that operates on a transaction.
// This is the callback type for View, Update, and RunTxn.
type TxnOp func(txn *Transaction) error

// CompareFunc is a comparison function for keys of a TypeCustom database.
type CompareFunc = func(a, b []byte) int

// View executes a read-only transaction.
// The transaction is automatically committed when fn returns nil,
// or aborted when fn returns an error.
func (e *Environment) View(fn TxnOp) error {
	return e.RunTxn(TxnReadOnly, fn)
}

// Update executes a read-write transaction.
// The transaction is automatically committed when fn returns nil,
// or aborted when fn returns an error.
func (e *Environment) Update(fn TxnOp) error {
	return e.RunTxn(TxnReadWrite, fn)
}

// RunTxn runs a transaction with the given flags.
// The transaction is automatically committed when fn returns nil,
// or aborted when fn returns an error. A panic in fn aborts the
// transaction before propagating.
func (e *Environment) RunTxn(flags uint32, fn TxnOp) (err error) {
	txn, err := e.Begin(flags)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	if err = fn(txn); err != nil {
		return err
	}
	if err = txn.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
