package ups

import "github.com/cruppstahl/ups/internal/engine"

// OperationType selects what a bulk Operation does.
type OperationType uint32

const (
	OpInsert OperationType = OperationType(engine.OpInsert)
	OpErase  OperationType = OperationType(engine.OpErase)
	OpFind   OperationType = OperationType(engine.OpFind)
)

// Operation is one element of a BulkOperations batch. For OpFind, Record
// receives the record found and, with approximate Flags, Key the matched
// key. Result receives the error of the individual operation.
type Operation struct {
	Type   OperationType
	Key    []byte
	Record []byte
	Flags  uint32
	Result error
}

// BulkOperations runs ops in order inside one engine call. A failing
// operation does not stop the batch; its error is stored in Result. The
// returned error reports failures of the batch itself.
func (d *Database) BulkOperations(txn *Transaction, ops []Operation) error {
	native := make([]engine.Operation, len(ops))
	for i := range ops {
		k, err := marshalKey(ops[i].Key)
		if err != nil {
			return err
		}
		r, err := marshalRecord(ops[i].Record)
		if err != nil {
			return err
		}
		if ops[i].Type == OpFind {
			r = engine.Record{}
		}
		native[i] = engine.Operation{
			Type:   uint32(ops[i].Type),
			Key:    k,
			Record: r,
			Flags:  ops[i].Flags,
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	h, th, err := d.handles(txn)
	if err != nil {
		return err
	}
	if err := check(d.api().DBBulkOperations(h, th, native, 0)); err != nil {
		return err
	}

	for i := range ops {
		op := &native[i]
		ops[i].Result = check(op.Result)
		if ops[i].Type != OpFind || op.Result != engine.Success {
			continue
		}
		ops[i].Record = copyRecord(&op.Record)
		if FindFlag(op.Flags).approximate() {
			ops[i].Key = copyKey(&op.Key)
		}
	}
	return nil
}
