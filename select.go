package ups

import (
	"encoding/binary"
	"math"

	"github.com/cruppstahl/ups/internal/engine"
)

// Result holds the rows returned by SelectRange. Keys are typed by KeyType
// and records by RecordType; both are Type* constants. Aggregates return a
// single row named after the function, such as "COUNT" or "SUM", with the
// value in the record.
type Result struct {
	keyType    uint16
	recordType uint16
	keys       [][]byte
	records    [][]byte
}

func (r *Result) RowCount() int {
	return len(r.keys)
}

func (r *Result) KeyType() uint16 {
	return r.keyType
}

func (r *Result) RecordType() uint16 {
	return r.recordType
}

// Key returns a copy of the key of row i, nil when i is out of range.
func (r *Result) Key(i int) []byte {
	if i < 0 || i >= len(r.keys) {
		return nil
	}
	return append([]byte(nil), r.keys[i]...)
}

// Record returns a copy of the record of row i, nil when i is out of range.
func (r *Result) Record(i int) []byte {
	if i < 0 || i >= len(r.records) {
		return nil
	}
	return append([]byte(nil), r.records[i]...)
}

// Uint64 decodes the record of row i of a TypeUint64 result.
func (r *Result) Uint64(i int) (uint64, error) {
	if r.recordType != TypeUint64 || i < 0 || i >= len(r.records) || len(r.records[i]) != 8 {
		return 0, invalid("row %d does not hold a uint64 record", i)
	}
	return binary.NativeEndian.Uint64(r.records[i]), nil
}

// Float64 decodes the record of row i of a TypeReal64 result.
func (r *Result) Float64(i int) (float64, error) {
	if r.recordType != TypeReal64 || i < 0 || i >= len(r.records) || len(r.records[i]) != 8 {
		return 0, invalid("row %d does not hold a real64 record", i)
	}
	return math.Float64frombits(binary.NativeEndian.Uint64(r.records[i])), nil
}

// SelectRange runs a query of the form
//
//	[DISTINCT] fn($key|$record|$key,$record) FROM DATABASE n [LIMIT n]
//
// where fn is one of count, sum, average, min, max, top, bottom or value.
// Database n need not be open. A non-nil begin cursor starts the range at
// its key, runs the query in its transaction and is left on the last key
// visited; a non-nil end cursor stops the range before its key. Malformed
// queries fail with ErrParserError, unknown functions and WHERE predicates
// with ErrPluginNotFound.
func (e *Environment) SelectRange(query string, begin, end *Cursor) (*Result, error) {
	var handles [2]engine.Handle
	for i, c := range []*Cursor{begin, end} {
		if c == nil {
			continue
		}
		if c.db.api() != e.api {
			return nil, invalid("cursor belongs to another engine")
		}
		h := c.ref.get()
		if h == 0 {
			return nil, errClosed
		}
		handles[i] = h
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	h, err := e.handle()
	if err != nil {
		return nil, err
	}
	res, st := e.api.EnvSelectRange(h, query, handles[0], handles[1])
	if err := check(st); err != nil {
		return nil, err
	}
	return &Result{
		keyType:    res.KeyType,
		recordType: res.RecordType,
		keys:       res.Keys,
		records:    res.Records,
	}, nil
}

// Select runs query over the whole database it names.
func (e *Environment) Select(query string) (*Result, error) {
	return e.SelectRange(query, nil, nil)
}
