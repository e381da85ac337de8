package engine

import "math"

// Result holds the rows of a query. Keys are typed by KeyType, records by
// RecordType.
type Result struct {
	KeyType    uint16
	RecordType uint16
	Keys       [][]byte
	Records    [][]byte
}

func (r *Result) add(key, record []byte) {
	r.Keys = append(r.Keys, cloneBytes(key))
	r.Records = append(r.Records, cloneBytes(record))
}

// scanRow is one key of a scanned range with its visible duplicates.
type scanRow struct {
	key     []byte
	records [][]byte
}

// scan collects the keys visible to t from from (inclusive, nil for the
// first key) up to to (exclusive, nil for the end). Keys owned by other
// transactions are skipped.
func (tb *table) scan(t *txn, from, to []byte) []scanRow {
	var rows []scanRow
	inclusive := true
	for {
		k, records, st := tb.seek(t, from, 1, inclusive, true)
		if st != Success || (to != nil && tb.order(k, to) >= 0) {
			return rows
		}
		rows = append(rows, scanRow{key: k, records: records})
		from, inclusive = k, false
	}
}

type selectFunc func(tb *table, stmt *selectStmt, rows []scanRow) (*Result, Status)

var selectFuncs = map[string]selectFunc{
	"average": selectAverage,
	"bottom":  selectBottom,
	"count":   selectCount,
	"max":     selectMax,
	"min":     selectMin,
	"sum":     selectSum,
	"top":     selectTop,
	"value":   selectValue,
}

// EnvSelectRange runs query over a range of the database it names. A
// non-null begin cursor starts the range at its key and lends its
// transaction to the scan; afterwards it sits on the last key visited. A
// non-null end cursor ends the range before its key. Both cursors must be
// positioned on the queried database.
func (l *Local) EnvSelectRange(env Handle, query string, begin, end Handle) (*Result, Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, st := l.env(env)
	if st != Success {
		return nil, st
	}
	e.metrics.selects.Inc(1)
	stmt, ok := parseSelect(query)
	if !ok {
		return nil, l.fail(ParserError, "cannot parse %q", query)
	}
	run, ok := selectFuncs[stmt.function]
	if !ok {
		return nil, l.fail(PluginNotFound, "function %q is not available", stmt.function)
	}
	if stmt.predicate != "" {
		return nil, l.fail(PluginNotFound, "predicate %q is not available", stmt.predicate)
	}
	tb, ok := e.tables[stmt.db]
	if !ok {
		return nil, l.fail(DatabaseNotFound, "database %d not found", stmt.db)
	}
	if !tb.ready() {
		return nil, l.fail(NotReady, "database %d has no compare function", tb.name)
	}

	var t *txn
	var from, to []byte
	var first *cursor
	for i, h := range []Handle{begin, end} {
		if h == 0 {
			continue
		}
		c, st := l.cursor(h)
		if st != Success {
			return nil, st
		}
		if c.db.tbl != tb {
			return nil, l.fail(InvParameter, "cursor %d is not on database %d", h, tb.name)
		}
		if c.key == nil {
			return nil, CursorIsNil
		}
		if i == 0 {
			t, from, first = c.txn, c.key, c
		} else {
			to = c.key
		}
	}

	rows := tb.scan(t, from, to)
	if first != nil && len(rows) > 0 {
		last := rows[len(rows)-1]
		first.key, first.dup = cloneBytes(last.key), len(last.records)-1
	}
	res, st := run(tb, stmt, rows)
	if st != Success {
		return nil, l.fail(st, "%s cannot read this stream of database %d", stmt.function, tb.name)
	}
	return res, Success
}

// weight is the number of times a key counts: once per duplicate, or once
// for a DISTINCT query.
func weight(stmt *selectStmt, row scanRow) int {
	if stmt.distinct {
		return 1
	}
	return len(row.records)
}

// numericKeys reports whether stmt reads only the keys of a numeric table.
func numericKeys(tb *table, stmt *selectStmt) bool {
	return stmt.stream == streamKey && fixedKeySize(tb.keyType) != 0
}

func realKeys(keyType uint16) bool {
	return keyType == TypeReal32 || keyType == TypeReal64
}

// keyNumber reads a numeric key as an integer and as a float.
func keyNumber(keyType uint16, b []byte) (uint64, float64) {
	var u uint64
	switch keyType {
	case TypeUint8:
		u = uint64(b[0])
	case TypeUint16:
		u = uint64(loadUint16(b))
	case TypeUint32:
		u = uint64(loadUint32(b))
	case TypeUint64:
		u = loadUint64(b)
	case TypeReal32:
		return 0, float64(math.Float32frombits(loadUint32(b)))
	case TypeReal64:
		return 0, math.Float64frombits(loadUint64(b))
	}
	return u, float64(u)
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	putRecno64(b, v)
	return b
}

func real64Bytes(f float64) []byte {
	return uint64Bytes(math.Float64bits(f))
}

func selectCount(_ *table, stmt *selectStmt, rows []scanRow) (*Result, Status) {
	var n uint64
	for _, row := range rows {
		n += uint64(weight(stmt, row))
	}
	res := &Result{KeyType: TypeBinary, RecordType: TypeUint64}
	res.add([]byte("COUNT\x00"), uint64Bytes(n))
	return res, Success
}

func selectSum(tb *table, stmt *selectStmt, rows []scanRow) (*Result, Status) {
	if !numericKeys(tb, stmt) {
		return nil, InvParameter
	}
	var u uint64
	var f float64
	for _, row := range rows {
		w := weight(stmt, row)
		ku, kf := keyNumber(tb.keyType, row.key)
		u += ku * uint64(w)
		f += kf * float64(w)
	}
	res := &Result{KeyType: TypeBinary}
	if realKeys(tb.keyType) {
		res.RecordType = TypeReal64
		res.add([]byte("SUM\x00"), real64Bytes(f))
	} else {
		res.RecordType = TypeUint64
		res.add([]byte("SUM\x00"), uint64Bytes(u))
	}
	return res, Success
}

func selectAverage(tb *table, stmt *selectStmt, rows []scanRow) (*Result, Status) {
	if !numericKeys(tb, stmt) {
		return nil, InvParameter
	}
	var sum float64
	var n int
	for _, row := range rows {
		w := weight(stmt, row)
		_, kf := keyNumber(tb.keyType, row.key)
		sum += kf * float64(w)
		n += w
	}
	avg := 0.0
	if n > 0 {
		avg = sum / float64(n)
	}
	res := &Result{KeyType: TypeBinary, RecordType: TypeReal64}
	res.add([]byte("AVERAGE\x00"), real64Bytes(avg))
	return res, Success
}

// Numeric tables are ordered by value, so the extremes of a range are its
// first and last keys.

func selectMin(tb *table, stmt *selectStmt, rows []scanRow) (*Result, Status) {
	if !numericKeys(tb, stmt) {
		return nil, InvParameter
	}
	res := &Result{KeyType: tb.keyType, RecordType: TypeBinary}
	if len(rows) > 0 {
		res.add(rows[0].key, rows[0].records[0])
	}
	return res, Success
}

func selectMax(tb *table, stmt *selectStmt, rows []scanRow) (*Result, Status) {
	if !numericKeys(tb, stmt) {
		return nil, InvParameter
	}
	res := &Result{KeyType: tb.keyType, RecordType: TypeBinary}
	if n := len(rows); n > 0 {
		res.add(rows[n-1].key, rows[n-1].records[0])
	}
	return res, Success
}

// selectTop returns the LIMIT largest keys (one by default) in ascending
// order.
func selectTop(tb *table, stmt *selectStmt, rows []scanRow) (*Result, Status) {
	if !numericKeys(tb, stmt) {
		return nil, InvParameter
	}
	n := int(min(max(stmt.limit, 1), uint64(len(rows))))
	res := &Result{KeyType: tb.keyType, RecordType: TypeBinary}
	for _, row := range rows[len(rows)-n:] {
		res.add(row.key, nil)
	}
	return res, Success
}

// selectBottom returns the LIMIT smallest keys (one by default).
func selectBottom(tb *table, stmt *selectStmt, rows []scanRow) (*Result, Status) {
	if !numericKeys(tb, stmt) {
		return nil, InvParameter
	}
	n := int(min(max(stmt.limit, 1), uint64(len(rows))))
	res := &Result{KeyType: tb.keyType, RecordType: TypeBinary}
	for _, row := range rows[:n] {
		res.add(row.key, nil)
	}
	return res, Success
}

// selectValue returns the scanned keys and records, one row per duplicate
// unless DISTINCT, up to LIMIT rows.
func selectValue(tb *table, stmt *selectStmt, rows []scanRow) (*Result, Status) {
	res := &Result{KeyType: tb.keyType, RecordType: TypeBinary}
	for _, row := range rows {
		records := row.records
		if stmt.distinct {
			records = records[:1]
		}
		for _, rec := range records {
			if stmt.limit != 0 && uint64(len(res.Keys)) >= stmt.limit {
				return res, Success
			}
			var k, r []byte
			if stmt.stream&streamKey != 0 {
				k = row.key
			}
			if stmt.stream&streamRecord != 0 {
				r = rec
			}
			res.add(k, r)
		}
	}
	return res, Success
}
