package engine

import (
	"strconv"
	"strings"
)

// Streams a query function reads.
const (
	streamKey    = 1
	streamRecord = 2
)

// selectStmt is a parsed query:
//
//	[DISTINCT] fn($key|$record|$key,$record) FROM DATABASE n
//	    [WHERE pred(...)] [LIMIT n] [;]
//
// Keywords, function names and stream names are case-insensitive.
type selectStmt struct {
	distinct  bool
	function  string
	stream    int
	db        uint16
	predicate string
	limit     uint64
}

type queryParser struct {
	toks []string
	pos  int
}

func isQueryWord(ch byte) bool {
	switch {
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		return true
	}
	return strings.IndexByte("$@_-.", ch) >= 0
}

func tokenize(q string) ([]string, bool) {
	var out []string
	for i := 0; i < len(q); {
		ch := q[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case strings.IndexByte("(),;", ch) >= 0:
			out = append(out, q[i:i+1])
			i++
		case isQueryWord(ch):
			j := i
			for j < len(q) && isQueryWord(q[j]) {
				j++
			}
			out = append(out, q[i:j])
			i = j
		default:
			return nil, false
		}
	}
	return out, true
}

func (p *queryParser) take() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	p.pos++
	return p.toks[p.pos-1]
}

// accept consumes the next token if it equals tok, ignoring case.
func (p *queryParser) accept(tok string) bool {
	if p.pos < len(p.toks) && strings.EqualFold(p.toks[p.pos], tok) {
		p.pos++
		return true
	}
	return false
}

// call parses name(stream[, stream]).
func (p *queryParser) call() (string, int, bool) {
	name := strings.ToLower(p.take())
	if name == "" || name[0] == '$' || !p.accept("(") {
		return "", 0, false
	}
	stream := 0
	for {
		switch strings.ToLower(p.take()) {
		case "$key":
			stream |= streamKey
		case "$record":
			stream |= streamRecord
		default:
			return "", 0, false
		}
		if p.accept(")") {
			return name, stream, true
		}
		if !p.accept(",") {
			return "", 0, false
		}
	}
}

// parseNumber reads decimal, 0x hexadecimal and 0 octal numbers.
func parseNumber(s string) (uint64, bool) {
	if s == "" || s[0] < '0' || s[0] > '9' || strings.ContainsRune(s, '_') {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 0, 64)
	return n, err == nil
}

func parseSelect(q string) (*selectStmt, bool) {
	toks, ok := tokenize(q)
	if !ok {
		return nil, false
	}
	p := &queryParser{toks: toks}
	stmt := &selectStmt{distinct: p.accept("distinct")}
	if stmt.function, stmt.stream, ok = p.call(); !ok {
		return nil, false
	}
	if !p.accept("from") || !p.accept("database") {
		return nil, false
	}
	n, ok := parseNumber(p.take())
	if !ok || n > 0xffff || !validDBName(uint16(n)) {
		return nil, false
	}
	stmt.db = uint16(n)
	if p.accept("where") {
		if stmt.predicate, _, ok = p.call(); !ok {
			return nil, false
		}
	}
	if p.accept("limit") {
		if stmt.limit, ok = parseNumber(p.take()); !ok {
			return nil, false
		}
	}
	p.accept(";")
	return stmt, p.pos == len(toks)
}
