package engine

import (
	"bytes"
	"cmp"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

// keyOrder compares two keys of one table.
type keyOrder func(lhs, rhs []byte) int

func numericOrder[T cmp.Ordered](load func([]byte) T) keyOrder {
	return func(lhs, rhs []byte) int {
		return cmp.Compare(load(lhs), load(rhs))
	}
}

// orderFor returns the ordering of a key type. Custom tables get a
// placeholder that sorts bytewise until DBSetCompareFunc installs the real
// function.
func orderFor(keyType uint16) keyOrder {
	switch keyType {
	case TypeUint8:
		return numericOrder(func(b []byte) uint8 { return b[0] })
	case TypeUint16:
		return numericOrder(loadUint16)
	case TypeUint32:
		return numericOrder(loadUint32)
	case TypeUint64:
		return numericOrder(loadUint64)
	case TypeReal32:
		return numericOrder(func(b []byte) float32 { return math.Float32frombits(loadUint32(b)) })
	case TypeReal64:
		return numericOrder(func(b []byte) float64 { return math.Float64frombits(loadUint64(b)) })
	default:
		return bytes.Compare
	}
}

// fixedKeySize returns the mandatory key size of numeric key types, 0 for
// variable-size types.
func fixedKeySize(keyType uint16) uint16 {
	switch keyType {
	case TypeUint8:
		return 1
	case TypeUint16:
		return 2
	case TypeUint32, TypeReal32:
		return 4
	case TypeUint64, TypeReal64:
		return 8
	}
	return 0
}

func validKeyType(keyType uint16) bool {
	switch keyType {
	case TypeBinary, TypeCustom, TypeUint8, TypeUint16, TypeUint32,
		TypeUint64, TypeReal32, TypeReal64:
		return true
	}
	return false
}

// namedCompare is a compare function registered for use by name.
type namedCompare struct {
	name string
	fn   CompareFunc
}

// compares is shared by every engine of the process; databases persist the
// name, not the function.
var compares = xsync.NewMapOf[uint64, namedCompare]()

// CompareNameID returns the ParamCustomCompareName value of name. Names are
// case-insensitive.
func CompareNameID(name string) uint64 {
	return xxhash.Sum64String(strings.ToLower(name))
}

// RegisterCompare makes fn available to TypeCustom databases created or
// opened with ParamCustomCompareName. Registering a name again replaces the
// function for databases opened afterwards.
func RegisterCompare(name string, fn CompareFunc) Status {
	if name == "" || fn == nil {
		return InvParameter
	}
	compares.Store(CompareNameID(name), namedCompare{name: strings.ToLower(name), fn: fn})
	return Success
}

func lookupCompare(id uint64) (namedCompare, bool) {
	return compares.Load(id)
}
