package ups

import "github.com/cruppstahl/ups/internal/engine"

// RegisterCompare makes fn available by name to every environment of the
// process. A TypeCustom database created with CompareName(name) stores the
// name and resolves it again on every open; opening it while the name is
// not registered fails with ErrNotReady. Names are case-insensitive.
func RegisterCompare(name string, fn CompareFunc) error {
	if name == "" {
		return invalid("empty compare function name")
	}
	if fn == nil {
		return invalid("nil compare function")
	}
	return check(engine.RegisterCompare(name, func(_ engine.Handle, lhs, rhs []byte) int {
		return fn(lhs, rhs)
	}))
}

// CompareName is the database parameter selecting the compare function
// registered under name.
func CompareName(name string) Parameter {
	return Parameter{Name: ParamCustomCompareName, Value: engine.CompareNameID(name)}
}
