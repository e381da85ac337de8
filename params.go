package ups

import "github.com/cruppstahl/ups/internal/engine"

// Parameter is a name/value pair passed to Create, Open and the database
// constructors, or queried through Parameters.
type Parameter struct {
	Name  uint32
	Value uint64
}

// terminateParams copies params into the engine layout and appends the
// {0, 0} sentinel the engine requires. An empty list yields nil.
func terminateParams(params []Parameter) []engine.Parameter {
	if len(params) == 0 {
		return nil
	}
	out := make([]engine.Parameter, len(params)+1)
	for i, p := range params {
		out[i] = engine.Parameter{Name: p.Name, Value: p.Value}
	}
	return out
}

// queryParams builds a terminated query for names. A zero name would end
// the list early and is rejected.
func queryParams(names []uint32) ([]engine.Parameter, error) {
	out := make([]engine.Parameter, len(names)+1)
	for i, n := range names {
		if n == 0 {
			return nil, invalid("parameter name 0 is reserved")
		}
		out[i].Name = n
	}
	return out, nil
}

func queryResult(params []engine.Parameter) []Parameter {
	out := make([]Parameter, 0, len(params))
	for _, p := range params {
		if p.Name == 0 {
			break
		}
		out = append(out, Parameter{Name: p.Name, Value: p.Value})
	}
	return out
}
