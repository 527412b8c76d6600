// Package types implements the WFL type lattice and checker (§4.4): Type
// inference over every expression, with an absorbing Error type so one
// mistake doesn't cascade into an avalanche of further diagnostics.
package types

import "fmt"

// Kind is the tag of a Type.
type Kind int

const (
	TextKind Kind = iota
	NumberKind
	BooleanKind
	NothingKind
	ListKind
	MapKind
	FunctionKind
	CustomKind
	AsyncKind
	UnknownKind
	ErrorKind
	AnyKind
)

// Type is WFL's static type (§3). List/Map/Function/Async/Custom carry
// structural payloads; the rest are singletons.
type Type struct {
	Kind     Kind
	Elem     *Type   // List element type, or Async payload type
	Key      *Type   // Map key type
	Value    *Type   // Map value type
	Params   []*Type // Function parameter types
	Return   *Type   // Function return type
	CustomID string  // Custom type name
}

var (
	Text    = &Type{Kind: TextKind}
	Number  = &Type{Kind: NumberKind}
	Boolean = &Type{Kind: BooleanKind}
	Nothing = &Type{Kind: NothingKind}
	Unknown = &Type{Kind: UnknownKind}
	Error   = &Type{Kind: ErrorKind}
	Any     = &Type{Kind: AnyKind}
)

func List(elem *Type) *Type          { return &Type{Kind: ListKind, Elem: elem} }
func Map(key, value *Type) *Type     { return &Type{Kind: MapKind, Key: key, Value: value} }
func Async(inner *Type) *Type        { return &Type{Kind: AsyncKind, Elem: inner} }
func Custom(name string) *Type       { return &Type{Kind: CustomKind, CustomID: name} }
func Func(params []*Type, ret *Type) *Type {
	return &Type{Kind: FunctionKind, Params: params, Return: ret}
}

func (t *Type) String() string {
	if t == nil {
		return "Unknown"
	}
	switch t.Kind {
	case TextKind:
		return "Text"
	case NumberKind:
		return "Number"
	case BooleanKind:
		return "Boolean"
	case NothingKind:
		return "Nothing"
	case ListKind:
		return fmt.Sprintf("List(%s)", t.Elem)
	case MapKind:
		return fmt.Sprintf("Map(%s, %s)", t.Key, t.Value)
	case FunctionKind:
		return "Function"
	case CustomKind:
		return t.CustomID
	case AsyncKind:
		return fmt.Sprintf("Async(%s)", t.Elem)
	case UnknownKind:
		return "Unknown"
	case ErrorKind:
		return "Error"
	case AnyKind:
		return "Any"
	default:
		return "?"
	}
}

// Compatible reports whether a value of type `from` may be used where
// `target` is expected (§4.4 Compatibility): Unknown and Error are
// silently accepted everywhere, Nothing is accepted anywhere, Async(T) is
// compatible wherever T is, and List/Map are checked structurally.
func Compatible(target, from *Type) bool {
	if target == nil || from == nil {
		return true
	}
	if from.Kind == UnknownKind || from.Kind == ErrorKind {
		return true
	}
	if target.Kind == UnknownKind || target.Kind == AnyKind {
		return true
	}
	if from.Kind == NothingKind {
		return true
	}
	if from.Kind == AsyncKind {
		return Compatible(target, from.Elem)
	}
	if target.Kind == AsyncKind {
		return Compatible(target.Elem, from)
	}
	if target.Kind != from.Kind {
		return false
	}
	switch target.Kind {
	case ListKind:
		return Compatible(target.Elem, from.Elem)
	case MapKind:
		return Compatible(target.Key, from.Key) && Compatible(target.Value, from.Value)
	case FunctionKind:
		if len(target.Params) != len(from.Params) {
			return false
		}
		for i := range target.Params {
			if !Compatible(target.Params[i], from.Params[i]) {
				return false
			}
		}
		return Compatible(target.Return, from.Return)
	case CustomKind:
		return target.CustomID == from.CustomID
	default:
		return true
	}
}
