package sema

import (
	"strconv"
	"strings"
)

// TypeKind enumerates the dialect's type constructors.
type TypeKind uint8

const (
	KindAny TypeKind = iota
	KindNumber
	KindString
	KindBoolean
	KindNull
	KindVoid
	KindNumLit
	KindStrLit
	KindBoolLit
	KindFunc
)

// Type is an interned-by-construction structural type. Literal kinds carry
// their value so const narrowing can surface it verbatim.
type Type struct {
	Kind     TypeKind
	NumRaw   string  // исходная запись числового литерала
	NumVal   float64
	StrVal   string
	BoolVal  bool
	Params   []*Type
	ParamNames []string
	Ret      *Type
	Variadic bool
}

var (
	AnyType     = &Type{Kind: KindAny}
	NumberType  = &Type{Kind: KindNumber}
	StringType  = &Type{Kind: KindString}
	BooleanType = &Type{Kind: KindBoolean}
	NullType    = &Type{Kind: KindNull}
	VoidType    = &Type{Kind: KindVoid}
)

func NumLit(raw string, v float64) *Type {
	return &Type{Kind: KindNumLit, NumRaw: raw, NumVal: v}
}

func StrLit(v string) *Type {
	return &Type{Kind: KindStrLit, StrVal: v}
}

func BoolLit(v bool) *Type {
	return &Type{Kind: KindBoolLit, BoolVal: v}
}

func Func(ret *Type, params ...*Type) *Type {
	return &Type{Kind: KindFunc, Params: params, Ret: ret}
}

func (t *Type) String() string {
	switch t.Kind {
	case KindAny:
		return "any"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindNull:
		return "null"
	case KindVoid:
		return "void"
	case KindNumLit:
		if t.NumRaw != "" {
			return t.NumRaw
		}
		return strconv.FormatFloat(t.NumVal, 'g', -1, 64)
	case KindStrLit:
		return strconv.Quote(t.StrVal)
	case KindBoolLit:
		return strconv.FormatBool(t.BoolVal)
	case KindFunc:
		var sb strings.Builder
		sb.WriteByte('(')
		for i, p := range t.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			if i < len(t.ParamNames) && t.ParamNames[i] != "" {
				sb.WriteString(t.ParamNames[i])
			} else {
				sb.WriteString("arg" + strconv.Itoa(i))
			}
			sb.WriteString(": ")
			sb.WriteString(p.String())
		}
		if t.Variadic {
			if len(t.Params) > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("...args: any[]")
		}
		sb.WriteString(") => ")
		if t.Ret != nil {
			sb.WriteString(t.Ret.String())
		} else {
			sb.WriteString("void")
		}
		return sb.String()
	}
	return "unknown"
}

// Widen collapses a literal type to its base. Used for let bindings and
// inference positions that must not narrow.
func (t *Type) Widen() *Type {
	switch t.Kind {
	case KindNumLit:
		return NumberType
	case KindStrLit:
		return StringType
	case KindBoolLit:
		return BooleanType
	}
	return t
}

// Assignable reports whether src can be supplied where dst is expected.
// any is assignable in both directions; a literal is assignable to its base;
// null is assignable to any reference-ish position only via any.
func Assignable(dst, src *Type) bool {
	if dst == nil || src == nil {
		return true
	}
	if dst.Kind == KindAny || src.Kind == KindAny {
		return true
	}
	if dst.Kind == src.Kind {
		switch dst.Kind {
		case KindNumLit:
			return dst.NumVal == src.NumVal
		case KindStrLit:
			return dst.StrVal == src.StrVal
		case KindBoolLit:
			return dst.BoolVal == src.BoolVal
		}
		return true
	}
	switch dst.Kind {
	case KindNumber:
		return src.Kind == KindNumLit
	case KindString:
		return src.Kind == KindStrLit
	case KindBoolean:
		return src.Kind == KindBoolLit
	}
	return false
}
