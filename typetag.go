package tiny

// TypeKind discriminates the variants of a Typetag. Mirrors TypetagType in
// tiny/src/type.c, minus TYPETAG_FOREIGN (folded into TYPETAG_FUNC here,
// since a foreign func's type is structurally a func type).
type TypeKind int

const (
	TypeVoid TypeKind = iota
	TypeBool
	TypeChar
	TypeInt
	TypeFloat
	TypeStr
	TypeAny
	TypeFunc
	TypeStruct
	TypeName
)

func (k TypeKind) String() string {
	switch k {
	case TypeVoid:
		return "void"
	case TypeBool:
		return "bool"
	case TypeChar:
		return "char"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeStr:
		return "str"
	case TypeAny:
		return "any"
	case TypeFunc:
		return "func"
	case TypeStruct:
		return "struct"
	case TypeName:
		return "name"
	default:
		return "<unknown type>"
	}
}

// Typetag is an interned, immutable type descriptor. Two tags with equal
// structural content are always the same pointer (hash-consed on
// construction); see TypePool.
type Typetag struct {
	Kind TypeKind

	// func
	Args    []*Typetag
	Ret     *Typetag
	Varargs bool

	// struct
	FieldNames []*StringRef
	FieldTypes []*Typetag

	// name (unresolved, replaced at type-check time)
	Name *StringRef
}

func (t *Typetag) String() string {
	switch t.Kind {
	case TypeFunc:
		return "func"
	case TypeStruct:
		return "struct"
	case TypeName:
		return t.Name.Value
	default:
		return t.Kind.String()
	}
}

// FieldIndex returns the index of name within a struct tag's fields, or -1.
func (t *Typetag) FieldIndex(name *StringRef) int {
	for i, n := range t.FieldNames {
		if n == name {
			return i
		}
	}
	return -1
}

// TypePool hash-conses every Typetag ever constructed during a compile.
// Grounded on tiny/src/type.c's TypetagPool: seven static primitive
// singletons plus a linear-scan table for func/struct/name tags.
type TypePool struct {
	primitives [TypeAny + 1]*Typetag
	types      []*Typetag
}

func NewTypePool() *TypePool {
	p := &TypePool{}
	for k := TypeVoid; k <= TypeAny; k++ {
		p.primitives[k] = &Typetag{Kind: k}
	}
	return p
}

// Primitive returns one of the seven singleton primitive tags.
func (p *TypePool) Primitive(kind TypeKind) *Typetag {
	return p.primitives[kind]
}

// InternFunc returns the canonical tag for a function signature, reusing
// an existing tag on exact structural match.
func (p *TypePool) InternFunc(args []*Typetag, ret *Typetag, varargs bool) *Typetag {
	for _, t := range p.types {
		if t.Kind != TypeFunc || t.Varargs != varargs || t.Ret != ret || len(t.Args) != len(args) {
			continue
		}
		match := true
		for i := range args {
			if t.Args[i] != args[i] {
				match = false
				break
			}
		}
		if match {
			return t
		}
	}
	t := &Typetag{Kind: TypeFunc, Args: args, Ret: ret, Varargs: varargs}
	p.types = append(p.types, t)
	return t
}

// InternStruct returns the canonical tag for a struct shape, reusing an
// existing tag on exact structural match (same field names in order, same
// field types in order).
func (p *TypePool) InternStruct(names []*StringRef, types []*Typetag) *Typetag {
	for _, t := range p.types {
		if t.Kind != TypeStruct || len(t.FieldNames) != len(names) || len(t.FieldTypes) != len(types) {
			continue
		}
		match := true
		for i := range names {
			if t.FieldNames[i] != names[i] {
				match = false
				break
			}
		}
		if match {
			for i := range types {
				if t.FieldTypes[i] != types[i] {
					match = false
					break
				}
			}
		}
		if match {
			return t
		}
	}
	t := &Typetag{Kind: TypeStruct, FieldNames: names, FieldTypes: types}
	p.types = append(p.types, t)
	return t
}

// InternName returns the canonical placeholder tag for an as-yet-unresolved
// type name, reusing an existing tag for the same pooled name.
func (p *TypePool) InternName(name *StringRef) *Typetag {
	for _, t := range p.types {
		if t.Kind == TypeName && t.Name == name {
			return t
		}
	}
	t := &Typetag{Kind: TypeName, Name: name}
	p.types = append(p.types, t)
	return t
}

// IsPrimitive reports whether tag is a primitive value type (everything
// except any, struct, and str, matching IsPrimitiveType in type.c).
func IsPrimitive(tag *Typetag) bool {
	return tag.Kind != TypeAny && tag.Kind != TypeStruct && tag.Kind != TypeStr
}

// Assignable reports whether a value of type src may be assigned/passed
// where a value of type target is expected. 'void' matches only 'void';
// anything may widen implicitly into 'any'; otherwise tags must be
// pointer-identical. Mirrors CompareTypes(a, b) in type.c (a=src, b=target).
func Assignable(src, target *Typetag) bool {
	if src.Kind == TypeVoid {
		return target.Kind == TypeVoid
	}
	if target.Kind == TypeAny {
		return true
	}
	return src == target
}
