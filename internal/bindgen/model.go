package bindgen

// TypeKind classifies a C type in the declaration model.
type TypeKind int

const (
	Unsupported TypeKind = iota // Name describes the type
	Void
	Scalar   // Name is the C spelling, e.g. "unsigned int"
	Named    // Name is a typedef name
	Struct   // Name is the tag, empty when anonymous
	Union    // Name is the tag, empty when anonymous
	Enum     // Name is the tag, empty when anonymous
	Pointer  // Elem is the pointee; arrays decay to pointers
	Function // a function type, only meaningful behind a pointer
)

// CType is a C type as seen by the generator.
type CType struct {
	Kind TypeKind
	Name string
	Elem *CType
}

// Typedef is a typedef declaration.
type Typedef struct {
	Name string
	Type *CType // the aliased type
	File string
}

// Param is one function parameter.
type Param struct {
	Name string // may be empty
	Type *CType
}

// Func is a function prototype or definition.
type Func struct {
	Name     string
	Params   []Param
	Result   *CType
	Variadic bool
	File     string
}

// Macro is an object-like macro. Value is an int64, uint64, float64 or
// string when the macro expands to a constant, nil otherwise.
type Macro struct {
	Name  string
	Value any
	File  string
}

// Enumerator is a constant of a typedef'd enum.
type Enumerator struct {
	Name string
	File string
}

// Unit is everything the C front end found reachable from the root header,
// in declaration order (macros sorted by name).
type Unit struct {
	Typedefs    []Typedef
	Funcs       []Func
	Macros      []Macro
	Enumerators []Enumerator
	// Files are the headers that were read, sorted.
	Files []string
}
