package bindgen

// MacroParsingBehavior tells the generator what to do with a macro.
type MacroParsingBehavior int

const (
	MacroDefault MacroParsingBehavior = iota
	MacroIgnore
)

// DefaultBlocklist matches implementation-reserved names.
const DefaultBlocklist = `^(__.*)$`

// ParseCallbacks lets the caller observe and steer generation.
type ParseCallbacks interface {
	// WillParseMacro is consulted for every macro before it is emitted.
	WillParseMacro(name string) MacroParsingBehavior

	// IncludeFile reports a header the bindings depend on.
	IncludeFile(path string)
}

// NopCallbacks implements ParseCallbacks doing nothing. Embed it to implement
// a subset.
type NopCallbacks struct{}

func (NopCallbacks) WillParseMacro(string) MacroParsingBehavior { return MacroDefault }
func (NopCallbacks) IncludeFile(string)                         {}

// IgnoreMacros suppresses the macros it contains.
type IgnoreMacros map[string]struct{}

var _ ParseCallbacks = IgnoreMacros(nil)

// NewIgnoreMacros returns a set holding names.
func NewIgnoreMacros(names ...string) IgnoreMacros {
	s := make(IgnoreMacros, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// DefaultIgnoredMacros are the floating-point classification macros, which
// the standard math header already defines.
func DefaultIgnoredMacros() IgnoreMacros {
	return NewIgnoreMacros("FP_INFINITE", "FP_NAN", "FP_NORMAL", "FP_SUBNORMAL", "FP_ZERO")
}

func (s IgnoreMacros) WillParseMacro(name string) MacroParsingBehavior {
	if _, ok := s[name]; ok {
		return MacroIgnore
	}
	return MacroDefault
}

func (IgnoreMacros) IncludeFile(string) {}

// DepCallbacks forwards IncludeFile to fn.
type DepCallbacks struct {
	NopCallbacks
	Fn func(path string)
}

func (d DepCallbacks) IncludeFile(path string) {
	if d.Fn != nil {
		d.Fn(path)
	}
}
