// Package manifest parses manifest documents into a generic, order-preserving tree value.
//
// A manifest is a nested mapping where objects describe directories and strings describe
// files. The parser does not interpret descriptors; anything that is neither an object nor a
// string is kept as an Invalid value so the tree builder can reject it with context.
package manifest

// Kind is the shape of a manifest value
type Kind uint8

const (
	Invalid Kind = iota
	Object
	String
)

func (k Kind) String() string {
	switch k {
	case Object:
		return "object"
	case String:
		return "string"
	default:
		return "invalid"
	}
}

// Value is one node of a parsed manifest
type Value struct {
	Kind   Kind
	Str    string  // set for String values
	Fields []Field // set for Object values, in document order
	Type   string  // source type of an Invalid value i.e. "array", "number"; for error messages
}

// Field is one key/value pair of an Object, in document order
type Field struct {
	Name  string
	Value *Value
}

// NewObject returns an Object value holding fields in the given order
func NewObject(fields ...Field) *Value {
	return &Value{Kind: Object, Fields: fields}
}

// NewString returns a String value
func NewString(s string) *Value {
	return &Value{Kind: String, Str: s}
}

// NewInvalid returns a value that is neither an object nor a string
func NewInvalid(typ string) *Value {
	return &Value{Kind: Invalid, Type: typ}
}

// F is shorthand for building a Field
func F(name string, v *Value) Field {
	return Field{Name: name, Value: v}
}

// Describe returns a short human readable type name of the value
func (v *Value) Describe() string {
	if v.Kind == Invalid && v.Type != "" {
		return v.Type
	}
	return v.Kind.String()
}
