package bind

// Obj is a host value.
//
// Like the host objects it models, an Obj carries a string representation
// and an optional internal representation that is computed lazily. Objects
// with no internal representation are pure strings.
type Obj struct {
	bytes  string  // string representation ("" = empty string if intrep == nil)
	intrep ObjType // internal representation (nil = pure string)
}

// ObjType defines the core behavior for an internal representation.
type ObjType interface {
	// Name returns the type name (e.g., "int", "double").
	Name() string

	// UpdateString regenerates string representation from this internal rep.
	UpdateString() string

	// Dup creates a copy of this internal representation.
	Dup() ObjType
}

// IntoInt can convert directly to int64.
type IntoInt interface {
	IntoInt() (int64, bool)
}

// IntoDouble can convert directly to float64.
type IntoDouble interface {
	IntoDouble() (float64, bool)
}

// IntoBool can convert directly to a boolean.
type IntoBool interface {
	IntoBool() (bool, bool)
}

// NewString returns a pure string object.
func NewString(s string) *Obj { return &Obj{bytes: s} }

// NewInt returns an integer object.
func NewInt(v int64) *Obj { return &Obj{intrep: IntType(v)} }

// NewDouble returns a floating-point object.
func NewDouble(v float64) *Obj { return &Obj{intrep: DoubleType(v)} }

// NewForeign wraps an opaque native value, such as a dispatch tag.
func NewForeign(v any) *Obj { return &Obj{intrep: &ForeignType{Value: v}} }

// String returns the string representation of the object, regenerating it
// from the internal representation when needed.
func (o *Obj) String() string {
	if o == nil {
		return ""
	}
	if o.bytes == "" && o.intrep != nil {
		o.bytes = o.intrep.UpdateString()
	}
	return o.bytes
}

// Type returns the type name of the object.
// Returns "string" for pure string objects (no internal representation).
func (o *Obj) Type() string {
	if o == nil || o.intrep == nil {
		return "string"
	}
	return o.intrep.Name()
}

// InternalRep returns the internal representation of the object.
// Returns nil for pure string objects.
//
//	if inst, ok := obj.InternalRep().(*bind.Instance); ok {
//	    // use inst
//	}
func (o *Obj) InternalRep() ObjType {
	if o == nil {
		return nil
	}
	return o.intrep
}

// Copy creates a shallow copy of the object. Instances and functions are
// shared, not duplicated.
func (o *Obj) Copy() *Obj {
	if o == nil {
		return nil
	}
	if o.intrep == nil {
		return &Obj{bytes: o.bytes}
	}
	return &Obj{bytes: o.bytes, intrep: o.intrep.Dup()}
}

// Int returns the integer value of this object.
func (o *Obj) Int() (int64, error) { return AsInt(o) }

// Double returns the float64 value of this object.
func (o *Obj) Double() (float64, error) { return AsDouble(o) }

// Bool returns the boolean value of this object.
func (o *Obj) Bool() (bool, error) { return AsBool(o) }

// Instance returns the bound instance held by this object.
func (o *Obj) Instance() (*Instance, error) { return AsInstance(o) }
