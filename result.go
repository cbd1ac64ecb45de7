package bind

import (
	"reflect"
)

// Result is what a factory hands back to the runtime: a native value tagged
// with how it is held.
//
// Factories may return a Result directly or return a plain Go value, which
// is classified as follows: *UniquePtr and *SharedPtr keep their holder
// kind, *Instance is a host object, a pointer to a registered class is an
// owning pointer, and anything else is a value.
type Result struct {
	kind   HolderKind
	value  any
	static reflect.Type
	unique *UniquePtr
	shared *SharedPtr
	obj    *Instance
}

// Ptr returns an owning pointer result statically typed as T.
func Ptr[T any](v T) Result {
	return Result{kind: HolderPointer, value: v, static: reflect.TypeFor[T]()}
}

// PtrAs returns an owning pointer result statically typed as S whose dynamic
// value is v. The runtime checks v against the requested class.
func PtrAs[S any](v any) Result {
	return Result{kind: HolderPointer, value: v, static: reflect.TypeFor[S]()}
}

// Ref returns a non-owning pointer result.
func Ref[T any](v T) Result {
	return Result{kind: HolderReference, value: v, static: reflect.TypeFor[T]()}
}

// Value returns a by-value result that is moved into new storage.
func Value[T any](v T) Result {
	return Result{kind: HolderValue, value: v, static: reflect.TypeFor[T]()}
}

// Unique returns a unique holder result.
func Unique(u *UniquePtr) Result {
	r := Result{kind: HolderUnique, unique: u}
	if u != nil {
		r.static = u.static
	}
	return r
}

// Shared returns a shared holder result.
func Shared(p *SharedPtr) Result {
	r := Result{kind: HolderShared, shared: p}
	if p != nil {
		r.static = p.static
	}
	return r
}

// Object returns a host object result.
func Object(inst *Instance) Result {
	return Result{kind: HolderObject, obj: inst}
}

// Kind returns the holder kind of r.
func (r Result) Kind() HolderKind { return r.kind }

// Static returns the static type the result was declared with.
func (r Result) Static() reflect.Type { return r.static }

var (
	resultType    = reflect.TypeFor[Result]()
	uniquePtrType = reflect.TypeFor[*UniquePtr]()
	sharedPtrType = reflect.TypeFor[*SharedPtr]()
	instanceType  = reflect.TypeFor[*Instance]()
	objType       = reflect.TypeFor[*Obj]()
	funcType      = reflect.TypeFor[*Func]()
	errorType     = reflect.TypeFor[error]()
)

// classify turns a factory's return value into a Result.
func (rt *Runtime) classify(out reflect.Value) Result {
	if !out.IsValid() {
		return Result{kind: HolderPointer}
	}
	switch out.Type() {
	case resultType:
		return out.Interface().(Result)
	case uniquePtrType:
		return Unique(out.Interface().(*UniquePtr))
	case sharedPtrType:
		return Shared(out.Interface().(*SharedPtr))
	case instanceType:
		return Object(out.Interface().(*Instance))
	}
	t := out.Type()
	switch t.Kind() {
	case reflect.Interface:
		if out.IsNil() {
			return Result{kind: HolderPointer, static: t}
		}
		return rt.classify(out.Elem())
	case reflect.Pointer:
		if out.IsNil() {
			return Result{kind: HolderPointer, static: t}
		}
		if rt.lookupType(t) != nil {
			return Result{kind: HolderPointer, value: out.Interface(), static: t}
		}
	}
	return Result{kind: HolderValue, value: out.Interface(), static: t}
}
