package bind

import (
	"reflect"
	"sync"
)

// HolderKind names how a native result, or the value an instance owns, is held.
type HolderKind int

const (
	HolderNone HolderKind = iota
	// HolderValue is a native value moved into storage owned by the instance.
	HolderValue
	// HolderReference is a raw pointer the instance does not own.
	HolderReference
	// HolderPointer is a raw pointer whose ownership is transferred.
	HolderPointer
	// HolderUnique is an exclusive owning holder.
	HolderUnique
	// HolderShared is a reference-counted owning holder.
	HolderShared
	// HolderObject is an existing host object.
	HolderObject
)

func (k HolderKind) String() string {
	switch k {
	case HolderValue:
		return "value"
	case HolderReference:
		return "reference"
	case HolderPointer:
		return "pointer"
	case HolderUnique:
		return "unique"
	case HolderShared:
		return "shared"
	case HolderObject:
		return "object"
	}
	return "none"
}

// Owning reports whether a record of this kind is responsible for
// destroying its value.
func (k HolderKind) Owning() bool {
	return k != HolderNone && k != HolderReference
}

// UniquePtr is an exclusive owning holder. Handing it to the runtime
// empties it.
type UniquePtr struct {
	v      any
	static reflect.Type
}

// NewUnique returns a unique holder owning v, statically typed as T.
func NewUnique[T any](v T) *UniquePtr {
	return &UniquePtr{v: v, static: reflect.TypeFor[T]()}
}

// UniqueAs returns a unique holder owning v, statically typed as S. v must
// be an S or derived from one.
func UniqueAs[S any](v any) *UniquePtr {
	return &UniquePtr{v: v, static: reflect.TypeFor[S]()}
}

// Get returns the owned value, or nil once released.
func (u *UniquePtr) Get() any {
	if u == nil {
		return nil
	}
	return u.v
}

// Release gives up ownership and returns the value, leaving u empty.
func (u *UniquePtr) Release() any {
	if u == nil {
		return nil
	}
	v := u.v
	u.v = nil
	return v
}

// Empty reports whether u holds nothing.
func (u *UniquePtr) Empty() bool { return u == nil || isNil(u.v) }

type sharedControl struct {
	mu      sync.Mutex
	refs    int
	v       any
	deleter func(any)
}

// SharedPtr is a reference-counted owning holder. Every SharedPtr handle
// accounts for one reference; Reset drops it and the last Reset destroys
// the value.
type SharedPtr struct {
	ctrl   *sharedControl
	static reflect.Type
}

// MakeShared returns a shared holder owning v, statically typed as T.
func MakeShared[T any](v T) *SharedPtr {
	return &SharedPtr{ctrl: &sharedControl{refs: 1, v: v}, static: reflect.TypeFor[T]()}
}

// SharedAs returns a shared holder owning v, statically typed as S.
func SharedAs[S any](v any) *SharedPtr {
	return &SharedPtr{ctrl: &sharedControl{refs: 1, v: v}, static: reflect.TypeFor[S]()}
}

// Get returns the shared value, or nil after Reset.
func (p *SharedPtr) Get() any {
	if p == nil || p.ctrl == nil {
		return nil
	}
	return p.ctrl.v
}

// UseCount returns the number of live handles sharing the value.
func (p *SharedPtr) UseCount() int {
	if p == nil || p.ctrl == nil {
		return 0
	}
	p.ctrl.mu.Lock()
	defer p.ctrl.mu.Unlock()
	return p.ctrl.refs
}

// Copy returns a new handle sharing the same value.
func (p *SharedPtr) Copy() *SharedPtr {
	if p == nil || p.ctrl == nil {
		return &SharedPtr{}
	}
	p.ctrl.mu.Lock()
	p.ctrl.refs++
	p.ctrl.mu.Unlock()
	return &SharedPtr{ctrl: p.ctrl, static: p.static}
}

// Reset drops this handle's reference. The value is destroyed when the last
// handle is reset. Resetting an empty handle is a no-op.
func (p *SharedPtr) Reset() {
	if p == nil || p.ctrl == nil {
		return
	}
	ctrl := p.ctrl
	p.ctrl = nil
	ctrl.mu.Lock()
	ctrl.refs--
	last := ctrl.refs == 0
	v, deleter := ctrl.v, ctrl.deleter
	if last {
		ctrl.v = nil
	}
	ctrl.mu.Unlock()
	if last && deleter != nil && !isNil(v) {
		deleter(v)
	}
}

// bindDeleter installs fn as the destroy function unless one is set.
func (p *SharedPtr) bindDeleter(fn func(any)) {
	if p == nil || p.ctrl == nil {
		return
	}
	p.ctrl.mu.Lock()
	if p.ctrl.deleter == nil {
		p.ctrl.deleter = fn
	}
	p.ctrl.mu.Unlock()
}

// Holder is a parameter type that accepts only instances whose value is held
// by a shared holder of T. Arguments are never implicitly converted into a
// Holder.
type Holder[T any] struct {
	ptr *SharedPtr
	v   T
}

// Get returns the held value viewed as T.
func (h Holder[T]) Get() T { return h.v }

// UseCount returns the use count of the underlying shared holder.
func (h Holder[T]) UseCount() int { return h.ptr.UseCount() }

func (Holder[T]) holderElem() reflect.Type { return reflect.TypeFor[T]() }

func (h *Holder[T]) setHolder(p *SharedPtr, v any) {
	h.ptr = p
	h.v = v.(T)
}

type holderParam interface {
	holderElem() reflect.Type
}

type holderSetter interface {
	setHolder(p *SharedPtr, v any)
}

var holderParamType = reflect.TypeFor[holderParam]()

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
