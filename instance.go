package bind

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// OwnershipRecord states how an instance holds its native value. It is
// created when a factory result is adopted and released exactly once.
type OwnershipRecord struct {
	// Holder is HolderValue, HolderUnique, HolderShared or HolderReference.
	Holder HolderKind
	// Alias reports whether the value is of the class's alias type.
	Alias bool

	class    *Class
	value    any
	shared   *SharedPtr
	released bool
}

// Owning reports whether releasing the record destroys the value.
func (r *OwnershipRecord) Owning() bool { return r.Holder.Owning() }

// Class returns the native class the value was adopted as.
func (r *OwnershipRecord) Class() *Class { return r.class }

// Shared returns the shared holder of a HolderShared record.
func (r *OwnershipRecord) Shared() *SharedPtr { return r.shared }

// Released reports whether the record has given up its value.
func (r *OwnershipRecord) Released() bool { return r.released }

// Instance is a host object bound to a native value.
//
// Instances are reference counted: New and Wrap return an instance holding
// one reference owned by the caller. Release drops a reference; the last
// release finalizes the instance and releases its ownership record.
type Instance struct {
	rt     *Runtime
	id     uint64
	handle string
	class  *Class
	record *OwnershipRecord
	refs   int
}

func (i *Instance) Name() string { return i.class.name }

func (i *Instance) UpdateString() string {
	if rec := i.record; rec != nil && !rec.released {
		if s := rec.class.stringRep; s.IsValid() {
			if view, ok := i.rt.view(rec.value, rec.class); ok {
				return s.Call([]reflect.Value{reflect.ValueOf(view)})[0].String()
			}
		}
	}
	return i.handle
}

// Dup shares the instance; host references are counted explicitly.
func (i *Instance) Dup() ObjType { return i }

// Handle returns the instance's handle name, such as "widget3".
func (i *Instance) Handle() string { return i.handle }

// Class returns the host-visible class of the instance.
func (i *Instance) Class() *Class { return i.class }

// Record returns the ownership record.
func (i *Instance) Record() *OwnershipRecord {
	i.rt.mu.Lock()
	defer i.rt.mu.Unlock()
	return i.record
}

// Value returns the native value, or nil once the instance is finalized.
func (i *Instance) Value() any {
	i.rt.mu.Lock()
	defer i.rt.mu.Unlock()
	if i.record == nil || i.record.released {
		return nil
	}
	return i.record.value
}

// As returns the native value viewed as an instance of cls.
func (i *Instance) As(cls *Class) (any, bool) {
	v := i.Value()
	if v == nil {
		return nil, false
	}
	return i.rt.view(v, cls)
}

// HasAlias reports whether the native value is of the alias type.
func (i *Instance) HasAlias() bool {
	rec := i.Record()
	return rec != nil && rec.Alias
}

// RefCount returns the number of host references.
func (i *Instance) RefCount() int {
	i.rt.mu.Lock()
	defer i.rt.mu.Unlock()
	return i.refs
}

// Retain adds a host reference.
func (i *Instance) Retain() *Instance {
	i.rt.mu.Lock()
	defer i.rt.mu.Unlock()
	if i.refs > 0 {
		i.refs++
	}
	return i
}

// Release drops a host reference.
func (i *Instance) Release() {
	i.rt.release(i)
}

// Call invokes a method. Host methods of the instance's class take
// precedence over native ones.
func (i *Instance) Call(method string, args ...any) (*Obj, error) {
	if m, ok := i.class.override(method); ok {
		if t := i.trampoline(); t != nil {
			defer t.enter(method)()
		}
		objs := i.rt.toObjs(args)
		res, err := m(i, objs...)
		if err != nil {
			return nil, err
		}
		return i.rt.toObj(res), nil
	}
	return i.CallBase(method, args...)
}

// CallBase invokes the native implementation of a method, bypassing host
// overrides.
func (i *Instance) CallBase(method string, args ...any) (*Obj, error) {
	v := i.Value()
	if v == nil {
		return nil, fmt.Errorf("%s %s: instance has been released", i.handle, method)
	}
	if t := i.trampoline(); t != nil {
		defer t.enter(method)()
	}
	owner, fn, ok := i.class.findMethod(method)
	if !ok {
		return nil, fmt.Errorf("unknown method %q: must be %s", method, strings.Join(i.class.MethodNames(), ", "))
	}
	c := callable{fn: fn, typ: fn.Type()}
	recv, ok := i.rt.receiver(v, owner, c.typ.In(0))
	if !ok {
		return nil, fmt.Errorf("%s %s: receiver %s does not accept %s", i.class.name, method, typeName(c.typ.In(0)), goTypeName(v))
	}
	objs := i.rt.toObjs(args)

	i.rt.begin()
	defer i.rt.end()
	scope := &callScope{}
	defer i.rt.endScope(scope)

	var lastErr error
	for _, mode := range []convMode{convExact, convImplicit} {
		in, err := i.rt.bindArgs(c, objs, 1, mode, scope)
		if err != nil {
			lastErr = err
			if isArity(err) {
				break
			}
			continue
		}
		out, err := c.call(append([]reflect.Value{recv}, in...))
		if err != nil {
			return nil, err
		}
		return i.rt.resultObj(out)
	}
	name := i.class.name + "." + method
	var ae *argError
	if errors.As(lastErr, &ae) {
		return nil, conversionError(name, ae.index, ae.err)
	}
	return nil, &TypeError{Kind: KindOverload, Name: name, Msg: lastErr.Error(), cause: ErrNoMatchingFactory}
}

func (i *Instance) trampoline() *Trampoline {
	if o, ok := i.Value().(Overridable); ok {
		return o.trampoline()
	}
	return nil
}
