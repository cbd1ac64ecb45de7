package bind

import (
	"fmt"
	"reflect"
)

// AliasSpec declares the alias (trampoline) type A of class T.
type AliasSpec[T, A any] struct {
	// Base returns the T view of an alias value. Required.
	Base func(A) T

	// FromBase builds an alias from a base value. When set, a host subclass
	// whose factory produced a plain owning T gets an alias constructed from
	// it; the source value is destroyed afterwards.
	FromBase func(T) A

	// Converters are converting constructors, func(X) A or func(X) Elem(A),
	// used for factory results returned by value.
	Converters []any

	// Destroy is called once for alias values, before the class chain.
	Destroy func(A)
}

// AliasDef is a validated alias declaration; see Alias.
type AliasDef struct {
	name       string
	typ        reflect.Type
	classTyp   reflect.Type
	base       reflect.Value
	fromBase   reflect.Value
	converters []reflect.Value
	destroy    reflect.Value
}

// Alias declares A as the alias type of T. It panics on malformed
// declarations, like Init.
func Alias[T, A any](name string, spec AliasSpec[T, A]) *AliasDef {
	typ := reflect.TypeFor[A]()
	if typ.Kind() != reflect.Pointer {
		panic(fmt.Sprintf("Alias: %s: alias type %v must be a pointer", name, typ))
	}
	if spec.Base == nil {
		panic(fmt.Sprintf("Alias: %s: Base is required", name))
	}
	a := &AliasDef{
		name:     name,
		typ:      typ,
		classTyp: reflect.TypeFor[T](),
		base:     reflect.ValueOf(spec.Base),
	}
	if spec.FromBase != nil {
		a.fromBase = reflect.ValueOf(spec.FromBase)
	}
	if spec.Destroy != nil {
		a.destroy = reflect.ValueOf(spec.Destroy)
	}
	for _, fn := range spec.Converters {
		v, err := checkConverter(fn, typ)
		if err != nil {
			panic(fmt.Sprintf("Alias: %s: %v", name, err))
		}
		a.converters = append(a.converters, v)
	}
	return a
}

// Name returns the alias type name.
func (a *AliasDef) Name() string { return a.name }

func (a *AliasDef) baseOf(v any) any {
	return a.base.Call([]reflect.Value{reflect.ValueOf(v)})[0].Interface()
}

func (a *AliasDef) canFromBase() bool { return a.fromBase.IsValid() }

func (a *AliasDef) construct(base any) any {
	return a.fromBase.Call([]reflect.Value{reflect.ValueOf(base)})[0].Interface()
}

// Trampoline is embedded in alias types to forward virtual calls to the
// host subclass that owns the instance.
//
//	type PyWidget struct {
//	    bind.Trampoline
//	    Widget
//	}
//
//	func (p *PyWidget) Size() int {
//	    if call, ok := p.Override("size"); ok {
//	        if res, err := call(); err == nil {
//	            if n, err := res.Int(); err == nil {
//	                return int(n)
//	            }
//	        }
//	    }
//	    return p.Widget.Size()
//	}
//
// Instances are bound to their trampoline when adopted. A host method that
// is running through the trampoline, or was dispatched by Instance.Call, is
// not re-entered for the same method, so an override calling its base
// implementation reaches native code.
type Trampoline struct {
	self   *Instance
	active map[string]int
}

// Overridable is implemented by types embedding Trampoline.
type Overridable interface {
	trampoline() *Trampoline
}

func (t *Trampoline) trampoline() *Trampoline { return t }

// Self returns the host instance bound to the trampoline, or nil.
func (t *Trampoline) Self() *Instance { return t.self }

// Override reports whether the bound host instance overrides method name.
// When it does, the returned function calls the override.
func (t *Trampoline) Override(name string) (func(args ...any) (*Obj, error), bool) {
	if t.self == nil || t.active[name] > 0 {
		return nil, false
	}
	m, ok := t.self.class.override(name)
	if !ok {
		return nil, false
	}
	self := t.self
	return func(args ...any) (*Obj, error) {
		defer t.enter(name)()
		res, err := m(self, self.rt.toObjs(args)...)
		if err != nil {
			return nil, err
		}
		return self.rt.toObj(res), nil
	}, true
}

func (t *Trampoline) enter(name string) func() {
	if t.active == nil {
		t.active = make(map[string]int)
	}
	t.active[name]++
	return func() { t.active[name]-- }
}

func (t *Trampoline) bind(inst *Instance) {
	t.self = inst
}

// override finds a host method along the host subclass chain.
func (c *Class) override(name string) (HostMethod, bool) {
	for h := c; h != nil && h.typ == nil; h = h.parent {
		if m, ok := h.overrides[name]; ok {
			return m, true
		}
	}
	return nil, false
}
