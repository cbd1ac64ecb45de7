package bind

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ClassDef describes a native type exposed to the host.
//
// T must be a pointer type; instances always refer to their native value
// through a pointer so that base views and host subclasses share storage.
type ClassDef[T any] struct {
	// Holder is the holder the class is declared with: HolderUnique (the
	// default) or HolderShared. Owning results adopted by a shared class are
	// wrapped in a fresh SharedPtr.
	Holder HolderKind

	// Bases lists the registered base classes, in declaration order.
	Bases []BaseDef

	// Alias optionally declares the trampoline type used when a host
	// subclass is instantiated.
	Alias *AliasDef

	// Init lists the construction candidates in declaration order.
	Init []*Factory

	// Converters are converting constructors, func(X) T or func(X) Elem(T).
	// They turn factory results returned by value into the class, and
	// convert arguments during the second matching pass. They never back a
	// host constructor.
	Converters []any

	// Conversions are conversion operators, func(T) X. The receiver may be
	// an interface implemented by T to get dynamic dispatch.
	Conversions []any

	// Methods maps method names to Go functions whose first parameter is the
	// receiver: T, a registered base, or an interface T implements.
	Methods map[string]any

	// String optionally provides a custom string representation.
	String func(T) string

	// Destroy is called once when an owned value of this class, or of a class
	// derived from it, is released.
	Destroy func(T)
}

// BaseDef links a class to one of its registered bases.
type BaseDef struct {
	derived reflect.Type
	base    reflect.Type
	up      reflect.Value
}

// Base declares B as a base of D. up returns the B view of a D and must not
// copy: base casting hands the same native object to the callee.
func Base[D, B any](up func(D) B) BaseDef {
	return BaseDef{
		derived: reflect.TypeFor[D](),
		base:    reflect.TypeFor[B](),
		up:      reflect.ValueOf(up),
	}
}

type baseLink struct {
	class *Class
	up    reflect.Value
}

func (b baseLink) view(v any) any {
	return b.up.Call([]reflect.Value{reflect.ValueOf(v)})[0].Interface()
}

// Class is a registered native class, or a host subclass of one.
type Class struct {
	name string
	rt   *Runtime

	typ         reflect.Type // nil for host subclasses
	holder      HolderKind
	bases       []baseLink
	alias       *AliasDef
	factories   []*Factory
	fallback    *Factory
	converters  []reflect.Value
	conversions []reflect.Value
	methods     map[string]reflect.Value
	stringRep   reflect.Value
	destroy     reflect.Value

	// host subclasses
	parent    *Class
	overrides map[string]HostMethod

	counter int
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Type returns the native pointer type, or nil for a host subclass.
func (c *Class) Type() reflect.Type { return c.typ }

// Holder returns the holder kind the class was declared with.
func (c *Class) Holder() HolderKind { return c.native().holder }

// HasAlias reports whether the class declares an alias type.
func (c *Class) HasAlias() bool { return c.native().alias != nil }

// IsHost reports whether c is a host subclass.
func (c *Class) IsHost() bool { return c.typ == nil }

// New constructs an instance of c. The returned instance carries one
// reference owned by the caller.
func (c *Class) New(args ...any) (*Instance, error) {
	return c.rt.construct(c, args)
}

// SetFallback installs a construction function tried only when no declared
// candidate matches, with or without conversions. It replaces any earlier
// fallback.
func (c *Class) SetFallback(fn any) {
	f := Init(fn)
	c.rt.mu.Lock()
	c.native().fallback = f
	c.rt.mu.Unlock()
}

// native returns the registered native class at the root of a host
// subclass chain.
func (c *Class) native() *Class {
	for c.typ == nil && c.parent != nil {
		c = c.parent
	}
	return c
}

// derivesFrom reports whether c is target or has target among its bases.
func (c *Class) derivesFrom(target *Class) bool {
	if c == target {
		return true
	}
	for _, b := range c.bases {
		if b.class.derivesFrom(target) {
			return true
		}
	}
	return false
}

// upcast walks the registered bases of c to obtain the view of v as to.
func (c *Class) upcast(v any, to *Class) (any, bool) {
	if c == to {
		return v, true
	}
	for _, b := range c.bases {
		if r, ok := b.class.upcast(b.view(v), to); ok {
			return r, true
		}
	}
	return nil, false
}

// findMethod looks up name on c and then on its bases, breadth first.
func (c *Class) findMethod(name string) (*Class, reflect.Value, bool) {
	queue := []*Class{c.native()}
	seen := map[*Class]bool{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if m, ok := cur.methods[name]; ok {
			return cur, m, true
		}
		for _, b := range cur.bases {
			queue = append(queue, b.class)
		}
	}
	return nil, reflect.Value{}, false
}

// MethodNames returns the sorted method names callable on instances of c,
// including inherited and host-defined ones.
func (c *Class) MethodNames() []string {
	set := map[string]bool{}
	for h := c; h != nil && h.typ == nil; h = h.parent {
		for name := range h.overrides {
			set[name] = true
		}
	}
	queue := []*Class{c.native()}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for name := range cur.methods {
			set[name] = true
		}
		for _, b := range cur.bases {
			queue = append(queue, b.class)
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterClass registers a native class with the runtime.
//
//	cls, err := bind.RegisterClass(rt, "Counter", bind.ClassDef[*Counter]{
//	    Init: []*bind.Factory{
//	        bind.Init(func() *Counter { return &Counter{} }),
//	        bind.Init(func(v int) *Counter { return &Counter{value: v} }),
//	    },
//	    Methods: map[string]any{
//	        "get": func(c *Counter) int { return c.value },
//	    },
//	})
func RegisterClass[T any](rt *Runtime, name string, def ClassDef[T]) (*Class, error) {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("RegisterClass: %s: native type %v must be a pointer", name, typ)
	}
	holder := def.Holder
	if holder == HolderNone {
		holder = HolderUnique
	}
	if holder != HolderUnique && holder != HolderShared {
		return nil, fmt.Errorf("RegisterClass: %s: holder must be unique or shared, got %s", name, holder)
	}

	c := &Class{
		name:      name,
		rt:        rt,
		typ:       typ,
		holder:    holder,
		alias:     def.Alias,
		factories: def.Init,
		methods:   make(map[string]reflect.Value),
		counter:   1,
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, ok := rt.classes[name]; ok {
		return nil, fmt.Errorf("RegisterClass: class %q already registered", name)
	}
	if prev, ok := rt.types[typ]; ok {
		return nil, fmt.Errorf("RegisterClass: %v already registered as %q", typ, prev.name)
	}

	for _, b := range def.Bases {
		if b.derived != typ {
			return nil, fmt.Errorf("RegisterClass: %s: base link declared for %v", name, b.derived)
		}
		bc, ok := rt.types[b.base]
		if !ok {
			return nil, fmt.Errorf("RegisterClass: %s: base %v is not registered", name, b.base)
		}
		c.bases = append(c.bases, baseLink{class: bc, up: b.up})
	}

	if a := def.Alias; a != nil {
		if a.classTyp != typ {
			return nil, fmt.Errorf("RegisterClass: %s: alias %s is declared for %v", name, a.name, a.classTyp)
		}
		if _, ok := rt.aliases[a.typ]; ok {
			return nil, fmt.Errorf("RegisterClass: %s: alias type %v already registered", name, a.typ)
		}
	}

	for idx, f := range def.Init {
		if f == nil {
			return nil, fmt.Errorf("RegisterClass: %s: factory %d is nil", name, idx)
		}
	}

	for _, fn := range def.Converters {
		v, err := checkConverter(fn, typ)
		if err != nil {
			return nil, fmt.Errorf("RegisterClass: %s: %w", name, err)
		}
		c.converters = append(c.converters, v)
	}

	for _, fn := range def.Conversions {
		v, err := checkConversion(fn, typ)
		if err != nil {
			return nil, fmt.Errorf("RegisterClass: %s: %w", name, err)
		}
		c.conversions = append(c.conversions, v)
	}

	for mname, fn := range def.Methods {
		v := reflect.ValueOf(fn)
		t := v.Type()
		if t.Kind() != reflect.Func || t.NumIn() < 1 {
			return nil, fmt.Errorf("RegisterClass: %s: method %q must be a function with a receiver parameter", name, mname)
		}
		c.methods[mname] = v
	}

	if def.String != nil {
		c.stringRep = reflect.ValueOf(def.String)
	}
	if def.Destroy != nil {
		c.destroy = reflect.ValueOf(def.Destroy)
	}

	rt.classes[name] = c
	rt.types[typ] = c
	if def.Alias != nil {
		rt.aliases[def.Alias.typ] = c
	}

	rt.log.Debug().
		Str("class", name).
		Str("type", typ.String()).
		Str("holder", holder.String()).
		Int("factories", len(c.factories)).
		Bool("alias", c.alias != nil).
		Msg("registered class")
	return c, nil
}

// checkConverter validates a converting constructor producing want, or the
// element type of want.
func checkConverter(fn any, want reflect.Type) (reflect.Value, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 1 {
		return reflect.Value{}, fmt.Errorf("converter must be func(X) %v, got %T", want, fn)
	}
	if out := t.Out(0); out != want && out != want.Elem() {
		return reflect.Value{}, fmt.Errorf("converter returns %v, want %v", out, want)
	}
	return v, nil
}

func checkConversion(fn any, typ reflect.Type) (reflect.Value, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 1 {
		return reflect.Value{}, fmt.Errorf("conversion must be func(%v) X, got %T", typ, fn)
	}
	if !acceptsReceiver(t.In(0), typ) {
		return reflect.Value{}, fmt.Errorf("conversion receiver %v does not accept %v", t.In(0), typ)
	}
	return v, nil
}

// AddConversion declares a conversion operator after registration.
func (c *Class) AddConversion(fn any) error {
	if c.typ == nil {
		return fmt.Errorf("AddConversion: %s is a host subclass", c.name)
	}
	v, err := checkConversion(fn, c.typ)
	if err != nil {
		return fmt.Errorf("AddConversion: %s: %w", c.name, err)
	}
	c.rt.mu.Lock()
	c.conversions = append(c.conversions, v)
	c.rt.mu.Unlock()
	return nil
}

// acceptsReceiver reports whether a parameter of type param can receive a
// value of type t directly.
func acceptsReceiver(param, t reflect.Type) bool {
	return t.AssignableTo(param)
}

// Subclass declares a host subclass of base. Methods in overrides shadow
// native methods of the same name for instances of the subclass, and are
// reachable from native code through the alias trampoline.
func (rt *Runtime) Subclass(name string, base *Class, overrides map[string]HostMethod) (*Class, error) {
	if base == nil {
		return nil, fmt.Errorf("Subclass: %s: base class is nil", name)
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.classes[name]; ok {
		return nil, fmt.Errorf("Subclass: class %q already registered", name)
	}
	c := &Class{
		name:      name,
		rt:        rt,
		parent:    base,
		overrides: make(map[string]HostMethod, len(overrides)),
		counter:   1,
	}
	for m, fn := range overrides {
		c.overrides[m] = fn
	}
	rt.classes[name] = c
	rt.log.Debug().
		Str("class", name).
		Str("base", base.name).
		Bool("alias", base.HasAlias()).
		Msg("declared host subclass")
	return c, nil
}

// Class returns the class registered under name.
func (rt *Runtime) Class(name string) (*Class, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	c, ok := rt.classes[name]
	return c, ok
}

// ClassNames returns the sorted names of every registered class.
func (rt *Runtime) ClassNames() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	names := make([]string, 0, len(rt.classes))
	for name := range rt.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (rt *Runtime) lookupType(t reflect.Type) *Class {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.types[t]
}

// classOf returns the class of a native value and whether the value is of
// the class's alias type. By-value structs resolve through their pointer
// type.
func (rt *Runtime) classOf(v any) (*Class, bool) {
	if v == nil {
		return nil, false
	}
	t := reflect.TypeOf(v)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, cand := range []reflect.Type{t, reflect.PointerTo(t)} {
		if c, ok := rt.types[cand]; ok {
			return c, false
		}
		if c, ok := rt.aliases[cand]; ok {
			return c, true
		}
	}
	return nil, false
}

// view returns v seen as an instance of to: the alias is stripped and
// registered base links are followed. No copy is made.
func (rt *Runtime) view(v any, to *Class) (any, bool) {
	cls, alias := rt.classOf(v)
	if cls == nil {
		return nil, false
	}
	if alias {
		v = cls.alias.baseOf(v)
	}
	return cls.upcast(v, to)
}

// destroy runs the destroy chain of v: the alias hook first, then the
// class and each distinct base once, most derived first.
func (rt *Runtime) destroy(v any) (err error) {
	cls, alias := rt.classOf(v)
	if cls == nil {
		return fmt.Errorf("destroy: %s is not a registered class", goTypeName(v))
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("destroy %s: %v", cls.name, r)
		}
	}()
	if alias {
		if d := cls.alias.destroy; d.IsValid() {
			d.Call([]reflect.Value{reflect.ValueOf(v)})
		}
		v = cls.alias.baseOf(v)
	}
	visited := make(map[*Class]bool)
	var walk func(c *Class, v any)
	walk = func(c *Class, v any) {
		if visited[c] {
			return
		}
		visited[c] = true
		if c.destroy.IsValid() {
			c.destroy.Call([]reflect.Value{reflect.ValueOf(v)})
		}
		for _, b := range c.bases {
			walk(b.class, b.view(v))
		}
	}
	walk(cls, v)
	rt.log.Debug().Str("class", cls.name).Bool("alias", alias).Msg("destroyed native value")
	return nil
}

// Destroy destroys a native value that no instance owns, such as a value a
// factory leaked while returning an unowned reference.
func (rt *Runtime) Destroy(v any) error {
	if rt.IsRegistered(v) {
		return fmt.Errorf("Destroy: %s is owned by a registered instance", goTypeName(v))
	}
	return rt.destroy(v)
}

func goTypeName(v any) string {
	if v == nil {
		return "nil"
	}
	t := reflect.TypeOf(v)
	return strings.TrimPrefix(t.String(), "*")
}
