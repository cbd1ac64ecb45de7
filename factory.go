package bind

import (
	"fmt"
)

// Factory is a construction candidate of a class.
//
// The parameter types of the wrapped function are the pattern a construction
// request is matched against; tag types such as a struct{} parameter select
// one strategy among several with the same arity. The function returns a
// Result, a holder, an *Instance, a registered pointer or a plain value,
// optionally followed by an error that is propagated unchanged.
type Factory struct {
	class callable
	alias *callable
}

// Init wraps fn as a construction candidate. It panics if fn is not a
// function of a supported shape.
func Init(fn any) *Factory {
	return &Factory{class: newFactoryCallable("Init", fn)}
}

// InitAlias wraps a dual factory: classFn builds the class when no alias is
// required and aliasFn builds the alias for host subclasses. Both functions
// must take the same parameters.
func InitAlias(classFn, aliasFn any) *Factory {
	c := newFactoryCallable("InitAlias", classFn)
	a := newFactoryCallable("InitAlias", aliasFn)
	if !sameParams(c, a) {
		panic(fmt.Sprintf("InitAlias: class factory %v and alias factory %v take different parameters", c.typ, a.typ))
	}
	return &Factory{class: c, alias: &a}
}

func newFactoryCallable(op string, fn any) callable {
	c := newCallable(op, fn)
	if c.typ.NumOut() == 0 || c.typ.Out(0) == errorType {
		panic(fmt.Sprintf("%s: factory must return a value, got %v", op, c.typ))
	}
	return c
}

func sameParams(a, b callable) bool {
	if a.typ.NumIn() != b.typ.NumIn() || a.typ.IsVariadic() != b.typ.IsVariadic() {
		return false
	}
	for i := 0; i < a.typ.NumIn(); i++ {
		if a.typ.In(i) != b.typ.In(i) {
			return false
		}
	}
	return true
}

// String returns the factory's Go signature.
func (f *Factory) String() string { return f.class.typ.String() }

// resolve selects and runs the construction candidate of cls matching args.
//
// Candidates are tried in declaration order, first requiring exact argument
// types, then allowing conversions. The class fallback is consulted only
// after no declared candidate matched in either pass. Once a candidate body
// runs its result or error is final.
func (rt *Runtime) resolve(cls *Class, args []*Obj, aliasNeeded bool, scope *callScope) (Result, *Factory, error) {
	native := cls.native()
	rt.mu.Lock()
	candidates := append([]*Factory(nil), native.factories...)
	fallback := native.fallback
	rt.mu.Unlock()

	if res, f, ok, err := rt.tryFactories(candidates, args, aliasNeeded, scope); ok {
		return res, f, err
	}
	if fallback != nil {
		if res, f, ok, err := rt.tryFactories([]*Factory{fallback}, args, aliasNeeded, scope); ok {
			return res, f, err
		}
	}
	return Result{}, nil, overloadError(cls.name, "new", args)
}

// tryFactories runs the first of candidates whose parameters accept args,
// exact pass first. ok is false when none matched.
func (rt *Runtime) tryFactories(candidates []*Factory, args []*Obj, aliasNeeded bool, scope *callScope) (Result, *Factory, bool, error) {
	for _, mode := range []convMode{convExact, convImplicit} {
		for _, f := range candidates {
			in, err := rt.bindArgs(f.class, args, 0, mode, scope)
			if err != nil {
				continue
			}
			fn := f.class
			if aliasNeeded && f.alias != nil {
				fn = *f.alias
			}
			out, err := fn.call(in)
			if err != nil {
				return Result{}, f, true, err
			}
			return rt.classify(out), f, true, nil
		}
	}
	return Result{}, nil, false, nil
}
