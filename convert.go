package bind

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

// convMode selects which conversions argument matching may apply.
type convMode int

const (
	// convExact accepts arguments whose host type matches the parameter.
	convExact convMode = iota
	// convWiden also widens integers to floating point.
	convWiden
	// convImplicit also applies registered conversions.
	convImplicit
)

type arityError struct {
	want, got int
	variadic  bool
}

func (e *arityError) Error() string {
	if e.variadic {
		return fmt.Sprintf("wrong # args: expected at least %d, got %d", e.want, e.got)
	}
	return fmt.Sprintf("wrong # args: expected %d, got %d", e.want, e.got)
}

type argError struct {
	index int
	err   error
}

func (e *argError) Error() string { return fmt.Sprintf("argument %d: %v", e.index+1, e.err) }
func (e *argError) Unwrap() error { return e.err }

// callable is a Go function invoked with host arguments.
type callable struct {
	fn  reflect.Value
	typ reflect.Type
}

func newCallable(op string, fn any) callable {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic(fmt.Sprintf("%s: expected function, got %T", op, fn))
	}
	t := v.Type()
	if t.NumOut() > 2 || (t.NumOut() == 2 && t.Out(1) != errorType) {
		panic(fmt.Sprintf("%s: function must return (T), (T, error), error or nothing, got %v", op, t))
	}
	return callable{fn: v, typ: t}
}

// call invokes the function and splits off a trailing error.
func (c callable) call(in []reflect.Value) (reflect.Value, error) {
	out := c.fn.Call(in)
	if len(out) == 0 {
		return reflect.Value{}, nil
	}
	last := out[len(out)-1]
	if c.typ.Out(len(out)-1) == errorType {
		if !last.IsNil() {
			return reflect.Value{}, last.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return reflect.Value{}, nil
	}
	return out[0], nil
}

// callScope collects native temporaries created by conversions during one
// call; they are destroyed when the call returns.
type callScope struct {
	temps []any
}

func (rt *Runtime) endScope(s *callScope) {
	for _, v := range s.temps {
		if err := rt.destroy(v); err != nil {
			rt.log.Warn().Err(err).Msg("destroy conversion temporary")
		}
	}
	s.temps = nil
}

// bindArgs converts args to the parameters of c, skipping the first skip
// parameters. Temporaries are added to scope only when every argument
// converts.
func (rt *Runtime) bindArgs(c callable, args []*Obj, skip int, mode convMode, scope *callScope) ([]reflect.Value, error) {
	t := c.typ
	numIn := t.NumIn() - skip
	variadic := t.IsVariadic()
	if variadic {
		if len(args) < numIn-1 {
			return nil, &arityError{want: numIn - 1, got: len(args), variadic: true}
		}
	} else if len(args) != numIn {
		return nil, &arityError{want: numIn, got: len(args)}
	}

	var temps []any
	in := make([]reflect.Value, len(args))
	for j, arg := range args {
		var paramType reflect.Type
		if variadic && j >= numIn-1 {
			paramType = t.In(t.NumIn() - 1).Elem()
		} else {
			paramType = t.In(j + skip)
		}
		v, err := rt.convertArg(arg, paramType, mode, &temps)
		if err != nil {
			for _, tmp := range temps {
				if derr := rt.destroy(tmp); derr != nil {
					rt.log.Warn().Err(derr).Msg("destroy conversion temporary")
				}
			}
			return nil, &argError{index: j, err: err}
		}
		in[j] = v
	}
	scope.temps = append(scope.temps, temps...)
	return in, nil
}

// convertArg converts a host object to a Go value of type t.
func (rt *Runtime) convertArg(arg *Obj, t reflect.Type, mode convMode, temps *[]any) (reflect.Value, error) {
	switch t {
	case objType:
		return reflect.ValueOf(arg), nil
	case funcType:
		f, err := AsFunc(arg)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(f), nil
	case instanceType:
		inst, err := AsInstance(arg)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(inst), nil
	}
	if t.Implements(holderParamType) {
		return rt.convertHolder(arg, t)
	}

	switch rep := arg.InternalRep().(type) {
	case *Instance:
		return rt.convertInstance(rep, t, mode, temps)
	case *ForeignType:
		if rep.Value != nil && reflect.TypeOf(rep.Value).AssignableTo(t) {
			return reflect.ValueOf(rep.Value), nil
		}
		return reflect.Value{}, fmt.Errorf("expected %s but got %s", typeName(t), rep.Name())
	case *Func:
		if t.Kind() == reflect.Interface && t.NumMethod() == 0 {
			return reflect.ValueOf(rep), nil
		}
		return reflect.Value{}, fmt.Errorf("expected %s but got function", typeName(t))
	}
	return rt.convertPrimitive(arg, t, mode, temps)
}

func (rt *Runtime) convertPrimitive(arg *Obj, t reflect.Type, mode convMode, temps *[]any) (reflect.Value, error) {
	rep := arg.InternalRep()
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		if rep == nil {
			out.SetString(arg.String())
			return out, nil
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, ok := rep.(IntType); ok {
			if out.OverflowInt(int64(n)) {
				return reflect.Value{}, fmt.Errorf("integer %d overflows %s", int64(n), t)
			}
			out.SetInt(int64(n))
			return out, nil
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, ok := rep.(IntType); ok {
			if n < 0 || out.OverflowUint(uint64(n)) {
				return reflect.Value{}, fmt.Errorf("integer %d out of range for %s", int64(n), t)
			}
			out.SetUint(uint64(n))
			return out, nil
		}

	case reflect.Float32, reflect.Float64:
		switch n := rep.(type) {
		case DoubleType:
			out.SetFloat(float64(n))
			return out, nil
		case IntType:
			if mode >= convWiden {
				out.SetFloat(float64(n))
				return out, nil
			}
		}

	case reflect.Bool:
		if n, ok := rep.(IntType); ok && (n == 0 || n == 1) {
			out.SetBool(n == 1)
			return out, nil
		}

	case reflect.Interface:
		if t.NumMethod() == 0 {
			return reflect.ValueOf(goValue(arg)), nil
		}
	}

	if mode == convImplicit {
		if v, ok := rt.convertWithConstructor(arg, t, temps); ok {
			return v, nil
		}
	}
	return reflect.Value{}, fmt.Errorf("expected %s but got %s", typeName(t), describeArg(arg))
}

// convertInstance passes an instance's native value, or a view of it, to a
// parameter of type t.
func (rt *Runtime) convertInstance(inst *Instance, t reflect.Type, mode convMode, temps *[]any) (reflect.Value, error) {
	v := inst.Value()
	if v == nil {
		return reflect.Value{}, fmt.Errorf("%s has been released", inst.handle)
	}
	if reflect.TypeOf(v).AssignableTo(t) {
		return reflect.ValueOf(v), nil
	}
	if target := rt.lookupType(t); target != nil {
		if view, ok := rt.view(v, target); ok {
			return reflect.ValueOf(view), nil
		}
	}
	if t.Kind() == reflect.Struct {
		if target := rt.lookupType(reflect.PointerTo(t)); target != nil {
			if view, ok := rt.view(v, target); ok {
				return reflect.ValueOf(view).Elem(), nil
			}
		}
	}
	if mode == convImplicit {
		if out, ok := rt.implicitConvert(v, t, temps); ok {
			return out, nil
		}
	}
	return reflect.Value{}, fmt.Errorf("no conversion from %s to %s", inst.class.name, typeName(t))
}

// convertHolder fills a Holder[T] parameter from a shared-held instance.
func (rt *Runtime) convertHolder(arg *Obj, t reflect.Type) (reflect.Value, error) {
	inst, err := AsInstance(arg)
	if err != nil {
		return reflect.Value{}, err
	}
	elem := reflect.Zero(t).Interface().(holderParam).holderElem()
	target := rt.lookupType(elem)
	if target == nil {
		return reflect.Value{}, fmt.Errorf("holder element %s is not a registered class", typeName(elem))
	}
	rec := inst.Record()
	if rec == nil || rec.Holder != HolderShared {
		return reflect.Value{}, fmt.Errorf("%s is not held by a shared holder", inst.class.name)
	}
	view, ok := rt.view(rec.value, target)
	if !ok {
		return reflect.Value{}, fmt.Errorf("no conversion from %s to holder of %s", inst.class.name, target.name)
	}
	pv := reflect.New(t)
	pv.Interface().(holderSetter).setHolder(rec.shared, view)
	return pv.Elem(), nil
}

// toObj converts a Go value to a host object.
func (rt *Runtime) toObj(v any) *Obj {
	switch x := v.(type) {
	case nil:
		return NewString("")
	case *Obj:
		return x
	case *Instance:
		if x == nil {
			return NewString("")
		}
		return &Obj{intrep: x}
	case *Func:
		return &Obj{intrep: x}
	case ObjType:
		return &Obj{intrep: x}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return NewString(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return NewDouble(float64(rv.Uint()))
		}
		return NewInt(int64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return NewDouble(rv.Float())
	case reflect.Bool:
		if rv.Bool() {
			return NewInt(1)
		}
		return NewInt(0)
	}
	return NewForeign(v)
}

// resultObj converts a native function's return value to a host object.
// Raw pointers to registered classes are borrowed; return a Result or a
// holder to hand over ownership.
func (rt *Runtime) resultObj(out reflect.Value) (*Obj, error) {
	if !out.IsValid() {
		return NewString(""), nil
	}
	switch out.Type() {
	case resultType, uniquePtrType, sharedPtrType:
		inst, err := rt.Wrap(rt.classify(out), nil)
		if err != nil {
			return nil, err
		}
		return rt.toObj(inst), nil
	}
	if out.Kind() == reflect.Pointer && !out.IsNil() && rt.lookupType(out.Type()) != nil {
		inst, err := rt.Wrap(Result{kind: HolderReference, value: out.Interface(), static: out.Type()}, nil)
		if err != nil {
			return nil, err
		}
		return rt.toObj(inst), nil
	}
	if out.Kind() == reflect.Interface && out.IsNil() {
		return NewString(""), nil
	}
	return rt.toObj(out.Interface()), nil
}

// goValue returns the plain Go value of a host object.
func goValue(o *Obj) any {
	switch rep := o.InternalRep().(type) {
	case nil:
		return o.String()
	case IntType:
		return int64(rep)
	case DoubleType:
		return float64(rep)
	case *ForeignType:
		return rep.Value
	}
	return o.InternalRep()
}

func describeArg(o *Obj) string {
	switch rep := o.InternalRep().(type) {
	case nil:
		return "string"
	case *Instance:
		return rep.class.name
	default:
		return rep.Name()
	}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}

// isArity reports whether err is an argument count mismatch.
func isArity(err error) bool {
	var ae *arityError
	return errors.As(err, &ae)
}
