package bind

import (
	"reflect"
)

// implicitConvert converts the native value v for a parameter of type t
// using registered conversions.
//
// Conversion operators are searched breadth first from the dynamic class of
// v, so the most derived declaration wins whatever order classes were
// registered in. Within one class an exact result type beats a numeric
// widening. When no operator applies, converting constructors of the
// parameter's class are tried.
func (rt *Runtime) implicitConvert(v any, t reflect.Type, temps *[]any) (reflect.Value, bool) {
	cls, _ := rt.classOf(v)
	if cls == nil {
		return reflect.Value{}, false
	}

	queue := []*Class{cls}
	seen := map[*Class]bool{}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if seen[c] {
			continue
		}
		seen[c] = true
		for _, widen := range []bool{false, true} {
			for _, conv := range c.conversions {
				ct := conv.Type()
				if !producible(ct.Out(0), t, widen) {
					continue
				}
				recv, ok := rt.receiver(v, c, ct.In(0))
				if !ok {
					continue
				}
				out := conv.Call([]reflect.Value{recv})[0]
				rt.trackTemp(out, temps)
				if out.Type() != t && !out.Type().AssignableTo(t) {
					out = out.Convert(t)
				}
				return out, true
			}
		}
		for _, b := range c.bases {
			queue = append(queue, b.class)
		}
	}
	return rt.convertWithConstructor(rt.toObj(v), t, temps)
}

// convertWithConstructor applies a converting constructor of the class
// behind t to arg. Converting constructors take a single argument and do not
// chain further user conversions.
func (rt *Runtime) convertWithConstructor(arg *Obj, t reflect.Type, temps *[]any) (reflect.Value, bool) {
	byValue := false
	target := rt.lookupType(t)
	if target == nil && t.Kind() == reflect.Struct {
		target = rt.lookupType(reflect.PointerTo(t))
		byValue = true
	}
	if target == nil {
		return reflect.Value{}, false
	}
	rt.mu.Lock()
	converters := target.converters
	rt.mu.Unlock()
	for _, conv := range converters {
		in, err := rt.convertArg(arg, conv.Type().In(0), convWiden, nil)
		if err != nil {
			continue
		}
		out := conv.Call([]reflect.Value{in})[0]
		if out.Kind() != reflect.Pointer {
			p := reflect.New(out.Type())
			p.Elem().Set(out)
			out = p
		}
		if temps != nil {
			*temps = append(*temps, out.Interface())
		}
		if byValue {
			return out.Elem(), true
		}
		return out, true
	}
	return reflect.Value{}, false
}

// receiver returns the argument passed as the receiver of a method or
// conversion declared on class c. The dynamic value is preferred so that
// interface receivers dispatch to the most derived implementation.
func (rt *Runtime) receiver(v any, c *Class, param reflect.Type) (reflect.Value, bool) {
	if reflect.TypeOf(v).AssignableTo(param) {
		return reflect.ValueOf(v), true
	}
	view, ok := rt.view(v, c)
	if !ok || !reflect.TypeOf(view).AssignableTo(param) {
		return reflect.Value{}, false
	}
	return reflect.ValueOf(view), true
}

// trackTemp records conversion results that are newly created native
// objects so they are destroyed after the call.
func (rt *Runtime) trackTemp(out reflect.Value, temps *[]any) {
	if temps == nil || out.Kind() != reflect.Pointer || out.IsNil() {
		return
	}
	if rt.lookupType(out.Type()) != nil {
		*temps = append(*temps, out.Interface())
	}
}

// producible reports whether a conversion yielding from satisfies a
// parameter of type to, optionally by numeric widening. Narrowing is never
// allowed.
func producible(from, to reflect.Type, widen bool) bool {
	if !widen {
		return from == to || from.AssignableTo(to)
	}
	switch {
	case isIntKind(from) && isFloatKind(to):
		return true
	case isIntKind(from) && isIntKind(to):
		return to.Size() > from.Size()
	case isFloatKind(from) && isFloatKind(to):
		return to.Size() > from.Size()
	}
	return false
}

func isIntKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isFloatKind(t reflect.Type) bool {
	return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
}
