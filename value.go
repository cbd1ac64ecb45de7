package bind

import (
	"fmt"
	"strconv"
	"strings"
)

// AsInt converts o to int64, shimmering pure strings that parse as integers.
// Doubles are never narrowed.
func AsInt(o *Obj) (int64, error) {
	if o == nil {
		return 0, nil
	}
	if c, ok := o.intrep.(IntoInt); ok {
		if v, ok := c.IntoInt(); ok {
			return v, nil
		}
	}
	if o.intrep != nil {
		return 0, fmt.Errorf("expected integer but got %s %q", o.Type(), o.String())
	}
	v, err := strconv.ParseInt(o.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("expected integer but got %q", o.String())
	}
	o.intrep = IntType(v)
	return v, nil
}

// AsDouble converts o to float64, shimmering if needed.
func AsDouble(o *Obj) (float64, error) {
	if o == nil {
		return 0, nil
	}
	if c, ok := o.intrep.(IntoDouble); ok {
		if v, ok := c.IntoDouble(); ok {
			return v, nil
		}
	}
	if o.intrep != nil {
		return 0, fmt.Errorf("expected floating-point number but got %s %q", o.Type(), o.String())
	}
	v, err := strconv.ParseFloat(o.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("expected floating-point number but got %q", o.String())
	}
	o.intrep = DoubleType(v)
	return v, nil
}

// AsBool converts o to a boolean.
func AsBool(o *Obj) (bool, error) {
	if o == nil {
		return false, nil
	}
	if c, ok := o.intrep.(IntoBool); ok {
		if v, ok := c.IntoBool(); ok {
			return v, nil
		}
	}
	switch strings.ToLower(o.String()) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected boolean but got %q", o.String())
}

// AsInstance returns the bound instance held by o.
func AsInstance(o *Obj) (*Instance, error) {
	if inst, ok := o.InternalRep().(*Instance); ok {
		return inst, nil
	}
	return nil, fmt.Errorf("expected instance but got %s %q", o.Type(), o.String())
}

// AsFunc returns the host callable held by o.
func AsFunc(o *Obj) (*Func, error) {
	if f, ok := o.InternalRep().(*Func); ok {
		return f, nil
	}
	return nil, fmt.Errorf("expected function but got %s %q", o.Type(), o.String())
}

// AsForeign returns the opaque native value held by o.
func AsForeign(o *Obj) (any, error) {
	if f, ok := o.InternalRep().(*ForeignType); ok {
		return f.Value, nil
	}
	return nil, fmt.Errorf("expected native value but got %s %q", o.Type(), o.String())
}
