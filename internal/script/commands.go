package script

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/feather-lang/bind"
)

var builtins map[string]CommandFunc

func init() {
	builtins = map[string]CommandFunc{
		"new":          cmdNew,
		"call":         cmdCall,
		"invoke":       cmdInvoke,
		"super":        cmdSuper,
		"let":          cmdLet,
		"del":          cmdDel,
		"alive":        cmdAlive,
		"values":       cmdValues,
		"defaults":     cmdDefaults,
		"reginst":      cmdRegInst,
		"cleanup":      cmdCleanup,
		"subclass":     cmdSubclass,
		"expect":       cmdExpect,
		"expect-error": cmdExpectError,
		"echo":         cmdEcho,

		"set_ctor_fallback": cmdSetCtorFallback,
	}
}

func arity(args []string, n int, usage string) error {
	if len(args) < n {
		return errors.Errorf("wrong # args: should be %q", usage)
	}
	return nil
}

// new VAR CLASS ARG...
func cmdNew(in *Interp, args []string) (string, error) {
	if err := arity(args, 2, "new var class ?arg ...?"); err != nil {
		return "", err
	}
	cls, err := in.class(args[1])
	if err != nil {
		return "", err
	}
	vals, err := in.values(args[2:])
	if err != nil {
		return "", err
	}
	inst, err := cls.New(vals...)
	if err != nil {
		return "", err
	}
	in.store(args[0], inst)
	return "", nil
}

// call FUNC ARG...
func cmdCall(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, "call func ?arg ...?"); err != nil {
		return "", err
	}
	vals, err := in.values(args[1:])
	if err != nil {
		return "", err
	}
	res, err := in.Set.RT.Call(args[0], vals...)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// invoke VAR METHOD ARG...
func cmdInvoke(in *Interp, args []string) (string, error) {
	return invoke(in, args, (*bind.Instance).Call)
}

// super VAR METHOD ARG... calls the native method, bypassing overrides.
func cmdSuper(in *Interp, args []string) (string, error) {
	return invoke(in, args, (*bind.Instance).CallBase)
}

func invoke(in *Interp, args []string, fn func(*bind.Instance, string, ...any) (*bind.Obj, error)) (string, error) {
	if err := arity(args, 2, "invoke var method ?arg ...?"); err != nil {
		return "", err
	}
	inst, err := in.instance(args[0])
	if err != nil {
		return "", err
	}
	vals, err := in.values(args[2:])
	if err != nil {
		return "", err
	}
	res, err := fn(inst, args[1], vals...)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// let VAR call FUNC ARG... stores the result of a command. Instances
// returned by functions are owned by the variable.
func cmdLet(in *Interp, args []string) (string, error) {
	if err := arity(args, 2, "let var command ?arg ...?"); err != nil {
		return "", err
	}
	if args[1] != "call" {
		res, err := in.exec(args[1:])
		if err != nil {
			return "", err
		}
		in.store(args[0], res)
		return "", nil
	}
	if len(args) < 3 {
		return "", errors.New(`wrong # args: should be "let var call func ?arg ...?"`)
	}
	vals, err := in.values(args[3:])
	if err != nil {
		return "", err
	}
	res, err := in.Set.RT.Call(args[2], vals...)
	if err != nil {
		return "", err
	}
	if inst, ok := res.InternalRep().(*bind.Instance); ok {
		in.store(args[0], inst)
	} else {
		in.store(args[0], res)
	}
	return "", nil
}

func (in *Interp) store(name string, v any) {
	if old, ok := in.vars[name].(*bind.Instance); ok {
		old.Release()
	}
	in.vars[name] = v
}

// del VAR...
func cmdDel(in *Interp, args []string) (string, error) {
	for _, name := range args {
		v, ok := in.vars[name]
		if !ok {
			return "", errors.Errorf("no such variable %q", name)
		}
		if inst, ok := v.(*bind.Instance); ok {
			inst.Release()
		}
		delete(in.vars, name)
	}
	return "", nil
}

// alive NAME... prints the live object count of each ledger entry.
func cmdAlive(in *Interp, args []string) (string, error) {
	counts := make([]string, len(args))
	for i, name := range args {
		counts[i] = strconv.Itoa(in.Set.Ledger.Get(name).Alive())
	}
	return strings.Join(counts, " "), nil
}

// values NAME prints the recorded construction values, comma separated.
func cmdValues(in *Interp, args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New(`wrong # args: should be "values name"`)
	}
	return strings.Join(in.Set.Ledger.Get(args[0]).Values(), ","), nil
}

// defaults NAME... prints default construction counts.
func cmdDefaults(in *Interp, args []string) (string, error) {
	counts := make([]string, len(args))
	for i, name := range args {
		counts[i] = strconv.Itoa(in.Set.Ledger.Get(name).DefaultConstructions())
	}
	return strings.Join(counts, " "), nil
}

func cmdRegInst(in *Interp, args []string) (string, error) {
	return strconv.Itoa(in.Set.RT.RegisteredInstances()), nil
}

func cmdCleanup(in *Interp, args []string) (string, error) {
	return "", in.Set.CleanupLeaks()
}

// subclass NAME BASE ?METHOD=OFFSET ...? declares a host subclass whose
// methods return the native result plus OFFSET.
func cmdSubclass(in *Interp, args []string) (string, error) {
	if err := arity(args, 2, "subclass name base ?method=offset ...?"); err != nil {
		return "", err
	}
	base, err := in.class(args[1])
	if err != nil {
		return "", err
	}
	overrides := make(map[string]bind.HostMethod)
	for _, ov := range args[2:] {
		method, off, ok := strings.Cut(ov, "=")
		if !ok {
			return "", errors.Errorf("bad override %q: want method=offset", ov)
		}
		offset, err := strconv.ParseInt(off, 10, 64)
		if err != nil {
			return "", errors.Wrapf(err, "bad override %q", ov)
		}
		overrides[method] = offsetMethod(method, offset)
	}
	if _, err := in.Set.RT.Subclass(args[0], base, overrides); err != nil {
		return "", err
	}
	return "", nil
}

func offsetMethod(method string, offset int64) bind.HostMethod {
	return func(self *bind.Instance, args ...*bind.Obj) (any, error) {
		vals := make([]any, len(args))
		for i, a := range args {
			vals[i] = a
		}
		res, err := self.CallBase(method, vals...)
		if err != nil {
			return nil, err
		}
		n, err := res.Int()
		if err != nil {
			return nil, err
		}
		return n + offset, nil
	}
}

// set_ctor_fallback FUNC makes TestFactory1() construct through FUNC.
func cmdSetCtorFallback(in *Interp, args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New(`wrong # args: should be "set_ctor_fallback func"`)
	}
	v, err := in.Value(args[0])
	if err != nil {
		return "", err
	}
	f, ok := v.(*bind.Func)
	if !ok {
		return "", errors.Errorf("%q is not a function", args[0])
	}
	in.Set.SetTF1Fallback(f)
	return "", nil
}

// expect WANT COMMAND... fails unless COMMAND returns WANT.
func cmdExpect(in *Interp, args []string) (string, error) {
	if err := arity(args, 2, "expect want command ?arg ...?"); err != nil {
		return "", err
	}
	got, err := in.exec(args[1:])
	if err != nil {
		return "", err
	}
	if got != args[0] {
		return "", errors.Errorf("%s: got %q, want %q", args[1], got, args[0])
	}
	return "", nil
}

// expect-error MSG COMMAND... fails unless COMMAND fails with MSG.
func cmdExpectError(in *Interp, args []string) (string, error) {
	if err := arity(args, 2, "expect-error message command ?arg ...?"); err != nil {
		return "", err
	}
	_, err := in.exec(args[1:])
	if err == nil {
		return "", errors.Errorf("%s: succeeded, want error %q", args[1], args[0])
	}
	if err.Error() != args[0] {
		return "", errors.Errorf("%s: got error %q, want %q", args[1], err.Error(), args[0])
	}
	return "", nil
}

func cmdEcho(in *Interp, args []string) (string, error) {
	return strings.Join(args, " "), nil
}
