package fixtures

import (
	"strconv"

	"github.com/hashicorp/go-multierror"

	"github.com/feather-lang/bind"
	"github.com/feather-lang/bind/internal/fixtures/tag"
)

// TestFactory1 has no public constructors; every way of building it goes
// through a factory.
type TestFactory1 struct {
	value string
}

func (t *TestFactory1) Value() string { return t.value }

// TestFactory2 is like TestFactory1 but also returned by value.
type TestFactory2 struct {
	value string
}

func (t *TestFactory2) Value() string { return t.value }

// TestFactory3 is held by a shared holder.
type TestFactory3 struct {
	value string
}

func (t *TestFactory3) Value() string { return t.value }

// TestFactory4 and TestFactory5 derive from TestFactory3.
type TestFactory4 struct {
	TestFactory3
}

type TestFactory5 struct {
	TestFactory3
}

// TestFactory6 has an alias type, PyTF6.
type TestFactory6 struct {
	value int
	alias bool
}

func (t *TestFactory6) Get() int       { return t.value }
func (t *TestFactory6) HasAlias() bool { return t.alias }

// PyTF6 is the alias of TestFactory6. Its Get is overridable from host
// subclasses.
type PyTF6 struct {
	bind.Trampoline
	TestFactory6
}

func (p *PyTF6) Get() int {
	if call, ok := p.Override("get"); ok {
		if res, err := call(); err == nil {
			if n, err := res.Int(); err == nil {
				return int(n)
			}
		}
	}
	return p.TestFactory6.Get()
}

// NinetyNine converts to TestFactory6 but not to its alias.
type NinetyNine struct{}

type getter interface {
	Get() int
}

func (s *Set) NewTF1(v string) *TestFactory1 {
	s.tf1.Created(v)
	return &TestFactory1{value: v}
}

func (s *Set) defaultTF1() *TestFactory1 {
	s.tf1.DefaultCreated()
	return &TestFactory1{value: "(empty)"}
}

func (s *Set) NewTF2(v string) *TestFactory2 {
	s.tf2.Created(v)
	return &TestFactory2{value: v}
}

func (s *Set) defaultTF2() *TestFactory2 {
	s.tf2.DefaultCreated()
	return &TestFactory2{value: "(empty2)"}
}

func (s *Set) NewTF3(v string) *TestFactory3 {
	s.tf3.Created(v)
	return &TestFactory3{value: v}
}

func (s *Set) defaultTF3() *TestFactory3 {
	s.tf3.DefaultCreated()
	return &TestFactory3{value: "(empty3)"}
}

func (s *Set) NewTF4(v int) *TestFactory4 {
	t := &TestFactory4{TestFactory3: *s.NewTF3(strconv.Itoa(v))}
	s.tf4.Created(v)
	return t
}

func (s *Set) NewTF5(v int) *TestFactory5 {
	t := &TestFactory5{TestFactory3: *s.NewTF3(strconv.Itoa(v))}
	s.tf5.Created(v)
	return t
}

func (s *Set) NewTF6(v int) *TestFactory6 {
	s.tf6.Created(v)
	return &TestFactory6{value: v}
}

func (s *Set) NewPyTF6(v int) *PyTF6 {
	p := &PyTF6{TestFactory6: *s.NewTF6(v)}
	p.alias = true
	s.pytf6.Created(v)
	return p
}

func (s *Set) newPyTF6FromString(v string) *PyTF6 {
	p := &PyTF6{TestFactory6: *s.NewTF6(len(v))}
	p.alias = true
	s.pytf6.Created(v)
	return p
}

// construct3 wraps a new TestFactory3 in a host object that owns it.
func (s *Set) construct3(v float64) (*bind.Instance, error) {
	return s.RT.Wrap(bind.Ptr(s.NewTF3(strconv.Itoa(int(v)))), s.TF3)
}

// getTestFactory1 is the host function handed to TestFactory1's function
// factory and fallback.
func (s *Set) getTestFactory1(args ...*bind.Obj) (any, error) {
	v := int64(-23)
	for _, a := range args {
		n, err := a.Int()
		if err != nil {
			return nil, err
		}
		v += n
	}
	return s.TF1.New(tag.Pointer, int(v))
}

// GetTestFactory1 returns getTestFactory1 as a host callable.
func (s *Set) GetTestFactory1() *bind.Func {
	return s.RT.Func("get_test_factory_1", s.getTestFactory1)
}

func callForInstance(f *bind.Func, args ...any) (*bind.Instance, error) {
	res, err := f.Call(args...)
	if err != nil {
		return nil, err
	}
	return res.Instance()
}

func (s *Set) registerFactories() error {
	s.tf1 = s.Ledger.Get("TestFactory1")
	s.tf2 = s.Ledger.Get("TestFactory2")
	s.tf3 = s.Ledger.Get("TestFactory3")
	s.tf4 = s.Ledger.Get("TestFactory4")
	s.tf5 = s.Ledger.Get("TestFactory5")
	s.tf6 = s.Ledger.Get("TestFactory6")
	s.pytf6 = s.Ledger.Get("PyTF6")

	var err error
	s.TF1, err = bind.RegisterClass(s.RT, "TestFactory1", bind.ClassDef[*TestFactory1]{
		Init: []*bind.Factory{
			bind.Init(func(_ tag.PointerTag, v int) *bind.UniquePtr {
				return bind.NewUnique(s.NewTF1(strconv.Itoa(v)))
			}),
			bind.Init(func(_ tag.UniquePtrTag, v string) *TestFactory1 { return s.NewTF1(v) }),
			bind.Init(func(tag.PointerTag) *TestFactory1 { return s.defaultTF1() }),
			bind.Init(func(f *bind.Func) (*bind.Instance, error) { return callForInstance(f, 123) }),
		},
		Methods: map[string]any{
			"value": (*TestFactory1).Value,
		},
		Destroy: func(*TestFactory1) { s.tf1.Destroyed() },
	})
	if err != nil {
		return err
	}

	s.TF2, err = bind.RegisterClass(s.RT, "TestFactory2", bind.ClassDef[*TestFactory2]{
		Init: []*bind.Factory{
			bind.Init(func(_ tag.PointerTag, v int) *bind.UniquePtr {
				return bind.NewUnique(s.NewTF2(strconv.Itoa(v)))
			}),
			bind.Init(func(_ tag.UniquePtrTag, v string) TestFactory2 { return *s.NewTF2(v) }),
			bind.Init(func(tag.MoveTag) *TestFactory2 { return s.defaultTF2() }),
		},
		Methods: map[string]any{
			"value": (*TestFactory2).Value,
		},
		Destroy: func(*TestFactory2) { s.tf2.Destroyed() },
	})
	if err != nil {
		return err
	}

	s.TF3, err = bind.RegisterClass(s.RT, "TestFactory3", bind.ClassDef[*TestFactory3]{
		Holder: bind.HolderShared,
		Init: []*bind.Factory{
			bind.Init(func(_ tag.PointerTag, v int) *bind.SharedPtr {
				return bind.MakeShared(s.NewTF3(strconv.Itoa(v)))
			}),
			bind.Init(func(tag.SharedPtrTag) *TestFactory3 { return s.defaultTF3() }),
			bind.Init(func(v string) *TestFactory3 { return s.NewTF3(v) }),
			bind.Init(func(_ tag.ObjectTag, v int) (*bind.Instance, error) { return s.construct3(float64(v + 1)) }),
			bind.Init(func(_ tag.RawObjectTag, v float64) (*bind.Instance, error) { return s.construct3(v) }),
			bind.Init(func(_ tag.MultirefTag, v float64) (*bind.Instance, error) {
				o, err := s.construct3(v)
				if err != nil {
					return nil, err
				}
				s.leak1 = o.Retain()
				return o, nil
			}),
			bind.Init(func(_ tag.UnownedTag, v int) (*bind.Instance, error) {
				s.leak2 = s.NewTF3(strconv.Itoa(v))
				return s.RT.Wrap(bind.Ref(s.leak2), s.TF3)
			}),
			bind.Init(func(_ tag.PointerTag, _ tag.TF4Tag, v int) *TestFactory4 { return s.NewTF4(v) }),
			bind.Init(func(_ tag.ObjectTag, _ tag.TF4Tag, v int) (*bind.Instance, error) {
				return s.RT.Wrap(bind.Ptr(s.NewTF4(v)), s.TF4)
			}),
			bind.Init(func(_ tag.PointerTag, _ tag.TF5Tag, v int) *TestFactory5 { return s.NewTF5(v) }),
			bind.Init(func(_ tag.SharedPtrTag, _ tag.TF4Tag, v int) *bind.SharedPtr {
				return bind.MakeShared(s.NewTF4(v))
			}),
			bind.Init(func(_ tag.SharedPtrTag, _ tag.TF5Tag, v int) *bind.SharedPtr {
				return bind.MakeShared(s.NewTF5(v))
			}),
			bind.Init(func(tag.NullPtrTag) *TestFactory3 { return nil }),
		},
		Methods: map[string]any{
			"value": (*TestFactory3).Value,
		},
		Destroy: func(*TestFactory3) { s.tf3.Destroyed() },
	})
	if err != nil {
		return err
	}

	s.TF4, err = bind.RegisterClass(s.RT, "TestFactory4", bind.ClassDef[*TestFactory4]{
		Holder: bind.HolderShared,
		Bases: []bind.BaseDef{
			bind.Base(func(t *TestFactory4) *TestFactory3 { return &t.TestFactory3 }),
		},
		Init: []*bind.Factory{
			bind.Init(func(_ tag.PointerTag, _ tag.TF4Tag, v int) *TestFactory4 { return s.NewTF4(v) }),
			bind.Init(func(_ tag.ObjectTag, _ tag.TF4Tag, v int) (*bind.Instance, error) {
				return s.RT.Wrap(bind.Ptr(s.NewTF4(v)), s.TF4)
			}),
			bind.Init(func(_ tag.SharedPtrTag, _ tag.BaseTag, v int) *bind.SharedPtr {
				return bind.SharedAs[*TestFactory3](s.NewTF4(v))
			}),
			bind.Init(func(_ tag.PointerTag, _ tag.BaseTag, v int) bind.Result {
				return bind.PtrAs[*TestFactory3](s.NewTF4(v))
			}),
			bind.Init(func(_ tag.SharedPtrTag, _ tag.InvalidBaseTag, v int) *bind.SharedPtr {
				return bind.SharedAs[*TestFactory3](s.NewTF5(v))
			}),
			bind.Init(func(_ tag.PointerTag, _ tag.InvalidBaseTag, v int) bind.Result {
				return bind.PtrAs[*TestFactory3](s.NewTF5(v))
			}),
		},
		Destroy: func(*TestFactory4) { s.tf4.Destroyed() },
	})
	if err != nil {
		return err
	}

	s.TF5, err = bind.RegisterClass(s.RT, "TestFactory5", bind.ClassDef[*TestFactory5]{
		Holder: bind.HolderShared,
		Bases: []bind.BaseDef{
			bind.Base(func(t *TestFactory5) *TestFactory3 { return &t.TestFactory3 }),
		},
		Destroy: func(*TestFactory5) { s.tf5.Destroyed() },
	})
	if err != nil {
		return err
	}

	s.TF6, err = bind.RegisterClass(s.RT, "TestFactory6", bind.ClassDef[*TestFactory6]{
		Alias: bind.Alias("PyTF6", bind.AliasSpec[*TestFactory6, *PyTF6]{
			Base: func(p *PyTF6) *TestFactory6 { return &p.TestFactory6 },
			Converters: []any{
				func(v int) *PyTF6 { return s.NewPyTF6(v) },
				func(v string) *PyTF6 { return s.newPyTF6FromString(v) },
			},
			Destroy: func(*PyTF6) { s.pytf6.Destroyed() },
		}),
		Init: []*bind.Factory{
			bind.Init(func(v int) int { return v }),
			bind.Init(func(v string) string { return v }),
			bind.Init(func(_ tag.BaseTag, v int) TestFactory6 { return *s.NewTF6(v) }),
			bind.Init(func(_ tag.AliasTag, v int) PyTF6 { return *s.NewPyTF6(v) }),
			bind.Init(func(_ tag.AliasTag, _ tag.PointerTag, v int) *PyTF6 { return s.NewPyTF6(v) }),
			bind.Init(func(_ tag.BaseTag, _ tag.PointerTag, v int) *TestFactory6 { return s.NewTF6(v) }),
			bind.Init(func(_ tag.BaseTag, _ tag.AliasTag, _ tag.PointerTag, v int) bind.Result {
				return bind.PtrAs[*TestFactory6](s.NewPyTF6(v))
			}),
			bind.Init(func(tag.UnaliasableTag) NinetyNine { return NinetyNine{} }),
		},
		Converters: []any{
			func(v int) *TestFactory6 { return s.NewTF6(v) },
			func(NinetyNine) *TestFactory6 { return s.NewTF6(99) },
		},
		Methods: map[string]any{
			"get":       func(g getter) int { return g.Get() },
			"has_alias": (*TestFactory6).HasAlias,
		},
		Destroy: func(*TestFactory6) { s.tf6.Destroyed() },
	})
	return err
}

// SetTF1Fallback makes TestFactory1() construct through f. Until it is
// called, constructing TestFactory1 without arguments fails.
func (s *Set) SetTF1Fallback(f *bind.Func) {
	s.TF1.SetFallback(func() (*bind.Instance, error) { return callForInstance(f) })
}

// CleanupLeaks releases the objects the multiref and unowned factories
// stash away. The unowned value is destroyed only if no instance adopted it.
func (s *Set) CleanupLeaks() error {
	var result *multierror.Error
	if s.leak1 != nil {
		s.leak1.Release()
		s.leak1 = nil
	}
	if s.leak2 != nil {
		if !s.RT.IsRegistered(s.leak2) {
			if err := s.RT.Destroy(s.leak2); err != nil {
				result = multierror.Append(result, err)
			}
		}
		s.leak2 = nil
	}
	return result.ErrorOrNil()
}
