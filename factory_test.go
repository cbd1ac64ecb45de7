package bind_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/bind"
	"github.com/feather-lang/bind/internal/fixtures"
	"github.com/feather-lang/bind/internal/fixtures/tag"
	"github.com/feather-lang/bind/stats"
)

// newFixtures registers the fixture classes on a fresh runtime and ledger.
func newFixtures(t *testing.T) *fixtures.Set {
	t.Helper()
	l := stats.NewLedger()
	rt := bind.New(bind.WithLedger(l))
	s, err := fixtures.Register(rt, l)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, rt.Close()) })
	return s
}

func alive(s *fixtures.Set, names ...string) []int {
	out := make([]int, len(names))
	for i, name := range names {
		out[i] = s.Ledger.Get(name).Alive()
	}
	return out
}

func values(s *fixtures.Set, names ...string) [][]string {
	out := make([][]string, len(names))
	for i, name := range names {
		out[i] = s.Ledger.Get(name).Values()
	}
	return out
}

func mustNew(t *testing.T, c *bind.Class, args ...any) *bind.Instance {
	t.Helper()
	inst, err := c.New(args...)
	require.NoError(t, err)
	return inst
}

func callString(t *testing.T, inst *bind.Instance, method string, args ...any) string {
	t.Helper()
	res, err := inst.Call(method, args...)
	require.NoError(t, err)
	return res.String()
}

func callInt(t *testing.T, inst *bind.Instance, method string, args ...any) int64 {
	t.Helper()
	res, err := inst.Call(method, args...)
	require.NoError(t, err)
	n, err := res.Int()
	require.NoError(t, err)
	return n
}

func callBaseInt(t *testing.T, inst *bind.Instance, method string, args ...any) int64 {
	t.Helper()
	res, err := inst.CallBase(method, args...)
	require.NoError(t, err)
	n, err := res.Int()
	require.NoError(t, err)
	return n
}

func release(insts ...*bind.Instance) {
	for _, inst := range insts {
		inst.Release()
	}
}

// =============================================================================
// Construction from every kind of factory result
// =============================================================================

func TestInitFactory(t *testing.T) {
	s := newFixtures(t)
	names := []string{"TestFactory1", "TestFactory2", "TestFactory3"}
	alive(s, names...)
	n := s.RT.RegisteredInstances()

	x1 := mustNew(t, s.TF1, tag.Pointer, 3)
	assert.Equal(t, "3", callString(t, x1, "value"))
	y1 := mustNew(t, s.TF1, tag.Pointer)
	assert.Equal(t, "(empty)", callString(t, y1, "value"))
	z1 := mustNew(t, s.TF1, tag.UniquePtr, "hi!")
	assert.Equal(t, "hi!", callString(t, z1, "value"))

	w1 := mustNew(t, s.TF1, s.GetTestFactory1())
	assert.Equal(t, "100", callString(t, w1, "value"))

	_, err := s.TF1.New()
	assert.EqualError(t, err, "TestFactory1 new: overload resolution failed: no factory accepts ()")
	s.SetTF1Fallback(s.GetTestFactory1())
	v1 := mustNew(t, s.TF1)
	assert.Equal(t, "-23", callString(t, v1, "value"))

	assert.Equal(t, n+5, s.RT.RegisteredInstances())

	x2 := mustNew(t, s.TF2, tag.Move)
	assert.Equal(t, "(empty2)", callString(t, x2, "value"))
	y2 := mustNew(t, s.TF2, tag.Pointer, 7)
	assert.Equal(t, "7", callString(t, y2, "value"))
	z2 := mustNew(t, s.TF2, tag.UniquePtr, "hi again")
	assert.Equal(t, "hi again", callString(t, z2, "value"))

	assert.Equal(t, n+8, s.RT.RegisteredInstances())

	v3 := mustNew(t, s.TF3, tag.Object, 8)
	assert.Equal(t, "9", callString(t, v3, "value"))
	w3 := mustNew(t, s.TF3, tag.RawObject, 99)
	assert.Equal(t, "99", callString(t, w3, "value"))
	x3 := mustNew(t, s.TF3, tag.SharedPtr)
	assert.Equal(t, "(empty3)", callString(t, x3, "value"))
	y3 := mustNew(t, s.TF3, tag.Pointer, 42)
	assert.Equal(t, "42", callString(t, y3, "value"))
	z3 := mustNew(t, s.TF3, "bye")
	assert.Equal(t, "bye", callString(t, z3, "value"))

	assert.Equal(t, n+13, s.RT.RegisteredInstances())

	_, err = s.TF3.New(tag.Multiref, 21)
	assert.EqualError(t, err, "TestFactory3 new: factory function returned an object with multiple references")
	assert.ErrorIs(t, err, bind.ErrMultipleReferences)
	assert.True(t, bind.IsKind(err, bind.KindOwnership))
	// the extra reference is leaked on purpose
	assert.Equal(t, n+14, s.RT.RegisteredInstances())

	_, err = s.TF3.New(tag.Unowned, 24)
	assert.EqualError(t, err, "TestFactory3 new: factory function returned an unowned reference")
	assert.ErrorIs(t, err, bind.ErrUnownedReference)
	assert.Equal(t, n+14, s.RT.RegisteredInstances())

	_, err = s.TF3.New(tag.NullPtr)
	assert.EqualError(t, err, "TestFactory3 new: factory function returned a null pointer")
	assert.ErrorIs(t, err, bind.ErrNullPointer)
	assert.Equal(t, n+14, s.RT.RegisteredInstances())

	assert.Equal(t, []int{5, 3, 7}, alive(s, names...))
	require.NoError(t, s.CleanupLeaks())
	assert.Equal(t, n+13, s.RT.RegisteredInstances())
	assert.Equal(t, []int{5, 3, 5}, alive(s, names...))

	release(x1, y2, y3, z3, v1)
	assert.Equal(t, []int{3, 2, 3}, alive(s, names...))
	assert.Equal(t, n+8, s.RT.RegisteredInstances())
	release(x2, x3, w1)
	assert.Equal(t, []int{2, 1, 2}, alive(s, names...))
	assert.Equal(t, n+5, s.RT.RegisteredInstances())
	release(y1, z1, z2)
	assert.Equal(t, []int{0, 0, 2}, alive(s, names...))
	assert.Equal(t, n+2, s.RT.RegisteredInstances())
	release(v3, w3)
	assert.Equal(t, []int{0, 0, 0}, alive(s, names...))
	assert.Equal(t, n, s.RT.RegisteredInstances())

	assert.Equal(t, [][]string{
		{"3", "hi!", "100", "-23"},
		{"7", "hi again"},
		{"9", "99", "42", "bye", "21", "24"},
	}, values(s, names...))
	for _, name := range names {
		assert.Equal(t, 1, s.Ledger.Get(name).DefaultConstructions(), name)
	}
}

func TestInitFactoryCasting(t *testing.T) {
	s := newFixtures(t)
	names := []string{"TestFactory3", "TestFactory4", "TestFactory5"}
	alive(s, names...)
	n := s.RT.RegisteredInstances()

	// derived results adopted as the base class
	a := mustNew(t, s.TF3, tag.Pointer, tag.TF4, 4)
	assert.Equal(t, "4", callString(t, a, "value"))
	b := mustNew(t, s.TF3, tag.SharedPtr, tag.TF4, 5)
	assert.Equal(t, "5", callString(t, b, "value"))
	c := mustNew(t, s.TF3, tag.Pointer, tag.TF5, 6)
	assert.Equal(t, "6", callString(t, c, "value"))
	d := mustNew(t, s.TF3, tag.SharedPtr, tag.TF5, 7)
	assert.Equal(t, "7", callString(t, d, "value"))

	assert.Equal(t, n+4, s.RT.RegisteredInstances())

	// base-typed results whose dynamic type is the requested class
	e := mustNew(t, s.TF4, tag.Pointer, tag.Base, 8)
	assert.Equal(t, "8", callString(t, e, "value"))
	f := mustNew(t, s.TF4, tag.SharedPtr, tag.Base, 9)
	assert.Equal(t, "9", callString(t, f, "value"))

	assert.Equal(t, n+6, s.RT.RegisteredInstances())

	assert.Equal(t, []int{6, 4, 2}, alive(s, names...))
	release(a)
	assert.Equal(t, []int{5, 3, 2}, alive(s, names...))
	assert.Equal(t, n+5, s.RT.RegisteredInstances())
	release(c)
	assert.Equal(t, []int{4, 3, 1}, alive(s, names...))
	release(b)
	assert.Equal(t, []int{3, 2, 1}, alive(s, names...))
	release(e)
	assert.Equal(t, []int{2, 1, 1}, alive(s, names...))
	assert.Equal(t, n+2, s.RT.RegisteredInstances())
	release(f)
	assert.Equal(t, []int{1, 0, 1}, alive(s, names...))
	release(d)
	assert.Equal(t, []int{0, 0, 0}, alive(s, names...))
	assert.Equal(t, n, s.RT.RegisteredInstances())

	// base-typed results that are not a TestFactory4
	_, err := s.TF4.New(tag.Pointer, tag.InvalidBase, -2)
	assert.EqualError(t, err, "TestFactory4 new: factory failed: could not cast base class pointer")
	assert.True(t, bind.IsKind(err, bind.KindCast))
	_, err = s.TF4.New(tag.SharedPtr, tag.InvalidBase, -3)
	assert.EqualError(t, err, "TestFactory4 new: factory failed: could not cast shared base class pointer")
	assert.ErrorIs(t, err, bind.ErrSharedBaseCast)

	assert.Equal(t, [][]string{
		{"4", "5", "6", "7", "8", "9", "-2", "-3"},
		{"4", "5", "8", "9"},
		{"6", "7", "-2", "-3"},
	}, values(s, names...))
	assert.Equal(t, []int{0, 0, 0}, alive(s, names...))
	assert.Equal(t, n, s.RT.RegisteredInstances())
}

func TestInitFactoryAlias(t *testing.T) {
	s := newFixtures(t)
	names := []string{"TestFactory6", "PyTF6"}
	alive(s, names...)
	n := s.RT.RegisteredInstances()

	hasAlias := func(inst *bind.Instance) bool {
		res, err := inst.Call("has_alias")
		require.NoError(t, err)
		v, err := res.Bool()
		require.NoError(t, err)
		return v
	}

	a := mustNew(t, s.TF6, 1)
	assert.EqualValues(t, 1, callInt(t, a, "get"))
	assert.False(t, hasAlias(a))
	assert.False(t, a.HasAlias())
	assert.Equal(t, n+1, s.RT.RegisteredInstances())
	assert.Equal(t, []int{1, 0}, alive(s, names...))

	b := mustNew(t, s.TF6, "hi there")
	assert.EqualValues(t, 8, callInt(t, b, "get"))
	assert.True(t, hasAlias(b))
	assert.True(t, b.HasAlias())
	assert.Equal(t, n+2, s.RT.RegisteredInstances())
	assert.Equal(t, []int{2, 1}, alive(s, names...))

	c := mustNew(t, s.TF6, tag.Base, 2)
	assert.EqualValues(t, 2, callInt(t, c, "get"))
	assert.False(t, hasAlias(c))
	assert.Equal(t, n+3, s.RT.RegisteredInstances())
	assert.Equal(t, []int{3, 1}, alive(s, names...))

	d := mustNew(t, s.TF6, tag.Alias, 3)
	assert.EqualValues(t, 3, callInt(t, d, "get"))
	assert.True(t, hasAlias(d))
	assert.Equal(t, n+4, s.RT.RegisteredInstances())
	assert.Equal(t, []int{4, 2}, alive(s, names...))

	e := mustNew(t, s.TF6, tag.Alias, tag.Pointer, 4)
	assert.EqualValues(t, 4, callInt(t, e, "get"))
	assert.True(t, hasAlias(e))
	assert.Equal(t, n+5, s.RT.RegisteredInstances())
	assert.Equal(t, []int{5, 3}, alive(s, names...))

	f := mustNew(t, s.TF6, tag.Base, tag.Pointer, 5)
	assert.EqualValues(t, 5, callInt(t, f, "get"))
	assert.False(t, hasAlias(f))
	assert.Equal(t, n+6, s.RT.RegisteredInstances())
	assert.Equal(t, []int{6, 3}, alive(s, names...))

	g := mustNew(t, s.TF6, tag.Base, tag.Alias, tag.Pointer, 6)
	assert.EqualValues(t, 6, callInt(t, g, "get"))
	assert.True(t, hasAlias(g))
	assert.Equal(t, n+7, s.RT.RegisteredInstances())
	assert.Equal(t, []int{7, 4}, alive(s, names...))

	release(a, c, f)
	assert.Equal(t, []int{4, 4}, alive(s, names...))
	assert.Equal(t, n+4, s.RT.RegisteredInstances())
	release(b, g)
	assert.Equal(t, []int{2, 2}, alive(s, names...))
	assert.Equal(t, n+2, s.RT.RegisteredInstances())
	release(d, e)
	assert.Equal(t, []int{0, 0}, alive(s, names...))
	assert.Equal(t, n, s.RT.RegisteredInstances())

	myTest, err := s.RT.Subclass("MyTest", s.TF6, map[string]bind.HostMethod{
		"get": func(self *bind.Instance, args ...*bind.Obj) (any, error) {
			res, err := self.CallBase("get")
			if err != nil {
				return nil, err
			}
			v, err := res.Int()
			if err != nil {
				return nil, err
			}
			return v - 5, nil
		},
	})
	require.NoError(t, err)

	z := mustNew(t, myTest, 123)
	assert.EqualValues(t, 118, callInt(t, z, "get"))
	// CallBase skips the override even when called from outside it
	assert.EqualValues(t, 123, callBaseInt(t, z, "get"))
	assert.EqualValues(t, 118, callInt(t, z, "get"))
	assert.True(t, hasAlias(z))
	y := mustNew(t, myTest, "why hello!")
	assert.EqualValues(t, 5, callInt(t, y, "get"))
	assert.True(t, hasAlias(y))
	assert.Equal(t, n+2, s.RT.RegisteredInstances())

	const aliasFailure = "MyTest new: factory failed: cannot construct required alias class from factory return value"
	_, err = myTest.New(tag.Base, -7)
	assert.EqualError(t, err, aliasFailure)
	assert.True(t, bind.IsKind(err, bind.KindAlias))
	assert.Equal(t, []int{2, 2}, alive(s, names...))
	assert.Equal(t, n+2, s.RT.RegisteredInstances())

	_, err = myTest.New(tag.Unaliasable)
	assert.EqualError(t, err, aliasFailure)
	assert.Equal(t, []int{2, 2}, alive(s, names...))
	assert.Equal(t, n+2, s.RT.RegisteredInstances())

	release(z, y)
	assert.Equal(t, []int{0, 0}, alive(s, names...))
	assert.Equal(t, n, s.RT.RegisteredInstances())

	assert.Equal(t, [][]string{
		{"1", "8", "2", "3", "4", "5", "6", "123", "10", "-7"},
		{"hi there", "3", "4", "6", "123", "why hello!"},
	}, values(s, names...))
}

// =============================================================================
// Resolution order and errors
// =============================================================================

func TestNoMatchingFactory(t *testing.T) {
	s := newFixtures(t)

	_, err := s.TF2.New(1, 2, 3)
	require.Error(t, err)
	assert.EqualError(t, err, "TestFactory2 new: overload resolution failed: no factory accepts (int, int, int)")
	assert.ErrorIs(t, err, bind.ErrNoMatchingFactory)

	var te *bind.TypeError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, bind.KindOverload, te.Kind)
	assert.Equal(t, "TestFactory2", te.Name)
	assert.Equal(t, "new", te.Op)
	assert.Equal(t, 0, s.RT.RegisteredInstances())
}

func TestFallbackIsConsultedLast(t *testing.T) {
	s := newFixtures(t)
	called := 0
	s.SetTF1Fallback(s.RT.Func("counting", func(args ...*bind.Obj) (any, error) {
		called++
		return s.TF1.New(tag.Pointer, 5)
	}))

	// a declared candidate matches, so the fallback never runs
	x := mustNew(t, s.TF1, tag.Pointer)
	assert.Equal(t, "(empty)", callString(t, x, "value"))
	assert.Equal(t, 0, called)

	y := mustNew(t, s.TF1)
	assert.Equal(t, "5", callString(t, y, "value"))
	assert.Equal(t, 1, called)
	release(x, y)
	assert.Equal(t, 0, s.Ledger.Get("TestFactory1").Alive())
}

type measured struct{ v float64 }

func TestFallbackWaitsForConvertingPass(t *testing.T) {
	rt := bind.New(bind.WithLedger(stats.NewLedger()))
	defer rt.Close()
	cls, err := bind.RegisterClass(rt, "Measured", bind.ClassDef[*measured]{
		Init: []*bind.Factory{
			bind.Init(func(v float64) *measured { return &measured{v: v} }),
		},
		Methods: map[string]any{
			"value": func(m *measured) float64 { return m.v },
		},
	})
	require.NoError(t, err)
	cls.SetFallback(func(v int) *measured { return &measured{v: -1} })

	// the declared factory only matches once 3 widens to a double, and
	// still wins over the exactly matching fallback
	inst := mustNew(t, cls, 3)
	assert.Equal(t, 3.0, callFloat(t, inst, "value"))

	cls.SetFallback(func(a, b int) *measured { return &measured{v: float64(a * b)} })
	inst = mustNew(t, cls, 2, 5)
	assert.Equal(t, 10.0, callFloat(t, inst, "value"))
}

func TestFactoryErrorPropagates(t *testing.T) {
	s := newFixtures(t)
	boom := errors.New("boom")
	_, err := s.TF1.New(s.RT.Func("failing", func(args ...*bind.Obj) (any, error) {
		return nil, boom
	}))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.RT.RegisteredInstances())
}

func TestImplicitWideningSecondPass(t *testing.T) {
	s := newFixtures(t)
	// the raw_object factory takes a float64; an integer only matches once
	// conversions are allowed
	inst := mustNew(t, s.TF3, tag.RawObject, 12)
	assert.Equal(t, "12", callString(t, inst, "value"))
	rec := inst.Record()
	assert.Equal(t, bind.HolderShared, rec.Holder)
	assert.True(t, rec.Owning())
	release(inst)
	assert.Equal(t, 0, s.Ledger.Get("TestFactory3").Alive())
}

// =============================================================================
// Ownership records
// =============================================================================

func TestOwnershipRecordHolders(t *testing.T) {
	s := newFixtures(t)

	tests := []struct {
		name   string
		class  func() *bind.Class
		args   []any
		holder bind.HolderKind
	}{
		{"unique pointer", func() *bind.Class { return s.TF1 }, []any{tag.Pointer, 1}, bind.HolderUnique},
		{"raw pointer", func() *bind.Class { return s.TF1 }, []any{tag.UniquePtr, "x"}, bind.HolderUnique},
		{"by value", func() *bind.Class { return s.TF2 }, []any{tag.UniquePtr, "x"}, bind.HolderValue},
		{"shared class", func() *bind.Class { return s.TF3 }, []any{"x"}, bind.HolderShared},
		{"converted value", func() *bind.Class { return s.TF6 }, []any{1}, bind.HolderValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := mustNew(t, tt.class(), tt.args...)
			defer inst.Release()
			rec := inst.Record()
			assert.Equal(t, tt.holder, rec.Holder)
			assert.True(t, rec.Owning())
			assert.False(t, rec.Released())
			assert.Same(t, tt.class(), rec.Class())
		})
	}
}

func TestWrapBorrowsReferences(t *testing.T) {
	s := newFixtures(t)
	v := s.NewTF3("borrowed")

	a, err := s.RT.Wrap(bind.Ref(v), s.TF3)
	require.NoError(t, err)
	b, err := s.RT.Wrap(bind.Ref(v), nil)
	require.NoError(t, err)
	assert.Same(t, s.TF3, b.Class())
	assert.Equal(t, bind.HolderReference, a.Record().Holder)
	assert.False(t, a.Record().Owning())

	release(a, b)
	assert.Equal(t, 1, s.Ledger.Get("TestFactory3").Alive())
	require.NoError(t, s.RT.Destroy(v))
	assert.Equal(t, 0, s.Ledger.Get("TestFactory3").Alive())
}

func TestDestroyRefusesOwnedValues(t *testing.T) {
	s := newFixtures(t)
	inst := mustNew(t, s.TF1, tag.UniquePtr, "owned")
	assert.Error(t, s.RT.Destroy(inst.Value()))
	release(inst)
	assert.Nil(t, inst.Value())
}

func TestRetainDefersFinalization(t *testing.T) {
	s := newFixtures(t)
	inst := mustNew(t, s.TF1, tag.UniquePtr, "kept")
	inst.Retain()
	assert.Equal(t, 2, inst.RefCount())

	inst.Release()
	assert.Equal(t, 1, s.Ledger.Get("TestFactory1").Alive())
	inst.Release()
	assert.Equal(t, 0, s.Ledger.Get("TestFactory1").Alive())
	assert.True(t, inst.Record().Released())

	// extra releases are ignored
	inst.Release()
	assert.Equal(t, 0, inst.RefCount())
}

func TestCloseFinalizesLiveInstances(t *testing.T) {
	l := stats.NewLedger()
	rt := bind.New(bind.WithLedger(l))
	s, err := fixtures.Register(rt, l)
	require.NoError(t, err)

	mustNew(t, s.TF1, tag.Pointer, 1)
	mustNew(t, s.TF3, tag.SharedPtr)
	mustNew(t, s.TF6, tag.Alias, 2)
	require.NoError(t, rt.Close())

	assert.Equal(t, 0, rt.RegisteredInstances())
	for _, name := range s.ClassNames() {
		assert.Equal(t, 0, l.Get(name).Alive(), name)
	}
}
