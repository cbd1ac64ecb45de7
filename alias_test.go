package bind_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feather-lang/bind"
	"github.com/feather-lang/bind/stats"
)

type Shape struct {
	sides int
	name  string
}

func (s *Shape) Sides() int { return s.sides }

type PyShape struct {
	bind.Trampoline
	Shape
}

func (p *PyShape) Sides() int {
	if call, ok := p.Override("sides"); ok {
		res, err := call()
		if err == nil {
			if n, err := res.Int(); err == nil {
				return int(n)
			}
		}
	}
	return p.Shape.Sides()
}

type sider interface {
	Sides() int
}

type shapeFixture struct {
	rt    *bind.Runtime
	shape *bind.Class
	log   []string
}

func newShapeFixture(t *testing.T) *shapeFixture {
	t.Helper()
	f := &shapeFixture{rt: bind.New(bind.WithLedger(stats.NewLedger()))}
	t.Cleanup(func() { assert.NoError(t, f.rt.Close()) })

	var err error
	f.shape, err = bind.RegisterClass(f.rt, "Shape", bind.ClassDef[*Shape]{
		Alias: bind.Alias("PyShape", bind.AliasSpec[*Shape, *PyShape]{
			Base: func(p *PyShape) *Shape { return &p.Shape },
			FromBase: func(s *Shape) *PyShape {
				f.log = append(f.log, "alias from "+s.name)
				return &PyShape{Shape: *s}
			},
			Destroy: func(p *PyShape) { f.log = append(f.log, "destroy alias "+p.name) },
		}),
		Init: []*bind.Factory{
			bind.Init(func(n int) *Shape { return &Shape{sides: n, name: "plain"} }),
			bind.InitAlias(
				func(name string) *Shape { return &Shape{sides: len(name), name: name} },
				func(name string) *PyShape { return &PyShape{Shape: Shape{sides: len(name), name: name}} },
			),
		},
		Methods: map[string]any{
			"sides":    func(s sider) int { return s.Sides() },
			"describe": func(s *Shape, prefix string) string { return prefix + s.name },
		},
		Destroy: func(s *Shape) { f.log = append(f.log, "destroy "+s.name) },
	})
	require.NoError(t, err)
	f.rt.Def("count_sides", func(s sider) int { return s.Sides() })
	return f
}

func TestHostSubclassBuildsAliasFromBase(t *testing.T) {
	f := newShapeFixture(t)
	square, err := f.rt.Subclass("Square", f.shape, map[string]bind.HostMethod{
		"sides": func(self *bind.Instance, args ...*bind.Obj) (any, error) { return 4, nil },
	})
	require.NoError(t, err)

	sq := mustNew(t, square, 3)
	assert.True(t, sq.HasAlias())
	assert.Same(t, square, sq.Class())
	assert.Equal(t, []string{"alias from plain", "destroy plain"}, f.log)

	assert.EqualValues(t, 4, callInt(t, sq, "sides"))

	// native code reaches the override through the trampoline
	res, err := f.rt.Call("count_sides", sq)
	require.NoError(t, err)
	assert.Equal(t, "4", res.String())

	assert.Equal(t, "a plain", callString(t, sq, "describe", "a "))
	assert.Equal(t, []string{"describe", "sides"}, square.MethodNames())

	f.log = nil
	sq.Release()
	assert.Equal(t, []string{"destroy alias plain", "destroy plain"}, f.log)
}

func TestOverrideCallingBaseReachesNative(t *testing.T) {
	f := newShapeFixture(t)
	doubled, err := f.rt.Subclass("Doubled", f.shape, map[string]bind.HostMethod{
		"sides": func(self *bind.Instance, args ...*bind.Obj) (any, error) {
			res, err := self.CallBase("sides")
			if err != nil {
				return nil, err
			}
			n, err := res.Int()
			return 2 * n, err
		},
	})
	require.NoError(t, err)

	inst := mustNew(t, doubled, 5)
	defer inst.Release()
	assert.EqualValues(t, 10, callInt(t, inst, "sides"))
	assert.EqualValues(t, 5, callBaseInt(t, inst, "sides"))
	res, err := f.rt.Call("count_sides", inst)
	require.NoError(t, err)
	assert.Equal(t, "10", res.String())
}

func TestDualFactoryPicksByAliasRequirement(t *testing.T) {
	f := newShapeFixture(t)
	plain, err := f.rt.Subclass("Plain", f.shape, nil)
	require.NoError(t, err)

	a := mustNew(t, f.shape, "tri")
	assert.False(t, a.HasAlias())
	b := mustNew(t, plain, "quad")
	assert.True(t, b.HasAlias())
	assert.EqualValues(t, 4, callInt(t, b, "sides"))
	assert.Empty(t, f.log, "alias factory builds the alias directly")

	release(a, b)
	assert.Equal(t, []string{"destroy tri", "destroy alias quad", "destroy quad"}, f.log)
}

func TestUnknownMethod(t *testing.T) {
	f := newShapeFixture(t)
	inst := mustNew(t, f.shape, 3)
	defer inst.Release()

	_, err := inst.Call("area")
	assert.EqualError(t, err, `unknown method "area": must be describe, sides`)

	_, err = inst.Call("describe")
	require.Error(t, err)
	assert.True(t, bind.IsKind(err, bind.KindOverload))
	assert.True(t, strings.HasPrefix(err.Error(), "Shape.describe: wrong # args"), err.Error())
}

// =============================================================================
// Declaration errors
// =============================================================================

func TestDeclarationPanics(t *testing.T) {
	assert.Panics(t, func() {
		bind.Alias("Bad", bind.AliasSpec[*Shape, PyShape]{Base: func(p PyShape) *Shape { return &p.Shape }})
	})
	assert.Panics(t, func() {
		bind.Alias("Bad", bind.AliasSpec[*Shape, *PyShape]{})
	})
	assert.Panics(t, func() { bind.Init(42) })
	assert.Panics(t, func() { bind.Init(func() {}) })
	assert.Panics(t, func() { bind.Init(func() error { return nil }) })
	assert.Panics(t, func() {
		bind.InitAlias(func(int) *Shape { return nil }, func(string) *PyShape { return nil })
	})
}

func TestRegisterClassErrors(t *testing.T) {
	f := newShapeFixture(t)

	_, err := bind.RegisterClass(f.rt, "ByValue", bind.ClassDef[Shape]{})
	assert.ErrorContains(t, err, "must be a pointer")

	_, err = bind.RegisterClass(f.rt, "Shape", bind.ClassDef[*sideCounter]{})
	assert.ErrorContains(t, err, `class "Shape" already registered`)

	_, err = bind.RegisterClass(f.rt, "Other", bind.ClassDef[*Shape]{})
	assert.ErrorContains(t, err, `already registered as "Shape"`)

	_, err = bind.RegisterClass(f.rt, "Orphan", bind.ClassDef[*sideCounter]{
		Bases: []bind.BaseDef{bind.Base(func(c *sideCounter) *unregistered { return nil })},
	})
	assert.ErrorContains(t, err, "is not registered")

	_, err = bind.RegisterClass(f.rt, "BadConv", bind.ClassDef[*sideCounter]{
		Conversions: []any{func(*Shape) int { return 0 }},
	})
	assert.ErrorContains(t, err, "does not accept")

	_, err = bind.RegisterClass(f.rt, "BadHolder", bind.ClassDef[*sideCounter]{Holder: bind.HolderReference})
	assert.ErrorContains(t, err, "holder must be unique or shared")

	_, err = f.rt.Subclass("Shape", f.shape, nil)
	assert.Error(t, err)
}

type sideCounter struct{ n int }

type unregistered struct{}

// =============================================================================
// Destroy chain
// =============================================================================

type Top struct{ id int }
type Left struct{ Top }
type Right struct{ Top }
type Bottom struct {
	Left
	Right
}

func TestDestroyChainVisitsEachClassOnce(t *testing.T) {
	rt := bind.New(bind.WithLedger(stats.NewLedger()))
	defer rt.Close()

	var log []string
	top, err := bind.RegisterClass(rt, "Top", bind.ClassDef[*Top]{
		Destroy: func(*Top) { log = append(log, "top") },
	})
	require.NoError(t, err)
	_, err = bind.RegisterClass(rt, "Left", bind.ClassDef[*Left]{
		Bases:   []bind.BaseDef{bind.Base(func(l *Left) *Top { return &l.Top })},
		Destroy: func(*Left) { log = append(log, "left") },
	})
	require.NoError(t, err)
	_, err = bind.RegisterClass(rt, "Right", bind.ClassDef[*Right]{
		Bases:   []bind.BaseDef{bind.Base(func(r *Right) *Top { return &r.Top })},
		Destroy: func(*Right) { log = append(log, "right") },
	})
	require.NoError(t, err)
	_, err = bind.RegisterClass(rt, "Bottom", bind.ClassDef[*Bottom]{
		Bases: []bind.BaseDef{
			bind.Base(func(b *Bottom) *Left { return &b.Left }),
			bind.Base(func(b *Bottom) *Right { return &b.Right }),
		},
		Destroy: func(*Bottom) { log = append(log, "bottom") },
	})
	require.NoError(t, err)

	inst, err := rt.Wrap(bind.Ptr(&Bottom{}), top)
	require.NoError(t, err)
	inst.Release()
	assert.Equal(t, []string{"bottom", "left", "top", "right"}, log)
}
