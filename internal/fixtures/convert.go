package fixtures

import (
	"math"

	"github.com/feather-lang/bind"
)

// Ex18Like is implemented by Ex18A and every class derived from it.
// Conversions declared against it dispatch on the dynamic type.
type Ex18Like interface {
	Double() float64
	ex18()
}

type Ex18A struct {
	value float64
}

func (a *Ex18A) Double() float64 { return a.value }
func (a *Ex18A) ex18()           {}

type Ex18B struct {
	Ex18A
}

type Ex18C struct {
	Ex18B
}

func (c *Ex18C) Double() float64 { return math.Pi }

type Ex18D struct {
	Ex18A
}

func (d *Ex18D) Double() float64 { return math.E }

// Ex18E is not a registered class; it is only reachable through
// conversions declared on Ex18B and Ex18D.
type Ex18E struct {
	Value float64
}

// Ex18F is constructible from any Ex18Like on the native side only.
type Ex18F struct {
	value float64
}

// G1 through G4 each convert to int64; the most derived conversion wins.
type G1 struct{ _ byte }
type G2 struct{ G1 }
type G3 struct{ G1 }
type G4 struct{ G3 }

// H4 derives from H3 and H2, and H2 from H1. Base casting hands the
// embedded H1 of an H4 to functions taking *H1.
type H1 struct {
	value int
}

type H2 struct {
	H1
}

type H3 struct {
	_ int
}

type H4 struct {
	H3
	H2
}

func (s *Set) registerConversions() error {
	var err error
	s.Ex18A, err = bind.RegisterClass(s.RT, "Ex18A", bind.ClassDef[*Ex18A]{
		Init: []*bind.Factory{
			bind.Init(func() *Ex18A { return &Ex18A{value: 42} }),
			bind.Init(func(v float64) *Ex18A { return &Ex18A{value: v} }),
		},
		Converters: []any{
			func(v float64) *Ex18A { return &Ex18A{value: v} },
		},
		Conversions: []any{
			func(a Ex18Like) float64 { return a.Double() },
		},
	})
	if err != nil {
		return err
	}

	s.Ex18B, err = bind.RegisterClass(s.RT, "Ex18B", bind.ClassDef[*Ex18B]{
		Bases: []bind.BaseDef{bind.Base(func(b *Ex18B) *Ex18A { return &b.Ex18A })},
		Init:  []*bind.Factory{bind.Init(func() *Ex18B { return &Ex18B{Ex18A{value: 42}} })},
		Conversions: []any{
			func(b Ex18Like) Ex18E { return Ex18E{Value: 2 * b.Double()} },
		},
	})
	if err != nil {
		return err
	}

	s.Ex18C, err = bind.RegisterClass(s.RT, "Ex18C", bind.ClassDef[*Ex18C]{
		Bases: []bind.BaseDef{bind.Base(func(c *Ex18C) *Ex18B { return &c.Ex18B })},
		Init:  []*bind.Factory{bind.Init(func() *Ex18C { return &Ex18C{Ex18B{Ex18A{value: 42}}} })},
		Conversions: []any{
			func(c *Ex18C) float64 { return math.Pi },
			func(c *Ex18C) string { return "pi" },
		},
	})
	if err != nil {
		return err
	}

	s.Ex18D, err = bind.RegisterClass(s.RT, "Ex18D", bind.ClassDef[*Ex18D]{
		Bases: []bind.BaseDef{bind.Base(func(d *Ex18D) *Ex18A { return &d.Ex18A })},
		Init:  []*bind.Factory{bind.Init(func() *Ex18D { return &Ex18D{Ex18A{value: 42}} })},
		Conversions: []any{
			func(d *Ex18D) float64 { return math.E },
			func(d *Ex18D) string { return "e" },
			func(d *Ex18D) Ex18E { return Ex18E{Value: 3 * d.Double()} },
		},
	})
	if err != nil {
		return err
	}

	s.Ex18F, err = bind.RegisterClass(s.RT, "Ex18F", bind.ClassDef[*Ex18F]{
		Init: []*bind.Factory{bind.Init(func() *Ex18F { return &Ex18F{value: 99} })},
		Converters: []any{
			func(a Ex18Like) *Ex18F { return &Ex18F{value: a.Double() * 1000} },
		},
	})
	if err != nil {
		return err
	}

	// G4's conversion is declared first and G1's last; the dynamic class of
	// the argument decides which one applies.
	s.G1, err = bind.RegisterClass(s.RT, "G1", bind.ClassDef[*G1]{
		Init: []*bind.Factory{bind.Init(func() *G1 { return &G1{} })},
	})
	if err != nil {
		return err
	}
	s.G3, err = bind.RegisterClass(s.RT, "G3", bind.ClassDef[*G3]{
		Bases: []bind.BaseDef{bind.Base(func(g *G3) *G1 { return &g.G1 })},
		Init:  []*bind.Factory{bind.Init(func() *G3 { return &G3{} })},
	})
	if err != nil {
		return err
	}
	s.G4, err = bind.RegisterClass(s.RT, "G4", bind.ClassDef[*G4]{
		Bases:       []bind.BaseDef{bind.Base(func(g *G4) *G3 { return &g.G3 })},
		Init:        []*bind.Factory{bind.Init(func() *G4 { return &G4{} })},
		Conversions: []any{func(*G4) int64 { return 444 }},
	})
	if err != nil {
		return err
	}
	s.G2, err = bind.RegisterClass(s.RT, "G2", bind.ClassDef[*G2]{
		Bases:       []bind.BaseDef{bind.Base(func(g *G2) *G1 { return &g.G1 })},
		Init:        []*bind.Factory{bind.Init(func() *G2 { return &G2{} })},
		Conversions: []any{func(*G2) int64 { return 222 }},
	})
	if err != nil {
		return err
	}
	if err := s.G3.AddConversion(func(*G3) int64 { return 333 }); err != nil {
		return err
	}
	if err := s.G1.AddConversion(func(*G1) int64 { return 111 }); err != nil {
		return err
	}

	s.H1, err = bind.RegisterClass(s.RT, "H1", bind.ClassDef[*H1]{
		Init: []*bind.Factory{bind.Init(func(v int) *H1 { return &H1{value: v} })},
	})
	if err != nil {
		return err
	}
	s.H2, err = bind.RegisterClass(s.RT, "H2", bind.ClassDef[*H2]{
		Bases: []bind.BaseDef{bind.Base(func(h *H2) *H1 { return &h.H1 })},
		Init:  []*bind.Factory{bind.Init(func(v int) *H2 { return &H2{H1{value: v}} })},
	})
	if err != nil {
		return err
	}
	s.H3, err = bind.RegisterClass(s.RT, "H3", bind.ClassDef[*H3]{
		Init: []*bind.Factory{bind.Init(func() *H3 { return &H3{} })},
	})
	if err != nil {
		return err
	}
	s.H4, err = bind.RegisterClass(s.RT, "H4", bind.ClassDef[*H4]{
		Bases: []bind.BaseDef{
			bind.Base(func(h *H4) *H3 { return &h.H3 }),
			bind.Base(func(h *H4) *H2 { return &h.H2 }),
		},
		Init: []*bind.Factory{bind.Init(func(v int) *H4 { return &H4{H2: H2{H1{value: v}}} })},
	})
	if err != nil {
		return err
	}

	s.RT.Def("as_double", func(v float64) float64 { return v })
	s.RT.Def("as_string", func(v string) string { return v })
	s.RT.Def("as_long", func(v int64) int64 { return v })
	s.RT.Def("ex18e_value", func(e Ex18E) float64 { return e.Value })
	s.RT.Def("ex18f_value", func(f *Ex18F) float64 { return f.value })
	s.RT.Def("increment_h2", func(h *H2) { h.value++ })
	s.RT.Def("h1_value", func(h *H1) int { return h.value })
	return nil
}
