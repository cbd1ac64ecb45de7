package fixtures

import (
	"fmt"

	"github.com/feather-lang/bind"
)

// MyObject2 and MyObject3 are held by shared holders. A MyObject3 converts
// to a MyObject2 on the native side, but holder parameters never accept
// the converted temporary.
type MyObject2 struct {
	value int
}

type MyObject3 struct {
	value int
}

func (s *Set) registerHolders() error {
	o2 := s.Ledger.Get("MyObject2")
	o3 := s.Ledger.Get("MyObject3")

	var err error
	s.MyObject2, err = bind.RegisterClass(s.RT, "MyObject2", bind.ClassDef[*MyObject2]{
		Holder: bind.HolderShared,
		Init: []*bind.Factory{
			bind.Init(func(v int) *MyObject2 {
				o2.Created(v)
				return &MyObject2{value: v}
			}),
		},
		Converters: []any{
			func(o *MyObject3) *MyObject2 {
				o2.Created(o.value)
				return &MyObject2{value: o.value}
			},
		},
		Conversions: []any{
			func(o *MyObject2) float64 { return float64(o.value) },
		},
		String:  func(o *MyObject2) string { return fmt.Sprintf("MyObject2[%d]", o.value) },
		Destroy: func(*MyObject2) { o2.Destroyed() },
	})
	if err != nil {
		return err
	}

	s.MyObject3, err = bind.RegisterClass(s.RT, "MyObject3", bind.ClassDef[*MyObject3]{
		Holder: bind.HolderShared,
		Init: []*bind.Factory{
			bind.Init(func(v int) *MyObject3 {
				o3.Created(v)
				return &MyObject3{value: v}
			}),
		},
		String:  func(o *MyObject3) string { return fmt.Sprintf("MyObject3[%d]", o.value) },
		Destroy: func(*MyObject3) { o3.Destroyed() },
	})
	if err != nil {
		return err
	}

	s.RT.Def("make_myobject2", func(v int) *bind.SharedPtr {
		o2.Created(v)
		return bind.MakeShared(&MyObject2{value: v})
	})
	s.RT.Def("make_myobject3", func(v int) *bind.SharedPtr {
		o3.Created(v)
		return bind.MakeShared(&MyObject3{value: v})
	})
	s.RT.Def("myobject2_value", func(o *MyObject2) int { return o.value })
	s.RT.Def("myobject2_holder", func(h bind.Holder[*MyObject2]) int { return h.Get().value })
	s.RT.Def("myobject2_use_count", func(h bind.Holder[*MyObject2]) int { return h.UseCount() })
	s.RT.Def("myobject3_holder", func(h bind.Holder[*MyObject3]) int { return h.Get().value })
	return nil
}
