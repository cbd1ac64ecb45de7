// Package fixtures registers the native classes and functions used by the
// tests and by bindctl scenarios: the factory-constructor family
// (TestFactory1 through TestFactory6), the implicit conversion examples and
// the shared holder objects.
package fixtures

import (
	"github.com/pkg/errors"

	"github.com/feather-lang/bind"
	"github.com/feather-lang/bind/stats"
)

// Set is a registered fixture family bound to one runtime and ledger.
type Set struct {
	RT     *bind.Runtime
	Ledger *stats.Ledger

	TF1, TF2, TF3, TF4, TF5, TF6 *bind.Class

	Ex18A, Ex18B, Ex18C, Ex18D, Ex18F *bind.Class
	G1, G2, G3, G4                    *bind.Class
	H1, H2, H3, H4                    *bind.Class

	MyObject2, MyObject3 *bind.Class

	tf1, tf2, tf3, tf4, tf5, tf6, pytf6 *stats.Stats

	leak1 *bind.Instance
	leak2 *TestFactory3
}

// Register registers every fixture class and function with rt. Construction
// events are recorded in l.
func Register(rt *bind.Runtime, l *stats.Ledger) (*Set, error) {
	s := &Set{RT: rt, Ledger: l}
	for _, step := range []struct {
		name string
		fn   func() error
	}{
		{"factory classes", s.registerFactories},
		{"conversion examples", s.registerConversions},
		{"holder objects", s.registerHolders},
	} {
		if err := step.fn(); err != nil {
			return nil, errors.Wrapf(err, "register %s", step.name)
		}
	}
	return s, nil
}

// ClassNames lists the fixture classes that record ledger entries.
func (s *Set) ClassNames() []string {
	return []string{"TestFactory1", "TestFactory2", "TestFactory3", "TestFactory4", "TestFactory5", "TestFactory6", "PyTF6", "MyObject2", "MyObject3"}
}
