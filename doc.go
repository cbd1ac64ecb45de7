// Package bind exposes native Go types to a dynamic host through
// construction factories, and keeps the bookkeeping that decides who owns
// each native object and when it is destroyed.
//
// # Overview
//
// A class is registered once per runtime with [RegisterClass]. Instead of a
// single constructor it declares any number of factories: ordinary Go
// functions whose parameter list is the pattern a construction request is
// matched against, and whose result says how the new object is held.
//
//	rt := bind.New(bind.WithLogger(log))
//	defer rt.Close()
//
//	widgets, err := bind.RegisterClass(rt, "Widget", bind.ClassDef[*Widget]{
//	    Init: []*bind.Factory{
//	        bind.Init(func(n int) *Widget { return &Widget{n: n} }),
//	        bind.Init(func(name string) *bind.SharedPtr {
//	            return bind.MakeShared(&Widget{name: name})
//	        }),
//	    },
//	    Holder: bind.HolderShared,
//	    Methods: map[string]any{
//	        "size": func(w *Widget) int { return w.n },
//	    },
//	})
//
//	w, err := widgets.New(3)
//	defer w.Release()
//
// # Factory Resolution
//
// Factories are tried in declaration order, first without conversions and
// then with them: integers widen to floating point, and registered
// conversion operators and converting constructors produce temporaries that
// live for the duration of the call. A fallback set with
// [Class.SetFallback] is consulted only when no declared factory matches in
// either pass. When nothing matches the error lists the argument types:
//
//	Widget new: overload resolution failed: no factory accepts (string, int)
//
// # Ownership
//
// The factory result decides the holder of the new instance:
//
//   - a raw pointer or [UniquePtr] is adopted into the class holder
//   - a [SharedPtr] is shared with the caller
//   - a value is moved into a fresh allocation
//   - an existing [*Instance] is adopted only if nothing else references it
//
// Rejected results are destroyed before the error is returned, except for
// instances with other live references, which are left to their owners.
//
// # Aliases and Host Subclasses
//
// A class may declare an alias type through [Alias]. Instances of host
// subclasses created with [Runtime.Subclass] always hold the alias, so that
// native code calling an overridable method reaches the host override
// through an embedded [Trampoline]. [InitAlias] declares a factory pair:
// the first function builds the plain class, the second the alias.
//
// # Lifetimes
//
// Every construction and destruction is recorded in a [stats.Ledger].
// Reading a live count runs the ledger's collectors first, so released
// instances are always finalized before they are counted.
//
// # Supported Type Conversions
//
// Go to host:
//   - string → string
//   - signed and unsigned integers → integer
//   - float32, float64 → double
//   - bool → 1 or 0
//   - registered pointers → borrowed instance
//   - [Result], [UniquePtr], [SharedPtr] → owned instance
//
// Host to Go:
//   - string → string
//   - integer → any integer type, float32, float64
//   - double → float32, float64
//   - 1/true/yes/on → true, 0/false/no/off → false
//   - instance → its native pointer, any base class, or a [Holder]
package bind
