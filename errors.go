package bind

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a TypeError.
type ErrorKind int

const (
	// KindOverload means no candidate accepted the arguments.
	KindOverload ErrorKind = iota + 1
	// KindOwnership means a factory result could not be owned by the new instance.
	KindOwnership
	// KindCast means a factory result was not an instance of the requested class.
	KindCast
	// KindAlias means a host subclass needed the alias type and got the base type.
	KindAlias
	// KindConversion means an argument could not be converted to a parameter type.
	KindConversion
)

func (k ErrorKind) String() string {
	switch k {
	case KindOverload:
		return "overload"
	case KindOwnership:
		return "ownership"
	case KindCast:
		return "cast"
	case KindAlias:
		return "alias"
	case KindConversion:
		return "conversion"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinel causes, matched with errors.Is against a *TypeError.
var (
	ErrNoMatchingFactory  = errors.New("overload resolution failed")
	ErrMultipleReferences = errors.New("factory function returned an object with multiple references")
	ErrUnownedReference   = errors.New("factory function returned an unowned reference")
	ErrNullPointer        = errors.New("factory function returned a null pointer")
	ErrBaseCast           = errors.New("factory failed: could not cast base class pointer")
	ErrSharedBaseCast     = errors.New("factory failed: could not cast shared base class pointer")
	ErrAliasRequired      = errors.New("factory failed: cannot construct required alias class from factory return value")
	ErrNoConversion       = errors.New("incompatible argument type")
)

// TypeError is the host-visible error raised by construction and calls.
type TypeError struct {
	Kind ErrorKind
	// Name is the class or function the error was raised for.
	Name string
	// Op is "new" for constructions and empty for function calls.
	Op  string
	Msg string

	cause error
}

func (e *TypeError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Name)
	if e.Op != "" {
		sb.WriteByte(' ')
		sb.WriteString(e.Op)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	return sb.String()
}

func (e *TypeError) Unwrap() error { return e.cause }

func constructError(kind ErrorKind, class string, cause error) *TypeError {
	return &TypeError{Kind: kind, Name: class, Op: "new", Msg: cause.Error(), cause: cause}
}

func overloadError(name, op string, args []*Obj) *TypeError {
	types := make([]string, len(args))
	for i, a := range args {
		types[i] = describeArg(a)
	}
	noun := "overload"
	if op == "new" {
		noun = "factory"
	}
	return &TypeError{
		Kind:  KindOverload,
		Name:  name,
		Op:    op,
		Msg:   fmt.Sprintf("%s: no %s accepts (%s)", ErrNoMatchingFactory, noun, strings.Join(types, ", ")),
		cause: ErrNoMatchingFactory,
	}
}

func conversionError(name string, index int, err error) *TypeError {
	return &TypeError{
		Kind:  KindConversion,
		Name:  name,
		Msg:   fmt.Sprintf("argument %d: %v", index+1, err),
		cause: ErrNoConversion,
	}
}

// IsKind reports whether err is a *TypeError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *TypeError
	return errors.As(err, &te) && te.Kind == kind
}
