package bind

import (
	"reflect"
)

type adoptOptions struct {
	name string // class name used in errors
	op   string

	aliasNeeded      bool
	requireOwnership bool
}

func (o adoptOptions) fail(kind ErrorKind, cause error) error {
	return &TypeError{Kind: kind, Name: o.name, Op: o.op, Msg: cause.Error(), cause: cause}
}

// adopt turns a factory result into the ownership record of a new instance
// of target.
//
// Every owning result that is rejected is destroyed before the error is
// returned, so a failed construction leaves no net change in the ledger.
// The one exception is a host object with extra references: only the
// returned reference is dropped and the others keep the object alive.
func (rt *Runtime) adopt(target *Class, res Result, opt adoptOptions) (*OwnershipRecord, error) {
	switch res.kind {
	case HolderObject:
		return rt.adoptObject(target, res.obj, opt)
	case HolderShared:
		return rt.adoptShared(target, res.shared, opt)
	case HolderValue:
		return rt.adoptValue(target, res, opt)
	case HolderUnique:
		return rt.adoptPointer(target, res.unique.Release(), HolderUnique, opt)
	case HolderPointer, HolderReference:
		return rt.adoptPointer(target, res.value, res.kind, opt)
	}
	return nil, opt.fail(KindOwnership, ErrNullPointer)
}

func (rt *Runtime) adoptPointer(target *Class, v any, kind HolderKind, opt adoptOptions) (*OwnershipRecord, error) {
	if isNil(v) {
		return nil, opt.fail(KindOwnership, ErrNullPointer)
	}
	if kind == HolderReference && opt.requireOwnership {
		return nil, opt.fail(KindOwnership, ErrUnownedReference)
	}
	owning := kind.Owning()
	discard := func() {
		if owning {
			rt.discard(v)
		}
	}

	dyn, alias := rt.classOf(v)
	if dyn == nil || !dyn.derivesFrom(target) {
		discard()
		return nil, opt.fail(KindCast, ErrBaseCast)
	}

	if opt.aliasNeeded && !alias {
		if !owning || target.alias == nil || !target.alias.canFromBase() {
			discard()
			return nil, opt.fail(KindAlias, ErrAliasRequired)
		}
		view, _ := rt.view(v, target)
		a := target.alias.construct(view)
		rt.discard(v)
		v, alias = a, true
	}

	holder := kind
	if kind == HolderPointer {
		holder = HolderUnique
	}
	rec := &OwnershipRecord{Holder: holder, Alias: alias, class: target, value: v}
	if owning && target.holder == HolderShared {
		rec.Holder = HolderShared
		rec.shared = rt.newShared(v)
	}
	return rec, nil
}

func (rt *Runtime) adoptValue(target *Class, res Result, opt adoptOptions) (*OwnershipRecord, error) {
	v := res.value
	if isNil(v) {
		return nil, opt.fail(KindOwnership, ErrNullPointer)
	}

	// Registered classes are moved into fresh storage and then adopted like
	// an owning pointer.
	if c, _ := rt.classOf(v); c != nil {
		byValue := reflect.TypeOf(v).Kind() != reflect.Pointer
		if byValue {
			v = moveToHeap(v)
		}
		rec, err := rt.adoptPointer(target, v, HolderPointer, opt)
		if err == nil && byValue && rec.Holder == HolderUnique {
			rec.Holder = HolderValue
		}
		return rec, err
	}

	native, alias, ok := rt.convertResult(target, v, opt.aliasNeeded)
	if !ok {
		if opt.aliasNeeded {
			return nil, opt.fail(KindAlias, ErrAliasRequired)
		}
		return nil, &TypeError{
			Kind:  KindConversion,
			Name:  opt.name,
			Op:    opt.op,
			Msg:   "factory returned " + goTypeName(v) + ", which is not convertible to " + target.name,
			cause: ErrNoConversion,
		}
	}
	rec := &OwnershipRecord{Holder: HolderValue, Alias: alias, class: target, value: native}
	if target.holder == HolderShared {
		rec.Holder = HolderShared
		rec.shared = rt.newShared(native)
	}
	return rec, nil
}

// convertResult builds the class, or its alias, from a value returned by a
// factory using the registered converting constructors. Only alias
// converters apply when an alias is required.
func (rt *Runtime) convertResult(target *Class, v any, aliasNeeded bool) (any, bool, bool) {
	vt := reflect.TypeOf(v)
	try := func(convs []reflect.Value) (any, bool) {
		for _, conv := range convs {
			if !vt.AssignableTo(conv.Type().In(0)) {
				continue
			}
			out := conv.Call([]reflect.Value{reflect.ValueOf(v)})[0]
			if out.Kind() != reflect.Pointer {
				return moveToHeap(out.Interface()), true
			}
			return out.Interface(), true
		}
		return nil, false
	}
	if !aliasNeeded {
		if out, ok := try(target.converters); ok {
			return out, false, true
		}
	}
	if target.alias != nil {
		if out, ok := try(target.alias.converters); ok {
			return out, true, true
		}
	}
	return nil, false, false
}

func (rt *Runtime) adoptShared(target *Class, p *SharedPtr, opt adoptOptions) (*OwnershipRecord, error) {
	if p == nil || isNil(p.Get()) {
		p.Reset()
		return nil, opt.fail(KindOwnership, ErrNullPointer)
	}
	p.bindDeleter(rt.deleteNative)
	v := p.Get()

	dyn, alias := rt.classOf(v)
	if dyn == nil || !dyn.derivesFrom(target) {
		p.Reset()
		return nil, opt.fail(KindCast, ErrSharedBaseCast)
	}
	if opt.aliasNeeded && !alias {
		p.Reset()
		return nil, opt.fail(KindAlias, ErrAliasRequired)
	}
	return &OwnershipRecord{Holder: HolderShared, Alias: alias, class: target, value: v, shared: p}, nil
}

// adoptObject steals the native value of a host object returned by a
// factory. The object must be referenced only by the factory's return and
// must own its value.
func (rt *Runtime) adoptObject(target *Class, obj *Instance, opt adoptOptions) (*OwnershipRecord, error) {
	if obj == nil {
		return nil, opt.fail(KindOwnership, ErrNullPointer)
	}
	rt.mu.Lock()
	refs := obj.refs
	rec := obj.record
	rt.mu.Unlock()

	if refs > 1 {
		rt.log.Warn().
			Str("class", opt.name).
			Str("handle", obj.handle).
			Int("refs", refs).
			Msg("factory returned an object with extra references; leaving them alive")
		obj.Release()
		return nil, opt.fail(KindOwnership, ErrMultipleReferences)
	}
	if rec == nil || rec.released || isNil(rec.value) {
		obj.Release()
		return nil, opt.fail(KindOwnership, ErrNullPointer)
	}
	if !rec.Holder.Owning() {
		obj.Release()
		return nil, opt.fail(KindOwnership, ErrUnownedReference)
	}
	dyn, alias := rt.classOf(rec.value)
	if dyn == nil || !dyn.derivesFrom(target) {
		obj.Release()
		return nil, opt.fail(KindCast, ErrBaseCast)
	}
	if opt.aliasNeeded && !alias {
		obj.Release()
		return nil, opt.fail(KindAlias, ErrAliasRequired)
	}

	stolen := &OwnershipRecord{
		Holder: rec.Holder,
		Alias:  alias,
		class:  target,
		value:  rec.value,
		shared: rec.shared,
	}
	rt.consume(obj)
	if stolen.Holder != HolderShared && target.holder == HolderShared {
		stolen.Holder = HolderShared
		stolen.shared = rt.newShared(stolen.value)
	}
	return stolen, nil
}

func (rt *Runtime) newShared(v any) *SharedPtr {
	return &SharedPtr{
		ctrl:   &sharedControl{refs: 1, v: v, deleter: rt.deleteNative},
		static: reflect.TypeOf(v),
	}
}

func (rt *Runtime) deleteNative(v any) {
	if err := rt.destroy(v); err != nil {
		rt.log.Error().Err(err).Msg("shared holder deleter")
	}
}

// discard destroys a rejected owning result.
func (rt *Runtime) discard(v any) {
	if err := rt.destroy(v); err != nil {
		rt.log.Error().Err(err).Msg("discard factory result")
	}
}

// moveToHeap copies a by-value result into newly allocated storage.
func moveToHeap(v any) any {
	rv := reflect.ValueOf(v)
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	return p.Interface()
}
