package bind

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/feather-lang/bind/stats"
)

// Runtime is the host side of the binding: it registers classes and native
// functions, owns the instance table and counts host references.
//
// Create a runtime with [New] and call [Runtime.Close] when done.
//
//	rt := bind.New(bind.WithLogger(log))
//	defer rt.Close()
//	inst, err := widgetClass.New(3)
//
// Releases that happen while a construction is running are queued and
// finalized when the outermost construction finishes, so that adopting a
// result and recording it in the ledger are never observed apart.
type Runtime struct {
	mu sync.Mutex

	classes map[string]*Class
	types   map[reflect.Type]*Class
	aliases map[reflect.Type]*Class
	funcs   map[string][]callable

	instances map[uint64]*Instance
	natives   map[any]int
	nextID    uint64

	depth   int
	pending []*Instance

	ledger  *stats.Ledger
	unhook  func()
	log     zerolog.Logger
	metrics *metrics
}

// Option configures a Runtime.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	ledger     *stats.Ledger
	logger     zerolog.Logger
	registerer prometheus.Registerer
	namespace  string
}

// WithLedger makes the runtime's collector run whenever l collects.
// Defaults to stats.Default().
func WithLedger(l *stats.Ledger) Option {
	return func(o *runtimeOptions) { o.ledger = l }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *runtimeOptions) { o.logger = l }
}

// WithRegisterer registers the runtime's metrics with r under namespace.
func WithRegisterer(r prometheus.Registerer, namespace string) Option {
	return func(o *runtimeOptions) {
		o.registerer = r
		o.namespace = namespace
	}
}

// HostFunc is a callable implemented on the host side.
type HostFunc func(args ...*Obj) (any, error)

// HostMethod is a method implemented by a host subclass.
type HostMethod func(self *Instance, args ...*Obj) (any, error)

// New creates a runtime.
func New(opts ...Option) *Runtime {
	o := runtimeOptions{
		ledger:    stats.Default(),
		logger:    zerolog.Nop(),
		namespace: "bind",
	}
	for _, opt := range opts {
		opt(&o)
	}
	rt := &Runtime{
		classes:   make(map[string]*Class),
		types:     make(map[reflect.Type]*Class),
		aliases:   make(map[reflect.Type]*Class),
		funcs:     make(map[string][]callable),
		instances: make(map[uint64]*Instance),
		natives:   make(map[any]int),
		nextID:    1,
		ledger:    o.ledger,
		log:       o.logger,
		metrics:   newMetrics(o.registerer, o.namespace),
	}
	rt.unhook = rt.ledger.OnCollect(rt.Collect)
	return rt
}

// Ledger returns the ledger the runtime collects for.
func (rt *Runtime) Ledger() *stats.Ledger { return rt.ledger }

// Close finalizes every live instance and detaches the runtime from its
// ledger. Errors raised by destroy hooks are collected and returned.
func (rt *Runtime) Close() error {
	rt.unhook()
	rt.mu.Lock()
	live := make([]*Instance, 0, len(rt.instances))
	for _, inst := range rt.instances {
		live = append(live, inst)
	}
	rt.depth = 0
	rt.pending = nil
	rt.mu.Unlock()
	sort.Slice(live, func(a, b int) bool { return live[a].id < live[b].id })

	var result *multierror.Error
	for _, inst := range live {
		rt.mu.Lock()
		inst.refs = 0
		rt.unregister(inst)
		rt.mu.Unlock()
		if err := rt.finalize(inst); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// construct runs the construction protocol for cls.
func (rt *Runtime) construct(cls *Class, args []any) (*Instance, error) {
	objs := rt.toObjs(args)
	native := cls.native()
	aliasNeeded := cls.IsHost() && native.alias != nil

	rt.begin()
	defer rt.end()
	scope := &callScope{}
	defer rt.endScope(scope)

	res, f, err := rt.resolve(cls, objs, aliasNeeded, scope)
	if err != nil {
		rt.metrics.failed(cls.name, err)
		return nil, err
	}
	rec, err := rt.adopt(native, res, adoptOptions{
		name:             cls.name,
		op:               "new",
		aliasNeeded:      aliasNeeded,
		requireOwnership: true,
	})
	if err != nil {
		rt.metrics.failed(cls.name, err)
		rt.log.Debug().Err(err).Str("class", cls.name).Str("factory", f.String()).Msg("adoption failed")
		return nil, err
	}
	inst := rt.install(cls, rec)
	rt.metrics.constructed(cls.name, rec.Holder)
	rt.log.Debug().
		Str("class", cls.name).
		Str("handle", inst.handle).
		Str("factory", f.String()).
		Str("holder", rec.Holder.String()).
		Bool("alias", rec.Alias).
		Msg("adopted factory result")
	return inst, nil
}

// Wrap binds a native result to a new instance outside of construction, as
// a native function's return value would be. Unlike construction, non-owning
// references are accepted; several instances may borrow the same value.
// cls may be nil to use the result's dynamic class. An Object result is
// returned as is.
func (rt *Runtime) Wrap(res Result, cls *Class) (*Instance, error) {
	if res.kind == HolderObject && res.obj != nil {
		return res.obj, nil
	}
	if cls == nil {
		var v any
		switch res.kind {
		case HolderUnique:
			v = res.unique.Get()
		case HolderShared:
			v = res.shared.Get()
		default:
			v = res.value
		}
		cls, _ = rt.classOf(v)
		if cls == nil {
			return nil, &TypeError{Kind: KindCast, Name: goTypeName(v), Op: "wrap", Msg: "not a registered class", cause: ErrBaseCast}
		}
	}
	native := cls.native()
	rt.begin()
	defer rt.end()
	rec, err := rt.adopt(native, res, adoptOptions{name: cls.name, op: "wrap"})
	if err != nil {
		return nil, err
	}
	return rt.install(cls, rec), nil
}

// install registers a new instance for rec with one reference.
func (rt *Runtime) install(cls *Class, rec *OwnershipRecord) *Instance {
	rt.mu.Lock()
	inst := &Instance{
		rt:     rt,
		id:     rt.nextID,
		class:  cls,
		record: rec,
		refs:   1,
	}
	rt.nextID++
	inst.handle = fmt.Sprintf("%s%d", strings.ToLower(cls.name), cls.counter)
	cls.counter++
	rt.instances[inst.id] = inst
	if key, ok := nativeKey(rec.value); ok {
		rt.natives[key]++
	}
	rt.mu.Unlock()

	if o, ok := rec.value.(Overridable); ok && cls.IsHost() {
		o.trampoline().bind(inst)
	}
	return inst
}

// unregister removes inst from the instance table. Callers hold rt.mu.
func (rt *Runtime) unregister(inst *Instance) {
	if _, ok := rt.instances[inst.id]; !ok {
		return
	}
	delete(rt.instances, inst.id)
	if inst.record == nil {
		return
	}
	if key, ok := nativeKey(inst.record.value); ok {
		if rt.natives[key] <= 1 {
			delete(rt.natives, key)
		} else {
			rt.natives[key]--
		}
	}
}

// consume retires a host object whose value was stolen by another instance.
// The value is not destroyed.
func (rt *Runtime) consume(inst *Instance) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.unregister(inst)
	inst.refs = 0
	if inst.record != nil {
		inst.record.released = true
	}
}

func (rt *Runtime) release(inst *Instance) {
	rt.mu.Lock()
	if inst.refs <= 0 {
		rt.mu.Unlock()
		return
	}
	inst.refs--
	if inst.refs > 0 {
		rt.mu.Unlock()
		return
	}
	if rt.depth > 0 {
		rt.pending = append(rt.pending, inst)
		rt.mu.Unlock()
		return
	}
	rt.unregister(inst)
	rt.mu.Unlock()
	if err := rt.finalize(inst); err != nil {
		rt.log.Error().Err(err).Str("handle", inst.handle).Msg("finalize instance")
	}
}

// finalize releases the ownership record of an unregistered instance.
func (rt *Runtime) finalize(inst *Instance) error {
	rt.mu.Lock()
	rec := inst.record
	if rec == nil || rec.released {
		rt.mu.Unlock()
		return nil
	}
	rec.released = true
	rt.mu.Unlock()

	rt.log.Debug().Str("handle", inst.handle).Str("holder", rec.Holder.String()).Msg("finalize instance")
	switch rec.Holder {
	case HolderReference:
		return nil
	case HolderShared:
		rec.shared.Reset()
		return nil
	}
	return rt.destroy(rec.value)
}

func (rt *Runtime) begin() {
	rt.mu.Lock()
	rt.depth++
	rt.mu.Unlock()
}

func (rt *Runtime) end() {
	rt.mu.Lock()
	rt.depth--
	done := rt.depth == 0
	rt.mu.Unlock()
	if done {
		rt.Collect()
	}
}

// Collect finalizes instances whose last reference was released while a
// construction was running. It does nothing while a construction is in
// progress.
func (rt *Runtime) Collect() {
	for {
		rt.mu.Lock()
		if rt.depth > 0 || len(rt.pending) == 0 {
			rt.mu.Unlock()
			return
		}
		pending := rt.pending
		rt.pending = nil
		for _, inst := range pending {
			rt.unregister(inst)
		}
		rt.mu.Unlock()
		for _, inst := range pending {
			if err := rt.finalize(inst); err != nil {
				rt.log.Error().Err(err).Str("handle", inst.handle).Msg("finalize instance")
			}
		}
	}
}

// RegisteredInstances returns the number of live instances.
func (rt *Runtime) RegisteredInstances() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.instances)
}

// Instances returns the live instances ordered by creation.
func (rt *Runtime) Instances() []*Instance {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]*Instance, 0, len(rt.instances))
	for _, inst := range rt.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].id < out[b].id })
	return out
}

// IsRegistered reports whether a live instance holds the native value v.
func (rt *Runtime) IsRegistered(v any) bool {
	key, ok := nativeKey(v)
	if !ok {
		return false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.natives[key] > 0
}

func nativeKey(v any) (any, bool) {
	if isNil(v) || !reflect.TypeOf(v).Comparable() {
		return nil, false
	}
	return v, true
}

func (rt *Runtime) toObjs(args []any) []*Obj {
	objs := make([]*Obj, len(args))
	for i, a := range args {
		objs[i] = rt.toObj(a)
	}
	return objs
}

// Func wraps a host callable so that it can be passed to native code.
func (rt *Runtime) Func(name string, fn HostFunc) *Func {
	return &Func{rt: rt, name: name, fn: fn}
}

// Func is a host callable.
type Func struct {
	rt   *Runtime
	name string
	fn   HostFunc
}

func (f *Func) Name() string         { return "function" }
func (f *Func) UpdateString() string { return f.name }
func (f *Func) Dup() ObjType         { return f }

// Call invokes the callable.
func (f *Func) Call(args ...any) (*Obj, error) {
	res, err := f.fn(f.rt.toObjs(args)...)
	if err != nil {
		return nil, err
	}
	return f.rt.toObj(res), nil
}

// Def registers a native function. Registering the same name again adds an
// overload; overloads are tried in registration order. Def panics if fn is
// not a function.
func (rt *Runtime) Def(name string, fn any) {
	c := newCallable("Def", fn)
	rt.mu.Lock()
	rt.funcs[name] = append(rt.funcs[name], c)
	rt.mu.Unlock()
}

// Call invokes a native function registered with Def.
func (rt *Runtime) Call(name string, args ...any) (*Obj, error) {
	rt.mu.Lock()
	overloads := rt.funcs[name]
	rt.mu.Unlock()
	if len(overloads) == 0 {
		return nil, fmt.Errorf("invalid command name %q", name)
	}
	objs := rt.toObjs(args)

	rt.begin()
	defer rt.end()
	scope := &callScope{}
	defer rt.endScope(scope)

	var lastErr error
	for _, mode := range []convMode{convExact, convImplicit} {
		for _, c := range overloads {
			in, err := rt.bindArgs(c, objs, 0, mode, scope)
			if err != nil {
				lastErr = err
				continue
			}
			out, err := c.call(in)
			if err != nil {
				return nil, err
			}
			return rt.resultObj(out)
		}
	}
	if len(overloads) == 1 {
		if ae, ok := lastErr.(*argError); ok {
			return nil, conversionError(name, ae.index, ae.err)
		}
		return nil, &TypeError{Kind: KindOverload, Name: name, Msg: lastErr.Error(), cause: ErrNoMatchingFactory}
	}
	return nil, overloadError(name, "", objs)
}
