// Package stats records per-class construction and destruction events for
// native types exposed through bind.
//
// A Ledger holds one Stats entry per class name. Native constructors call
// Created or DefaultCreated and destroy hooks call Destroyed; the counters
// are then read back by tests and by the bindctl stats command. Reading
// Alive first runs every registered collector so that host instances queued
// for release are finalized before the count is taken.
package stats

import (
	"fmt"
	"sort"
	"sync"
)

// Stats is the ledger entry of a single class.
type Stats struct {
	name   string
	ledger *Ledger

	alive                int
	constructions        int
	defaultConstructions int
	destructions         int
	values               []string
}

// Name returns the class name the entry was created for.
func (s *Stats) Name() string { return s.name }

// Created records a construction. Each argument is appended to the value
// log using its default formatting.
func (s *Stats) Created(args ...any) {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	s.alive++
	s.constructions++
	for _, a := range args {
		s.values = append(s.values, fmt.Sprint(a))
	}
}

// DefaultCreated records a construction through a default constructor.
func (s *Stats) DefaultCreated() {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	s.alive++
	s.constructions++
	s.defaultConstructions++
}

// Destroyed records a destruction.
func (s *Stats) Destroyed() {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	s.alive--
	s.destructions++
}

// Alive returns the number of live objects after running the ledger's
// collectors.
func (s *Stats) Alive() int {
	s.ledger.Collect()
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	return s.alive
}

// Values returns a copy of the recorded construction values in order.
func (s *Stats) Values() []string {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

func (s *Stats) Constructions() int {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	return s.constructions
}

func (s *Stats) DefaultConstructions() int {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	return s.defaultConstructions
}

func (s *Stats) Destructions() int {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	return s.destructions
}

// Snapshot is a point-in-time copy of a Stats entry.
type Snapshot struct {
	Name                 string
	Alive                int
	Constructions        int
	DefaultConstructions int
	Destructions         int
	Values               []string
}

// Ledger is a set of Stats entries keyed by class name.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*Stats

	hookMu sync.Mutex
	nextID int
	hooks  map[int]func()
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[string]*Stats),
		hooks:   make(map[int]func()),
	}
}

var defaultLedger = NewLedger()

// Default returns the process-wide ledger.
func Default() *Ledger { return defaultLedger }

// Get returns the entry for name, creating it on first use.
func (l *Ledger) Get(name string) *Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.entries[name]
	if !ok {
		s = &Stats{name: name, ledger: l}
		l.entries[name] = s
	}
	return s
}

// Names returns the sorted class names that have an entry.
func (l *Ledger) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot copies every entry, sorted by name. Collectors run first.
func (l *Ledger) Snapshot() []Snapshot {
	l.Collect()
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Snapshot, 0, len(l.entries))
	for _, s := range l.entries {
		vals := make([]string, len(s.values))
		copy(vals, s.values)
		out = append(out, Snapshot{
			Name:                 s.name,
			Alive:                s.alive,
			Constructions:        s.constructions,
			DefaultConstructions: s.defaultConstructions,
			Destructions:         s.destructions,
			Values:               vals,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset zeroes every entry. Existing *Stats pointers stay valid.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.entries {
		s.alive = 0
		s.constructions = 0
		s.defaultConstructions = 0
		s.destructions = 0
		s.values = nil
	}
}

// OnCollect registers fn to run whenever the ledger collects. The returned
// function removes the registration.
func (l *Ledger) OnCollect(fn func()) (remove func()) {
	l.hookMu.Lock()
	id := l.nextID
	l.nextID++
	l.hooks[id] = fn
	l.hookMu.Unlock()
	return func() {
		l.hookMu.Lock()
		delete(l.hooks, id)
		l.hookMu.Unlock()
	}
}

// Collect runs every registered collector. Collectors may record
// destructions, so no ledger lock is held while they run.
func (l *Ledger) Collect() {
	l.hookMu.Lock()
	ids := make([]int, 0, len(l.hooks))
	for id := range l.hooks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.hooks[id])
	}
	l.hookMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
