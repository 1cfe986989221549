// Package handle maps the opaque identifiers handed to applications onto
// live runtime objects.
//
// Every object an application can name (instance, session, space, tracker)
// is registered here under a parent. Destroying a handle destroys its whole
// subtree, children first, through the object's own Destroy method. Once
// Destroy returns, every identifier in the subtree fails lookup with
// HandleInvalid; a second destroy is therefore rejected by lookup rather
// than by any special case.
package handle

import (
	"fmt"
	"strings"
	"sync"

	"github.com/banshee-data/xrstate/internal/xrerr"
	"github.com/google/uuid"
)

// ID is an opaque handle value, e.g. "session_6f0c...".
type ID string

// Nil is the null handle.
const Nil ID = ""

// Kind is the object type a handle refers to.
type Kind string

const (
	KindInstance      Kind = "instance"
	KindSession       Kind = "session"
	KindSpace         Kind = "space"
	KindHandTracker   Kind = "hand_tracker"
	KindBodyTracker   Kind = "body_tracker"
	KindFacialTracker Kind = "facial_tracker"
)

// Object is anything a handle can own. Destroy releases the object's own
// resources; by the time it is called all of its children are gone.
type Object interface {
	Destroy() error
}

type entry struct {
	kind     Kind
	parent   ID
	children []ID
	obj      Object
}

// Table is the handle registry. Lookups take a read lock and never block
// each other; register and destroy take the write lock only to link or
// unlink entries, never while calling into objects.
type Table struct {
	mu      sync.RWMutex
	entries map[ID]*entry
}

// NewTable creates an empty registry.
func NewTable() *Table {
	return &Table{entries: make(map[ID]*entry)}
}

// NewID mints a fresh identifier for kind.
func NewID(kind Kind) ID {
	return ID(fmt.Sprintf("%s_%s", kind, uuid.NewString()))
}

// Kind returns the kind encoded in the identifier, without a lookup.
func (id ID) Kind() Kind {
	k, _, ok := strings.Cut(string(id), "_")
	if !ok {
		return ""
	}
	// Tracker kinds contain an underscore themselves.
	for _, known := range []Kind{KindHandTracker, KindBodyTracker, KindFacialTracker} {
		if strings.HasPrefix(string(id), string(known)+"_") {
			return known
		}
	}
	return Kind(k)
}

// Register links obj under parent and returns its new identifier. parent
// may be Nil for roots; otherwise it must be live.
func (t *Table) Register(kind Kind, parent ID, obj Object) (ID, error) {
	id := NewID(kind)
	if err := t.RegisterAs(id, kind, parent, obj); err != nil {
		return Nil, err
	}
	return id, nil
}

// RegisterAs links obj under a caller-chosen identifier, so an object can
// know its own handle before it becomes visible.
func (t *Table) RegisterAs(id ID, kind Kind, parent ID, obj Object) error {
	if obj == nil {
		return xrerr.New(xrerr.ArgumentInvalid, "cannot register a nil %s", kind)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[id]; exists {
		return xrerr.New(xrerr.RuntimeFailure, "handle %s already registered", id)
	}
	if parent != Nil {
		p, ok := t.entries[parent]
		if !ok {
			return xrerr.New(xrerr.HandleInvalid, "parent handle %s is not live", parent)
		}
		p.children = append(p.children, id)
	}
	t.entries[id] = &entry{kind: kind, parent: parent, obj: obj}
	return nil
}

// Lookup resolves id to its object, checking the kind.
func (t *Table) Lookup(id ID, kind Kind) (Object, error) {
	if id == Nil {
		return nil, xrerr.New(xrerr.HandleInvalid, "(%s == XR_NULL_HANDLE)", kind)
	}
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return nil, xrerr.New(xrerr.HandleInvalid, "(%s == %s) is not a live handle", kind, id)
	}
	if e.kind != kind {
		return nil, xrerr.New(xrerr.HandleInvalid, "(%s) refers to a %s, not a %s", id, e.kind, kind)
	}
	return e.obj, nil
}

// Get resolves id to a concrete object type.
func Get[T Object](t *Table, id ID, kind Kind) (T, error) {
	var zero T
	obj, err := t.Lookup(id, kind)
	if err != nil {
		return zero, err
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, xrerr.New(xrerr.HandleInvalid, "(%s) has unexpected type %T", id, obj)
	}
	return typed, nil
}

// Parent returns the parent of a live handle.
func (t *Table) Parent(id ID) (ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	if !ok {
		return Nil, false
	}
	return e.parent, true
}

// Children returns the live children of id with the given kinds (all kinds
// when none are given), in creation order.
func (t *Table) Children(id ID, kinds ...Kind) []ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[id]
	if !ok {
		return nil
	}
	out := make([]ID, 0, len(e.children))
	for _, c := range e.children {
		ce := t.entries[c]
		if ce == nil {
			continue
		}
		if len(kinds) == 0 || containsKind(kinds, ce.kind) {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of live handles of kind.
func (t *Table) Count(kind Kind) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.entries {
		if e.kind == kind {
			n++
		}
	}
	return n
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Destroy unlinks id and its whole subtree, then destroys the objects,
// children before parents and later siblings before earlier ones. Every
// object is destroyed even if one fails; the first error is returned.
func (t *Table) Destroy(id ID) error {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return xrerr.New(xrerr.HandleInvalid, "(%s) is not a live handle", id)
	}
	if p := t.entries[e.parent]; p != nil {
		p.children = removeID(p.children, id)
	}
	var order []Object
	t.unlinkLocked(id, &order)
	t.mu.Unlock()

	var first error
	for _, obj := range order {
		if err := obj.Destroy(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// unlinkLocked removes id's subtree from the map, appending objects in
// destruction order.
func (t *Table) unlinkLocked(id ID, order *[]Object) {
	e := t.entries[id]
	if e == nil {
		return
	}
	for i := len(e.children) - 1; i >= 0; i-- {
		t.unlinkLocked(e.children[i], order)
	}
	delete(t.entries, id)
	*order = append(*order, e.obj)
}

func removeID(ids []ID, id ID) []ID {
	for i, c := range ids {
		if c == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}
