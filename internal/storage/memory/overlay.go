package memory

import "sort"

// overlay stages writes over a committed map until the transaction commits.
// A staged nil value marks a deletion.
type overlay[T any] struct {
	base   map[string]*T
	staged map[string]*T
	clone  func(*T) *T
}

func newOverlay[T any](base map[string]*T, clone func(*T) *T) *overlay[T] {
	return &overlay[T]{
		base:   base,
		staged: make(map[string]*T),
		clone:  clone,
	}
}

// get returns the live (uncopied) value for key.
func (o *overlay[T]) get(key string) (*T, bool) {
	if v, ok := o.staged[key]; ok {
		return v, v != nil
	}
	v, ok := o.base[key]
	return v, ok
}

// mutable returns a staged copy of the value that can be modified in place.
func (o *overlay[T]) mutable(key string) (*T, bool) {
	if v, ok := o.staged[key]; ok {
		return v, v != nil
	}
	v, ok := o.base[key]
	if !ok {
		return nil, false
	}
	c := o.clone(v)
	o.staged[key] = c
	return c, true
}

func (o *overlay[T]) put(key string, v *T) {
	o.staged[key] = o.clone(v)
}

func (o *overlay[T]) del(key string) {
	o.staged[key] = nil
}

// each calls fn for every live value, ordered by key.
func (o *overlay[T]) each(fn func(key string, v *T)) {
	keys := make([]string, 0, len(o.base)+len(o.staged))
	for k := range o.base {
		if _, shadowed := o.staged[k]; !shadowed {
			keys = append(keys, k)
		}
	}
	for k, v := range o.staged {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, _ := o.get(k)
		fn(k, v)
	}
}

func (o *overlay[T]) commit() {
	for k, v := range o.staged {
		if v == nil {
			delete(o.base, k)
			continue
		}
		o.base[k] = v
	}
}
