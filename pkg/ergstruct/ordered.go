package ergstruct

// orderedMap pairs a name index with an append-only value slice so that
// iteration order is the first-seen order of each name. Setting an existing
// name replaces the value in place.
type orderedMap[V any] struct {
	index  map[string]int
	names  []string
	values []V
}

func newOrderedMap[V any](capacity int) orderedMap[V] {
	return orderedMap[V]{
		index:  make(map[string]int, capacity),
		names:  make([]string, 0, capacity),
		values: make([]V, 0, capacity),
	}
}

// set stores v under name and reports whether an earlier value was replaced.
func (o *orderedMap[V]) set(name string, v V) bool {
	if o.index == nil {
		*o = newOrderedMap[V](0)
	}
	if i, ok := o.index[name]; ok {
		o.values[i] = v
		return true
	}
	o.index[name] = len(o.values)
	o.names = append(o.names, name)
	o.values = append(o.values, v)
	return false
}

func (o *orderedMap[V]) get(name string) (V, bool) {
	i, ok := o.index[name]
	if !ok {
		var zero V
		return zero, false
	}
	return o.values[i], true
}

func (o *orderedMap[V]) len() int {
	return len(o.values)
}

func (o *orderedMap[V]) keys() []string {
	return append([]string(nil), o.names...)
}

func (o *orderedMap[V]) list() []V {
	return append([]V(nil), o.values...)
}
