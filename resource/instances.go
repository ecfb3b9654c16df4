package resource

// Instances is the typed view of one interface's instances in a Table.
type Instances[T any] struct {
	table *Table
	iface string
}

// For binds iface in table to implementations of type T.
func For[T any](table *Table, iface string) *Instances[T] {
	return &Instances[T]{table: table, iface: iface}
}

// Interface returns the interface name the view is bound to.
func (in *Instances[T]) Interface() string {
	return in.iface
}

// Insert stores impl and returns its handle.
func (in *Instances[T]) Insert(impl T) (Handle, error) {
	return in.table.Insert(in.iface, impl)
}

// Get returns the implementation behind h.
func (in *Instances[T]) Get(h Handle) (T, error) {
	var zero T
	v, err := in.table.Lookup(h, in.iface)
	if err != nil {
		return zero, err
	}
	impl, ok := v.(T)
	if !ok {
		return zero, ErrWrongInterface
	}
	return impl, nil
}

// Remove drops the implementation behind h.
func (in *Instances[T]) Remove(h Handle) (T, error) {
	v, err := in.table.remove(h, in.iface)
	if err != nil {
		var zero T
		return zero, err
	}
	impl, _ := v.(T)
	return impl, nil
}

// Borrow pins the implementation behind h.
func (in *Instances[T]) Borrow(h Handle) error {
	return in.table.borrow(h, in.iface)
}

// Return ends one borrow of h.
func (in *Instances[T]) Return(h Handle) error {
	return in.table.Return(h)
}
