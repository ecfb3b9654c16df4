// Package resource keeps live interface instances behind integer handles.
//
// An exported interface hands out handles instead of pointers. The caller
// that created an instance owns its handle and is the only one allowed to
// drop it. Other code may borrow the handle for the duration of a call;
// the instance cannot be dropped while borrows are outstanding.
//
//	table := resource.NewTable()
//	h, err := table.Insert("counter", value)
//
//	if err := table.Borrow(h); err != nil { ... }
//	defer table.Return(h)
//
//	_, err = table.Remove(h) // ErrOutstandingBorrow
//
// Instances is the typed view of one interface:
//
//	counters := resource.For[*Counter](table, "counter")
//	h, _ := counters.Insert(&Counter{})
//	c, err := counters.Get(h)
//
// Slots freed by Remove are reused under a new generation, so an old
// handle fails with ErrStaleHandle instead of reaching the new instance.
// Handle 0 is never issued.
//
// Values implementing Dropper are notified when removed or when the table
// is closed. Observers registered with Watch see every lifecycle event.
package resource
