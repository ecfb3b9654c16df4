// Package abi calls interfaces implemented on the other side of a
// compiled-artifact boundary.
//
// Both sides agree on nothing but a single EntryPoint function and the
// wire format of this module. The callee describes its interface with
// NewInterface and Method and serves it with Export:
//
//	type AddArgs struct{ Delta int64 }
//
//	iface := abi.NewInterface[*Counter]("counter", 1)
//	add := abi.MustMethod(iface, "Add", func(c *Counter, a AddArgs) (int64, error) {
//	    c.n += a.Delta
//	    return c.n, nil
//	}, abi.Mutable())
//
//	abi.Register("counter", abi.Export(iface, newCounter).Entry())
//
// The caller declares the interface as it knows it, which may be an older
// or newer version, and connects:
//
//	conn, err := abi.Connect(ctx, entry, iface, abi.DefaultConnectOptions())
//	defer conn.Close()
//	n, err := abi.Call(conn, add, AddArgs{Delta: 2})
//
// # Protocol
//
// Every request carries one of four flags:
//
//	QueryDefinition  callee version and definition
//	CreateInstance   new instance, owned by the caller
//	CallMethod       method call on an instance
//	DropInstance     destroy an owned instance
//
// Results come back through the ResultReceiver passed with the request,
// never as a return value. Status 1 carries an application error message,
// status 2 a protocol error message.
//
// # Compatibility
//
// Connect asks the callee for its definition at min(caller, callee)
// version and compares it method by method. Each method gets a mask with
// bit i set when argument i has the same schema on both sides and bit 63
// when the return value does. A method with any bit missing is disabled
// for the lifetime of the connection; calling it fails with a protocol
// error naming the first difference. Methods are identified by number,
// which is their declaration index.
//
// # Ownership
//
// Instances cross the boundary as Ref values. An owning Ref must be
// dropped by its holder, which Connection.Close does. Exported.Lend hands
// out a borrowed Ref; the instance cannot be dropped until the lender
// calls Release.
package abi
