package abi

import (
	"context"
	"errors"
	"strings"
	"testing"

	serrors "github.com/wippyai/savefile/errors"
)

func TestCallRoundTrip(t *testing.T) {
	api := newCounterAPI(1)
	exp := Export(api.iface, newCounter)
	conn := connect(t, exp.Entry(), api.iface)

	if exp.Len() != 1 {
		t.Fatalf("instances = %d, want 1", exp.Len())
	}

	for _, d := range []int64{5, 3} {
		if _, err := Call(conn, api.add, addArgs{Delta: d}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	got, err := Call(conn, api.get, struct{}{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 8 {
		t.Errorf("Get = %d, want 8", got)
	}
	name, err := Call(conn, api.name, struct{}{})
	if err != nil || name != "counter" {
		t.Errorf("Name = %q, %v", name, err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if exp.Len() != 0 {
		t.Errorf("instances after Close = %d, want 0", exp.Len())
	}
	if _, err := Call(conn, api.get, struct{}{}); !errors.Is(err, serrors.ErrProtocol) {
		t.Errorf("call on closed connection: %v", err)
	}
}

func TestSeparateInstances(t *testing.T) {
	api := newCounterAPI(0)
	exp := Export(api.iface, newCounter)
	a := connect(t, exp.Entry(), api.iface)
	b := connect(t, exp.Entry(), api.iface)

	if _, err := Call(a, api.add, addArgs{Delta: 10}); err != nil {
		t.Fatal(err)
	}
	n, err := Call(b, api.get, struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second instance sees %d", n)
	}
}

func TestApplicationError(t *testing.T) {
	api := newCounterAPI(0)
	conn := connect(t, Export(api.iface, newCounter).Entry(), api.iface)

	_, err := Call(conn, api.fail, struct{}{})
	if !errors.Is(err, serrors.ErrCallFailed) {
		t.Fatalf("error = %v, want call failure", err)
	}
	if !strings.Contains(err.Error(), "counter is tired") {
		t.Errorf("message %q lost the callee error", err)
	}
}

func TestPanicBecomesProtocolError(t *testing.T) {
	api := newCounterAPI(0)
	conn := connect(t, Export(api.iface, newCounter).Entry(), api.iface)

	_, err := Call(conn, api.boom, struct{}{})
	if !errors.Is(err, serrors.ErrProtocol) {
		t.Fatalf("error = %v, want protocol error", err)
	}

	// the instance survives
	if _, err := Call(conn, api.get, struct{}{}); err != nil {
		t.Errorf("Get after panic: %v", err)
	}
}

func TestUnknownMethodNumber(t *testing.T) {
	// The callee has five methods, the caller knows eight.
	callee := newCounterAPI(0)
	caller := newCounterAPI(0)
	MustMethod(caller.iface, "Reset", func(c *counter, _ struct{}) (struct{}, error) { return struct{}{}, nil })
	MustMethod(caller.iface, "Double", func(c *counter, _ struct{}) (int64, error) { return 0, nil })
	last := MustMethod(caller.iface, "Halve", func(c *counter, _ struct{}) (int64, error) { return 0, nil })
	if last.Number() != 7 {
		t.Fatalf("method number = %d, want 7", last.Number())
	}

	conn := connect(t, Export(callee.iface, newCounter).Entry(), caller.iface)

	if ok, _ := conn.Enabled(7); ok {
		t.Error("method 7 should be disabled")
	}
	if _, err := Call(conn, last, struct{}{}); !errors.Is(err, serrors.ErrProtocol) {
		t.Errorf("Call(7) error = %v, want protocol error", err)
	}

	_, err := conn.CallRaw(7, nil)
	if !errors.Is(err, serrors.ErrProtocol) {
		t.Fatalf("CallRaw(7) error = %v, want protocol error", err)
	}
	if !strings.Contains(err.Error(), "unknown method number 7") {
		t.Errorf("message = %q", err)
	}

	// known methods keep working
	if _, err := Call(conn, caller.add, addArgs{Delta: 1}); err != nil {
		t.Errorf("Add: %v", err)
	}
}

type scaledArgs struct {
	Delta int64
	Scale int64 `savefile:",versions=2..,default=1"`
}

func TestVersionNegotiation(t *testing.T) {
	callee := newCounterAPI(1)
	exp := Export(callee.iface, newCounter)

	caller := NewInterface[*counter]("counter", 2)
	add := MustMethod(caller, "Add", func(c *counter, a scaledArgs) (int64, error) {
		return 0, nil
	}, Mutable())

	conn := connect(t, exp.Entry(), caller)
	if conn.Version() != 1 || conn.CalleeVersion() != 1 {
		t.Fatalf("version = %d, callee %d", conn.Version(), conn.CalleeVersion())
	}

	n, err := Call(conn, add, scaledArgs{Delta: 4, Scale: 9})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if n != 4 {
		t.Errorf("Add = %d, want 4", n)
	}
}

func TestIncompatibleArgumentDisablesMethod(t *testing.T) {
	callee := newCounterAPI(0)

	type narrowArgs struct {
		Delta int32
	}
	caller := NewInterface[*counter]("counter", 0)
	add := MustMethod(caller, "Add", func(c *counter, a narrowArgs) (int64, error) { return 0, nil }, Mutable())
	get := MustMethod(caller, "Get", func(c *counter, _ struct{}) (int64, error) { return 0, nil })

	conn := connect(t, Export(callee.iface, newCounter).Entry(), caller)

	ok, reason := conn.Enabled(add.Number())
	if ok {
		t.Fatal("Add should be disabled")
	}
	if !strings.Contains(reason, "Delta") {
		t.Errorf("reason %q does not name the argument", reason)
	}

	_, err := Call(conn, add, narrowArgs{Delta: 1})
	if !errors.Is(err, serrors.ErrProtocol) {
		t.Errorf("error = %v, want protocol error", err)
	}
	if _, err := Call(conn, get, struct{}{}); err != nil {
		t.Errorf("Get: %v", err)
	}
}

func TestMutabilityMismatch(t *testing.T) {
	callee := newCounterAPI(0)
	caller := NewInterface[*counter]("counter", 0)
	MustMethod(caller, "Add", func(c *counter, a addArgs) (int64, error) { return 0, nil })

	conn := connect(t, Export(callee.iface, newCounter).Entry(), caller)
	if ok, _ := conn.Enabled(0); ok {
		t.Error("Add with a different receiver should be disabled")
	}
}

func TestConnectWrongInterface(t *testing.T) {
	api := newCounterAPI(0)
	other := NewInterface[*counter]("timer", 0)

	_, err := Connect(context.Background(), Export(api.iface, newCounter).Entry(), other, DefaultConnectOptions())
	if !errors.Is(err, serrors.ErrProtocol) {
		t.Errorf("error = %v, want protocol error", err)
	}
}

func TestConnectCanceled(t *testing.T) {
	api := newCounterAPI(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Connect(ctx, Export(api.iface, newCounter).Entry(), api.iface, DefaultConnectOptions()); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestConnectFactoryError(t *testing.T) {
	api := newCounterAPI(0)
	exp := Export(api.iface, func() (*counter, error) {
		return nil, errors.New("no capacity")
	})
	_, err := Connect(context.Background(), exp.Entry(), api.iface, DefaultConnectOptions())
	if !errors.Is(err, serrors.ErrCallFailed) {
		t.Errorf("error = %v, want call failure", err)
	}
}

func TestEntryPointWithoutResult(t *testing.T) {
	api := newCounterAPI(0)
	silent := func(Request, ResultReceiver) {}
	_, err := Connect(context.Background(), silent, api.iface, DefaultConnectOptions())
	if !errors.Is(err, serrors.ErrProtocol) {
		t.Errorf("error = %v, want protocol error", err)
	}
}

func TestCalleeRejectsMissingMaskBits(t *testing.T) {
	api := newCounterAPI(0)
	exp := Export(api.iface, newCounter)
	conn := connect(t, exp.Entry(), api.iface)

	var res Result
	exp.Entry()(Request{
		Flag:     CallMethod,
		Instance: conn.Ref().Handle,
		Method:   api.add.Number(),
		Args:     []byte{0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0},
		Mask:     1,
	}, func(r Result) { res = r })

	if res.Status != StatusProtocol {
		t.Fatalf("status = %s, want protocol", res.Status)
	}
	if !strings.Contains(res.Err().Error(), "incompatible arguments") {
		t.Errorf("message = %v", res.Err())
	}
}

func TestCallRawRoundTrip(t *testing.T) {
	api := newCounterAPI(0)
	conn := connect(t, Export(api.iface, newCounter).Entry(), api.iface)

	data, err := conn.CallRaw(api.add.Number(), []byte{7, 0, 0, 0, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("CallRaw: %v", err)
	}
	want := []byte{7, 0, 0, 0, 0, 0, 0, 0}
	if string(data) != string(want) {
		t.Errorf("result = % x, want % x", data, want)
	}
}
