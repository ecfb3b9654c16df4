package abi

import (
	"context"
	"errors"
	"testing"
)

type counter struct {
	n int64
}

type addArgs struct {
	Delta int64
}

type counterAPI struct {
	iface *Interface[*counter]
	add   MethodRef[addArgs, int64]
	get   MethodRef[struct{}, int64]
	name  MethodRef[struct{}, string]
	fail  MethodRef[struct{}, struct{}]
	boom  MethodRef[struct{}, struct{}]
}

func newCounterAPI(version uint32) *counterAPI {
	api := &counterAPI{iface: NewInterface[*counter]("counter", version)}
	api.add = MustMethod(api.iface, "Add", func(c *counter, a addArgs) (int64, error) {
		c.n += a.Delta
		return c.n, nil
	}, Mutable())
	api.get = MustMethod(api.iface, "Get", func(c *counter, _ struct{}) (int64, error) {
		return c.n, nil
	})
	api.name = MustMethod(api.iface, "Name", func(c *counter, _ struct{}) (string, error) {
		return "counter", nil
	})
	api.fail = MustMethod(api.iface, "Fail", func(c *counter, _ struct{}) (struct{}, error) {
		return struct{}{}, errors.New("counter is tired")
	})
	api.boom = MustMethod(api.iface, "Boom", func(c *counter, _ struct{}) (struct{}, error) {
		panic("boom")
	})
	return api
}

func newCounter() (*counter, error) {
	return &counter{}, nil
}

func connect(t *testing.T, entry EntryPoint, iface Describer) *Connection {
	t.Helper()
	conn, err := Connect(context.Background(), entry, iface, DefaultConnectOptions())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return conn
}
