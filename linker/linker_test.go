package linker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/savefile/abi"
	serrors "github.com/wippyai/savefile/errors"
	"github.com/wippyai/savefile/linker/internal/memory"
)

type store struct {
	items [][]byte
}

type putArgs struct {
	Data []byte
}

type getArgs struct {
	Index uint32
}

type storeAPI struct {
	iface *abi.Interface[*store]
	put   abi.MethodRef[putArgs, uint32]
	get   abi.MethodRef[getArgs, []byte]
}

func newStoreAPI() *storeAPI {
	api := &storeAPI{iface: abi.NewInterface[*store]("store", 0)}
	api.put = abi.MustMethod(api.iface, "Put", func(s *store, a putArgs) (uint32, error) {
		s.items = append(s.items, a.Data)
		return uint32(len(s.items) - 1), nil
	}, abi.Mutable())
	api.get = abi.MustMethod(api.iface, "Get", func(s *store, a getArgs) ([]byte, error) {
		if int(a.Index) >= len(s.items) {
			return nil, errors.New("no such item")
		}
		return s.items[a.Index], nil
	})
	return api
}

func newLinker(t *testing.T) (context.Context, *Linker) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	l := New(rt, DefaultOptions())
	t.Cleanup(func() {
		_ = l.Close(ctx)
		_ = rt.Close(ctx)
	})
	return ctx, l
}

func linkStore(t *testing.T) (*Linker, *storeAPI, *abi.Connection) {
	t.Helper()
	ctx, l := newLinker(t)
	api := newStoreAPI()
	exported := abi.Export(api.iface, func() (*store, error) { return &store{}, nil })

	entry, err := l.Link(ctx, "store", exported.Entry())
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	conn, err := abi.Connect(ctx, entry, api.iface, abi.DefaultConnectOptions())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return l, api, conn
}

func TestLink_CallThroughArtifact(t *testing.T) {
	_, api, conn := linkStore(t)

	idx, err := abi.Call(conn, api.put, putArgs{Data: []byte("first")})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if idx != 0 {
		t.Errorf("Put index = %d, want 0", idx)
	}

	got, err := abi.Call(conn, api.get, getArgs{Index: 0})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "first" {
		t.Errorf("Get = %q, want first", got)
	}
}

func TestLink_ApplicationError(t *testing.T) {
	_, api, conn := linkStore(t)

	_, err := abi.Call(conn, api.get, getArgs{Index: 3})
	if !errors.Is(err, serrors.ErrCallFailed) {
		t.Fatalf("error = %v, want call failure", err)
	}
	if !strings.Contains(err.Error(), "no such item") {
		t.Errorf("error %q does not carry the callee message", err)
	}
}

func TestLink_UnknownMethod(t *testing.T) {
	_, _, conn := linkStore(t)

	_, err := conn.CallRaw(9, nil)
	if !errors.Is(err, serrors.ErrProtocol) {
		t.Fatalf("error = %v, want protocol error", err)
	}
}

func TestLink_LargeFrameGrowsMemory(t *testing.T) {
	_, api, conn := linkStore(t)

	big := bytes.Repeat([]byte{0x5a}, 3*memory.PageSize)
	idx, err := abi.Call(conn, api.put, putArgs{Data: big})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := abi.Call(conn, api.get, getArgs{Index: idx})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, big) {
		t.Error("large payload corrupted across the link")
	}
}

func TestLink_PanickingEntry(t *testing.T) {
	ctx, l := newLinker(t)

	entry, err := l.Link(ctx, "broken", func(abi.Request, abi.ResultReceiver) {
		panic("host failure")
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	var res abi.Result
	entry(abi.Request{Flag: abi.QueryDefinition}, func(r abi.Result) { res = r })
	if res.Status != abi.StatusProtocol {
		t.Fatalf("Status = %v, want protocol", res.Status)
	}
}

func TestLink_SilentEntry(t *testing.T) {
	ctx, l := newLinker(t)

	entry, err := l.Link(ctx, "silent", func(abi.Request, abi.ResultReceiver) {})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	var res abi.Result
	entry(abi.Request{Flag: abi.QueryDefinition}, func(r abi.Result) { res = r })
	if err := res.Err(); !errors.Is(err, serrors.ErrProtocol) {
		t.Errorf("error = %v, want protocol error", err)
	}
}

func TestLink_Errors(t *testing.T) {
	ctx, l := newLinker(t)
	noop := func(_ abi.Request, receive abi.ResultReceiver) { receive(abi.Result{}) }

	if _, err := l.Link(ctx, "", noop); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := l.Link(ctx, "x", nil); err == nil {
		t.Error("expected error for nil entry")
	}
	if _, err := l.Link(ctx, "x", noop); err != nil {
		t.Fatalf("Link: %v", err)
	}

	_, err := l.Link(ctx, "x", noop)
	var le *LinkError
	if !errors.As(err, &le) || le.Name != "x" {
		t.Errorf("duplicate link error = %v, want LinkError for x", err)
	}
}

func TestLinker_NamesAndUnlink(t *testing.T) {
	ctx, l := newLinker(t)
	noop := func(_ abi.Request, receive abi.ResultReceiver) { receive(abi.Result{}) }

	entries := map[string]abi.EntryPoint{}
	for _, name := range []string{"b", "a", "c"} {
		e, err := l.Link(ctx, name, noop)
		if err != nil {
			t.Fatalf("Link %s: %v", name, err)
		}
		entries[name] = e
	}
	if got := strings.Join(l.Names(), ","); got != "a,b,c" {
		t.Errorf("Names = %s, want a,b,c", got)
	}

	if err := l.Unlink(ctx, "b"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if got := strings.Join(l.Names(), ","); got != "a,c" {
		t.Errorf("Names after unlink = %s, want a,c", got)
	}
	if err := l.Unlink(ctx, "b"); err == nil {
		t.Error("expected error unlinking twice")
	}

	var res abi.Result
	entries["b"](abi.Request{}, func(r abi.Result) { res = r })
	if res.Status != abi.StatusProtocol {
		t.Errorf("call through unlinked artifact: Status = %v, want protocol", res.Status)
	}

	// the name is free again
	if _, err := l.Link(ctx, "b", noop); err != nil {
		t.Errorf("relink: %v", err)
	}
}

func TestLink_ExportsProtocolGlobal(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	l := New(rt, Options{ModulePrefix: "test:", ExchangePages: 2})
	noop := func(_ abi.Request, receive abi.ResultReceiver) { receive(abi.Result{}) }
	if _, err := l.Link(ctx, "g", noop); err != nil {
		t.Fatal(err)
	}

	mod := rt.Module("test:g")
	if mod == nil {
		t.Fatal("artifact module not registered under its prefixed name")
	}
	g := mod.ExportedGlobal(exportProtocol)
	if g == nil || g.Get() != ProtocolVersion {
		t.Errorf("protocol global = %v, want %d", g, ProtocolVersion)
	}
	if size := mod.Memory().Size(); size != 2*memory.PageSize {
		t.Errorf("memory size = %d, want two pages", size)
	}
}
